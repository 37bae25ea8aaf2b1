// Package layer defines the fixed structural layer set of an agent's
// pressure-response system. The set and its order never change at runtime:
// dominance ties, serialization, and RNG draw order all depend on it.
package layer

import "fmt"

type Layer int

const (
	Physical Layer = iota
	Base
	Core
	Upper
)

// Count is the number of structural layers. The aggregate action pool
// ("direct") is not a structural layer and is tracked separately.
const Count = 4

// None marks the absence of a dominant layer.
const None Layer = -1

// Order is the fixed enumeration order. Dominant-layer ties resolve to the
// first layer encountered here.
var Order = [Count]Layer{Physical, Base, Core, Upper}

var names = [Count]string{"PHYSICAL", "BASE", "CORE", "UPPER"}

func (l Layer) String() string {
	if l == None {
		return "NONE"
	}
	if l < 0 || int(l) >= Count {
		return fmt.Sprintf("LAYER(%d)", int(l))
	}
	return names[l]
}

func (l Layer) Valid() bool {
	return l >= 0 && int(l) < Count
}

// Parse maps a config/wire name back to a layer. Matching is exact and
// upper-case, same as String emits.
func Parse(s string) (Layer, error) {
	for i, n := range names {
		if n == s {
			return Layer(i), nil
		}
	}
	return None, fmt.Errorf("unknown layer %q", s)
}
