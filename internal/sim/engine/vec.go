package engine

import "math"

// Vec3 is a small pressure/reaction vector. Only its magnitude feeds the
// dynamics; the components are kept for diagnostics.
type Vec3 [3]float64

func (v Vec3) Norm() float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

func (v Vec3) Scale(k float64) Vec3 {
	return Vec3{v[0] * k, v[1] * k, v[2] * k}
}

// VecScalar spreads a scalar pressure onto the first component, which keeps
// |v| equal to the scalar for non-negative inputs.
func VecScalar(p float64) Vec3 {
	return Vec3{p, 0, 0}
}
