package ws

import (
	"stratadyn.ai/internal/protocol"
	"stratadyn.ai/internal/sim/engine"
	"stratadyn.ai/internal/sim/layer"
)

// AgentTick flattens a post-step agent state into the wire form.
func AgentTick(id string, s *engine.State) protocol.AgentTick {
	at := protocol.AgentTick{
		AgentID:  id,
		Energy:   perLayerMap(s.Energy),
		Direct:   s.Direct,
		Inertia:  perLayerMap(s.Inertia),
		Power:    perLayerMap(s.Last.Power),
		Dominant: s.Dominant.String(),
		Leap:     s.Leap.String(),
	}
	for _, l := range layer.Order {
		if s.Critical[l] {
			at.Critical = append(at.Critical, l.String())
		}
	}
	if s.Last.LeapLayer != layer.None {
		at.LeapLayer = s.Last.LeapLayer.String()
	}
	return at
}

func perLayerMap(v engine.PerLayer) map[string]float64 {
	m := make(map[string]float64, layer.Count)
	for _, l := range layer.Order {
		m[l.String()] = v[l]
	}
	return m
}
