package engine

import "stratadyn.ai/internal/sim/layer"

// TransferPair is one directed interlayer energy channel.
type TransferPair struct {
	From, To layer.Layer
}

// TransferPairs is the fixed set of modeled channels. Params.GammaTransfer
// and Diagnostics.Transfer are indexed to match.
var TransferPairs = [...]TransferPair{
	{layer.Upper, layer.Base},
	{layer.Upper, layer.Core},
	{layer.Base, layer.Upper},
	{layer.Base, layer.Core},
	{layer.Core, layer.Base},
	{layer.Core, layer.Upper},
	{layer.Physical, layer.Base},
	{layer.Physical, layer.Upper},
}

const TransferCount = len(TransferPairs)

// interlayerTransfers computes the per-pair magnitudes and folds them into
// the net energy deltas: every pair is subtracted from its source and added
// to its destination in the same pass, so the sum over a pair is exactly
// zero regardless of production, decay, or conversion.
func interlayerTransfers(p *Params, s *State, dE *PerLayer) [TransferCount]float64 {
	var out [TransferCount]float64
	if p.TransferStrength == 0 {
		return out
	}
	for i, pair := range TransferPairs {
		amt := p.GammaTransfer[i] * s.Energy[pair.From] * p.TransferStrength
		out[i] = amt
		dE[pair.From] -= amt
		dE[pair.To] += amt
	}
	return out
}
