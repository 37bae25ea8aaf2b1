// Package tuning loads the coefficient overrides and scenario definitions
// that drive a simulation run. Values absent from the yaml keep the engine
// defaults.
package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"stratadyn.ai/internal/sim/engine"
	"stratadyn.ai/internal/sim/layer"
)

// LayerTuning overrides one layer's coefficients. Nil fields keep defaults.
type LayerTuning struct {
	Alpha           *float64 `yaml:"alpha"`
	GammaToDirect   *float64 `yaml:"gamma_to_direct"`
	GammaFromDirect *float64 `yaml:"gamma_from_direct"`
	Theta           *float64 `yaml:"theta"`
	Beta            *float64 `yaml:"beta"`
	Eta             *float64 `yaml:"eta"`
	Rho             *float64 `yaml:"rho"`
	Lambda          *float64 `yaml:"lambda"`
	KappaMin        *float64 `yaml:"kappa_min"`
	Resistance      *float64 `yaml:"resistance"`
	Multiplier      *float64 `yaml:"multiplier"`
	Zeta            *float64 `yaml:"zeta"`
	Xi              *float64 `yaml:"xi"`
	Omega           *float64 `yaml:"omega"`
}

type Tuning struct {
	Layers map[string]LayerTuning `yaml:"layers"`

	// Directed transfer coefficients keyed "FROM>TO", e.g. "UPPER>BASE".
	Transfer         map[string]float64 `yaml:"transfer"`
	TransferStrength *float64           `yaml:"transfer_strength"`

	CoCriticalFraction *float64 `yaml:"co_critical_fraction"`
	ThetaSensitivity   *float64 `yaml:"theta_sensitivity"`

	HazardBase        *float64 `yaml:"hazard_base"`
	HazardSensitivity *float64 `yaml:"hazard_sensitivity"`

	CooperationThreshold *float64 `yaml:"cooperation_threshold"`
	CouplingStrength     *float64 `yaml:"coupling_strength"`

	ReservoirCapacity   *float64 `yaml:"reservoir_capacity"`
	AmplificationFactor *float64 `yaml:"amplification_factor"`
}

func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Params applies the overrides on top of the engine defaults and validates
// the result.
func (t Tuning) Params() (engine.Params, error) {
	p := engine.DefaultParams()

	for name, lt := range t.Layers {
		l, err := layer.Parse(name)
		if err != nil {
			return p, fmt.Errorf("layers: %w", err)
		}
		set := func(dst *float64, src *float64) {
			if src != nil {
				*dst = *src
			}
		}
		set(&p.Alpha[l], lt.Alpha)
		set(&p.GammaToDirect[l], lt.GammaToDirect)
		set(&p.GammaFromDirect[l], lt.GammaFromDirect)
		set(&p.Theta[l], lt.Theta)
		set(&p.Beta[l], lt.Beta)
		set(&p.Eta[l], lt.Eta)
		set(&p.Rho[l], lt.Rho)
		set(&p.Lambda[l], lt.Lambda)
		set(&p.KappaMin[l], lt.KappaMin)
		set(&p.Resistance[l], lt.Resistance)
		set(&p.Multiplier[l], lt.Multiplier)
		set(&p.Zeta[l], lt.Zeta)
		set(&p.Xi[l], lt.Xi)
		set(&p.Omega[l], lt.Omega)
	}

	for key, g := range t.Transfer {
		idx, err := transferIndex(key)
		if err != nil {
			return p, err
		}
		p.GammaTransfer[idx] = g
	}

	opt := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	opt(&p.TransferStrength, t.TransferStrength)
	opt(&p.CoCriticalFraction, t.CoCriticalFraction)
	opt(&p.ThetaSensitivity, t.ThetaSensitivity)
	opt(&p.HazardBase, t.HazardBase)
	opt(&p.HazardSensitivity, t.HazardSensitivity)
	opt(&p.CooperationThreshold, t.CooperationThreshold)
	opt(&p.CouplingStrength, t.CouplingStrength)
	opt(&p.ReservoirCapacity, t.ReservoirCapacity)
	opt(&p.AmplificationFactor, t.AmplificationFactor)

	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("tuned params: %w", err)
	}
	return p, nil
}

func transferIndex(key string) (int, error) {
	for i, pair := range engine.TransferPairs {
		if key == pair.From.String()+">"+pair.To.String() {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown transfer pair %q", key)
}

// ParseMode maps the config names to engine modes.
func ParseMode(s string) (engine.Mode, error) {
	switch s {
	case "", "static":
		return engine.ModeStatic, nil
	case "integrated":
		return engine.ModeIntegrated, nil
	case "stochastic":
		return engine.ModeStochastic, nil
	}
	return engine.ModeStatic, fmt.Errorf("unknown leap mode %q", s)
}
