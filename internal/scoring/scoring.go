package scoring

import (
	"errors"
	"math"

	"routectl/internal/model"
)

// ErrInvalidWeights is returned when the four weights do not sum to 1.0
// within WeightTolerance.
var ErrInvalidWeights = errors.New("scoring weights must sum to 1.0")

// WeightTolerance is the allowed floating-point slack on the weight sum.
const WeightTolerance = 1e-6

// Weights are the coefficients of the composite score. Individual weights
// of zero are legal and simply remove that signal's contribution.
type Weights struct {
	Reputation float64 `yaml:"reputation" json:"reputation"`
	Runtime    float64 `yaml:"runtime" json:"runtime"`
	Cost       float64 `yaml:"cost" json:"cost"`
	Affinity   float64 `yaml:"affinity" json:"affinity"`
}

// Default returns the stock weight profile.
func Default() Weights {
	return Weights{Reputation: 0.3, Runtime: 0.3, Cost: 0.2, Affinity: 0.2}
}

// Sum returns the total of all four weights.
func (w Weights) Sum() float64 {
	return w.Reputation + w.Runtime + w.Cost + w.Affinity
}

// IsZero reports whether no weight has been set at all.
func (w Weights) IsZero() bool {
	return w == Weights{}
}

// Validate checks the sum-to-one constraint.
func (w Weights) Validate() error {
	if math.Abs(w.Sum()-1.0) >= WeightTolerance {
		return ErrInvalidWeights
	}
	return nil
}

// Score combines four independently normalized signals into a single value
// in [0,1]. hasKey reports whether the job's resource key is resident on
// the node; a hit upgrades the affinity component to a perfect 1.0.
//
// Runtime and cost are unbounded positive quantities, so they pass through
// 1/(1+x/1000), which maps them into (0,1] with a soft knee near 1000 units
// and needs no global max/min scan. Zero runtime or cost yields exactly 1.0
// for that component. Malformed-but-well-typed input degrades, never panics.
func Score(node model.NodeMetrics, job model.JobSpec, hasKey bool, w Weights) float64 {
	reputation := clamp01(node.Reputation)

	runtime := node.EstimatedRuntime
	if runtime < 0 {
		runtime = 0
	}
	runtimeScore := 1.0 / (1.0 + runtime/1000.0)

	cost := node.CreditCost
	if cost < 0 {
		cost = 0
	}
	costScore := 1.0 / (1.0 + cost/1000.0)

	affinityScore := clamp01(node.EnergyAffinity)
	if hasKey && job.ResourceKey != "" {
		affinityScore = 1.0
	}

	return w.Reputation*reputation + w.Runtime*runtimeScore + w.Cost*costScore + w.Affinity*affinityScore
}

// EffectiveAffinity is the affinity component Score uses, exposed so the
// router can record it on the decision.
func EffectiveAffinity(node model.NodeMetrics, job model.JobSpec, hasKey bool) float64 {
	if hasKey && job.ResourceKey != "" {
		return 1.0
	}
	return clamp01(node.EnergyAffinity)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
