package scoring

import (
	"math"
	"testing"

	"routectl/internal/model"
)

func TestValidate_SumTolerance(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		w       Weights
		wantErr bool
	}{
		{"exact", Weights{0.25, 0.25, 0.25, 0.25}, false},
		{"default", Default(), false},
		{"within tolerance", Weights{0.3, 0.3, 0.2, 0.2 + 5e-7}, false},
		{"zero weight term", Weights{1, 0, 0, 0}, false},
		{"over", Weights{0.5, 0.5, 0.5, 0.5}, true},
		{"under", Weights{0.1, 0.1, 0.1, 0.1}, true},
		{"just outside tolerance", Weights{0.3, 0.3, 0.2, 0.2 + 2e-6}, true},
		{"all zero", Weights{}, true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.w.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected error for sum=%v", tc.w.Sum())
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected: %v", err)
			}
		})
	}
}

func TestScore_PerfectNode(t *testing.T) {
	t.Parallel()

	node := model.NodeMetrics{
		ID:               "n1",
		Reputation:       1,
		EstimatedRuntime: 0,
		CreditCost:       0,
		EnergyAffinity:   1,
		Status:           model.StatusAvailable,
	}
	got := Score(node, model.JobSpec{ID: "j1"}, false, Weights{0.25, 0.25, 0.25, 0.25})
	if math.Abs(got-1.0) > 1e-12 {
		t.Fatalf("score=%v", got)
	}
}

func TestScore_ZeroRuntimeAndCostComponents(t *testing.T) {
	t.Parallel()

	node := model.NodeMetrics{ID: "n1", EstimatedRuntime: 0, CreditCost: 0}
	if got := Score(node, model.JobSpec{}, false, Weights{Runtime: 1}); got != 1.0 {
		t.Fatalf("runtime component=%v", got)
	}
	if got := Score(node, model.JobSpec{}, false, Weights{Cost: 1}); got != 1.0 {
		t.Fatalf("cost component=%v", got)
	}
}

func TestScore_RuntimeMonotonicallyDecreasing(t *testing.T) {
	t.Parallel()

	fast := model.NodeMetrics{ID: "fast", EstimatedRuntime: 10}
	slow := model.NodeMetrics{ID: "slow", EstimatedRuntime: 2000}
	w := Weights{Runtime: 1}
	if Score(fast, model.JobSpec{}, false, w) <= Score(slow, model.JobSpec{}, false, w) {
		t.Fatalf("faster node must score higher")
	}
}

func TestScore_CacheHitUpgradesAffinity(t *testing.T) {
	t.Parallel()

	node := model.NodeMetrics{ID: "n1", EnergyAffinity: 0.1}
	job := model.JobSpec{ID: "j1", ResourceKey: "dataset-7"}
	w := Weights{Affinity: 1}

	if got := Score(node, job, true, w); got != 1.0 {
		t.Fatalf("hit score=%v", got)
	}
	if got := Score(node, job, false, w); got != 0.1 {
		t.Fatalf("miss score=%v", got)
	}
	// A hit flag without a resource key on the job must not upgrade.
	if got := Score(node, model.JobSpec{ID: "j2"}, true, w); got != 0.1 {
		t.Fatalf("keyless score=%v", got)
	}
}

func TestScore_ClampsMalformedInput(t *testing.T) {
	t.Parallel()

	node := model.NodeMetrics{
		ID:               "n1",
		Reputation:       1.7,
		EstimatedRuntime: -50,
		CreditCost:       -3,
		EnergyAffinity:   -0.4,
	}
	got := Score(node, model.JobSpec{}, false, Weights{0.25, 0.25, 0.25, 0.25})
	// rep clamps to 1, runtime/cost clamp to 0 (component 1.0), affinity to 0.
	want := 0.25 + 0.25 + 0.25
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("score=%v want=%v", got, want)
	}
}

func TestEffectiveAffinity(t *testing.T) {
	t.Parallel()

	node := model.NodeMetrics{ID: "n1", EnergyAffinity: 0.6}
	job := model.JobSpec{ID: "j1", ResourceKey: "k"}
	if got := EffectiveAffinity(node, job, true); got != 1.0 {
		t.Fatalf("hit=%v", got)
	}
	if got := EffectiveAffinity(node, job, false); got != 0.6 {
		t.Fatalf("miss=%v", got)
	}
}
