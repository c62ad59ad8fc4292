package router

import (
	"errors"
	"fmt"
	"testing"

	"routectl/internal/model"
	"routectl/internal/registry"
	"routectl/internal/scoring"
)

var testWeights = scoring.Weights{Reputation: 0.3, Runtime: 0.3, Cost: 0.2, Affinity: 0.2}

// threeNodes is the canonical fleet used across selection tests.
func threeNodes() *registry.Registry {
	reg := registry.New()
	reg.Register(model.NodeMetrics{ID: "node-1", Reputation: 0.9, EstimatedRuntime: 10, CreditCost: 5, EnergyAffinity: 0.8, Status: model.StatusAvailable})
	reg.Register(model.NodeMetrics{ID: "node-2", Reputation: 0.7, EstimatedRuntime: 20, CreditCost: 3, EnergyAffinity: 0.6, Status: model.StatusAvailable})
	reg.Register(model.NodeMetrics{ID: "node-3", Reputation: 0.95, EstimatedRuntime: 5, CreditCost: 10, EnergyAffinity: 0.9, Status: model.StatusAvailable})
	return reg
}

func TestRoute_SelectsHighestCompositeScore(t *testing.T) {
	t.Parallel()

	reg := threeNodes()
	rt := New(reg, testWeights, 0)

	// Deterministic across repeated runs with unchanged inputs.
	for i := 0; i < 5; i++ {
		decision, err := rt.Route(model.JobSpec{ID: fmt.Sprintf("job-%d", i), JobType: "batch"})
		if err != nil {
			t.Fatalf("Route: %v", err)
		}
		if decision.SelectedNode != "node-3" {
			t.Fatalf("run %d selected=%s", i, decision.SelectedNode)
		}
		if decision.Score <= 0 || decision.Score > 1 {
			t.Fatalf("score=%v", decision.Score)
		}
		if decision.EstimatedRuntime != 5 || decision.EstimatedCost != 10 {
			t.Fatalf("decision=%+v", decision)
		}
	}
}

func TestRoute_NeverSelectsUnavailableNode(t *testing.T) {
	t.Parallel()

	reg := threeNodes()
	busy := model.StatusBusy
	offline := model.StatusOffline
	if err := reg.UpdateMetrics("node-2", registry.MetricsUpdate{Status: &busy}); err != nil {
		t.Fatalf("UpdateMetrics: %v", err)
	}
	if err := reg.UpdateMetrics("node-3", registry.MetricsUpdate{Status: &offline}); err != nil {
		t.Fatalf("UpdateMetrics: %v", err)
	}

	rt := New(reg, testWeights, 0)
	decision, err := rt.Route(model.JobSpec{ID: "job-1"})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	// node-1 wins regardless of its score relative to the others.
	if decision.SelectedNode != "node-1" {
		t.Fatalf("selected=%s", decision.SelectedNode)
	}
}

func TestRoute_EmptyRegistry(t *testing.T) {
	t.Parallel()

	rt := New(registry.New(), testWeights, 0)
	_, err := rt.Route(model.JobSpec{ID: "job-1"})
	if !errors.Is(err, ErrNoAvailableNodes) {
		t.Fatalf("err=%v", err)
	}
}

func TestRoute_AllOffline(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	for _, id := range []string{"a", "b"} {
		reg.Register(model.NodeMetrics{ID: id, Status: model.StatusOffline})
	}
	rt := New(reg, testWeights, 0)
	_, err := rt.Route(model.JobSpec{ID: "job-1"})
	if !errors.Is(err, ErrNoAvailableNodes) {
		t.Fatalf("err=%v", err)
	}
}

func TestRoute_AffinityCacheHitFlipsWinner(t *testing.T) {
	t.Parallel()

	reg := threeNodes()
	if err := reg.AddKey("node-1", "dataset-7"); err != nil {
		t.Fatalf("AddKey: %v", err)
	}
	rt := New(reg, testWeights, 0)

	// Without the key node-3 wins; the cache hit lifts node-1's affinity
	// component to 1.0, which is enough to flip the winner.
	decision, err := rt.Route(model.JobSpec{ID: "job-1", ResourceKey: "dataset-7"})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if decision.SelectedNode != "node-1" {
		t.Fatalf("selected=%s", decision.SelectedNode)
	}
	if decision.EnergyAffinity != 1.0 {
		t.Fatalf("energy_affinity=%v", decision.EnergyAffinity)
	}
}

func TestRoute_TieBreaksByNodeID(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	// Identical metrics: identical scores.
	for _, id := range []string{"charlie", "alpha", "bravo"} {
		reg.Register(model.NodeMetrics{ID: id, Reputation: 0.5, EstimatedRuntime: 10, CreditCost: 10, EnergyAffinity: 0.5, Status: model.StatusAvailable})
	}
	rt := New(reg, testWeights, 0)

	for i := 0; i < 10; i++ {
		decision, err := rt.Route(model.JobSpec{ID: "job-1"})
		if err != nil {
			t.Fatalf("Route: %v", err)
		}
		if decision.SelectedNode != "alpha" {
			t.Fatalf("selected=%s", decision.SelectedNode)
		}
	}
}

func TestRoute_RequiredCapabilitiesFilter(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	reg.Register(model.NodeMetrics{ID: "cpu-1", Reputation: 0.99, Status: model.StatusAvailable})
	reg.Register(model.NodeMetrics{ID: "gpu-1", Reputation: 0.1, Capabilities: []string{"gpu", "ssd"}, Status: model.StatusAvailable})
	rt := New(reg, testWeights, 0)

	decision, err := rt.Route(model.JobSpec{ID: "job-1", RequiredCapabilities: []string{"gpu"}})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if decision.SelectedNode != "gpu-1" {
		t.Fatalf("selected=%s", decision.SelectedNode)
	}

	_, err = rt.Route(model.JobSpec{ID: "job-2", RequiredCapabilities: []string{"tpu"}})
	if !errors.Is(err, ErrNoAvailableNodes) {
		t.Fatalf("err=%v", err)
	}
}

func TestRoute_BudgetFilters(t *testing.T) {
	t.Parallel()

	reg := threeNodes()
	rt := New(reg, testWeights, 0)

	// node-3 (runtime 5) is the only one within a 7s budget.
	decision, err := rt.Route(model.JobSpec{ID: "job-1", MaxRuntime: 7})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if decision.SelectedNode != "node-3" {
		t.Fatalf("selected=%s", decision.SelectedNode)
	}

	// Cost budget excludes node-3; node-1 is the best of the rest.
	decision, err = rt.Route(model.JobSpec{ID: "job-2", MaxCost: 6})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if decision.SelectedNode != "node-1" {
		t.Fatalf("selected=%s", decision.SelectedNode)
	}

	_, err = rt.Route(model.JobSpec{ID: "job-3", MaxCost: 1})
	if !errors.Is(err, ErrNoAvailableNodes) {
		t.Fatalf("err=%v", err)
	}
}

func TestRoute_DoesNotMutateNodeState(t *testing.T) {
	t.Parallel()

	reg := threeNodes()
	before, _ := reg.Get("node-3")
	rt := New(reg, testWeights, 0)
	if _, err := rt.Route(model.JobSpec{ID: "job-1"}); err != nil {
		t.Fatalf("Route: %v", err)
	}
	after, _ := reg.Get("node-3")
	if before.Reputation != after.Reputation || before.Status != after.Status || !before.LastUpdated.Equal(after.LastUpdated) {
		t.Fatalf("node state mutated: before=%+v after=%+v", before, after)
	}
}

func TestHistory_AppendOnlyAndBounded(t *testing.T) {
	t.Parallel()

	reg := threeNodes()
	rt := New(reg, testWeights, 8)

	for i := 0; i < 20; i++ {
		if _, err := rt.Route(model.JobSpec{ID: fmt.Sprintf("job-%d", i)}); err != nil {
			t.Fatalf("Route: %v", err)
		}
	}

	history := rt.History()
	if len(history) != 8 {
		t.Fatalf("history=%d", len(history))
	}
	// Oldest evicted first.
	if history[0].JobID != "job-12" || history[7].JobID != "job-19" {
		t.Fatalf("window=[%s..%s]", history[0].JobID, history[7].JobID)
	}
}
