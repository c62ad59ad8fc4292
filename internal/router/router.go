package router

import (
	"errors"
	"sync"
	"time"

	"routectl/internal/model"
	"routectl/internal/registry"
	"routectl/internal/scoring"
)

// ErrNoAvailableNodes is an expected, recoverable outcome: nothing eligible
// to route to right now. Callers should retry later or escalate.
var ErrNoAvailableNodes = errors.New("no available nodes")

// DefaultHistoryLimit bounds the decision history when no limit is given.
const DefaultHistoryLimit = 1024

// Router filters eligible nodes, scores them and records the winner. It
// reads the registry and affinity cache and never mutates node state; its
// only write is the history append.
type Router struct {
	reg     *registry.Registry
	weights scoring.Weights
	limit   int

	mu      sync.Mutex
	history []model.RoutingDecision
}

// New creates a router. Weights are assumed validated by the caller (the
// engine validates at construction). historyLimit <= 0 selects the default.
func New(reg *registry.Registry, weights scoring.Weights, historyLimit int) *Router {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Router{reg: reg, weights: weights, limit: historyLimit}
}

// Route scores all eligible AVAILABLE nodes and returns the decision for
// the best one. Ties on exact score break toward the lexicographically
// smaller node id, so selection is deterministic for fixed inputs.
func (rt *Router) Route(job model.JobSpec) (model.RoutingDecision, error) {
	candidates := eligible(rt.reg.ListAvailable(), job)
	if len(candidates) == 0 {
		return model.RoutingDecision{}, ErrNoAvailableNodes
	}

	var (
		best         model.NodeMetrics
		bestScore    float64
		bestAffinity float64
		found        bool
	)
	for _, node := range candidates {
		hasKey := rt.reg.HasKey(node.ID, job.ResourceKey)
		score := scoring.Score(node, job, hasKey, rt.weights)
		better := !found || score > bestScore || (score == bestScore && node.ID < best.ID)
		if better {
			best = node
			bestScore = score
			bestAffinity = scoring.EffectiveAffinity(node, job, hasKey)
			found = true
		}
	}

	decision := model.RoutingDecision{
		JobID:            job.ID,
		SelectedNode:     best.ID,
		Score:            bestScore,
		EstimatedRuntime: best.EstimatedRuntime,
		EstimatedCost:    best.CreditCost,
		EnergyAffinity:   bestAffinity,
		Timestamp:        time.Now().UTC(),
	}
	rt.append(decision)
	return decision, nil
}

// History returns a snapshot copy of the decision history, oldest first.
func (rt *Router) History() []model.RoutingDecision {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	out := make([]model.RoutingDecision, len(rt.history))
	copy(out, rt.history)
	return out
}

func (rt *Router) append(d model.RoutingDecision) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.history = append(rt.history, d)
	if over := len(rt.history) - rt.limit; over > 0 {
		rt.history = append(rt.history[:0], rt.history[over:]...)
	}
}

// eligible applies the hard filter stage: required capabilities must all be
// present, and positive runtime/cost budgets exclude nodes whose estimates
// exceed them. Zero budgets mean "no budget".
func eligible(nodes []model.NodeMetrics, job model.JobSpec) []model.NodeMetrics {
	out := nodes[:0]
	for _, node := range nodes {
		if !hasCapabilities(node.Capabilities, job.RequiredCapabilities) {
			continue
		}
		if job.MaxRuntime > 0 && node.EstimatedRuntime > job.MaxRuntime {
			continue
		}
		if job.MaxCost > 0 && node.CreditCost > job.MaxCost {
			continue
		}
		out = append(out, node)
	}
	return out
}

func hasCapabilities(have, want []string) bool {
	if len(want) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(have))
	for _, c := range have {
		set[c] = struct{}{}
	}
	for _, c := range want {
		if _, ok := set[c]; !ok {
			return false
		}
	}
	return true
}
