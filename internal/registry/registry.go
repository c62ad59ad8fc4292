package registry

import (
	"errors"
	"sync"
	"time"

	"routectl/internal/model"
)

// ErrNodeNotFound is returned for operations against an unregistered node.
var ErrNodeNotFound = errors.New("node not found")

// Registry is a concurrency-safe store of node metrics plus the per-node
// affinity cache (resource keys resident on each node). Callers never see
// the underlying maps, only copies.
type Registry struct {
	mu    sync.Mutex
	nodes map[string]model.NodeMetrics
	keys  map[string]map[string]struct{}
}

// MetricsUpdate is a typed partial update. Nil fields are left unchanged;
// supplied [0,1] fields are clamped.
type MetricsUpdate struct {
	Reputation       *float64
	EstimatedRuntime *float64
	CreditCost       *float64
	EnergyAffinity   *float64
	Status           *model.NodeStatus
	Capabilities     []string // nil = unchanged
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		nodes: make(map[string]model.NodeMetrics),
		keys:  make(map[string]map[string]struct{}),
	}
}

// Register inserts or replaces the node under node.ID (last write wins).
// The node's affinity set is created empty if absent; re-registration keeps
// previously cached keys.
func (r *Registry) Register(node model.NodeMetrics) {
	node.Reputation = clamp01(node.Reputation)
	node.EnergyAffinity = clamp01(node.EnergyAffinity)
	node.Capabilities = copyStrings(node.Capabilities)
	node.LastUpdated = time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes[node.ID] = node
	if _, ok := r.keys[node.ID]; !ok {
		r.keys[node.ID] = make(map[string]struct{})
	}
}

// Unregister removes the node and its affinity set. Removing an unknown
// node is a no-op.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.nodes, id)
	delete(r.keys, id)
}

// UpdateMetrics applies the supplied fields only and refreshes LastUpdated.
func (r *Registry) UpdateMetrics(id string, upd MetricsUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	node, ok := r.nodes[id]
	if !ok {
		return ErrNodeNotFound
	}
	if upd.Reputation != nil {
		node.Reputation = clamp01(*upd.Reputation)
	}
	if upd.EstimatedRuntime != nil {
		node.EstimatedRuntime = *upd.EstimatedRuntime
	}
	if upd.CreditCost != nil {
		node.CreditCost = *upd.CreditCost
	}
	if upd.EnergyAffinity != nil {
		node.EnergyAffinity = clamp01(*upd.EnergyAffinity)
	}
	if upd.Status != nil {
		node.Status = *upd.Status
	}
	if upd.Capabilities != nil {
		node.Capabilities = copyStrings(upd.Capabilities)
	}
	node.LastUpdated = time.Now().UTC()
	r.nodes[id] = node
	return nil
}

// Get returns a copy of the node's metrics.
func (r *Registry) Get(id string) (model.NodeMetrics, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	node, ok := r.nodes[id]
	if !ok {
		return model.NodeMetrics{}, false
	}
	node.Capabilities = copyStrings(node.Capabilities)
	return node, true
}

// List returns a snapshot of all nodes, order unspecified.
func (r *Registry) List() []model.NodeMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.NodeMetrics, 0, len(r.nodes))
	for _, node := range r.nodes {
		node.Capabilities = copyStrings(node.Capabilities)
		out = append(out, node)
	}
	return out
}

// ListAvailable returns a snapshot of all AVAILABLE nodes, order
// unspecified. Callers must not depend on order.
func (r *Registry) ListAvailable() []model.NodeMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.NodeMetrics, 0, len(r.nodes))
	for _, node := range r.nodes {
		if node.Status != model.StatusAvailable {
			continue
		}
		node.Capabilities = copyStrings(node.Capabilities)
		out = append(out, node)
	}
	return out
}

// AddKey marks a resource key as resident on a node. Cache entries are only
// valid for registered nodes; callers must register first.
func (r *Registry) AddKey(nodeID, key string) error {
	if key == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.keys[nodeID]
	if !ok {
		return ErrNodeNotFound
	}
	set[key] = struct{}{}
	return nil
}

// HasKey reports whether the key is resident on the node. The empty key is
// never resident.
func (r *Registry) HasKey(nodeID, key string) bool {
	if key == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.keys[nodeID]
	if !ok {
		return false
	}
	_, hit := set[key]
	return hit
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

func copyStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
