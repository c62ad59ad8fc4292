package api

import "routectl/internal/model"

// RegisterNodeRequest registers or replaces a node.
type RegisterNodeRequest struct {
	Node model.NodeMetrics `json:"node"`
}

// UnregisterNodeRequest removes a node from the registry.
type UnregisterNodeRequest struct {
	NodeID string `json:"node_id"`
}

// UpdateMetricsRequest applies a partial metric update. Absent fields are
// left unchanged; unknown fields are rejected by the server decoder.
type UpdateMetricsRequest struct {
	NodeID           string            `json:"node_id"`
	Reputation       *float64          `json:"reputation,omitempty"`
	EstimatedRuntime *float64          `json:"estimated_runtime,omitempty"`
	CreditCost       *float64          `json:"credit_cost,omitempty"`
	EnergyAffinity   *float64          `json:"energy_affinity,omitempty"`
	Status           *model.NodeStatus `json:"status,omitempty"`
	Capabilities     []string          `json:"capabilities,omitempty"`
}

// AffinityRequest marks a resource key as resident on a node.
type AffinityRequest struct {
	NodeID string `json:"node_id"`
	Key    string `json:"key"`
}

// RouteRequest asks for a routing decision without executing.
type RouteRequest struct {
	Job model.JobSpec `json:"job"`
}

// RouteResponse carries the routing decision.
type RouteResponse struct {
	Decision model.RoutingDecision `json:"decision"`
}

// ExecuteRequest routes a job and drives its tunnel window.
type ExecuteRequest struct {
	Job        model.JobSpec `json:"job"`
	SourceNode string        `json:"source_node"`
}

// NodesResponse lists all registered nodes.
type NodesResponse struct {
	Nodes []model.NodeMetrics `json:"nodes"`
}

// DecisionsResponse carries the routing history, oldest first.
type DecisionsResponse struct {
	Decisions []model.RoutingDecision `json:"decisions"`
}

// TunnelsResponse carries the tunnel table.
type TunnelsResponse struct {
	Tunnels []model.TunnelConnection `json:"tunnels"`
}

// ErrorResponse is the JSON error body for non-2xx responses.
type ErrorResponse struct {
	Error string `json:"error"`
}
