package model

import "time"

// NodeStatus describes a node's availability for job placement.
type NodeStatus string

const (
	StatusAvailable   NodeStatus = "AVAILABLE"
	StatusBusy        NodeStatus = "BUSY"
	StatusOffline     NodeStatus = "OFFLINE"
	StatusMaintenance NodeStatus = "MAINTENANCE"
)

// TunnelStatus is the lifecycle state of a tunnel. A tunnel never leaves
// CLOSED once it reaches it.
type TunnelStatus string

const (
	TunnelActive TunnelStatus = "ACTIVE"
	TunnelClosed TunnelStatus = "CLOSED"
)

// Execution result statuses.
const (
	ExecSuccess = "SUCCESS"
	ExecFailed  = "FAILED"
)

// NodeMetrics is one compute node's advertised state. Reputation and
// EnergyAffinity are kept in [0,1] by every writer.
type NodeMetrics struct {
	ID               string     `json:"id" yaml:"id"`
	Reputation       float64    `json:"reputation" yaml:"reputation"`
	EstimatedRuntime float64    `json:"estimated_runtime" yaml:"estimated_runtime"` // seconds, lower is better
	CreditCost       float64    `json:"credit_cost" yaml:"credit_cost"`             // lower is better
	EnergyAffinity   float64    `json:"energy_affinity" yaml:"energy_affinity"`     // baseline locality score
	Capabilities     []string   `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	Status           NodeStatus `json:"status" yaml:"status"`
	LastUpdated      time.Time  `json:"last_updated" yaml:"last_updated"`
}

// JobSpec is a unit of work to be routed. RequiredCapabilities and positive
// MaxRuntime/MaxCost budgets are enforced as a hard eligibility filter
// before scoring.
type JobSpec struct {
	ID                   string   `json:"id"`
	JobType              string   `json:"job_type"`
	ResourceKey          string   `json:"resource_key,omitempty"`
	RequiredCapabilities []string `json:"required_capabilities,omitempty"`
	Priority             int      `json:"priority"`
	MaxRuntime           float64  `json:"max_runtime"` // seconds, 0 = no budget
	MaxCost              float64  `json:"max_cost"`    // 0 = no budget
}

// RoutingDecision is the immutable record of one routing outcome.
// EnergyAffinity is the effective affinity used for the winner (1.0 on a
// resource-key cache hit).
type RoutingDecision struct {
	JobID            string    `json:"job_id"`
	SelectedNode     string    `json:"selected_node"`
	Score            float64   `json:"score"`
	EstimatedRuntime float64   `json:"estimated_runtime"`
	EstimatedCost    float64   `json:"estimated_cost"`
	EnergyAffinity   float64   `json:"energy_affinity"`
	Timestamp        time.Time `json:"timestamp"`
}

// TunnelConnection is a transient logical link between a source and a
// selected node, scoped to one job's execution window.
type TunnelConnection struct {
	ID                string       `json:"id"`
	SourceNode        string       `json:"source_node"`
	TargetNode        string       `json:"target_node"`
	JobID             string       `json:"job_id"`
	EstablishedAt     time.Time    `json:"established_at"`
	EnergyTransferred float64      `json:"energy_transferred"`
	DataTransferred   float64      `json:"data_transferred"` // bytes
	Status            TunnelStatus `json:"status"`
}

// ExecutionResult is the outcome of a route-and-execute call. A FAILED
// result with Reason "no available nodes" is an expected outcome, not a
// system fault.
type ExecutionResult struct {
	Status            string  `json:"status"`
	JobID             string  `json:"job_id"`
	Node              string  `json:"node,omitempty"`
	TunnelID          string  `json:"tunnel_id,omitempty"`
	Score             float64 `json:"score,omitempty"`
	Runtime           float64 `json:"runtime,omitempty"`
	Cost              float64 `json:"cost,omitempty"`
	EnergyTransferred float64 `json:"energy_transferred,omitempty"`
	DataTransferred   float64 `json:"data_transferred,omitempty"`
	Reason            string  `json:"reason,omitempty"`
}
