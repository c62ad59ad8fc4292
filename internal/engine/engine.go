package engine

import (
	"context"
	"errors"
	"fmt"
	"log"

	"routectl/internal/config"
	"routectl/internal/model"
	"routectl/internal/registry"
	"routectl/internal/router"
	"routectl/internal/stats"
	"routectl/internal/tunnel"
)

// Executor runs the job's work inside an open tunnel window and reports how
// much energy/data moved. The engine owns the bracket, not the work.
type Executor func(ctx context.Context, decision model.RoutingDecision, tn model.TunnelConnection) (energy, data float64, err error)

// Engine composes the node registry, router and tunnel manager behind a
// single API. All mutations to the owned stores go through it.
type Engine struct {
	reg     *registry.Registry
	router  *router.Router
	tunnels *tunnel.Manager
	exec    Executor
}

// New builds an engine from config. Construction fails if the weights do
// not sum to 1.0. A nil registry starts empty; passing one lets callers
// resume from a snapshot.
func New(cfg config.EngineConfig, reg *registry.Registry) (*Engine, error) {
	if err := cfg.Weights.Validate(); err != nil {
		return nil, fmt.Errorf("engine construction: %w", err)
	}
	if reg == nil {
		reg = registry.New()
	}
	return &Engine{
		reg:     reg,
		router:  router.New(reg, cfg.Weights, cfg.HistoryLimit),
		tunnels: tunnel.NewManager(cfg.TunnelRetention),
		exec:    SimulatedExecutor,
	}, nil
}

// WithExecutor replaces the work body. Nil restores the simulated default.
func (e *Engine) WithExecutor(fn Executor) *Engine {
	if fn == nil {
		fn = SimulatedExecutor
	}
	e.exec = fn
	return e
}

// SimulatedExecutor stands in for real work: transfer scales with the
// decision's runtime estimate. Deterministic so tests can assert on it.
func SimulatedExecutor(ctx context.Context, decision model.RoutingDecision, _ model.TunnelConnection) (float64, float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	energy := decision.EstimatedRuntime * 0.25
	data := decision.EstimatedRuntime * 1024 * 1024
	return energy, data, nil
}

// Registry operations.

func (e *Engine) RegisterNode(node model.NodeMetrics) { e.reg.Register(node) }

func (e *Engine) UnregisterNode(id string) { e.reg.Unregister(id) }

func (e *Engine) GetNode(id string) (model.NodeMetrics, bool) { return e.reg.Get(id) }

func (e *Engine) Nodes() []model.NodeMetrics { return e.reg.List() }

// UpdateMetrics applies a partial metric update pushed by a monitoring feed.
func (e *Engine) UpdateMetrics(id string, upd registry.MetricsUpdate) error {
	return e.reg.UpdateMetrics(id, upd)
}

// AddResourceKey marks a locality key as resident on a node.
func (e *Engine) AddResourceKey(nodeID, key string) error {
	return e.reg.AddKey(nodeID, key)
}

// SaveSnapshot persists the node registry to disk.
func (e *Engine) SaveSnapshot(path string) error { return e.reg.SaveSnapshot(path) }

// Routing and tunnels.

// Route selects the best available node for the job and records the
// decision. Returns router.ErrNoAvailableNodes when nothing is eligible.
func (e *Engine) Route(job model.JobSpec) (model.RoutingDecision, error) {
	return e.router.Route(job)
}

// History returns the recorded routing decisions, oldest first.
func (e *Engine) History() []model.RoutingDecision { return e.router.History() }

// Tunnels returns a snapshot of the tunnel table.
func (e *Engine) Tunnels() []model.TunnelConnection { return e.tunnels.Snapshot() }

// GetTunnel returns a single tunnel by id.
func (e *Engine) GetTunnel(id string) (model.TunnelConnection, bool) { return e.tunnels.Get(id) }

// RouteAndExecute routes the job, opens a tunnel from sourceNode to the
// winner, runs the work body, records transfer counters and closes the
// tunnel. The close happens on every exit path: executor error, context
// cancellation, even a panic in the work body.
func (e *Engine) RouteAndExecute(ctx context.Context, job model.JobSpec, sourceNode string) (res model.ExecutionResult) {
	decision, err := e.router.Route(job)
	if err != nil {
		if errors.Is(err, router.ErrNoAvailableNodes) {
			// Expected outcome, not a system fault.
			return model.ExecutionResult{Status: model.ExecFailed, JobID: job.ID, Reason: "no available nodes"}
		}
		return model.ExecutionResult{Status: model.ExecFailed, JobID: job.ID, Reason: err.Error()}
	}

	tn := e.tunnels.Open(sourceNode, decision.SelectedNode, job.ID)
	defer func() {
		if r := recover(); r != nil {
			res = model.ExecutionResult{
				Status:   model.ExecFailed,
				JobID:    job.ID,
				Node:     decision.SelectedNode,
				TunnelID: tn.ID,
				Reason:   fmt.Sprintf("job execution panic: %v", r),
			}
		}
		if cerr := e.tunnels.Close(tn.ID); cerr != nil {
			log.Printf("tunnel close failed id=%s: %v", tn.ID, cerr)
		}
	}()

	energy, data, execErr := e.exec(ctx, decision, tn)
	if energy != 0 || data != 0 {
		if rerr := e.tunnels.RecordTransfer(tn.ID, energy, data); rerr != nil {
			log.Printf("record transfer failed id=%s: %v", tn.ID, rerr)
		}
	}
	if execErr != nil {
		return model.ExecutionResult{
			Status:   model.ExecFailed,
			JobID:    job.ID,
			Node:     decision.SelectedNode,
			TunnelID: tn.ID,
			Reason:   execErr.Error(),
		}
	}

	return model.ExecutionResult{
		Status:            model.ExecSuccess,
		JobID:             job.ID,
		Node:              decision.SelectedNode,
		TunnelID:          tn.ID,
		Score:             decision.Score,
		Runtime:           decision.EstimatedRuntime,
		Cost:              decision.EstimatedCost,
		EnergyTransferred: energy,
		DataTransferred:   data,
	}
}

// Statistics snapshots. Computed fresh on every call, never cached.

func (e *Engine) NodeStatistics() stats.NodeSummary {
	return stats.SummarizeNodes(e.reg.List())
}

func (e *Engine) RoutingStatistics() stats.RoutingSummary {
	return stats.SummarizeRouting(e.router.History())
}

func (e *Engine) TunnelStatistics() stats.TunnelSummary {
	return stats.SummarizeTunnels(e.tunnels.Snapshot())
}
