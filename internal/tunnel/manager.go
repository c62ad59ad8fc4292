package tunnel

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"routectl/internal/model"
)

var (
	// ErrTunnelNotFound is returned for operations on an unknown tunnel id.
	ErrTunnelNotFound = errors.New("tunnel not found")
	// ErrTunnelClosed is returned when recording transfer on a CLOSED tunnel.
	ErrTunnelClosed = errors.New("tunnel is closed")
)

// DefaultRetention bounds how many CLOSED tunnels are kept for audit.
const DefaultRetention = 1024

// Manager owns the tunnel table. Tunnels move (none) -> ACTIVE -> CLOSED
// and never leave CLOSED. Closed tunnels are retained for statistics up to
// the retention bound, oldest-closed evicted first; active tunnels are
// never evicted.
type Manager struct {
	mu        sync.Mutex
	tunnels   map[string]*model.TunnelConnection
	closedIDs []string // ids in close order, for eviction
	retention int
}

// NewManager creates a tunnel manager. retention <= 0 selects the default.
func NewManager(retention int) *Manager {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Manager{
		tunnels:   make(map[string]*model.TunnelConnection),
		retention: retention,
	}
}

// Open establishes a tunnel between source and target for a job. It always
// succeeds; there is no admission control at this layer. Ids are random
// UUIDs so concurrent opens between the same node pair cannot collide.
func (m *Manager) Open(sourceNode, targetNode, jobID string) model.TunnelConnection {
	t := model.TunnelConnection{
		ID:            uuid.NewString(),
		SourceNode:    sourceNode,
		TargetNode:    targetNode,
		JobID:         jobID,
		EstablishedAt: time.Now().UTC(),
		Status:        model.TunnelActive,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	stored := t
	m.tunnels[t.ID] = &stored
	return t
}

// Close transitions the tunnel to CLOSED, leaving counters as last written.
// Closing an already-closed tunnel is a no-op so duplicate teardown signals
// are tolerated.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tunnels[id]
	if !ok {
		return ErrTunnelNotFound
	}
	if t.Status == model.TunnelClosed {
		return nil
	}
	t.Status = model.TunnelClosed
	m.closedIDs = append(m.closedIDs, id)
	m.evictLocked()
	return nil
}

// RecordTransfer adds to the counters of an ACTIVE tunnel. The manager only
// stores what it is told; whoever drives the execution window owns the
// values.
func (m *Manager) RecordTransfer(id string, energy, data float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tunnels[id]
	if !ok {
		return ErrTunnelNotFound
	}
	if t.Status == model.TunnelClosed {
		return ErrTunnelClosed
	}
	t.EnergyTransferred += energy
	t.DataTransferred += data
	return nil
}

// Get returns a copy of the tunnel.
func (m *Manager) Get(id string) (model.TunnelConnection, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tunnels[id]
	if !ok {
		return model.TunnelConnection{}, false
	}
	return *t, true
}

// Snapshot returns a copy of the whole tunnel table, order unspecified.
func (m *Manager) Snapshot() []model.TunnelConnection {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.TunnelConnection, 0, len(m.tunnels))
	for _, t := range m.tunnels {
		out = append(out, *t)
	}
	return out
}

func (m *Manager) evictLocked() {
	for len(m.closedIDs) > m.retention {
		victim := m.closedIDs[0]
		m.closedIDs = m.closedIDs[1:]
		delete(m.tunnels, victim)
	}
}
