package tunnel

import (
	"errors"
	"testing"

	"routectl/internal/model"
)

func TestOpen_UniqueIDsUnderLoad(t *testing.T) {
	t.Parallel()

	m := NewManager(0)
	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		tn := m.Open("src", "dst", "job-1")
		if _, dup := seen[tn.ID]; dup {
			t.Fatalf("duplicate tunnel id %q at iteration %d", tn.ID, i)
		}
		seen[tn.ID] = struct{}{}
	}
}

func TestOpen_InitialState(t *testing.T) {
	t.Parallel()

	m := NewManager(0)
	tn := m.Open("node-a", "node-b", "job-1")
	if tn.Status != model.TunnelActive {
		t.Fatalf("status=%v", tn.Status)
	}
	if tn.SourceNode != "node-a" || tn.TargetNode != "node-b" || tn.JobID != "job-1" {
		t.Fatalf("tunnel=%+v", tn)
	}
	if tn.EstablishedAt.IsZero() {
		t.Fatalf("established_at not set")
	}
	if tn.EnergyTransferred != 0 || tn.DataTransferred != 0 {
		t.Fatalf("counters not zero: %+v", tn)
	}
}

func TestClose_IdempotentAndTerminal(t *testing.T) {
	t.Parallel()

	m := NewManager(0)
	tn := m.Open("a", "b", "job-1")

	if err := m.Close(tn.ID); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Second close is a no-op, not an error.
	if err := m.Close(tn.ID); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	got, ok := m.Get(tn.ID)
	if !ok {
		t.Fatalf("tunnel evicted")
	}
	if got.Status != model.TunnelClosed {
		t.Fatalf("status=%v", got.Status)
	}
}

func TestClose_UnknownID(t *testing.T) {
	t.Parallel()

	m := NewManager(0)
	if err := m.Close("no-such-tunnel"); !errors.Is(err, ErrTunnelNotFound) {
		t.Fatalf("err=%v", err)
	}
}

func TestRecordTransfer(t *testing.T) {
	t.Parallel()

	m := NewManager(0)
	tn := m.Open("a", "b", "job-1")

	if err := m.RecordTransfer(tn.ID, 2.5, 1024); err != nil {
		t.Fatalf("RecordTransfer: %v", err)
	}
	if err := m.RecordTransfer(tn.ID, 0.5, 512); err != nil {
		t.Fatalf("RecordTransfer: %v", err)
	}
	got, _ := m.Get(tn.ID)
	if got.EnergyTransferred != 3.0 || got.DataTransferred != 1536 {
		t.Fatalf("counters=%+v", got)
	}

	if err := m.Close(tn.ID); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := m.RecordTransfer(tn.ID, 1, 1); !errors.Is(err, ErrTunnelClosed) {
		t.Fatalf("err=%v", err)
	}
	// Counters stay as last written.
	got, _ = m.Get(tn.ID)
	if got.EnergyTransferred != 3.0 || got.DataTransferred != 1536 {
		t.Fatalf("counters changed after close: %+v", got)
	}

	if err := m.RecordTransfer("ghost", 1, 1); !errors.Is(err, ErrTunnelNotFound) {
		t.Fatalf("err=%v", err)
	}
}

func TestRetention_EvictsOldestClosedOnly(t *testing.T) {
	t.Parallel()

	m := NewManager(3)

	active := m.Open("a", "b", "job-active")
	closed := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		tn := m.Open("a", "b", "job-closed")
		if err := m.Close(tn.ID); err != nil {
			t.Fatalf("Close: %v", err)
		}
		closed = append(closed, tn.ID)
	}

	// Active tunnels are never evicted.
	if _, ok := m.Get(active.ID); !ok {
		t.Fatalf("active tunnel evicted")
	}
	// The two oldest closed tunnels are gone, the three newest remain.
	for _, id := range closed[:2] {
		if _, ok := m.Get(id); ok {
			t.Fatalf("oldest closed tunnel %s retained", id)
		}
	}
	for _, id := range closed[2:] {
		if _, ok := m.Get(id); !ok {
			t.Fatalf("recent closed tunnel %s evicted", id)
		}
	}

	if got := len(m.Snapshot()); got != 4 {
		t.Fatalf("snapshot=%d", got)
	}
}
