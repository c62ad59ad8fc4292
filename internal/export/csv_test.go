package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"routectl/internal/model"
)

func TestWriteDecisionsCSV_Shape(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	items := []model.RoutingDecision{
		{JobID: "j1", SelectedNode: "node-3", Score: 0.961534, EstimatedRuntime: 5, EstimatedCost: 10, EnergyAffinity: 0.9, Timestamp: now},
		{JobID: "j2", SelectedNode: "node-1", Score: 0.5, EstimatedRuntime: 10, EstimatedCost: 5, EnergyAffinity: 1.0, Timestamp: now},
	}

	var buf bytes.Buffer
	if err := WriteDecisionsCSV(&buf, items); err != nil {
		t.Fatalf("WriteDecisionsCSV: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("rows=%d", len(records))
	}
	if records[0][0] != "timestamp" || records[0][2] != "selected_node" {
		t.Fatalf("header=%v", records[0])
	}
	if records[1][1] != "j1" || records[1][2] != "node-3" {
		t.Fatalf("row=%v", records[1])
	}
	if records[1][3] != "0.961534" {
		t.Fatalf("score=%q", records[1][3])
	}
}

func TestWriteTunnelsCSV_Shape(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	items := []model.TunnelConnection{
		{ID: "t1", SourceNode: "src", TargetNode: "node-3", JobID: "j1", EstablishedAt: now, EnergyTransferred: 1.25, DataTransferred: 4096, Status: model.TunnelClosed},
	}

	var buf bytes.Buffer
	if err := WriteTunnelsCSV(&buf, items); err != nil {
		t.Fatalf("WriteTunnelsCSV: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("rows=%d", len(records))
	}
	if records[1][5] != "CLOSED" || records[1][6] != "1.250" {
		t.Fatalf("row=%v", records[1])
	}
}

func TestDecisionsToFile(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	path := filepath.Join(tmp, "out", "decisions.csv")
	items := []model.RoutingDecision{{JobID: "j1", SelectedNode: "n1", Timestamp: time.Now().UTC()}}
	if err := DecisionsToFile(path, items); err != nil {
		t.Fatalf("DecisionsToFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("empty file")
	}
}
