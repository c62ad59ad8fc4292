package export

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"routectl/internal/model"
)

// WriteDecisionsCSV writes routing decisions with a fixed column order.
func WriteDecisionsCSV(w io.Writer, items []model.RoutingDecision) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := []string{
		"timestamp",
		"job_id",
		"selected_node",
		"score",
		"estimated_runtime",
		"estimated_cost",
		"energy_affinity",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, d := range items {
		record := []string{
			d.Timestamp.UTC().Format(time.RFC3339Nano),
			d.JobID,
			d.SelectedNode,
			strconv.FormatFloat(d.Score, 'f', 6, 64),
			strconv.FormatFloat(d.EstimatedRuntime, 'f', 3, 64),
			strconv.FormatFloat(d.EstimatedCost, 'f', 3, 64),
			strconv.FormatFloat(d.EnergyAffinity, 'f', 3, 64),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

// WriteTunnelsCSV writes the tunnel table with a fixed column order.
func WriteTunnelsCSV(w io.Writer, items []model.TunnelConnection) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := []string{
		"established_at",
		"id",
		"source_node",
		"target_node",
		"job_id",
		"status",
		"energy_transferred",
		"data_transferred",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, t := range items {
		record := []string{
			t.EstablishedAt.UTC().Format(time.RFC3339Nano),
			t.ID,
			t.SourceNode,
			t.TargetNode,
			t.JobID,
			string(t.Status),
			strconv.FormatFloat(t.EnergyTransferred, 'f', 3, 64),
			strconv.FormatFloat(t.DataTransferred, 'f', 3, 64),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

// DecisionsToFile writes routing decisions to a new file at path.
func DecisionsToFile(path string, items []model.RoutingDecision) error {
	return toFile(path, func(w io.Writer) error { return WriteDecisionsCSV(w, items) })
}

// TunnelsToFile writes the tunnel table to a new file at path.
func TunnelsToFile(path string, items []model.TunnelConnection) error {
	return toFile(path, func(w io.Writer) error { return WriteTunnelsCSV(w, items) })
}

func toFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
