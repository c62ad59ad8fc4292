package stats

import (
	"time"

	"routectl/internal/model"
)

// NodeSummary is a point-in-time aggregation of the node registry.
type NodeSummary struct {
	Total             int                      `json:"total"`
	ByStatus          map[model.NodeStatus]int `json:"by_status"`
	AvgReputation     float64                  `json:"avg_reputation"`
	AvgEnergyAffinity float64                  `json:"avg_energy_affinity"`
}

// RoutingSummary aggregates the routing decision history.
type RoutingSummary struct {
	Count       int       `json:"count"`
	From        time.Time `json:"from"`
	To          time.Time `json:"to"`
	AvgScore    float64   `json:"avg_score"`
	AvgRuntime  float64   `json:"avg_runtime"`
	AvgCost     float64   `json:"avg_cost"`
	AvgAffinity float64   `json:"avg_affinity"`
}

// TunnelSummary aggregates the tunnel table.
type TunnelSummary struct {
	Total             int     `json:"total"`
	Active            int     `json:"active"`
	Closed            int     `json:"closed"`
	EnergyTransferred float64 `json:"energy_transferred"`
	DataTransferred   float64 `json:"data_transferred"`
}

// SummarizeNodes computes status counts and reputation/affinity averages.
func SummarizeNodes(nodes []model.NodeMetrics) NodeSummary {
	s := NodeSummary{ByStatus: make(map[model.NodeStatus]int)}
	if len(nodes) == 0 {
		return s
	}

	var sumRep, sumAffinity float64
	for _, n := range nodes {
		s.ByStatus[n.Status]++
		sumRep += n.Reputation
		sumAffinity += n.EnergyAffinity
	}
	s.Total = len(nodes)
	count := float64(len(nodes))
	s.AvgReputation = sumRep / count
	s.AvgEnergyAffinity = sumAffinity / count
	return s
}

// SummarizeRouting computes averages over routing decisions.
func SummarizeRouting(items []model.RoutingDecision) RoutingSummary {
	if len(items) == 0 {
		return RoutingSummary{}
	}

	s := RoutingSummary{Count: len(items), From: items[0].Timestamp, To: items[0].Timestamp}
	var sumScore, sumRuntime, sumCost, sumAffinity float64
	for _, d := range items {
		sumScore += d.Score
		sumRuntime += d.EstimatedRuntime
		sumCost += d.EstimatedCost
		sumAffinity += d.EnergyAffinity
		if d.Timestamp.Before(s.From) {
			s.From = d.Timestamp
		}
		if d.Timestamp.After(s.To) {
			s.To = d.Timestamp
		}
	}
	count := float64(len(items))
	s.AvgScore = sumScore / count
	s.AvgRuntime = sumRuntime / count
	s.AvgCost = sumCost / count
	s.AvgAffinity = sumAffinity / count
	return s
}

// SummarizeTunnels computes status counts and cumulative transfer totals.
func SummarizeTunnels(items []model.TunnelConnection) TunnelSummary {
	var s TunnelSummary
	for _, t := range items {
		s.Total++
		switch t.Status {
		case model.TunnelActive:
			s.Active++
		case model.TunnelClosed:
			s.Closed++
		}
		s.EnergyTransferred += t.EnergyTransferred
		s.DataTransferred += t.DataTransferred
	}
	return s
}
