package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"routectl/internal/model"
	"routectl/internal/stats"
)

// Client is a thin HTTP client for the engine's control API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the given base URL (e.g. http://host:port).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// RegisterNode registers or replaces a node.
func (c *Client) RegisterNode(ctx context.Context, node model.NodeMetrics) error {
	return c.postJSON(ctx, "/nodes/register", RegisterNodeRequest{Node: node}, nil)
}

// UnregisterNode removes a node.
func (c *Client) UnregisterNode(ctx context.Context, nodeID string) error {
	return c.postJSON(ctx, "/nodes/unregister", UnregisterNodeRequest{NodeID: nodeID}, nil)
}

// UpdateMetrics applies a partial metric update.
func (c *Client) UpdateMetrics(ctx context.Context, req UpdateMetricsRequest) error {
	return c.postJSON(ctx, "/nodes/update", req, nil)
}

// AddAffinity marks a resource key as resident on a node.
func (c *Client) AddAffinity(ctx context.Context, nodeID, key string) error {
	return c.postJSON(ctx, "/affinity", AffinityRequest{NodeID: nodeID, Key: key}, nil)
}

// Route asks for a routing decision without executing the job.
func (c *Client) Route(ctx context.Context, job model.JobSpec) (model.RoutingDecision, error) {
	var resp RouteResponse
	if err := c.postJSON(ctx, "/route", RouteRequest{Job: job}, &resp); err != nil {
		return model.RoutingDecision{}, err
	}
	return resp.Decision, nil
}

// Execute routes a job and drives its full tunnel window.
func (c *Client) Execute(ctx context.Context, job model.JobSpec, sourceNode string) (model.ExecutionResult, error) {
	var resp model.ExecutionResult
	if err := c.postJSON(ctx, "/execute", ExecuteRequest{Job: job, SourceNode: sourceNode}, &resp); err != nil {
		return model.ExecutionResult{}, err
	}
	return resp, nil
}

// Nodes lists all registered nodes.
func (c *Client) Nodes(ctx context.Context) ([]model.NodeMetrics, error) {
	var resp NodesResponse
	if err := c.getJSON(ctx, "/nodes", &resp); err != nil {
		return nil, err
	}
	return resp.Nodes, nil
}

// Decisions fetches the routing history, oldest first.
func (c *Client) Decisions(ctx context.Context) ([]model.RoutingDecision, error) {
	var resp DecisionsResponse
	if err := c.getJSON(ctx, "/decisions", &resp); err != nil {
		return nil, err
	}
	return resp.Decisions, nil
}

// Tunnels fetches the tunnel table.
func (c *Client) Tunnels(ctx context.Context) ([]model.TunnelConnection, error) {
	var resp TunnelsResponse
	if err := c.getJSON(ctx, "/tunnels", &resp); err != nil {
		return nil, err
	}
	return resp.Tunnels, nil
}

// NodeStats fetches the node summary.
func (c *Client) NodeStats(ctx context.Context) (stats.NodeSummary, error) {
	var resp stats.NodeSummary
	err := c.getJSON(ctx, "/stats/nodes", &resp)
	return resp, err
}

// RoutingStats fetches the routing summary.
func (c *Client) RoutingStats(ctx context.Context) (stats.RoutingSummary, error) {
	var resp stats.RoutingSummary
	err := c.getJSON(ctx, "/stats/routing", &resp)
	return resp, err
}

// TunnelStats fetches the tunnel summary.
func (c *Client) TunnelStats(ctx context.Context) (stats.TunnelSummary, error) {
	var resp stats.TunnelSummary
	err := c.getJSON(ctx, "/stats/tunnels", &resp)
	return resp, err
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr ErrorResponse
		if jerr := json.Unmarshal(data, &apiErr); jerr == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", req.Method, req.URL.Path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
