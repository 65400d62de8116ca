package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"gantry/internal/daemon"
)

// apiClient is a thin client for the daemon's HTTP API.
type apiClient struct {
	baseURL    string
	httpClient *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *apiClient) Trigger(ctx context.Context, itemID string, force bool) (*daemon.TriggerResponse, error) {
	endpoint := fmt.Sprintf("%s/api/triage/%s", c.baseURL, url.PathEscape(itemID))
	if force {
		endpoint += "?force=1"
	}
	var out daemon.TriggerResponse
	if err := c.do(ctx, http.MethodPost, endpoint, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) Status(ctx context.Context, runID string) (*daemon.StatusResponse, error) {
	endpoint := fmt.Sprintf("%s/api/status/%s", c.baseURL, url.PathEscape(runID))
	var out daemon.StatusResponse
	if err := c.do(ctx, http.MethodGet, endpoint, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) Runs(ctx context.Context) (*daemon.RunsResponse, error) {
	var out daemon.RunsResponse
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/api/runs", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) do(ctx context.Context, method, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var failure struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&failure); decodeErr == nil && failure.Error != "" {
			return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, failure.Error)
		}
		return fmt.Errorf("daemon returned %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
