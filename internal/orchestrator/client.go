package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"gantry/internal/config"
	"gantry/internal/services"
)

// SubmitRequest carries the conf payload for a new triage DAG run.
type SubmitRequest struct {
	ItemID    string
	RunID     string
	BundleRef string
	// Parameters records the effective pipeline parameters so the remote run
	// is reproducible from its conf alone.
	Parameters map[string]any
}

// Submission identifies an accepted DAG run on the orchestrator.
type Submission struct {
	JobID string
	DAGID string
}

// Status is the orchestrator-side view of a submitted run.
type Status struct {
	State    State
	Progress Progress
}

// Progress folds task-instance completion into a coarse percentage.
type Progress struct {
	Percent float64
	Label   string
}

// Submitter defines the orchestrator operations the workflow depends on.
type Submitter interface {
	Submit(ctx context.Context, req SubmitRequest) (*Submission, error)
	Poll(ctx context.Context, jobID string) (*Status, error)
}

// Client talks to an Airflow-compatible REST API.
type Client struct {
	baseURL    string
	dagID      string
	username   string
	password   string
	apiToken   string
	httpClient *http.Client
}

var _ Submitter = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates an orchestrator client from configuration.
func New(cfg config.Orchestrator, opts ...Option) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.URL)
	if baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "orchestrator", "new", "url required", nil)
	}
	dagID := strings.TrimSpace(cfg.DAGID)
	if dagID == "" {
		return nil, services.Wrap(services.ErrConfiguration, "orchestrator", "new", "dag id required", nil)
	}

	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		dagID:      dagID,
		username:   cfg.Username,
		password:   cfg.Password,
		apiToken:   strings.TrimSpace(cfg.APIToken),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// DAGID returns the DAG this client submits to.
func (c *Client) DAGID() string {
	return c.dagID
}

// Submit creates a DAG run carrying the triage conf payload. Network failures
// and orchestrator-side errors are transient; explicit 4xx rejections are
// terminal.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (*Submission, error) {
	if strings.TrimSpace(req.ItemID) == "" {
		return nil, services.Wrap(services.ErrInput, "orchestrator", "submit", "item id required", nil)
	}

	jobID := fmt.Sprintf("manual__gantry_%s", uuid.NewString())
	body := dagRunRequest{
		DAGRunID:    jobID,
		LogicalDate: time.Now().UTC().Format(time.RFC3339),
		Conf: dagRunConf{
			ItemID:     req.ItemID,
			RunID:      req.RunID,
			BundleRef:  req.BundleRef,
			Parameters: req.Parameters,
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, services.Wrap(services.ErrInput, "orchestrator", "submit", "encode conf", err)
	}

	endpoint := fmt.Sprintf("%s/api/v2/dags/%s/dagRuns", c.baseURL, url.PathEscape(c.dagID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "orchestrator", "submit", "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "orchestrator", "submit", "orchestrator unreachable", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus("submit", resp.StatusCode); err != nil {
		return nil, err
	}

	var accepted dagRunResponse
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		return nil, services.Wrap(services.ErrTransient, "orchestrator", "submit", "decode response", err)
	}
	if accepted.DAGRunID != "" {
		jobID = accepted.DAGRunID
	}
	return &Submission{JobID: jobID, DAGID: c.dagID}, nil
}

// Poll fetches the current DAG-run state and folds task-instance completion
// into a progress percentage. Transport failures are transient; the caller
// treats them as "status unknown" rather than run failure.
func (c *Client) Poll(ctx context.Context, jobID string) (*Status, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, services.Wrap(services.ErrInput, "orchestrator", "poll", "job id required", nil)
	}

	run, err := c.fetchRun(ctx, jobID)
	if err != nil {
		return nil, err
	}

	status := &Status{State: ParseState(run.State)}
	if progress, err := c.fetchProgress(ctx, jobID); err == nil {
		status.Progress = progress
	}
	if status.State == StateSucceeded {
		status.Progress.Percent = 100
	}
	return status, nil
}

func (c *Client) fetchRun(ctx context.Context, jobID string) (*dagRunResponse, error) {
	endpoint := fmt.Sprintf("%s/api/v2/dags/%s/dagRuns/%s",
		c.baseURL, url.PathEscape(c.dagID), url.PathEscape(jobID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "orchestrator", "poll", "build request", err)
	}
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "orchestrator", "poll", "orchestrator unreachable", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus("poll", resp.StatusCode); err != nil {
		return nil, err
	}

	var run dagRunResponse
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		return nil, services.Wrap(services.ErrTransient, "orchestrator", "poll", "decode response", err)
	}
	return &run, nil
}

// fetchProgress is best effort: a run state without task detail is still a
// usable poll result.
func (c *Client) fetchProgress(ctx context.Context, jobID string) (Progress, error) {
	endpoint := fmt.Sprintf("%s/api/v2/dags/%s/dagRuns/%s/taskInstances",
		c.baseURL, url.PathEscape(c.dagID), url.PathEscape(jobID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Progress{}, err
	}
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Progress{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Progress{}, fmt.Errorf("task instances returned %d", resp.StatusCode)
	}

	var payload taskInstancesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Progress{}, err
	}
	return foldProgress(payload.TaskInstances), nil
}

func foldProgress(tasks []taskInstance) Progress {
	if len(tasks) == 0 {
		return Progress{}
	}
	done := 0
	active := ""
	for _, task := range tasks {
		switch task.State {
		case "success", "skipped":
			done++
		case "running":
			active = task.TaskID
		}
	}
	progress := Progress{
		Percent: float64(done) / float64(len(tasks)) * 100,
		Label:   fmt.Sprintf("%d/%d tasks complete", done, len(tasks)),
	}
	if active != "" {
		progress.Label = active
	}
	return progress
}

func (c *Client) authorize(req *http.Request) {
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
		return
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
}

func classifyStatus(operation string, code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code >= 400 && code < 500:
		return services.Wrap(services.ErrRejected, "orchestrator", operation,
			fmt.Sprintf("orchestrator rejected request (%d)", code), nil)
	default:
		return services.Wrap(services.ErrTransient, "orchestrator", operation,
			fmt.Sprintf("orchestrator returned %d", code), nil)
	}
}

// Rejected reports whether the orchestrator explicitly refused the request.
func Rejected(err error) bool {
	return errors.Is(err, services.ErrRejected)
}

type dagRunConf struct {
	ItemID     string         `json:"item_id"`
	RunID      string         `json:"run_id"`
	BundleRef  string         `json:"bundle_ref,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

type dagRunRequest struct {
	DAGRunID    string     `json:"dag_run_id"`
	LogicalDate string     `json:"logical_date"`
	Conf        dagRunConf `json:"conf"`
}

type dagRunResponse struct {
	DAGRunID string `json:"dag_run_id"`
	State    string `json:"state"`
}

type taskInstance struct {
	TaskID string `json:"task_id"`
	State  string `json:"state"`
}

type taskInstancesResponse struct {
	TaskInstances []taskInstance `json:"task_instances"`
	TotalEntries  int            `json:"total_entries"`
}
