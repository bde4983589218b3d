package runpod

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/panodent/pano-gateway/internal/domain"
)

// JobState is the remote-side job state vocabulary.
type JobState string

const (
	StateInQueue    JobState = "IN_QUEUE"
	StateInProgress JobState = "IN_PROGRESS"
	StateCompleted  JobState = "COMPLETED"
	StateFailed     JobState = "FAILED"
	StateCancelled  JobState = "CANCELLED"
)

// Client talks to a RunPod serverless endpoint over its REST API.
type Client struct {
	client  *resty.Client
	baseURL string
}

// Config holds configuration for the RunPod client.
type Config struct {
	// BaseURL is the API root, e.g. https://api.runpod.ai/v2.
	BaseURL string
	// EndpointID is appended to BaseURL; may be empty when BaseURL
	// already points at a concrete endpoint (self-hosted worker).
	EndpointID string
	APIKey     string
	// RequestTimeout bounds each individual HTTP call, independent of
	// any overall polling deadline.
	RequestTimeout time.Duration
}

// NewClient creates a new RunPod client.
// Parameters:
//   - cfg: client configuration including endpoint and API key.
// Returns:
//   - *Client: initialized client.
func NewClient(cfg *Config) *Client {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client.SetTimeout(timeout)

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.EndpointID != "" {
		baseURL = baseURL + "/" + cfg.EndpointID
	}

	return &Client{
		client:  client,
		baseURL: baseURL,
	}
}

// SubmitInput is the payload handed to the remote worker.
type SubmitInput struct {
	ImageURL string `json:"image_url"`
	Debug    bool   `json:"debug"`
}

type submitRequest struct {
	Input SubmitInput `json:"input"`
}

// FindingPayload is one raw finding as reported by the remote worker.
type FindingPayload struct {
	FDI     string  `json:"fdi"`
	Finding string  `json:"finding"`
	Score   float64 `json:"score"`
}

// Output is the raw remote payload present once a job is COMPLETED.
// DebugImageURLs carries externally-stored locators; DebugImages carries
// inline base64 payloads. Which one is populated depends on how the
// worker was deployed; both may be empty when debug was not requested.
type Output struct {
	Findings       []FindingPayload  `json:"findings"`
	CSVData        string            `json:"csv_data"`
	NumFindings    int               `json:"num_findings"`
	DebugImageURLs map[string]string `json:"debug_image_urls,omitempty"`
	DebugImages    map[string]string `json:"debug_images,omitempty"`
}

// StatusResponse is the response of both the submit and status endpoints.
type StatusResponse struct {
	ID     string   `json:"id"`
	Status JobState `json:"status"`
	Output *Output  `json:"output,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// Submit submits an analysis request and returns the remote job id.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - input: image locator and debug flag.
// Returns:
//   - *StatusResponse: remote job handle, typically with status IN_QUEUE.
//   - error: non-nil if the remote rejected or was unreachable.
func (c *Client) Submit(ctx context.Context, input SubmitInput) (*StatusResponse, error) {
	var out StatusResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(submitRequest{Input: input}).
		SetResult(&out).
		// decode JSON bodies even when a proxy mangles the response content type
		ForceContentType("application/json").
		Post(c.baseURL + "/run")
	if err != nil {
		return nil, fmt.Errorf("runpod submit request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("runpod submit returned %d: %s", resp.StatusCode(), resp.String())
	}
	if out.ID == "" {
		return nil, fmt.Errorf("runpod submit returned no job id")
	}
	return &out, nil
}

// Status queries the remote state of a job.
// A 404 maps to domain.NotFoundError, which is fatal for the job;
// transport errors are returned as-is for the caller to classify.
func (c *Client) Status(ctx context.Context, jobID string) (*StatusResponse, error) {
	var out StatusResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&out).
		// decode JSON bodies even when a proxy mangles the response content type
		ForceContentType("application/json").
		Get(c.baseURL + "/status/" + jobID)
	if err != nil {
		return nil, fmt.Errorf("runpod status request failed: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, &domain.NotFoundError{JobID: jobID}
	}
	if resp.IsError() {
		return nil, fmt.Errorf("runpod status returned %d: %s", resp.StatusCode(), resp.String())
	}
	return &out, nil
}

// Cancel asks the remote to cancel a job. Best-effort: a job that has
// already completed stays completed.
func (c *Client) Cancel(ctx context.Context, jobID string) error {
	resp, err := c.client.R().
		SetContext(ctx).
		Post(c.baseURL + "/cancel/" + jobID)
	if err != nil {
		return fmt.Errorf("runpod cancel request failed: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return &domain.NotFoundError{JobID: jobID}
	}
	if resp.IsError() {
		return fmt.Errorf("runpod cancel returned %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
