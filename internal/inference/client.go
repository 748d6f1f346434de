package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"server/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("inference: api key is required")

// ModerationRejection is the error fragment the inference service emits when
// a job is refused by content moderation. Failures carrying it are an
// expected user-facing outcome, not an internal fault.
const ModerationRejection = "NSFW content detected"

// IsModerationRejection reports whether an inference failure message is a
// content-moderation refusal.
func IsModerationRejection(message string) bool {
	return strings.Contains(message, ModerationRejection)
}

// Job statuses as reported by the inference service.
const (
	StatusStarting   = "starting"
	StatusProcessing = "processing"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusCanceled   = "canceled"
)

// Job is the normalized view of a submitted inference job.
type Job struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error"`
}

// Terminal reports whether the job reached a final status.
func (j *Job) Terminal() bool {
	switch j.Status {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// Succeeded reports whether the job finished successfully.
func (j *Job) Succeeded() bool { return j.Status == StatusSucceeded }

// Options configures the inference service client.
type Options struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls against the external inference service's
// submit-job / poll-status contract.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

type submitRequest struct {
	Model string         `json:"model"`
	Input map[string]any `json:"input"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.inference.dev/v1"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// Submit creates a new job for the given model and parameter bag. The
// response must carry a job identifier.
func (c *Client) Submit(ctx context.Context, model string, input map[string]any) (*Job, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("inference: model is required")
	}
	if len(input) == 0 {
		return nil, errors.New("inference: input is empty")
	}
	body, err := json.Marshal(submitRequest{Model: model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("inference: encode request: %w", err)
	}
	job, err := c.do(ctx, http.MethodPost, c.baseURL+"/predictions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(job.ID) == "" {
		return nil, errors.New("inference: submission returned no job id")
	}
	c.logger.Debug().Str("job_id", job.ID).Str("model", model).Str("status", job.Status).Msg("inference: job submitted")
	return job, nil
}

// Poll fetches the current status of a job.
func (c *Client) Poll(ctx context.Context, jobID string) (*Job, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	if strings.TrimSpace(jobID) == "" {
		return nil, errors.New("inference: job id is required")
	}
	return c.do(ctx, http.MethodGet, c.baseURL+"/predictions/"+url.PathEscape(jobID), nil)
}

// Download fetches the raw bytes behind an output reference.
func (c *Client) Download(ctx context.Context, outputURL string) ([]byte, error) {
	parsed, err := url.Parse(strings.TrimSpace(outputURL))
	if err != nil || parsed.Scheme == "" {
		return nil, fmt.Errorf("inference: invalid output url: %s", outputURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("inference: build download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference: download output: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("inference: download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("inference: read output: %w", err)
	}
	return data, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body io.Reader) (*Job, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("inference: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("inference: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var detail errorResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Detail != "" {
			return nil, fmt.Errorf("inference: %s", detail.Detail)
		}
		return nil, fmt.Errorf("inference: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("inference: decode response: %w", err)
	}
	return &job, nil
}
