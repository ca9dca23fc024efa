package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LiveOptions configures LiveClient.
type LiveOptions struct {
	BaseURL string
	// APIKey resolves the bearer token per call so rotated keys take effect
	// without a restart.
	APIKey func(ctx context.Context) (string, error)
	// InputURL turns a storage locator into a URL the backend can fetch.
	InputURL   func(ctx context.Context, locator string) (string, error)
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// LiveClient calls the remote generation API over JSON HTTP.
type LiveClient struct {
	baseURL    string
	apiKey     func(ctx context.Context) (string, error)
	inputURL   func(ctx context.Context, locator string) (string, error)
	httpClient *http.Client
	logger     zerolog.Logger
}

type generateRequest struct {
	InputImage   string `json:"input_image"`
	Prompt       string `json:"prompt"`
	Mode         string `json:"mode"`
	OutputFormat string `json:"output_format"`
	Quality      string `json:"quality"`
}

type apiErrorResponse struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func NewLiveClient(opts LiveOptions) (*LiveClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("generation: base url is required")
	}
	if opts.APIKey == nil {
		return nil, fmt.Errorf("generation: api key source is required")
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	inputURL := opts.InputURL
	if inputURL == nil {
		inputURL = func(_ context.Context, locator string) (string, error) { return locator, nil }
	}
	return &LiveClient{
		baseURL:    baseURL,
		apiKey:     opts.APIKey,
		inputURL:   inputURL,
		httpClient: client,
		logger:     opts.Logger,
	}, nil
}

func (c *LiveClient) CreateJob(ctx context.Context, req Request) (*Result, error) {
	input, err := c.inputURL(ctx, req.InputLocator)
	if err != nil {
		return nil, fmt.Errorf("generation: resolve input: %w", err)
	}
	payload := generateRequest{
		InputImage:   input,
		Prompt:       BuildPrompt(req.Mode, req.PromptOverride, req.SubOptions),
		Mode:         string(req.Mode),
		OutputFormat: "png",
		Quality:      "high",
	}
	var out Result
	if err := c.invoke(ctx, http.MethodPost, "/v1/generate", payload, &out); err != nil {
		return nil, err
	}
	c.logger.Debug().
		Str("job_id", req.JobID).
		Str("backend_job_id", out.JobID).
		Str("status", out.Status).
		Int("images", len(out.GeneratedImages)).
		Msg("generation: job created")
	return &out, nil
}

func (c *LiveClient) GetJobStatus(ctx context.Context, jobID string) (*Result, error) {
	var out Result
	if err := c.invoke(ctx, http.MethodGet, "/v1/jobs/"+url.PathEscape(jobID), nil, &out); err != nil {
		return nil, err
	}
	if out.JobID == "" {
		out.JobID = jobID
	}
	return &out, nil
}

func (c *LiveClient) invoke(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	key, err := c.apiKey(ctx)
	if err != nil {
		return fmt.Errorf("resolve api key: %w", err)
	}
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invoke generation api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var apiErr apiErrorResponse
		if err := json.Unmarshal(data, &apiErr); err == nil {
			if msg := firstNonEmpty(apiErr.Error, apiErr.Message); msg != "" {
				return fmt.Errorf("generation api status %d: %s", resp.StatusCode, msg)
			}
		}
		if len(data) > 0 {
			return fmt.Errorf("generation api status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		}
		return fmt.Errorf("generation api status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode generation response: %w", err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

var _ Client = (*LiveClient)(nil)
