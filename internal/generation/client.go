package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"framelift/internal/services"
)

// Request describes one generation run.
type Request struct {
	Prompt   string `json:"prompt"`
	Duration int    `json:"duration,omitempty"`
	Seed     int64  `json:"seed,omitempty"`
}

// Update reports remote progress while a generation runs.
type Update struct {
	Percent float64
	Stage   string
}

// Client defines generation behaviour.
type Client interface {
	Generate(ctx context.Context, req Request, progress func(Update)) (string, error)
}

// Option configures the HTTP client.
type Option func(*HTTPClient)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *HTTPClient) {
		if client != nil {
			c.client = client
		}
	}
}

// WithPollInterval sets the delay between status polls.
func WithPollInterval(interval time.Duration) Option {
	return func(c *HTTPClient) {
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}

// WithTimeout bounds the whole generation run.
func WithTimeout(timeout time.Duration) Option {
	return func(c *HTTPClient) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// HTTPClient submits generation requests and polls for completion.
type HTTPClient struct {
	endpoint     string
	pollInterval time.Duration
	timeout      time.Duration
	client       *http.Client
}

// NewHTTPClient constructs a client for the given endpoint.
func NewHTTPClient(endpoint string, opts ...Option) (*HTTPClient, error) {
	if endpoint == "" {
		return nil, errors.New("generation endpoint required")
	}
	client := &HTTPClient{
		endpoint:     strings.TrimRight(endpoint, "/"),
		pollInterval: 5 * time.Second,
		timeout:      10 * time.Minute,
		client:       &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type submitResponse struct {
	TaskID string `json:"task_id"`
}

type statusResponse struct {
	Status    string  `json:"status"`
	Progress  float64 `json:"progress"`
	Stage     string  `json:"stage"`
	OutputURL string  `json:"output_url"`
	Error     string  `json:"error"`
}

// Generate submits the request and polls until the remote run finishes. The
// returned reference points at the generated video.
func (c *HTTPClient) Generate(ctx context.Context, req Request, progress func(Update)) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", services.Wrap(services.ErrValidation, "generation", "submit", "prompt required", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	taskID, err := c.submit(ctx, req)
	if err != nil {
		return "", err
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", services.Wrap(services.ErrTimeout, "generation", "poll", "generation timed out", ctx.Err())
			}
			return "", ctx.Err()
		case <-ticker.C:
		}

		status, err := c.poll(ctx, taskID)
		if err != nil {
			return "", err
		}
		if progress != nil {
			progress(Update{Percent: status.Progress, Stage: status.Stage})
		}
		switch strings.ToLower(status.Status) {
		case "completed", "succeeded":
			if status.OutputURL == "" {
				return "", services.Wrap(services.ErrTransient, "generation", "poll", "completed without output", nil)
			}
			return status.OutputURL, nil
		case "failed", "error":
			return "", services.Wrap(services.ErrTransient, "generation", "poll", status.Error, nil)
		}
	}
}

func (c *HTTPClient) submit(ctx context.Context, req Request) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal generation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "generation", "submit", "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "generation", "submit", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", services.Wrap(services.ErrTransient, "generation", "submit",
			fmt.Sprintf("service returned %d: %s", resp.StatusCode, bytes.TrimSpace(body)), nil)
	}

	var submitted submitResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&submitted); err != nil {
		return "", services.Wrap(services.ErrTransient, "generation", "submit", "decode response", err)
	}
	if submitted.TaskID == "" {
		return "", services.Wrap(services.ErrTransient, "generation", "submit", "missing task id", nil)
	}
	return submitted.TaskID, nil
}

func (c *HTTPClient) poll(ctx context.Context, taskID string) (statusResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/"+taskID, nil)
	if err != nil {
		return statusResponse{}, services.Wrap(services.ErrTransient, "generation", "poll", "build request", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return statusResponse{}, services.Wrap(services.ErrTransient, "generation", "poll", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return statusResponse{}, services.Wrap(services.ErrNotFound, "generation", "poll", "unknown task "+taskID, nil)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return statusResponse{}, services.Wrap(services.ErrTransient, "generation", "poll",
			fmt.Sprintf("service returned %d: %s", resp.StatusCode, bytes.TrimSpace(body)), nil)
	}

	var status statusResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&status); err != nil {
		return statusResponse{}, services.Wrap(services.ErrTransient, "generation", "poll", "decode response", err)
	}
	return status, nil
}
