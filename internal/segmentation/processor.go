package segmentation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"framelift/internal/services"
)

// maxResponseBytes bounds how much of a processed frame is read back.
// Frames are single PNG images; anything larger indicates a misbehaving service.
const maxResponseBytes = 64 << 20

// Processor transforms a single frame payload.
type Processor interface {
	Process(ctx context.Context, frame []byte) ([]byte, error)
}

// Option configures the HTTP processor.
type Option func(*HTTPProcessor)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *HTTPProcessor) {
		if client != nil {
			p.client = client
		}
	}
}

// WithModel sets the segmentation model requested per frame.
func WithModel(model string) Option {
	return func(p *HTTPProcessor) {
		p.model = model
	}
}

// WithTimeout sets the per-frame request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(p *HTTPProcessor) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

// HTTPProcessor posts frames to a rembg-style background removal endpoint.
type HTTPProcessor struct {
	endpoint string
	model    string
	timeout  time.Duration
	client   *http.Client
}

// NewHTTPProcessor constructs a processor for the given endpoint.
func NewHTTPProcessor(endpoint string, opts ...Option) (*HTTPProcessor, error) {
	if endpoint == "" {
		return nil, errors.New("segmentation endpoint required")
	}
	processor := &HTTPProcessor{
		endpoint: endpoint,
		timeout:  30 * time.Second,
		client:   &http.Client{},
	}
	for _, opt := range opts {
		opt(processor)
	}
	return processor, nil
}

// Process submits one frame and returns the background-stripped payload.
// The caller-side timeout bounds each request independently of the run.
func (p *HTTPProcessor) Process(ctx context.Context, frame []byte) ([]byte, error) {
	if len(frame) == 0 {
		return nil, services.Wrap(services.ErrValidation, "segmentation", "process", "empty frame payload", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	target := p.endpoint
	if p.model != "" {
		joined, err := appendQuery(target, "model", p.model)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "segmentation", "process", "invalid endpoint", err)
		}
		target = joined
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(frame))
	if err != nil {
		return nil, services.Wrap(services.ErrSegmentation, "segmentation", "process", "build request", err)
	}
	req.Header.Set("Content-Type", "image/png")

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, services.Wrap(services.ErrTimeout, "segmentation", "process", "frame request timed out", err)
		}
		return nil, services.Wrap(services.ErrSegmentation, "segmentation", "process", "frame request failed", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, services.Wrap(services.ErrSegmentation, "segmentation", "process",
			fmt.Sprintf("service returned %d: %s", resp.StatusCode, bytes.TrimSpace(body)), nil)
	}

	processed, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, services.Wrap(services.ErrSegmentation, "segmentation", "process", "read response", err)
	}
	if len(processed) == 0 {
		return nil, services.Wrap(services.ErrSegmentation, "segmentation", "process", "empty response payload", nil)
	}
	return processed, nil
}

func appendQuery(endpoint, key, value string) (string, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	query := parsed.Query()
	query.Set(key, value)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
