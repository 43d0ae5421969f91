package segmentation_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"framelift/internal/segmentation"
	"framelift/internal/services"
)

func TestProcessReturnsProcessedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if got := r.URL.Query().Get("model"); got != "u2net_human_seg" {
			t.Errorf("unexpected model %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "frame-bytes" {
			t.Errorf("unexpected body %q", body)
		}
		_, _ = w.Write([]byte("processed-bytes"))
	}))
	defer server.Close()

	processor, err := segmentation.NewHTTPProcessor(server.URL, segmentation.WithModel("u2net_human_seg"))
	if err != nil {
		t.Fatalf("NewHTTPProcessor failed: %v", err)
	}

	processed, err := processor.Process(context.Background(), []byte("frame-bytes"))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if string(processed) != "processed-bytes" {
		t.Fatalf("unexpected payload: %q", processed)
	}
}

func TestProcessClassifiesServiceErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	processor, err := segmentation.NewHTTPProcessor(server.URL)
	if err != nil {
		t.Fatalf("NewHTTPProcessor failed: %v", err)
	}

	_, err = processor.Process(context.Background(), []byte("frame"))
	if !errors.Is(err, services.ErrSegmentation) {
		t.Fatalf("expected ErrSegmentation, got %v", err)
	}
}

func TestProcessTimesOutPerFrame(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer func() {
		close(release)
		server.Close()
	}()

	processor, err := segmentation.NewHTTPProcessor(server.URL, segmentation.WithTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewHTTPProcessor failed: %v", err)
	}

	start := time.Now()
	_, err = processor.Process(context.Background(), []byte("frame"))
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("timeout took too long: %v", elapsed)
	}
}

func TestProcessRejectsEmptyFrame(t *testing.T) {
	processor, err := segmentation.NewHTTPProcessor("http://127.0.0.1:0/remove")
	if err != nil {
		t.Fatalf("NewHTTPProcessor failed: %v", err)
	}
	_, err = processor.Process(context.Background(), nil)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestNewHTTPProcessorRequiresEndpoint(t *testing.T) {
	if _, err := segmentation.NewHTTPProcessor(""); err == nil {
		t.Fatal("expected error for empty endpoint")
	}
}
