package generation_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"framelift/internal/generation"
	"framelift/internal/services"
)

func TestGenerateSubmitsAndPollsToCompletion(t *testing.T) {
	var polls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			var req generation.Request
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode submit: %v", err)
			}
			if req.Prompt != "a red fox in snow" {
				t.Errorf("unexpected prompt %q", req.Prompt)
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"task_id": "task-1"})
		case r.Method == http.MethodGet:
			if polls.Add(1) < 3 {
				_ = json.NewEncoder(w).Encode(map[string]any{
					"status": "running", "progress": 40.0, "stage": "rendering",
				})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status": "completed", "progress": 100.0, "output_url": "https://cdn.example.com/task-1.mp4",
			})
		}
	}))
	defer server.Close()

	client, err := generation.NewHTTPClient(server.URL, generation.WithPollInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewHTTPClient failed: %v", err)
	}

	var updates []generation.Update
	output, err := client.Generate(context.Background(),
		generation.Request{Prompt: "a red fox in snow"},
		func(u generation.Update) { updates = append(updates, u) })
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if output != "https://cdn.example.com/task-1.mp4" {
		t.Fatalf("unexpected output ref: %q", output)
	}
	if len(updates) < 3 {
		t.Fatalf("expected progress updates per poll, got %d", len(updates))
	}
	if updates[0].Percent != 40 || updates[0].Stage != "rendering" {
		t.Fatalf("unexpected first update: %#v", updates[0])
	}
}

func TestGenerateSurfacesRemoteFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_ = json.NewEncoder(w).Encode(map[string]string{"task_id": "task-2"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "failed", "error": "render farm offline"})
	}))
	defer server.Close()

	client, err := generation.NewHTTPClient(server.URL, generation.WithPollInterval(5*time.Millisecond))
	if err != nil {
		t.Fatalf("NewHTTPClient failed: %v", err)
	}

	_, err = client.Generate(context.Background(), generation.Request{Prompt: "anything"}, nil)
	if err == nil || !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient failure, got %v", err)
	}
}

func TestGenerateTimesOut(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_ = json.NewEncoder(w).Encode(map[string]string{"task_id": "task-3"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "running", "progress": 1.0})
	}))
	defer server.Close()

	client, err := generation.NewHTTPClient(server.URL,
		generation.WithPollInterval(5*time.Millisecond),
		generation.WithTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewHTTPClient failed: %v", err)
	}

	_, err = client.Generate(context.Background(), generation.Request{Prompt: "slow"}, nil)
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestGenerateRequiresPrompt(t *testing.T) {
	client, err := generation.NewHTTPClient("http://127.0.0.1:0/generate")
	if err != nil {
		t.Fatalf("NewHTTPClient failed: %v", err)
	}
	_, err = client.Generate(context.Background(), generation.Request{}, nil)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
