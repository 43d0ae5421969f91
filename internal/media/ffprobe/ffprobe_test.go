package ffprobe

import (
	"math"
	"testing"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video", Width: 1280, Height: 720, RFrameRate: "30000/1001", NBFrames: "300"},
			{CodecType: "audio"},
			{CodecType: "audio"},
		},
		Format: Format{
			Duration: "123.45",
			Size:     "1000",
		},
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	if result.AudioStreamCount() != 2 {
		t.Fatalf("expected 2 audio streams, got %d", result.AudioStreamCount())
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}

	video := result.FirstVideoStream()
	if video == nil {
		t.Fatal("expected video stream")
	}
	rate := video.FrameRate()
	if rate < 29.9 || rate > 30.0 {
		t.Fatalf("unexpected frame rate: %v", rate)
	}
	if video.FrameCount() != 300 {
		t.Fatalf("unexpected frame count: %d", video.FrameCount())
	}
}

func TestFrameRateVariants(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
	}{
		{"25/1", 25},
		{"24", 24},
		{"", 0},
		{"0/0", 0},
		{"bad/1", 0},
	}
	for _, tc := range cases {
		got := Stream{RFrameRate: tc.raw}.FrameRate()
		if got != tc.want {
			t.Fatalf("FrameRate(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Format: Format{
			Duration: "bad",
			Size:     "-1",
		},
	}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
	if result.FirstVideoStream() != nil {
		t.Fatal("expected no video stream")
	}
}
