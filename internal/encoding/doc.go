// Package encoding reassembles processed frame sequences into video files.
//
// The FFmpeg encoder shells out to ffmpeg with a numbered-frame input pattern.
// WithFallback composes two encoders so a failed primary codec is retried on
// the fallback exactly once with identical inputs; only the pair failing is
// surfaced as a fatal encoding error.
package encoding
