// Package segmentation sends individual frames to an external background
// removal service and returns the processed payloads.
//
// The Processor interface is the seam the frame pipeline depends on; the HTTP
// implementation posts frames to a rembg-style endpoint with a per-call
// timeout. Per-frame failures are classified so the pipeline can substitute
// the original frame instead of failing the whole run.
package segmentation
