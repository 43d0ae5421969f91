// Package pipeline turns a source video into an enhanced output video.
//
// A run extracts frames into a private scratch directory, fans each frame out
// to the segmentation processor under a bounded worker count, then reassembles
// the results behind a hard barrier: no encoding starts until every frame has
// a terminal outcome. A frame whose oracle call fails is substituted with its
// original payload and reported as degraded; only extraction and double
// encoder failures are fatal. Scratch space is removed on every exit path and
// cancellation is honored between frame submissions and before reassembly, so
// a cancelled run never surfaces partial output.
package pipeline
