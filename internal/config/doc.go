// Package config loads, normalizes, and validates Framelift configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob the
// daemon and CLI need: scratch/output directories, segmentation and generation
// endpoints, encoder codec settings, job admission limits, and workflow timing.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
