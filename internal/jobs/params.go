package jobs

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Params carries the kind-specific inputs of a submission. Source drives the
// frame pipeline kinds; Prompt drives generation.
type Params struct {
	Source   string `json:"source,omitempty"`
	Prompt   string `json:"prompt,omitempty"`
	Duration int    `json:"duration,omitempty"`
	Seed     int64  `json:"seed,omitempty"`
}

// Validate checks the params against the job kind.
func (p Params) Validate(kind Kind) error {
	switch kind {
	case KindBackground, KindQuality:
		if strings.TrimSpace(p.Source) == "" {
			return fmt.Errorf("kind %s requires a source video", kind)
		}
	case KindGeneration:
		if strings.TrimSpace(p.Prompt) == "" {
			return fmt.Errorf("kind %s requires a prompt", kind)
		}
	default:
		return fmt.Errorf("unknown kind %q", kind)
	}
	return nil
}

// Encode serializes params for storage on a record.
func (p Params) Encode() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal params: %w", err)
	}
	return string(data), nil
}

// DecodeParams parses the stored params of a record.
func DecodeParams(raw string) (Params, error) {
	if strings.TrimSpace(raw) == "" {
		return Params{}, nil
	}
	var params Params
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return Params{}, fmt.Errorf("parse params: %w", err)
	}
	return params, nil
}
