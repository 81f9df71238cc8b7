package catalog

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// Metadata records where a station file came from and how it was produced.
type Metadata struct {
	Version       string     `json:"version"`
	Source        SourceInfo `json:"source"`
	GeneratedAt   time.Time  `json:"generated_at"`
	StationsCount int        `json:"stations_count"`
	Notes         string     `json:"notes,omitempty"`
}

// SourceInfo describes the upstream price feed export.
type SourceInfo struct {
	Name     string `json:"name"`
	URL      string `json:"url,omitempty"`
	Filename string `json:"filename"`
	SHA256   string `json:"sha256,omitempty"`
}

// ParseMetadata decodes and validates a metadata document.
func ParseMetadata(data []byte) (*Metadata, error) {
	var metadata Metadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, errors.Wrap(err, "failed to parse catalog metadata")
	}

	if err := metadata.Validate(); err != nil {
		return nil, err
	}

	return &metadata, nil
}

// Validate checks if the metadata is valid and complete
func (m *Metadata) Validate() error {
	if m.Version == "" {
		return errors.New("metadata version is required")
	}

	if m.Source.Filename == "" {
		return errors.New("source filename is required")
	}

	if m.GeneratedAt.IsZero() {
		return errors.New("generated_at timestamp is required")
	}

	if m.StationsCount <= 0 {
		return errors.New("stations_count must be positive")
	}

	return nil
}

// Age returns how long ago the station file was generated.
func (m *Metadata) Age() time.Duration {
	return time.Since(m.GeneratedAt)
}

// Summary returns a brief summary of the metadata for logging
func (m *Metadata) Summary() map[string]any {
	return map[string]any{
		"version":        m.Version,
		"source":         m.Source.Name,
		"filename":       m.Source.Filename,
		"generated_at":   m.GeneratedAt,
		"stations_count": m.StationsCount,
	}
}
