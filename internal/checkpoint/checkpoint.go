// Package checkpoint persists per-step migration output as JSON artifacts so
// interrupted runs can resume without re-deriving prior results.
//
// Every artifact is an Envelope: a metadata header (run id, step name,
// timestamp, counts) followed by the payload items. Downstream steps key-match
// on payload field names, so the serialized shape is a stable contract between
// phases.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no checkpoint exists for a key.
var ErrNotFound = errors.New("checkpoint not found")

// Metadata is the envelope header written with every checkpoint.
type Metadata struct {
	RunID     string         `json:"run_id"`
	Step      string         `json:"step"`
	CreatedAt time.Time      `json:"created_at"`
	Counts    map[string]int `json:"counts,omitempty"`
}

// Envelope wraps a checkpoint payload with its metadata.
type Envelope[T any] struct {
	Metadata Metadata `json:"metadata"`
	Items    []T      `json:"items"`
}

// NewEnvelope builds an envelope for a step's output. A fresh run id is
// generated; counts always includes "total".
func NewEnvelope[T any](step string, items []T) Envelope[T] {
	return Envelope[T]{
		Metadata: Metadata{
			RunID:     uuid.NewString(),
			Step:      step,
			CreatedAt: time.Now().UTC(),
			Counts:    map[string]int{"total": len(items)},
		},
		Items: items,
	}
}

// Store abstracts the persistence of raw checkpoint documents. The file
// implementation backs real runs; the memory implementation backs tests.
type Store interface {
	// LoadRaw returns the stored document for key, or ErrNotFound.
	LoadRaw(key string) ([]byte, error)
	// SaveRaw persists the document for key, replacing any previous value.
	SaveRaw(key string, data []byte) error
	// Exists reports whether a document is stored for key.
	Exists(key string) bool
	// Delete removes the document for key. Missing keys are not an error.
	Delete(key string) error
}

// Load reads and decodes the envelope stored under key.
func Load[T any](s Store, key string) (Envelope[T], error) {
	var env Envelope[T]

	data, err := s.LoadRaw(key)
	if err != nil {
		return env, err
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return env, fmt.Errorf("decoding checkpoint %s: %w", key, err)
	}
	return env, nil
}

// Save encodes and persists the envelope under key.
func Save[T any](s Store, key string, env Envelope[T]) error {
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding checkpoint %s: %w", key, err)
	}
	return s.SaveRaw(key, data)
}
