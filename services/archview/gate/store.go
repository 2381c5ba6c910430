// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package gate decides whether a commit may proceed when diagram
// artifacts changed without an accompanying review.
package gate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Fingerprint identifies the last approved content of one diagram kind.
type Fingerprint struct {
	// Digest is the hex sha256 of the serialized diagram text.
	Digest string `yaml:"digest"`

	// FactDigest is the hex sha256 of the fact set the diagram was
	// computed from.
	FactDigest string `yaml:"fact_digest"`
}

// Tracking is the persisted gate state: one fingerprint per diagram
// kind, keyed by kind name.
type Tracking struct {
	Fingerprints map[string]Fingerprint `yaml:"fingerprints"`

	// UpdatedAt is the time of the last approved update, RFC 3339.
	UpdatedAt string `yaml:"updated_at,omitempty"`
}

// NewTracking returns an empty tracking state.
func NewTracking() *Tracking {
	return &Tracking{Fingerprints: make(map[string]Fingerprint)}
}

// Store persists tracking state between invocations.
//
// The gate controller is the only reader and writer. Load and Commit
// are explicit so tests can run against an in-memory store.
type Store interface {
	// Load reads the tracked state. A store with no prior state returns
	// an empty Tracking, not an error.
	Load(ctx context.Context) (*Tracking, error)

	// Commit overwrites the tracked state.
	Commit(ctx context.Context, t *Tracking) error
}

// FileStore keeps tracking state in a YAML file meant to be committed
// alongside the diagrams it fingerprints.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by the given file path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the tracking file. A missing file yields empty state.
func (s *FileStore) Load(ctx context.Context) (*Tracking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewTracking(), nil
		}
		return nil, fmt.Errorf("read tracking file %s: %w", s.path, err)
	}

	t := NewTracking()
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("parse tracking file %s: %w", s.path, err)
	}
	if t.Fingerprints == nil {
		t.Fingerprints = make(map[string]Fingerprint)
	}
	return t, nil
}

// Commit writes the tracking file atomically.
func (s *FileStore) Commit(ctx context.Context, t *Tracking) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

	data, err := yaml.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal tracking state: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create tracking dir %s: %w", dir, err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write tracking file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace tracking file %s: %w", s.path, err)
	}
	return nil
}

// MemoryStore is an in-memory Store for tests.
type MemoryStore struct {
	State   *Tracking
	Commits int

	// FailLoad and FailCommit force errors for failure-path tests.
	FailLoad   error
	FailCommit error
}

// Load returns the held state or an empty Tracking.
func (s *MemoryStore) Load(ctx context.Context) (*Tracking, error) {
	if s.FailLoad != nil {
		return nil, s.FailLoad
	}
	if s.State == nil {
		return NewTracking(), nil
	}
	// Copy so callers cannot mutate the store through the result.
	out := NewTracking()
	out.UpdatedAt = s.State.UpdatedAt
	for k, v := range s.State.Fingerprints {
		out.Fingerprints[k] = v
	}
	return out, nil
}

// Commit replaces the held state.
func (s *MemoryStore) Commit(ctx context.Context, t *Tracking) error {
	if s.FailCommit != nil {
		return s.FailCommit
	}
	s.State = t
	s.Commits++
	return nil
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
