// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package detect compares generated artifacts against their stored
// copies on disk.
package detect

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Strategy defines how two artifact payloads are compared.
//
// Strategy selection is a static property of the artifact kind, set in
// configuration, never inferred from the payload at runtime.
type Strategy interface {
	// Equal reports whether old and new payloads count as the same
	// artifact content.
	Equal(old, new []byte) bool

	// Name returns the configuration name of the strategy.
	Name() string
}

// Exact compares payloads byte for byte via sha256.
//
// Used for deterministic artifacts: any byte difference means changed.
type Exact struct{}

// Equal reports whether the two payloads hash identically.
func (Exact) Equal(old, new []byte) bool {
	return sha256.Sum256(old) == sha256.Sum256(new)
}

// Name returns "exact".
func (Exact) Name() string { return "exact" }

// Frequency compares payloads by byte-frequency histogram.
//
// Description:
//
//	Some external tools reorder attributes non-deterministically
//	between runs even for identical input; byte-exact comparison would
//	flag a change on every run. Two payloads are equal under this
//	strategy when their byte multisets match exactly in counts,
//	ignoring position. Coarse by construction: different content with
//	an identical histogram compares equal, which is acceptable because
//	the comparison only gates a staleness warning.
type Frequency struct{}

// Equal reports whether the two payloads have identical byte-frequency
// distributions.
func (Frequency) Equal(old, new []byte) bool {
	if len(old) != len(new) {
		return false
	}
	var oldHist, newHist [256]uint64
	for _, b := range old {
		oldHist[b]++
	}
	for _, b := range new {
		newHist[b]++
	}
	return oldHist == newHist
}

// Name returns "fuzzy".
func (Frequency) Name() string { return "fuzzy" }

// StrategyForMode returns the strategy for a configured mode name.
func StrategyForMode(mode string) (Strategy, error) {
	switch mode {
	case "exact", "":
		return Exact{}, nil
	case "fuzzy":
		return Frequency{}, nil
	default:
		return nil, fmt.Errorf("unknown comparison mode %q", mode)
	}
}

// Detector checks one artifact path against freshly generated content.
//
// Thread Safety: stateless; safe for concurrent use.
type Detector struct {
	strategy Strategy
}

// NewDetector creates a Detector using the given strategy.
func NewDetector(strategy Strategy) *Detector {
	return &Detector{strategy: strategy}
}

// Strategy returns the detector's comparison strategy.
func (d *Detector) Strategy() Strategy {
	return d.strategy
}

// Changed reports whether the stored artifact differs from the
// generated payload.
//
// A missing stored artifact counts as changed. Reading the stored
// artifact never mutates it, so repeated calls against an unmodified
// file return the same answer.
func (d *Detector) Changed(artifactPath string, generated []byte) (bool, error) {
	stored, err := os.ReadFile(artifactPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return true, nil
		}
		return false, fmt.Errorf("read artifact %s: %w", artifactPath, err)
	}
	return !d.strategy.Equal(stored, generated), nil
}

// Digest returns the hex sha256 of a payload. Shared helper for
// fingerprinting artifacts and fact sets.
func Digest(payload []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(payload))
}
