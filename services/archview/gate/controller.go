// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package gate

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sort"

	"github.com/AleutianAI/archview/services/archview/review"
)

// State is the per-invocation gate outcome.
type State int

const (
	// StateClean means the operation may proceed.
	StateClean State = iota

	// StateBlocked means the operation is rejected until the review
	// artifact is staged alongside the diagram change.
	StateBlocked
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClean:
		return "clean"
	case StateBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Decision is the result of one gate evaluation.
type Decision struct {
	// State is Clean or Blocked.
	State State

	// ChangedKinds lists the diagram kinds whose fingerprints differ
	// from the tracked values, sorted.
	ChangedKinds []string

	// Approved reports whether new fingerprints were persisted because
	// the review artifact was part of the change set.
	Approved bool

	// Report carries the structural diff surfaced as the rejection
	// reason when blocked.
	Report *review.Report
}

// ControllerOptions configures a Controller.
type ControllerOptions struct {
	// ReviewDoc is the repo-relative path of the review artifact whose
	// staged-ness approves a diagram change.
	ReviewDoc string

	// Logger may be nil.
	Logger *slog.Logger
}

// Controller is the gate state machine.
//
// Description:
//
//	Each Evaluate call starts from the persisted fingerprints and ends
//	by either leaving them unchanged (Clean with no diagram change, or
//	Blocked) or overwriting them (Clean after an approved change).
//	There is no long-lived in-process state.
//
// Thread Safety:
//
//	Evaluate is not safe for concurrent invocations against the same
//	store; the calling environment (a commit hook) serializes runs.
type Controller struct {
	store   Store
	changes ChangeSet
	opts    ControllerOptions
}

// NewController creates a Controller.
func NewController(store Store, changes ChangeSet, opts ControllerOptions) *Controller {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Controller{store: store, changes: changes, opts: opts}
}

// Evaluate compares current fingerprints to the tracked state.
//
// Inputs:
//
//	current - Freshly computed fingerprint per diagram kind name.
//	report  - Structural diff surfaced as the reason when blocked.
//
// Outputs:
//
//	*Decision - Never nil on success.
//	error     - Store and change-set failures are fatal: without the
//	            persisted state no safe decision exists.
func (c *Controller) Evaluate(ctx context.Context, current map[string]Fingerprint, report *review.Report) (*Decision, error) {
	tracked, err := c.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tracking state: %w", err)
	}

	var changed []string
	for kind, fp := range current {
		if tracked.Fingerprints[kind] != fp {
			changed = append(changed, kind)
		}
	}
	sort.Strings(changed)

	if len(changed) == 0 {
		// Clean with no mutation: repeated runs stay Clean.
		c.opts.Logger.Debug("gate clean, fingerprints unchanged")
		return &Decision{State: StateClean}, nil
	}

	staged, err := c.changes.StagedFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate change set: %w", err)
	}

	if c.reviewStaged(staged) {
		next := NewTracking()
		for kind, fp := range current {
			next.Fingerprints[kind] = fp
		}
		if err := c.store.Commit(ctx, next); err != nil {
			return nil, fmt.Errorf("persist tracking state: %w", err)
		}
		c.opts.Logger.Info("gate approved diagram change",
			slog.Any("kinds", changed),
			slog.String("review_doc", c.opts.ReviewDoc))
		return &Decision{State: StateClean, ChangedKinds: changed, Approved: true}, nil
	}

	c.opts.Logger.Warn("gate blocked: diagrams changed without staged review",
		slog.Any("kinds", changed),
		slog.String("review_doc", c.opts.ReviewDoc))
	return &Decision{State: StateBlocked, ChangedKinds: changed, Report: report}, nil
}

// reviewStaged reports whether the review artifact is in the change
// set. Comparison is by cleaned path only.
func (c *Controller) reviewStaged(staged []string) bool {
	if c.opts.ReviewDoc == "" {
		return false
	}
	want := path.Clean(c.opts.ReviewDoc)
	for _, f := range staged {
		if path.Clean(f) == want {
			return true
		}
	}
	return false
}
