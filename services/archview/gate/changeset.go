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
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// ChangeSet enumerates the files in the current change set.
//
// The gate only ever checks presence of the review artifact by path,
// never its content.
type ChangeSet interface {
	StagedFiles(ctx context.Context) ([]string, error)
}

// GitChangeSet reads the staged change set from git.
type GitChangeSet struct {
	// RepoDir is the working directory for git commands. Empty means
	// the current directory.
	RepoDir string
}

// StagedFiles runs `git diff --cached` and returns the paths touched
// by the staged changes, repo-relative.
func (c *GitChangeSet) StagedFiles(ctx context.Context) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", "diff", "--cached")
	if c.RepoDir != "" {
		cmd.Dir = c.RepoDir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git diff --cached: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return parseChangedFiles(stdout.Bytes())
}

// parseChangedFiles extracts repo-relative paths from unified diff
// output.
func parseChangedFiles(patch []byte) ([]string, error) {
	if len(patch) == 0 {
		return nil, nil
	}

	fileDiffs, err := diff.NewMultiFileDiffReader(bytes.NewReader(patch)).ReadAllFiles()
	if err != nil {
		return nil, fmt.Errorf("parse staged diff: %w", err)
	}

	var files []string
	for _, fd := range fileDiffs {
		name := fd.NewName
		if name == "/dev/null" {
			name = fd.OrigName
		}
		name = strings.TrimPrefix(strings.TrimPrefix(name, "a/"), "b/")
		if name != "" && name != "/dev/null" {
			files = append(files, name)
		}
	}
	return files, nil
}

// StaticChangeSet is a fixed file list for tests.
type StaticChangeSet []string

// StagedFiles returns the fixed list.
func (c StaticChangeSet) StagedFiles(ctx context.Context) ([]string, error) {
	return c, nil
}

var (
	_ ChangeSet = (*GitChangeSet)(nil)
	_ ChangeSet = (StaticChangeSet)(nil)
)
