// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates archview.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is the config file looked up when no path is given.
const DefaultFileName = "archview.yaml"

// configValidate is the shared validator instance.
var configValidate *validator.Validate

func init() {
	configValidate = validator.New()
	_ = configValidate.RegisterValidation("comparison_mode", validateComparisonMode)
}

// validateComparisonMode accepts the change-detector strategy names.
func validateComparisonMode(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "", "exact", "fuzzy":
		return true
	default:
		return false
	}
}

// Artifact configures one diagram artifact.
type Artifact struct {
	// Path is the artifact file, relative to BaseDir.
	Path string `yaml:"path" validate:"required"`

	// Mode selects the comparison strategy: exact (default) or fuzzy.
	Mode string `yaml:"mode,omitempty" validate:"comparison_mode"`
}

// Log configures the run logger.
type Log struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level,omitempty" validate:"omitempty,oneof=debug info warn error"`

	// Dir enables file logging when set.
	Dir string `yaml:"dir,omitempty"`

	// JSON switches console output to JSON lines.
	JSON bool `yaml:"json,omitempty"`
}

// Config is the archview.yaml schema.
type Config struct {
	// BaseDir anchors every relative path in the file. Defaults to the
	// config file's directory.
	BaseDir string `yaml:"base_dir,omitempty"`

	// ScanRoots are the directories to extract from, relative to
	// BaseDir. Empty means BaseDir itself.
	ScanRoots []string `yaml:"scan_roots,omitempty"`

	// Exclude are glob patterns for files and directories to skip.
	Exclude []string `yaml:"exclude,omitempty"`

	// EntryPoints are patterns for exports expected to have no in-repo
	// importers.
	EntryPoints []string `yaml:"entry_points,omitempty"`

	// Artifacts configures each diagram kind by name.
	Artifacts map[string]Artifact `yaml:"artifacts,omitempty" validate:"dive"`

	// ReviewDoc is the review artifact whose staged-ness approves a
	// diagram change.
	ReviewDoc string `yaml:"review_doc,omitempty"`

	// TrackingFile is the fingerprint store path.
	TrackingFile string `yaml:"tracking_file,omitempty"`

	// SnapshotFile persists the approved graph so later runs can diff
	// against it.
	SnapshotFile string `yaml:"snapshot_file,omitempty"`

	// Workers bounds parallel extraction. Zero means NumCPU.
	Workers int `yaml:"workers,omitempty" validate:"gte=0"`

	Log Log `yaml:"log,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.BaseDir == "" {
		c.BaseDir = "."
	}
	if c.TrackingFile == "" {
		c.TrackingFile = "docs/architecture/tracking.yaml"
	}
	if c.ReviewDoc == "" {
		c.ReviewDoc = "docs/architecture/review.md"
	}
	if c.SnapshotFile == "" {
		c.SnapshotFile = "docs/architecture/graph.yaml"
	}
	if len(c.Exclude) == 0 {
		c.Exclude = []string{"node_modules", "vendor", ".git", "dist", "build"}
	}
	if c.Artifacts == nil {
		c.Artifacts = map[string]Artifact{}
	}
	if _, ok := c.Artifacts["dependencies"]; !ok {
		c.Artifacts["dependencies"] = Artifact{Path: "docs/architecture/dependencies.mmd", Mode: "exact"}
	}
	if _, ok := c.Artifacts["hierarchy"]; !ok {
		c.Artifacts["hierarchy"] = Artifact{Path: "docs/architecture/hierarchy.mmd", Mode: "exact"}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ArtifactPath returns the absolute path of a configured artifact.
func (c *Config) ArtifactPath(kind string) string {
	a, ok := c.Artifacts[kind]
	if !ok {
		return ""
	}
	return c.Resolve(a.Path)
}

// Resolve anchors a config-relative path at BaseDir.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.BaseDir, filepath.FromSlash(p))
}

// Load reads, defaults, and validates a config file.
//
// A missing file at the default location is not an error: the default
// configuration is returned so `archview generate` works in a fresh
// repo. An explicitly named file must exist.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFileName
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.BaseDir == "" {
		cfg.BaseDir = filepath.Dir(path)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
