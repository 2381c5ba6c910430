// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Wiring(t *testing.T) {
	names := make(map[string]bool)
	for _, sub := range rootCmd.Commands() {
		names[sub.Name()] = true
	}

	for _, want := range []string{"generate", "check", "watch"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestRootCommand_PersistentFlags(t *testing.T) {
	flags := rootCmd.PersistentFlags()

	configFlag := flags.Lookup("config")
	require.NotNil(t, configFlag, "config flag not registered")
	assert.Equal(t, "c", configFlag.Shorthand)

	require.NotNil(t, flags.Lookup("log-level"), "log-level flag not registered")
	require.NotNil(t, flags.Lookup("log-json"), "log-json flag not registered")
}

func TestJoinKinds(t *testing.T) {
	assert.Equal(t, "none", joinKinds(nil))
	assert.Equal(t, "dependencies", joinKinds([]string{"dependencies"}))
	assert.Equal(t, "dependencies, hierarchy", joinKinds([]string{"dependencies", "hierarchy"}))
}
