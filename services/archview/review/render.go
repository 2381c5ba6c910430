// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package review

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Color palette - deep ocean teals and arctic waters.
var (
	colorTealBright = lipgloss.Color("#2CD7C7")
	colorWarning    = lipgloss.Color("#F4D03F")
	colorError      = lipgloss.Color("#E74C3C")
	colorSlate      = lipgloss.Color("#2C4A54")
)

var (
	styleTitle   = lipgloss.NewStyle().Bold(true).Foreground(colorTealBright)
	styleSection = lipgloss.NewStyle().Bold(true)
	styleAdded   = lipgloss.NewStyle().Foreground(colorTealBright)
	styleRemoved = lipgloss.NewStyle().Foreground(colorError)
	styleWarning = lipgloss.NewStyle().Foreground(colorWarning)
	styleMuted   = lipgloss.NewStyle().Foreground(colorSlate)
)

// Renderer writes a Report as human-readable text.
//
// Styled output is used only when the destination is a terminal;
// redirected output stays plain so hook logs and CI output are clean.
type Renderer struct {
	w      io.Writer
	styled bool
}

// NewRenderer creates a renderer for the given writer. Styling is
// enabled when the writer is a TTY.
func NewRenderer(w io.Writer) *Renderer {
	styled := false
	if f, ok := w.(*os.File); ok {
		styled = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Renderer{w: w, styled: styled}
}

// NewPlainRenderer creates a renderer that never styles output.
func NewPlainRenderer(w io.Writer) *Renderer {
	return &Renderer{w: w}
}

func (r *Renderer) style(s lipgloss.Style, text string) string {
	if !r.styled {
		return text
	}
	return s.Render(text)
}

// Render writes the report.
func (r *Renderer) Render(report *Report) error {
	if report.Empty() {
		_, err := fmt.Fprintln(r.w, r.style(styleMuted, "no structural changes"))
		return err
	}

	fmt.Fprintln(r.w, r.style(styleTitle, "Architecture review"))
	fmt.Fprintln(r.w)

	r.renderList("Added modules", report.AddedModules, styleAdded, "+")
	r.renderList("Removed modules", report.RemovedModules, styleRemoved, "-")

	if len(report.ModifiedModules) > 0 {
		fmt.Fprintln(r.w, r.style(styleSection, "Modified modules"))
		for _, d := range report.ModifiedModules {
			fmt.Fprintf(r.w, "  ~ %s (%s)\n", d.Path, strings.Join(d.Fields, ", "))
		}
		fmt.Fprintln(r.w)
	}

	r.renderList("Added types", report.AddedTypes, styleAdded, "+")
	r.renderList("Removed types", report.RemovedTypes, styleRemoved, "-")

	if len(report.ModifiedTypes) > 0 {
		fmt.Fprintln(r.w, r.style(styleSection, "Modified types"))
		for _, d := range report.ModifiedTypes {
			fmt.Fprintf(r.w, "  ~ %s\n", d.Key)
			for _, md := range d.Deltas {
				for _, name := range md.Added {
					fmt.Fprintf(r.w, "      %s %s %s\n", r.style(styleAdded, "+"), md.Kind, name)
				}
				for _, name := range md.Removed {
					fmt.Fprintf(r.w, "      %s %s %s\n", r.style(styleRemoved, "-"), md.Kind, name)
				}
			}
		}
		fmt.Fprintln(r.w)
	}

	if len(report.Consumers) > 0 {
		fmt.Fprintln(r.w, r.style(styleSection, "Blast radius"))
		keys := make([]string, 0, len(report.Consumers))
		for k := range report.Consumers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(r.w, "  %s <- %s\n", k, strings.Join(report.Consumers[k], ", "))
		}
		fmt.Fprintln(r.w)
	}

	if len(report.DeadEnds) > 0 {
		fmt.Fprintln(r.w, r.style(styleSection, "Dead-end exports"))
		for _, d := range report.DeadEnds {
			fmt.Fprintf(r.w, "  %s %s (%s)\n", r.style(styleWarning, "!"), d.Name, d.ModulePath)
		}
		fmt.Fprintln(r.w)
	}

	if len(report.Orphans) > 0 {
		fmt.Fprintln(r.w, r.style(styleSection, "Orphan modules"))
		for _, p := range report.Orphans {
			fmt.Fprintf(r.w, "  %s %s\n", r.style(styleWarning, "!"), p)
		}
		fmt.Fprintln(r.w)
	}

	return nil
}

func (r *Renderer) renderList(title string, items []string, s lipgloss.Style, marker string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintln(r.w, r.style(styleSection, title))
	for _, item := range items {
		fmt.Fprintf(r.w, "  %s %s\n", r.style(s, marker), item)
	}
	fmt.Fprintln(r.w)
}
