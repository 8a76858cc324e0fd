// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package report renders end-of-run summaries for the terminal.
package report

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Table is a titled grid of cells.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// Render returns the table as text. Colors are dropped automatically
// when the process output is not a terminal.
func (t Table) Render() string {
	grid := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(t.Headers...).
		Rows(t.Rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	var builder strings.Builder
	if t.Title != "" {
		builder.WriteString(titleStyle.Render(t.Title))
		builder.WriteByte('\n')
	}
	builder.WriteString(grid.Render())
	builder.WriteByte('\n')
	return builder.String()
}

// Write renders t to w.
func (t Table) Write(w io.Writer) error {
	_, err := io.WriteString(w, t.Render())
	return err
}
