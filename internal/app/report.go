package app

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/vk/buildgrid/internal/dag"
	"github.com/vk/buildgrid/internal/executor"
	"github.com/vk/buildgrid/internal/target"
)

// table is a plain column-aligned table with a colored header.
type table struct {
	headers []string
	rows    [][]string
	colors  []*color.Color
	widths  []int
	noColor bool
}

func newTable(noColor bool, headers ...string) *table {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	return &table{headers: headers, widths: widths, noColor: noColor}
}

// addRow adds a row; c colors the whole row and may be nil.
func (t *table) addRow(c *color.Color, row ...string) {
	for i, cell := range row {
		if i < len(t.widths) && len(cell) > t.widths[i] {
			t.widths[i] = len(cell)
		}
	}
	t.rows = append(t.rows, row)
	t.colors = append(t.colors, c)
}

func (t *table) render(w io.Writer) {
	header := t.paint(color.New(color.FgCyan, color.Bold))
	for i, h := range t.headers {
		header.Fprintf(w, "%-*s  ", t.widths[i], h)
	}
	fmt.Fprintln(w)

	for i := range t.headers {
		fmt.Fprint(w, strings.Repeat("-", t.widths[i]), "  ")
	}
	fmt.Fprintln(w)

	for r, row := range t.rows {
		c := t.paint(t.colors[r])
		for i, cell := range row {
			if i < len(t.widths) {
				c.Fprintf(w, "%-*s  ", t.widths[i], cell)
			}
		}
		fmt.Fprintln(w)
	}
}

func (t *table) paint(c *color.Color) *color.Color {
	if c == nil {
		c = color.New(color.Reset)
	}
	if t.noColor {
		c.DisableColor()
	}
	return c
}

func stateColor(s target.State) *color.Color {
	switch s {
	case target.StateSucceeded:
		return color.New(color.FgGreen)
	case target.StateFailed:
		return color.New(color.FgRed, color.Bold)
	case target.StateSkipped:
		return color.New(color.FgYellow)
	}
	return color.New(color.Faint)
}

// printSummary renders one row per planned target.
func (a *App) printSummary(res *executor.Result) {
	t := newTable(a.config.NoColor, "TARGET", "STATE", "DURATION", "NOTE")
	for _, o := range res.Outcomes {
		note := o.Note
		if o.Err != nil {
			note = a.redactor.Redact(o.Err.Error())
		}
		duration := ""
		if o.Duration > 0 {
			duration = o.Duration.Round(time.Millisecond).String()
		}
		t.addRow(stateColor(o.State), o.Target, string(o.State), duration, note)
	}
	fmt.Fprintln(a.outW)
	t.render(a.outW)
}

// printPlan renders the execution order of plan.
func (a *App) printPlan(plan *dag.Plan) {
	t := newTable(a.config.NoColor, "#", "TARGET", "AFTER")
	for i, tgt := range plan.Targets {
		t.addRow(nil, fmt.Sprint(i+1), tgt.Name(), strings.Join(plan.Dependencies(tgt.Name()), ", "))
	}
	t.render(a.outW)
	for _, d := range plan.Diagnostics {
		fmt.Fprintf(a.outW, "note: %s\n", d)
	}
}

// printTargets renders every registered target in declaration order.
func (a *App) printTargets() {
	goals := map[string]bool{}
	for _, g := range a.Goals() {
		goals[strings.ToLower(g)] = true
	}

	t := newTable(a.config.NoColor, "TARGET", "DESCRIPTION", "DEPENDS ON")
	for _, tgt := range a.registry.Targets() {
		name := tgt.Name()
		var c *color.Color
		if goals[strings.ToLower(name)] {
			name += " (default)"
			c = color.New(color.Bold)
		}
		t.addRow(c, name, tgt.Description(), strings.Join(tgt.DependsOn(), ", "))
	}
	t.render(a.outW)
}
