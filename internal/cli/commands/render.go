package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/goccy/go-json"
	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/planlineage/internal/config"
	"github.com/leapstack-labs/planlineage/internal/state"
	"github.com/leapstack-labs/planlineage/pkg/lineage"
)

// styles holds text styles for one writer. Writers that are not terminals
// get plain text.
type styles struct {
	Heading lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
}

func newStyles(w io.Writer) *styles {
	r := lipgloss.NewRenderer(w)
	return &styles{
		Heading: r.NewStyle().Bold(true),
		Error:   r.NewStyle().Foreground(lipgloss.Color("9")),
		Muted:   r.NewStyle().Faint(true),
	}
}

// writeData encodes v in the configured machine-readable format. It
// reports false when the output format is text.
func writeData(w io.Writer, format string, v any) (bool, error) {
	switch format {
	case config.OutputJSON:
		return true, writeJSON(w, v)
	case config.OutputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	}
	return false, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderLineage(w io.Writer, lin *lineage.Lineage) {
	st := newStyles(w)
	if lin == nil {
		_, _ = fmt.Fprintln(w, st.Muted.Render("(lineage unavailable)"))
		return
	}
	_, _ = fmt.Fprintf(w, "Inputs:  %s\n", joinOrNone(lin.InputTables))
	_, _ = fmt.Fprintf(w, "Outputs: %s\n", joinOrNone(lin.OutputTables))
	if len(lin.ColumnLineage) == 0 {
		_, _ = fmt.Fprintln(w, st.Muted.Render("(0 columns)"))
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Column", "Sources"})
	for _, c := range lin.ColumnLineage {
		t.AppendRow(table.Row{c.Column, joinOrNone(c.OriginalColumns)})
	}
	t.Render()
}

func renderEvents(w io.Writer, events []state.EventSummary) {
	st := newStyles(w)
	if len(events) == 0 {
		_, _ = fmt.Fprintln(w, st.Muted.Render("(0 events)"))
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Time", "Operation", "State", "User", "Lineage", "Statement"})
	for _, e := range events {
		status := "yes"
		if !e.HasLineage {
			status = "no"
		}
		t.AppendRow(table.Row{
			e.ID,
			e.EventTime.Format(time.RFC3339),
			e.OperationID,
			stateLabel(e.State),
			e.SessionUser,
			status,
			truncate(e.Statement, 60),
		})
	}
	t.Render()
	_, _ = fmt.Fprintln(w, st.Muted.Render(fmt.Sprintf("(%d events)", len(events))))
}

func renderEvent(w io.Writer, e *state.Event) {
	st := newStyles(w)
	_, _ = fmt.Fprintf(w, "%s     %s\n", st.Heading.Render("Event:"), e.ID)
	_, _ = fmt.Fprintf(w, "Time:      %s\n", e.EventTime.Format(time.RFC3339))
	_, _ = fmt.Fprintf(w, "Operation: %s (%s)\n", e.OperationID, stateLabel(e.State))
	if e.SessionUser != "" {
		_, _ = fmt.Fprintf(w, "User:      %s\n", e.SessionUser)
	}
	if e.Statement != "" {
		_, _ = fmt.Fprintf(w, "Statement: %s\n", e.Statement)
	}
	if e.Exception != "" {
		_, _ = fmt.Fprintf(w, "Exception: %s\n", st.Error.Render(e.Exception))
		return
	}
	_, _ = fmt.Fprintln(w)
	renderLineage(w, e.Lineage)
}

func renderResults(w io.Writer, results []*analyzeResult) {
	st := newStyles(w)
	for i, r := range results {
		if i > 0 {
			_, _ = fmt.Fprintln(w)
		}
		_, _ = fmt.Fprintln(w, st.Heading.Render("== "+r.Path+" =="))
		switch {
		case r.Error != "":
			_, _ = fmt.Fprintln(w, st.Error.Render("Error: "+r.Error))
		case r.Event.Exception != "":
			_, _ = fmt.Fprintln(w, st.Error.Render("Statement failed: "+r.Event.Exception))
		default:
			renderLineage(w, r.Event.Lineage)
		}
	}
}

// stateLabel turns an engine state such as FINISHED into Finished.
func stateLabel(s string) string {
	if s == "" {
		return "-"
	}
	return cases.Title(language.English).String(strings.ToLower(s))
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
