package reconcile

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/camarize/reconciler/internal/entities"
	"github.com/charmbracelet/lipgloss"
)

// Report formats accepted by Write
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Write renders the summary in the named format
func Write(w io.Writer, format string, summary *Summary) error {
	switch format {
	case FormatText, "":
		return WriteText(w, summary)
	case FormatJSON:
		return WriteJSON(w, summary)
	default:
		return fmt.Errorf("unknown report format %q (want text or json)", format)
	}
}

type reportStyles struct {
	title lipgloss.Style
	head  lipgloss.Style
	warn  lipgloss.Style
	bad   lipgloss.Style
}

// newReportStyles binds styles to w, so colors are dropped when w is not a terminal.
func newReportStyles(w io.Writer) reportStyles {
	r := lipgloss.NewRenderer(w)
	return reportStyles{
		title: r.NewStyle().Bold(true),
		head:  r.NewStyle().Underline(true),
		warn:  r.NewStyle().Foreground(lipgloss.Color("214")),
		bad:   r.NewStyle().Foreground(lipgloss.Color("196")),
	}
}

// WriteText renders the human-readable report
func WriteText(w io.Writer, s *Summary) error {
	st := newReportStyles(w)
	var b strings.Builder

	title := "Reconciliation run " + s.RunID
	if s.DryRun {
		title += " (dry run)"
	}
	if s.Cancelled {
		title += " (cancelled)"
	}
	b.WriteString(st.title.Render(title) + "\n")
	fmt.Fprintf(&b, "Started %s, took %s\n\n", s.StartedAt.UTC().Format(time.RFC3339), s.Duration().Round(time.Millisecond))

	width := len("Relation")
	for _, r := range s.Relations {
		width = max(width, len(r.Relation))
	}
	b.WriteString(st.head.Render(fmt.Sprintf("%-*s  %8s  %8s  %7s  %7s", width, "Relation", "Examined", "Dangling", "Removed", "Errored")) + "\n")
	for _, r := range s.Relations {
		fmt.Fprintf(&b, "%-*s  %8d  %8d  %7d  %7d", width, r.Relation, r.Examined, r.Dangling, r.Removed, r.Errored())
		switch {
		case r.Aborted != "":
			b.WriteString("  " + st.bad.Render("aborted: "+r.Aborted))
		case r.Cancelled:
			b.WriteString("  " + st.warn.Render("cancelled"))
		}
		b.WriteString("\n")
	}

	removed := "Removed"
	if s.DryRun {
		removed = "Would remove"
	}
	if lines := removalLines(s.Relations); len(lines) > 0 {
		fmt.Fprintf(&b, "\n%s (%d):\n", removed, len(lines))
		for _, line := range lines {
			b.WriteString("  " + line + "\n")
		}
	}

	var failures []string
	for _, r := range s.Relations {
		for _, f := range r.Failures {
			failures = append(failures, fmt.Sprintf("%s/%s [%s]: %s", r.Relation, f.RecordID, f.Stage, f.Message))
		}
	}
	if len(failures) > 0 {
		fmt.Fprintf(&b, "\n%s\n", st.bad.Render(fmt.Sprintf("Failures (%d):", len(failures))))
		for _, line := range failures {
			b.WriteString("  " + line + "\n")
		}
	}

	fmt.Fprintf(&b, "\n%s\n", st.warn.Render(fmt.Sprintf("Anomalies (%d):", len(s.Anomalies))))
	for _, a := range s.Anomalies {
		b.WriteString("  " + a.String() + "\n")
	}
	for _, e := range s.AnomalyErrors {
		b.WriteString("  " + st.bad.Render("error: "+e) + "\n")
	}

	fmt.Fprintf(&b, "\nTotal: examined %d, dangling %d, removed %d, errored %d, anomalies %d\n",
		s.TotalExamined(), s.TotalDangling(), s.TotalRemoved(), s.TotalErrored(), len(s.Anomalies))

	_, err := io.WriteString(w, b.String())
	return err
}

func removalLines(results []*entities.SweepResult) []string {
	var lines []string
	for _, r := range results {
		for _, rm := range r.Removals {
			roles := make([]string, 0, len(rm.Endpoints))
			for role := range rm.Endpoints {
				roles = append(roles, role)
			}
			sort.Strings(roles)

			endpoints := make([]string, 0, len(roles))
			for _, role := range roles {
				endpoints = append(endpoints, role+"="+rm.Endpoints[role])
			}
			lines = append(lines, fmt.Sprintf("%s/%s missing %s (%s)",
				r.Relation, rm.RecordID, strings.Join(rm.Missing, ","), strings.Join(endpoints, " ")))
		}
	}
	return lines
}

type reportTotals struct {
	Examined  int `json:"examined"`
	Dangling  int `json:"dangling"`
	Removed   int `json:"removed"`
	Errored   int `json:"errored"`
	Anomalies int `json:"anomalies"`
}

// WriteJSON renders the summary and its totals as indented JSON
func WriteJSON(w io.Writer, s *Summary) error {
	out := struct {
		*Summary
		Totals reportTotals `json:"totals"`
	}{
		Summary: s,
		Totals: reportTotals{
			Examined:  s.TotalExamined(),
			Dangling:  s.TotalDangling(),
			Removed:   s.TotalRemoved(),
			Errored:   s.TotalErrored(),
			Anomalies: len(s.Anomalies),
		},
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}
