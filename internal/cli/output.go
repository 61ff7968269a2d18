package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/worktrack/pkg/types"
)

// Palette.
var (
	colorPrimary = lipgloss.Color("#7aa2f7")
	colorSuccess = lipgloss.Color("#9ece6a")
	colorWarning = lipgloss.Color("#e0af68")
	colorError   = lipgloss.Color("#f7768e")
	colorDim     = lipgloss.Color("#565f89")
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	labelStyle   = lipgloss.NewStyle().Foreground(colorDim)
	okStyle      = lipgloss.NewStyle().Foreground(colorSuccess)
	warnStyle    = lipgloss.NewStyle().Foreground(colorWarning)
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorError)
)

// statusStyle colors a status name by how far along it is.
func statusStyle(status string) lipgloss.Style {
	switch status {
	case "done", "completed":
		return okStyle
	case "in_progress", "next":
		return warnStyle
	case "blocked":
		return errorStyle
	default:
		return labelStyle
	}
}

// printer renders human-readable output.
type printer struct {
	w io.Writer
}

func (p *printer) heading(text string) {
	fmt.Fprintln(p.w, headingStyle.Render(text))
}

func (p *printer) field(name, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-10s", name+":")), value)
}

func (p *printer) ok(text string) {
	fmt.Fprintln(p.w, okStyle.Render(text))
}

func (p *printer) warn(text string) {
	fmt.Fprintln(p.w, warnStyle.Render(text))
}

func (p *printer) linef(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

// entityLine prints the one-line summary used by list and search.
func (p *printer) entityLine(e *types.Entity) {
	status := statusStyle(e.Status).Render(fmt.Sprintf("%-12s", e.Status))
	p.linef("%-18s %-8s %s %s", e.ID, e.SeqID, status, e.Title)
}

// entity prints every populated field of e.
func (p *printer) entity(e *types.Entity) {
	p.heading(e.Title)
	p.field("id", e.ID)
	p.field("kind", string(e.Kind))
	p.field("seq", e.SeqID)
	p.field("status", statusStyle(e.Status).Render(e.Status))
	if e.Priority != nil {
		p.field("priority", fmt.Sprintf("P%d", *e.Priority))
	}
	p.field("project", e.ProjectID)
	p.field("epic", e.EpicID)
	p.field("task", e.TaskID)
	p.field("created", e.CreatedAt.Format(types.DateTimeLayout))
	p.field("updated", e.UpdatedAt.Format(types.DateTimeLayout))
	p.field("due", formatOptional(e.DueDate, types.DateLayout))
	p.field("start", formatOptional(e.ScheduleStart, types.DateTimeLayout))
	p.field("end", formatOptional(e.ScheduleEnd, types.DateTimeLayout))
	p.field("labels", strings.Join(e.Labels, ", "))
	p.field("people", strings.Join(e.People, ", "))
	p.field("blocks", strings.Join(e.Blocks, ", "))
	p.field("blocked by", strings.Join(e.BlockedBy, ", "))
	if e.Archived {
		p.field("archived", "yes")
	}
	for _, item := range e.Checklist {
		mark := "[ ]"
		if item.Done {
			mark = "[x]"
		}
		p.linef("  %s %s", mark, item.Text)
	}
	if e.Content != "" {
		p.linef("\n%s", e.Content)
	}
}

// activity prints ledger entries oldest first.
func (p *printer) activity(entries []types.ActivityEntry) {
	for _, entry := range entries {
		kind := entry.Type
		if entry.ActivityType != "" {
			kind += "/" + entry.ActivityType
		}
		p.linef("%s %s %s", labelStyle.Render(entry.Timestamp), labelStyle.Render("["+kind+"]"), entry.Content)
	}
}

// edgeReport prints graph drift.
func (p *printer) edgeReport(r types.EdgeReport) {
	if r.Clean() {
		p.ok("dependency graph is consistent")
		return
	}
	for _, e := range r.Dangling {
		p.warn(fmt.Sprintf("dangling   %s %s %s", e.EntityID, e.Direction, e.TargetID))
	}
	for _, e := range r.Asymmetric {
		p.warn(fmt.Sprintf("asymmetric %s %s %s", e.EntityID, e.Direction, e.TargetID))
	}
}

// indexReport prints search-index drift grouped by kind.
func (p *printer) indexReport(r types.IndexReport) {
	if r.Clean() {
		p.ok("search index is consistent")
		return
	}
	for _, k := range types.Kinds {
		for _, id := range r.Orphaned[k] {
			p.warn("orphaned " + id)
		}
		for _, id := range r.Missing[k] {
			p.warn("missing  " + id)
		}
	}
	p.linef("%d orphaned, %d missing", r.OrphanedCount(), r.MissingCount())
}

// emit writes v as indented JSON in --json mode and calls text otherwise.
func (a *app) emit(cmd *cobra.Command, v any, text func(p *printer)) error {
	out := cmd.OutOrStdout()
	if a.flags.jsonMode {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding output: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}
	text(&printer{w: out})
	return nil
}

func formatOptional(t *time.Time, layout string) string {
	if t == nil {
		return ""
	}
	return t.Format(layout)
}
