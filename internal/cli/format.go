package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/lrocampoa/ExpenseTracker/internal/model"
)

// Table writes aligned rows with a styled header.
type Table struct {
	w *tabwriter.Writer
}

// NewTable starts a table on out and writes its header row.
func NewTable(out io.Writer, headers ...string) *Table {
	t := &Table{w: tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)}
	cells := make([]string, len(headers))
	for i, h := range headers {
		cells[i] = HeaderStyle.Render(strings.ToUpper(h))
	}
	_, _ = fmt.Fprintln(t.w, strings.Join(cells, "\t"))
	return t
}

// Row appends one row.
func (t *Table) Row(cells ...string) {
	_, _ = fmt.Fprintln(t.w, strings.Join(cells, "\t"))
}

// Flush writes the buffered rows.
func (t *Table) Flush() error {
	return t.w.Flush()
}

// StatusStyle colors a lifecycle status: healthy states green, attention states
// yellow, terminal failures red.
func StatusStyle(status string) lipgloss.Style {
	switch status {
	case string(model.AccountActive), string(model.SuggestionAccepted), string(model.MessageProcessed), "enabled":
		return SuccessStyle
	case string(model.AccountDegraded), string(model.SuggestionPending), string(model.MessageFailed), string(model.MessageReview):
		return WarningStyle
	case string(model.AccountDisabled), string(model.SuggestionRejected):
		return ErrorStyle
	default:
		return SubtleStyle
	}
}

// FormatStatus renders status in its color.
func FormatStatus(status string) string {
	return StatusStyle(status).Render(status)
}

// FormatAmount renders a transaction amount in its currency's display format.
func FormatAmount(t model.Transaction) string {
	return t.Money().Display()
}

// FormatCategory renders a transaction's category with its source, or a dash when
// it has none.
func FormatCategory(t model.Transaction) string {
	if t.Category == "" {
		return SubtleStyle.Render("-")
	}
	return t.Category + SubtleStyle.Render(" ("+string(t.CategorySource)+")")
}

// FormatFileSize renders a byte count in binary units.
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

// FormatRelativeTime renders t relative to now, falling back to a timestamp after a week.
func FormatRelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	duration := now.Sub(t)

	switch {
	case duration < time.Minute:
		return "just now"
	case duration < time.Hour:
		minutes := int(duration.Minutes())
		if minutes == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", minutes)
	case duration < 24*time.Hour:
		hours := int(duration.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case duration < 7*24*time.Hour:
		days := int(duration.Hours() / 24)
		if days == 1 {
			return "yesterday"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("2006-01-02 15:04")
	}
}
