package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/pharrrodev/type2lyfe-sub001/internal/normalize"
	"github.com/pharrrodev/type2lyfe-sub001/internal/record"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	timeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Width(12)
	typeStyle    = lipgloss.NewStyle().Bold(true).Width(16)
	sourceStyle  = lipgloss.NewStyle().Faint(true)
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	emptyStyle   = lipgloss.NewStyle().Italic(true).Faint(true)
)

// renderFeed lays the feed out one row per record, newest first as given.
func renderFeed(records []record.Record, now time.Time) string {
	rows := []string{titleStyle.Render("Recent activity")}
	if len(records) == 0 {
		rows = append(rows, emptyStyle.Render("Nothing logged yet."))
		return lipgloss.JoinVertical(lipgloss.Left, rows...)
	}
	for _, entry := range records {
		rows = append(rows, renderRow(entry, now))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func renderRow(entry record.Record, now time.Time) string {
	summary := entry.Summary()
	if entry.Status == record.StatusSubmitting {
		summary = pendingStyle.Render(summary + " (saving)")
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		timeStyle.Render(relativeTime(entry.Timestamp, now)),
		typeStyle.Render(entry.LogType.Label()),
		summary,
		sourceStyle.Render(" · "+string(entry.Source)),
	)
}

func renderConfirmation(entry record.Record) string {
	return okStyle.Render("Logged") + " " + entry.LogType.Label() + ": " + entry.Summary() +
		sourceStyle.Render(fmt.Sprintf(" (%s at %s)", entry.ID, entry.Timestamp.Local().Format("15:04")))
}

func renderWarning(warning normalize.Warning) string {
	message := warning.Message
	if message == "" {
		message = string(warning.Code)
	}
	if warning.Field != "" {
		message = warning.Field + ": " + message
	}
	return warnStyle.Render("warning: ") + message
}

func renderMedications(medications []record.Medication) string {
	if len(medications) == 0 {
		return emptyStyle.Render("No medications configured.")
	}
	rows := make([]string, 0, len(medications))
	for _, medication := range medications {
		line := lipgloss.NewStyle().Width(28).Render(medication.ID) + medication.Name
		if strings.TrimSpace(medication.Dose) != "" {
			line += sourceStyle.Render(" " + medication.Dose)
		}
		rows = append(rows, line)
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func relativeTime(at time.Time, now time.Time) string {
	elapsed := now.Sub(at)
	switch {
	case elapsed < time.Minute:
		return "just now"
	case elapsed < time.Hour:
		return fmt.Sprintf("%dm ago", int(elapsed.Minutes()))
	case elapsed < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(elapsed.Hours()))
	default:
		return at.Local().Format("Jan 2 15:04")
	}
}
