package main

import (
	"fmt"
	"strings"
	"time"

	"lifebook-backend/internal/reminder/domain"
	"lifebook-backend/pkg/currency"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("81")).
			Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	incomeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("114"))

	expenseStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("114")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("222")).
			Bold(true)
)

func renderReminder(r domain.Reminder) string {
	at := "cả ngày"
	if r.ReminderTime != nil {
		at = *r.ReminderTime
	}

	line := fmt.Sprintf("%-10s %-8s %s", r.Date(), at, r.Title)
	if r.IsFinancial() {
		amount := currency.FormatVND(*r.Amount)
		if r.IsIncome() {
			line += " " + incomeStyle.Render("+"+amount)
		} else {
			line += " " + expenseStyle.Render("-"+amount)
		}
	}
	if !r.EnableNotification || r.Status != domain.StatusPending {
		line += " " + dimStyle.Render(fmt.Sprintf("(%s, notify=%v)", r.Status, r.EnableNotification))
	}
	return line
}

func renderList(title string, reminders []domain.Reminder) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(title))
	b.WriteString("\n")

	if len(reminders) == 0 {
		b.WriteString(dimStyle.Render("Không có nhắc nhở nào"))
		return boxStyle.Render(b.String())
	}

	lines := make([]string, len(reminders))
	for i, r := range reminders {
		lines[i] = renderReminder(r)
	}
	b.WriteString(strings.Join(lines, "\n"))
	return boxStyle.Render(b.String())
}

func renderSnapshot(snap domain.Snapshot) string {
	return renderList(fmt.Sprintf("Snapshot v%d (%d nhắc nhở)", snap.Version, len(snap.Reminders)), snap.Reminders)
}

func renderDue(due []domain.Reminder, now time.Time) string {
	return renderList(fmt.Sprintf("Đến hạn lúc %s", now.Format("2006-01-02 15:04")), due)
}

// parseAt returns now with its clock replaced by "HH:MM".
func parseAt(now time.Time, hhmm string) (time.Time, error) {
	c, err := domain.ParseClock(hhmm)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(now.Year(), now.Month(), now.Day(), c.Hour, c.Minute, 0, 0, now.Location()), nil
}
