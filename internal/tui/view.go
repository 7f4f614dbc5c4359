package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"remindo/backend"
	"remindo/internal/notification"
)

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

// View renders the TUI
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		m.width = 80
		m.height = 24
	}

	if len(m.prompts) > 0 {
		return m.renderReminderDialog(m.prompts[0])
	}

	switch m.mode {
	case ModeAdd:
		return m.renderInputDialog("Add New Task", "Enter: confirm  Esc: cancel")
	case ModeEdit:
		title := "Edit Task"
		if task, ok := m.selected(); ok {
			title = "Edit: " + task.Title
		}
		return m.renderInputDialog(title, "Enter: confirm  Esc: cancel")
	case ModeDue:
		return m.renderInputDialog("Due Date", "Enter: confirm  Esc: cancel")
	case ModeFilter:
		return m.renderInputDialog("Search/Filter Tasks", "Enter: filter  Esc: clear")
	case ModeHelp:
		return m.renderHelpDialog()
	case ModeConfirmDelete:
		return m.renderConfirmDeleteDialog()
	}

	listWidth := m.width * 3 / 5
	detailWidth := m.width - listWidth - 4

	listPane := m.listPaneStyle.Width(listWidth).Height(m.height - 4).Render(m.renderTaskPane(listWidth - 4))
	detailPane := m.detailPaneStyle.Width(detailWidth).Height(m.height - 4).Render(m.renderDetailPane())

	var b strings.Builder
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, listPane, detailPane))
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	return b.String()
}

func (m *Model) renderTaskPane(width int) string {
	var b strings.Builder
	b.WriteString("Tasks\n")
	b.WriteString(strings.Repeat("─", max(width, 1)))
	b.WriteString("\n")

	if len(m.filteredIdx) == 0 {
		b.WriteString("No tasks\n")
		return b.String()
	}

	now := m.now()
	for fi, idx := range m.filteredIdx {
		task := m.tasks[idx]

		cursor := " "
		if fi == m.cursor {
			cursor = ">"
		}
		status := "[ ]"
		if task.Completed {
			status = "[✓]"
		}
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color(task.Priority.Color())).Render("●")

		title := task.Title
		switch {
		case task.Completed:
			title = m.completedStyle.Render(title)
		case fi == m.cursor:
			title = m.selectedStyle.Render(title)
		case task.IsOverdue(now):
			title = m.overdueStyle.Render(title)
		}

		b.WriteString(cursor + " " + status + " " + dot + " " + title + "\n")
	}
	return b.String()
}

func (m *Model) renderDetailPane() string {
	task, ok := m.selected()
	if !ok {
		return "Details\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s\n\n", task.ID, task.Title)
	fmt.Fprintf(&b, "Priority: %s\n", lipgloss.NewStyle().
		Foreground(lipgloss.Color(task.Priority.Color())).
		Render(task.Priority.Label()))
	due := task.FormattedDueDate()
	if task.IsOverdue(m.now()) {
		due = m.overdueStyle.Render(due + " (overdue)")
	}
	fmt.Fprintf(&b, "Due:      %s\n", due)
	fmt.Fprintf(&b, "Created:  %s\n", task.FormattedCreatedAt())
	if task.Completed {
		b.WriteString("Status:   done\n")
	} else {
		b.WriteString("Status:   open\n")
	}
	if task.Description != "" {
		b.WriteString("\n" + task.Description + "\n")
	}
	return b.String()
}

func (m *Model) renderStatusBar() string {
	pending := 0
	for _, t := range m.tasks {
		if !t.Completed {
			pending++
		}
	}
	left := fmt.Sprintf("%d tasks, %d pending", len(m.tasks), pending)
	if !m.svc.StoreAvailable() {
		left += "  " + m.offlineStyle.Render("OFFLINE (memory only)")
	}
	if m.status != "" {
		status := m.status
		if m.statusErr {
			status = m.errorStyle.Render(status)
		}
		left += "  " + status
	}

	right := "q:quit  ?:help"
	if m.filter != "" {
		right = "Filter: " + m.filter + "  " + right
	}

	padding := m.width - lipgloss.Width(left) - len(right) - 2
	if padding < 1 {
		padding = 1
	}
	return m.statusBarStyle.Width(m.width).Render(left + strings.Repeat(" ", padding) + right)
}

func (m *Model) renderInputDialog(title, hint string) string {
	dialog := m.dialogStyle.Render(
		title + "\n\n" +
			m.textInput.View() + "\n\n" +
			m.helpStyle.Render(hint),
	)
	return m.centerDialog(dialog)
}

func (m *Model) renderReminderDialog(p prompt) string {
	r := p.reminder
	body := fmt.Sprintf("Reminder: %s\n\nDue %s (in %s)",
		r.Title,
		r.DueDate.Local().Format(backend.DisplayLayout),
		notification.HumanDuration(r.LeadTime))
	if r.Description != "" {
		body += "\n" + r.Description
	}
	if n := len(m.prompts) - 1; n > 0 {
		body += fmt.Sprintf("\n\n%d more waiting", n)
	}
	body += "\n\n" + m.helpStyle.Render("c: complete  s: snooze  d/Esc: dismiss")
	return m.centerDialog(m.reminderStyle.Render(body))
}

func (m *Model) renderHelpDialog() string {
	help := `Help - Key Bindings

Navigation:
  j/↓    Move down
  k/↑    Move up

Actions:
  a      Add new task
  e      Edit title
  t      Set or clear due date
  p      Cycle priority
  c      Toggle task completion
  d      Delete task (with confirm)
  /      Search/filter tasks

Reminders:
  c      Complete
  s      Snooze
  d      Dismiss

General:
  ?      Show this help
  q      Quit

Press any key to close`

	return m.centerDialog(m.dialogStyle.Render(help))
}

func (m *Model) renderConfirmDeleteDialog() string {
	title := "Delete selected task?"
	if task, ok := m.selected(); ok {
		title = "Delete \"" + task.Title + "\"?"
	}
	dialog := m.dialogStyle.Render(
		title + "\n\n" +
			m.helpStyle.Render("y: yes  n: no"),
	)
	return m.centerDialog(dialog)
}

func (m *Model) centerDialog(dialog string) string {
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, dialog)
}
