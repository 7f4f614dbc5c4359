// Package tui provides a terminal user interface for task management.
package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"remindo/backend"
	"remindo/internal/cache"
	"remindo/internal/reminder"
	"remindo/internal/utils"
)

// Service is the subset of the task service used by the TUI.
type Service interface {
	AllTasks() cache.View
	Create(ctx context.Context, task *backend.Task) (backend.Task, error)
	Update(ctx context.Context, task *backend.Task) (backend.Task, error)
	DeleteByID(ctx context.Context, id int64) bool
	CompleteTask(ctx context.Context, id int64) bool
	ReopenTask(ctx context.Context, id int64) bool
	StoreAvailable() bool
}

// Mode indicates the current input mode
type Mode int

const (
	ModeNormal Mode = iota
	ModeAdd
	ModeEdit
	ModeDue
	ModeFilter
	ModeHelp
	ModeConfirmDelete
)

// RefreshInterval is how often the view polls the cache for changes made
// outside the TUI, such as reminder responses or a database reload.
const RefreshInterval = time.Second

// Model represents the TUI state
type Model struct {
	svc  Service
	ctx  context.Context
	now  func() time.Time
	view cache.View

	// Data
	tasks       []backend.Task
	version     uint64
	filteredIdx []int // indices into tasks slice for filtered view

	cursor int

	// Mode and input
	mode      Mode
	textInput textinput.Model
	filter    string
	status    string
	statusErr bool

	// Reminders waiting for an answer, oldest first.
	prompts []prompt

	// UI dimensions
	width  int
	height int

	// Styles
	listPaneStyle   lipgloss.Style
	detailPaneStyle lipgloss.Style
	selectedStyle   lipgloss.Style
	completedStyle  lipgloss.Style
	overdueStyle    lipgloss.Style
	helpStyle       lipgloss.Style
	dialogStyle     lipgloss.Style
	reminderStyle   lipgloss.Style
	statusBarStyle  lipgloss.Style
	offlineStyle    lipgloss.Style
	errorStyle      lipgloss.Style
}

type prompt struct {
	reminder reminder.Reminder
	reply    chan<- reminder.Response
}

// Message types
type refreshTickMsg struct{}

type reminderMsg struct {
	reminder reminder.Reminder
	reply    chan<- reminder.Response
}

type reminderClosedMsg struct {
	id string
}

// Option configures a Model.
type Option func(*Model)

// WithContext sets the context passed to service calls.
func WithContext(ctx context.Context) Option {
	return func(m *Model) { m.ctx = ctx }
}

// WithClock overrides the clock used for overdue highlighting and relative
// due dates.
func WithClock(now func() time.Time) Option {
	return func(m *Model) { m.now = now }
}

// New creates a new TUI model
func New(svc Service, opts ...Option) *Model {
	ti := textinput.New()
	ti.Placeholder = "Enter text..."
	ti.CharLimit = backend.MaxTitleLength

	m := &Model{
		svc:       svc,
		ctx:       context.Background(),
		now:       time.Now,
		view:      svc.AllTasks(),
		textInput: ti,
		mode:      ModeNormal,
		listPaneStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
		detailPaneStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
		selectedStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")),
		completedStyle: lipgloss.NewStyle().
			Strikethrough(true).
			Foreground(lipgloss.Color("240")),
		overdueStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color(backend.PriorityHigh.Color())),
		helpStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		dialogStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2),
		reminderStyle: lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color(backend.PriorityMedium.Color())).
			Padding(1, 2),
		statusBarStyle: lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1),
		offlineStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(backend.PriorityMedium.Color())),
		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color(backend.PriorityHigh.Color())),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.reload()
	return m
}

// Init initializes the TUI
func (m *Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(RefreshInterval, func(time.Time) tea.Msg { return refreshTickMsg{} })
}

// reload copies the cache into the model, keeping the cursor on the same
// task when it still exists.
func (m *Model) reload() {
	var selected int64
	if t, ok := m.selected(); ok {
		selected = t.ID
	}
	m.version = m.view.Version()
	m.tasks = m.view.Tasks()
	m.applyFilter()
	for i, idx := range m.filteredIdx {
		if m.tasks[idx].ID == selected {
			m.cursor = i
			break
		}
	}
}

func (m *Model) selected() (backend.Task, bool) {
	if m.cursor < 0 || m.cursor >= len(m.filteredIdx) {
		return backend.Task{}, false
	}
	return m.tasks[m.filteredIdx[m.cursor]], true
}

func (m *Model) setStatus(msg string) {
	m.status = msg
	m.statusErr = false
}

func (m *Model) setError(err error) {
	var verr *backend.ValidationError
	if errors.As(err, &verr) && len(verr.Fields) > 0 {
		m.status = verr.Fields[0].Message()
	} else {
		m.status = err.Error()
	}
	m.statusErr = true
}

func (m *Model) create(title string) {
	task := backend.NewTask(title, "", backend.PriorityMedium, nil)
	created, err := m.svc.Create(m.ctx, task)
	if err != nil {
		m.setError(err)
		return
	}
	m.setStatus("Added task #" + itoa(created.ID))
	m.reload()
	for i, idx := range m.filteredIdx {
		if m.tasks[idx].ID == created.ID {
			m.cursor = i
		}
	}
}

func (m *Model) save(task backend.Task) {
	if _, err := m.svc.Update(m.ctx, &task); err != nil {
		m.setError(err)
		return
	}
	m.reload()
}

func (m *Model) toggle() {
	task, ok := m.selected()
	if !ok {
		return
	}
	if task.Completed {
		m.svc.ReopenTask(m.ctx, task.ID)
	} else {
		m.svc.CompleteTask(m.ctx, task.ID)
	}
	m.reload()
}

func (m *Model) cyclePriority() {
	task, ok := m.selected()
	if !ok {
		return
	}
	switch task.Priority {
	case backend.PriorityLow:
		task.Priority = backend.PriorityMedium
	case backend.PriorityMedium:
		task.Priority = backend.PriorityHigh
	default:
		task.Priority = backend.PriorityLow
	}
	m.save(task)
}

func (m *Model) startInput(mode Mode, placeholder, value string) tea.Cmd {
	m.mode = mode
	m.textInput.Reset()
	m.textInput.Placeholder = placeholder
	m.textInput.SetValue(value)
	m.textInput.Focus()
	return textinput.Blink
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case refreshTickMsg:
		if m.view.Version() != m.version {
			m.reload()
		}
		return m, tick()

	case reminderMsg:
		m.prompts = append(m.prompts, prompt(msg))
		return m, nil

	case reminderClosedMsg:
		for i, p := range m.prompts {
			if p.reminder.ID == msg.id {
				m.prompts = append(m.prompts[:i], m.prompts[i+1:]...)
				break
			}
		}
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.dismissAll()
			return m, tea.Quit
		}
		// The reminder dialog is modal.
		if len(m.prompts) > 0 {
			return m.handleReminder(msg)
		}

		switch m.mode {
		case ModeAdd, ModeEdit, ModeDue, ModeFilter:
			return m.handleInput(msg)
		case ModeHelp:
			return m.handleHelpMode(msg)
		case ModeConfirmDelete:
			return m.handleConfirmDeleteMode(msg)
		}

		return m.handleNormal(msg)
	}

	if m.mode == ModeAdd || m.mode == ModeEdit || m.mode == ModeDue || m.mode == ModeFilter {
		m.textInput, cmd = m.textInput.Update(msg)
	}
	return m, cmd
}

func (m *Model) handleNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		m.dismissAll()
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.filteredIdx)-1 {
			m.cursor++
		}

	case "a":
		return m, m.startInput(ModeAdd, "New task title...", "")

	case "e":
		if task, ok := m.selected(); ok {
			return m, m.startInput(ModeEdit, "Title", task.Title)
		}

	case "t":
		if task, ok := m.selected(); ok {
			value := ""
			if task.DueDate != nil {
				value = task.DueDate.Local().Format("2006-01-02 15:04")
			}
			return m, m.startInput(ModeDue, "tomorrow 9am, +2h, 2026-01-31 17:00 (empty clears)", value)
		}

	case "p":
		m.cyclePriority()

	case "c", " ":
		m.toggle()

	case "d":
		if _, ok := m.selected(); ok {
			m.mode = ModeConfirmDelete
		}

	case "/":
		return m, m.startInput(ModeFilter, "Search...", m.filter)

	case "?":
		m.mode = ModeHelp
	}
	return m, nil
}

func (m *Model) handleInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg.Type {
	case tea.KeyEnter:
		mode := m.mode
		m.mode = ModeNormal
		m.submit(mode, m.textInput.Value())
		return m, nil

	case tea.KeyEsc:
		if m.mode == ModeFilter {
			m.filter = ""
			m.applyFilter()
		}
		m.mode = ModeNormal
		return m, nil
	}

	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m *Model) submit(mode Mode, value string) {
	switch mode {
	case ModeAdd:
		if value != "" {
			m.create(value)
		}

	case ModeEdit:
		if task, ok := m.selected(); ok {
			task.Title = value
			m.save(task)
		}

	case ModeDue:
		task, ok := m.selected()
		if !ok {
			return
		}
		due, err := utils.ParseDateFlagAt(value, m.now())
		if err != nil {
			m.setError(err)
			return
		}
		task.DueDate = due
		m.save(task)

	case ModeFilter:
		m.filter = value
		m.applyFilter()
	}
}

func (m *Model) handleHelpMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.mode = ModeNormal
	return m, nil
}

func (m *Model) handleConfirmDeleteMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		if task, ok := m.selected(); ok {
			if m.svc.DeleteByID(m.ctx, task.ID) {
				m.setStatus("Deleted task #" + itoa(task.ID))
			}
			m.reload()
			if m.cursor >= len(m.filteredIdx) && m.cursor > 0 {
				m.cursor--
			}
		}
		m.mode = ModeNormal

	case "n", "N", "esc":
		m.mode = ModeNormal
	}
	return m, nil
}

// handleReminder answers the oldest open reminder.
func (m *Model) handleReminder(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var resp reminder.Response
	switch msg.String() {
	case "c":
		resp = reminder.Response{Action: reminder.ActionComplete}
	case "s":
		resp = reminder.Response{Action: reminder.ActionSnooze}
	case "d", "esc", "enter":
		resp = reminder.Dismiss
	default:
		return m, nil
	}

	p := m.prompts[0]
	m.prompts = m.prompts[1:]
	p.reply <- resp
	m.setStatus(resp.Action.String() + ": " + p.reminder.Title)
	return m, nil
}

// dismissAll answers every open reminder so their deliveries return.
func (m *Model) dismissAll() {
	for _, p := range m.prompts {
		p.reply <- reminder.Dismiss
	}
	m.prompts = nil
}

func (m *Model) applyFilter() {
	m.filteredIdx = m.filteredIdx[:0]
	for i := range m.tasks {
		if backend.MatchesText(&m.tasks[i], m.filter) {
			m.filteredIdx = append(m.filteredIdx, i)
		}
	}
	if m.cursor >= len(m.filteredIdx) {
		m.cursor = 0
	}
}

// Mode returns the current input mode.
func (m *Model) Mode() Mode {
	return m.mode
}

// OpenReminders returns the number of reminders awaiting an answer.
func (m *Model) OpenReminders() int {
	return len(m.prompts)
}

// Status returns the last status bar message.
func (m *Model) Status() string {
	return m.status
}
