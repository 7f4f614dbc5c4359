package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"remindo/backend"
	"remindo/internal/cli/prompt"
	"remindo/internal/service"
	"remindo/internal/utils"
)

// farFuture is the open upper bound for due date ranges.
var farFuture = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

// withApp opens the app for the duration of fn.
func (e *env) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error, opts ...appOption) (err error) {
	ctx := cmd.Context()
	a, err := e.openApp(ctx, opts...)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, a.close()) }()
	return fn(ctx, a)
}

type taskJSON struct {
	backend.Task
	Overdue bool `json:"overdue"`
}

type listResponse struct {
	Tasks          []taskJSON `json:"tasks"`
	Count          int        `json:"count"`
	StoreAvailable bool       `json:"store_available"`
	Result         string     `json:"result"`
}

type actionResponse struct {
	Action         string   `json:"action"`
	Task           taskJSON `json:"task"`
	StoreAvailable bool     `json:"store_available"`
	Result         string   `json:"result"`
}

func (e *env) toJSON(t backend.Task) taskJSON {
	return taskJSON{Task: t, Overdue: t.IsOverdue(e.now())}
}

// reportAction prints the outcome of a mutation.
func (e *env) reportAction(a *app, action, verb string, t backend.Task) error {
	if e.json {
		return e.writeJSON(actionResponse{
			Action:         action,
			Task:           e.toJSON(t),
			StoreAvailable: a.svc.StoreAvailable(),
			Result:         ResultActionCompleted,
		})
	}
	_, _ = fmt.Fprintf(e.stdout, "%s task #%d: %s\n", verb, t.ID, t.Title)
	if t.DueDate != nil && !t.Completed {
		_, _ = fmt.Fprintf(e.stdout, "Due: %s\n", t.FormattedDueDate())
	}
	if !a.svc.StoreAvailable() {
		_, _ = fmt.Fprintln(e.stdout, "(kept in memory only)")
	}
	e.resultCode(ResultActionCompleted)
	return nil
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(arg, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, utils.ErrInvalidTaskID(arg)
	}
	return id, nil
}

// resolveTask finds the task named by args, or asks the user to pick one.
func (e *env) resolveTask(ctx context.Context, a *app, args []string, action string) (backend.Task, error) {
	if len(args) > 0 {
		id, err := parseID(args[0])
		if err != nil {
			return backend.Task{}, err
		}
		t, ok := a.svc.FindByID(ctx, id)
		if !ok {
			return backend.Task{}, utils.ErrTaskNotFound(id)
		}
		return t, nil
	}

	selector := &prompt.TaskSelector{
		Tasks:    prompt.FilterTasksByAction(a.svc.AllTasks().Tasks(), action),
		Prompt:   "Select a task:",
		Reader:   e.stdin(),
		Writer:   e.stdout,
		NoPrompt: e.cfg.NoPrompt,
	}
	t, err := selector.Run()
	if errors.Is(err, prompt.ErrNoPromptMode) {
		return backend.Task{}, utils.WrapWithSuggestion(errors.New("task id required"), "Pass the task id, e.g. 'remindo "+action+" 3'")
	}
	if err != nil {
		return backend.Task{}, err
	}
	return *t, nil
}

func newAddCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Add a task",
		Long:  "Add a task. Without a title an interactive form asks for the fields.",
		RunE: func(cmd *cobra.Command, args []string) error {
			desc, _ := cmd.Flags().GetString("desc")
			priorityFlag, _ := cmd.Flags().GetString("priority")
			dueFlag, _ := cmd.Flags().GetString("due")

			var task *backend.Task
			if title := strings.TrimSpace(strings.Join(args, " ")); title != "" {
				priority, err := utils.ValidatePriority(priorityFlag)
				if err != nil {
					return err
				}
				due, err := utils.ParseDateFlagAt(dueFlag, e.now())
				if err != nil {
					return err
				}
				task = backend.NewTask(title, desc, priority, due)
			} else {
				fields, err := e.askTask(cmd.Context())
				if err != nil {
					return err
				}
				task = fields.Task()
			}

			return e.withApp(cmd, func(ctx context.Context, a *app) error {
				created, err := a.svc.Create(ctx, task)
				if err != nil {
					return utils.ErrInvalidField(err)
				}
				return e.reportAction(a, "add", "Added", created)
			})
		},
	}
	cmd.Flags().StringP("desc", "d", "", "Task description")
	cmd.Flags().StringP("priority", "p", "medium", "Priority: low, medium or high")
	cmd.Flags().String("due", "", "Due date: 2026-01-31 17:00, tomorrow 9am, +2h, in 10 minutes")
	return cmd
}

// askTask collects the fields of a new task interactively.
func (e *env) askTask(ctx context.Context) (*prompt.AddFields, error) {
	if e.cfg.NoPrompt {
		return nil, utils.WrapWithSuggestion(errors.New("task title required"), "Pass the title, e.g. 'remindo add \"Pay rent\" --due tomorrow'")
	}
	if e.interactive() {
		form := &prompt.AddForm{Input: e.stdin(), Output: e.stdout, Now: e.now}
		return form.Run(ctx)
	}
	adder := &prompt.InteractiveAdder{Reader: e.stdin(), Writer: e.stdout, Now: e.now}
	return adder.Run()
}

type listFilter struct {
	completed, pending, overdue bool
	priority                    string
	search                      string
	dueFrom, dueTo              string
}

func newListCmd(e *env) *cobra.Command {
	var f listFilter
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tasks",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd, func(ctx context.Context, a *app) error {
				tasks, err := e.queryTasks(ctx, a.svc, f)
				if err != nil {
					return err
				}
				return e.printTasks(a, tasks)
			})
		},
	}
	cmd.Flags().BoolVar(&f.completed, "completed", false, "Only completed tasks")
	cmd.Flags().BoolVar(&f.pending, "pending", false, "Only open tasks")
	cmd.Flags().BoolVar(&f.overdue, "overdue", false, "Only open tasks past their due date")
	cmd.Flags().StringVarP(&f.priority, "priority", "p", "", "Only tasks with this priority")
	cmd.Flags().StringVarP(&f.search, "search", "s", "", "Only tasks whose title or description contains text")
	cmd.Flags().StringVar(&f.dueFrom, "due-from", "", "Only tasks due at or after this date")
	cmd.Flags().StringVar(&f.dueTo, "due-to", "", "Only tasks due at or before this date")
	cmd.MarkFlagsMutuallyExclusive("completed", "pending")
	return cmd
}

// queryTasks runs the most selective service query, then applies the
// remaining filters in memory.
func (e *env) queryTasks(ctx context.Context, svc *service.Service, f listFilter) ([]backend.Task, error) {
	now := e.now()

	var keep []func(*backend.Task) bool
	var priority backend.Priority
	if f.priority != "" {
		p, err := utils.ValidatePriority(f.priority)
		if err != nil {
			return nil, err
		}
		priority = p
		keep = append(keep, func(t *backend.Task) bool { return t.Priority == p })
	}

	var start, end time.Time
	ranged := f.dueFrom != "" || f.dueTo != ""
	if ranged {
		from, err := utils.ParseDateFlagAt(f.dueFrom, now)
		if err != nil {
			return nil, err
		}
		to, err := utils.ParseDateFlagAt(f.dueTo, now)
		if err != nil {
			return nil, err
		}
		if err := utils.ValidateDateRange(from, to); err != nil {
			return nil, err
		}
		end = farFuture
		if from != nil {
			start = *from
		}
		if to != nil {
			end = *to
		}
		keep = append(keep, func(t *backend.Task) bool { return backend.DueWithin(t, start, end) })
	}
	if f.search != "" {
		keep = append(keep, func(t *backend.Task) bool { return backend.MatchesText(t, f.search) })
	}
	if f.completed {
		keep = append(keep, func(t *backend.Task) bool { return t.Completed })
	}
	if f.pending {
		keep = append(keep, func(t *backend.Task) bool { return !t.Completed })
	}
	if f.overdue {
		keep = append(keep, func(t *backend.Task) bool { return t.IsOverdue(now) })
	}

	var tasks []backend.Task
	switch {
	case f.overdue:
		tasks = svc.Overdue(ctx)
	case ranged:
		tasks = svc.DueBetween(ctx, start, end)
	case f.priority != "":
		tasks = svc.ByPriority(ctx, priority)
	case f.search != "":
		tasks = svc.Search(ctx, f.search)
	case f.completed:
		tasks = svc.Completed(ctx)
	case f.pending:
		tasks = svc.Pending(ctx)
	default:
		tasks = svc.AllTasks().Tasks()
	}

	out := tasks[:0:0]
	for i := range tasks {
		ok := true
		for _, k := range keep {
			if !k(&tasks[i]) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, tasks[i])
		}
	}
	return out, nil
}

var (
	doneStyle    = lipgloss.NewStyle().Strikethrough(true).Faint(true)
	overdueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(backend.PriorityHigh.Color())).Bold(true)
)

func (e *env) printTasks(a *app, tasks []backend.Task) error {
	if e.json {
		out := make([]taskJSON, 0, len(tasks))
		for _, t := range tasks {
			out = append(out, e.toJSON(t))
		}
		return e.writeJSON(listResponse{
			Tasks:          out,
			Count:          len(out),
			StoreAvailable: a.svc.StoreAvailable(),
			Result:         ResultInfoOnly,
		})
	}

	if len(tasks) == 0 {
		_, _ = fmt.Fprintln(e.stdout, "No tasks")
		e.resultCode(ResultInfoOnly)
		return nil
	}

	now := e.now()
	for _, t := range tasks {
		_, _ = fmt.Fprintln(e.stdout, formatTask(t, now))
	}
	_, _ = fmt.Fprintf(e.stdout, "\n%d task(s)\n", len(tasks))
	e.resultCode(ResultInfoOnly)
	return nil
}

func formatTask(t backend.Task, now time.Time) string {
	box := "[ ]"
	title := t.Title
	if t.Completed {
		box = "[x]"
		title = doneStyle.Render(title)
	}
	label := lipgloss.NewStyle().
		Foreground(lipgloss.Color(t.Priority.Color())).
		Render(fmt.Sprintf("%-6s", t.Priority.Label()))

	line := fmt.Sprintf("%s #%-4d %s %s", box, t.ID, label, title)
	if t.DueDate != nil {
		due := "due " + t.FormattedDueDate()
		if t.IsOverdue(now) {
			due = overdueStyle.Render(due + " (overdue)")
		}
		line += "  " + due
	}
	return line
}

func newEditCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a task",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if !flags.Changed("title") && !flags.Changed("desc") && !flags.Changed("priority") &&
				!flags.Changed("due") && !flags.Changed("clear-due") {
				return utils.WrapWithSuggestion(errors.New("nothing to change"),
					"Use --title, --desc, --priority, --due or --clear-due")
			}

			return e.withApp(cmd, func(ctx context.Context, a *app) error {
				task, err := e.resolveTask(ctx, a, args, "edit")
				if err != nil {
					return err
				}

				if flags.Changed("title") {
					task.Title, _ = flags.GetString("title")
				}
				if flags.Changed("desc") {
					task.Description, _ = flags.GetString("desc")
				}
				if flags.Changed("priority") {
					s, _ := flags.GetString("priority")
					if task.Priority, err = utils.ValidatePriority(s); err != nil {
						return err
					}
				}
				if flags.Changed("due") {
					s, _ := flags.GetString("due")
					if task.DueDate, err = utils.ParseDateFlagAt(s, e.now()); err != nil {
						return err
					}
				}
				if clearDue, _ := flags.GetBool("clear-due"); clearDue {
					task.DueDate = nil
				}

				updated, err := a.svc.Update(ctx, &task)
				if err != nil {
					return utils.ErrInvalidField(err)
				}
				return e.reportAction(a, "edit", "Updated", updated)
			})
		},
	}
	cmd.Flags().String("title", "", "New title")
	cmd.Flags().StringP("desc", "d", "", "New description")
	cmd.Flags().StringP("priority", "p", "", "New priority: low, medium or high")
	cmd.Flags().String("due", "", "New due date")
	cmd.Flags().Bool("clear-due", false, "Remove the due date")
	cmd.MarkFlagsMutuallyExclusive("due", "clear-due")
	return cmd
}

func newDoneCmd(e *env, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <id>",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd, func(ctx context.Context, a *app) error {
				task, err := e.resolveTask(ctx, a, args, action)
				if err != nil {
					return err
				}

				verb := "Completed"
				if action == "done" {
					a.svc.CompleteTask(ctx, task.ID)
				} else {
					verb = "Reopened"
					a.svc.ReopenTask(ctx, task.ID)
				}
				updated, _ := a.svc.FindByID(ctx, task.ID)
				return e.reportAction(a, action, verb, updated)
			})
		},
	}
}

func newRmCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			return e.withApp(cmd, func(ctx context.Context, a *app) error {
				task, err := e.resolveTask(ctx, a, args, "rm")
				if err != nil {
					return err
				}

				if !force && !e.cfg.NoPrompt {
					question := fmt.Sprintf("Delete task #%d %q?", task.ID, task.Title)
					if !utils.PromptYesNoWithReader(question, e.stdin(), e.stdout) {
						_, _ = fmt.Fprintln(e.stdout, "Cancelled")
						return nil
					}
				}

				if !a.svc.DeleteByID(ctx, task.ID) {
					return utils.ErrTaskNotFound(task.ID)
				}
				return e.reportAction(a, "rm", "Deleted", task)
			})
		},
	}
	cmd.Flags().BoolP("force", "f", false, "Do not ask for confirmation")
	return cmd
}

func newStatsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show task counts and store availability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd, func(ctx context.Context, a *app) error {
				stats := a.svc.Stats(ctx)
				if e.json {
					return e.writeJSON(struct {
						service.Stats
						Result string `json:"result"`
					}{stats, ResultInfoOnly})
				}

				store := "available"
				if !stats.StoreAvailable {
					store = "unavailable (memory-only)"
				}
				_, _ = fmt.Fprintf(e.stdout, "Total:      %d\n", stats.Total)
				_, _ = fmt.Fprintf(e.stdout, "Completed:  %d\n", stats.Completed)
				_, _ = fmt.Fprintf(e.stdout, "Pending:    %d\n", stats.Pending)
				_, _ = fmt.Fprintf(e.stdout, "Overdue:    %d\n", stats.Overdue)
				_, _ = fmt.Fprintf(e.stdout, "Store:      %s\n", store)
				if stats.OfflineSince != nil {
					_, _ = fmt.Fprintf(e.stdout, "Offline:    since %s\n", stats.OfflineSince.Format(time.RFC3339))
				}
				if stats.StoreError != "" {
					_, _ = fmt.Fprintf(e.stdout, "Error:      %s\n", stats.StoreError)
				}
				e.resultCode(ResultInfoOnly)
				return nil
			})
		},
	}
}
