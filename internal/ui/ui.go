package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"smarttodo/internal/config"
	"smarttodo/internal/store"
	"smarttodo/internal/task"
)

// formFields is the input order of the create drawer and the edit form.
var formFields = []store.Field{store.FieldTitle, store.FieldDescription, store.FieldDeadline}

var formLabels = map[store.Field]string{
	store.FieldTitle:       "Title",
	store.FieldDescription: "Description",
	store.FieldDeadline:    "Deadline",
}

type actionDoneMsg struct {
	op  string
	err error
}

// tickMsg only forces relative-time labels to be recomputed.
type tickMsg time.Time

type Model struct {
	ctx   context.Context
	store *store.Store
	cfg   config.Config
	now   func() time.Time

	state  store.State
	tab    task.Tab
	cursor int
	busy   int

	drawerInputs []textinput.Model
	editInputs   []textinput.Model
	focus        int

	spinner    spinner.Model
	status     string
	confirmDel bool
	pendingDel *task.Task
}

func NewModel(ctx context.Context, st *store.Store, cfg config.Config, now func() time.Time) Model {
	if now == nil {
		now = time.Now
	}
	s := spinner.New()
	s.Spinner = spinner.Dot

	tab, _ := task.ParseTab(cfg.DefaultTab)
	return Model{
		ctx:          ctx,
		store:        st,
		cfg:          cfg,
		now:          now,
		state:        st.Snapshot(),
		tab:          tab,
		busy:         1, // the fetch started by Init
		drawerInputs: newInputs(),
		editInputs:   newInputs(),
		spinner:      s,
		status:       fmt.Sprintf("Press '%s' to add, '%s' to switch tabs.", cfg.Keys.Add, cfg.Keys.NextTab),
	}
}

func newInputs() []textinput.Model {
	inputs := make([]textinput.Model, len(formFields))
	for i, f := range formFields {
		ti := textinput.New()
		ti.Placeholder = formLabels[f]
		ti.CharLimit = 256
		ti.Width = 40
		if f == store.FieldDeadline {
			ti.Placeholder = "YYYY-MM-DDTHH:MM"
			ti.CharLimit = 32
		}
		inputs[i] = ti
	}
	return inputs
}

func Run(ctx context.Context, st *store.Store, cfg config.Config) error {
	program := tea.NewProgram(NewModel(ctx, st, cfg, time.Now), tea.WithContext(ctx))
	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch(), m.tick())
}

func (m Model) tick() tea.Cmd {
	d := m.cfg.TickInterval.Std()
	if d <= 0 {
		d = time.Minute
	}
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// run executes a store action off the UI goroutine.
func (m *Model) run(op string, fn func(ctx context.Context) error) tea.Cmd {
	m.busy++
	ctx := m.ctx
	return func() tea.Msg {
		return actionDoneMsg{op: op, err: fn(ctx)}
	}
}

func (m Model) fetch() tea.Cmd {
	st := m.store
	ctx := m.ctx
	return func() tea.Msg {
		return actionDoneMsg{op: "refresh", err: st.FetchTasks(ctx)}
	}
}

func (m Model) loading() bool {
	return m.busy > 0 || m.state.Loading
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.confirmDel {
			return m.updateDeleteConfirm(msg.String())
		}
		if m.state.DrawerOpen {
			return m.updateDrawer(msg)
		}
		if m.state.EditingTaskID != "" {
			return m.updateEdit(msg)
		}
		return m.updateList(msg.String())
	case tea.WindowSizeMsg:
		w := msg.Width - 20
		if w < 20 {
			w = 20
		}
		for i := range m.drawerInputs {
			m.drawerInputs[i].Width = w
			m.editInputs[i].Width = w
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tickMsg:
		m.state = m.store.Snapshot()
		m.cursor = clampCursor(m.cursor, len(m.visible()))
		return m, m.tick()
	case actionDoneMsg:
		return m.handleDone(msg)
	}
	return m, nil
}

func (m Model) handleDone(msg actionDoneMsg) (tea.Model, tea.Cmd) {
	if m.busy > 0 {
		m.busy--
	}
	m.state = m.store.Snapshot()
	m.cursor = clampCursor(m.cursor, len(m.visible()))

	var verr *store.ValidationError
	switch {
	case errors.As(msg.err, &verr) && msg.op == "toggle":
		m.status = "Failed to update task status."
	case errors.As(msg.err, &verr):
		m.status = "Fix the highlighted fields"
	case msg.err != nil:
		m.status = msg.err.Error()
	default:
		m.status = doneMessages[msg.op]
		if msg.op == "add" {
			m.blurAll(m.drawerInputs)
		}
		if msg.op == "save" {
			m.blurAll(m.editInputs)
		}
	}
	return m, nil
}

var doneMessages = map[string]string{
	"refresh": "Tasks loaded",
	"add":     "Added task",
	"save":    "Saved task",
	"toggle":  "Toggled task",
	"delete":  "Deleted task",
}

func (m Model) updateList(key string) (tea.Model, tea.Cmd) {
	visible := m.visible()
	switch key {
	case "ctrl+c", m.cfg.Keys.Quit:
		return m, tea.Quit
	case m.cfg.Keys.Down, "down":
		m.cursor = clampCursor(m.cursor+1, len(visible))
	case m.cfg.Keys.Up, "up":
		m.cursor = clampCursor(m.cursor-1, len(visible))
	case m.cfg.Keys.NextTab:
		m.tab = m.tab.Next()
		m.cursor = 0
	case "1", "2", "3":
		m.tab = task.Tabs[int(key[0]-'1')]
		m.cursor = 0
	case m.cfg.Keys.Refresh:
		cmd := m.run("refresh", m.store.FetchTasks)
		return m, cmd
	case m.cfg.Keys.Add:
		m.store.OpenCreateDrawer()
		m.state = m.store.Snapshot()
		m.drawerInputs = newInputs()
		m.focus = 0
		m.status = "New task: tab to switch fields, enter to create, esc to close"
		return m, m.drawerInputs[0].Focus()
	case m.cfg.Keys.Toggle:
		if len(visible) == 0 {
			return m, nil
		}
		t := visible[m.cursor]
		cmd := m.run("toggle", func(ctx context.Context) error {
			return m.store.ToggleComplete(ctx, t)
		})
		return m, cmd
	case m.cfg.Keys.Delete:
		if len(visible) == 0 {
			return m, nil
		}
		t := visible[m.cursor]
		m.confirmDel = true
		m.pendingDel = &t
		m.status = fmt.Sprintf("Delete \"%s\"? y/n", t.Title)
	case m.cfg.Keys.Edit:
		if len(visible) == 0 {
			m.status = "No tasks to edit"
			return m, nil
		}
		m.store.StartEdit(visible[m.cursor])
		m.state = m.store.Snapshot()
		m.editInputs = newInputs()
		for i, f := range formFields {
			m.editInputs[i].SetValue(m.state.EditDraft.Value(f))
		}
		m.focus = 0
		m.status = "Editing: tab to switch fields, enter to save, esc to cancel"
		return m, m.editInputs[0].Focus()
	}
	return m, nil
}

func (m Model) updateDrawer(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key := msg.String(); key {
	case m.cfg.Keys.Cancel, "esc":
		m.store.CloseCreateDrawer()
		m.state = m.store.Snapshot()
		m.blurAll(m.drawerInputs)
		m.status = "Cancelled"
		return m, nil
	case m.cfg.Keys.NextField, "shift+tab":
		cmd := m.cycleFocus(m.drawerInputs, key == "shift+tab")
		return m, cmd
	case m.cfg.Keys.Confirm:
		if m.loading() {
			return m, nil
		}
		for i, f := range formFields {
			m.store.SetNewTaskField(f, m.drawerInputs[i].Value())
		}
		cmd := m.run("add", m.store.SubmitNewTask)
		return m, cmd
	default:
		var cmd tea.Cmd
		m.drawerInputs[m.focus], cmd = m.drawerInputs[m.focus].Update(msg)
		m.store.SetNewTaskField(formFields[m.focus], m.drawerInputs[m.focus].Value())
		m.state = m.store.Snapshot()
		return m, cmd
	}
}

func (m Model) updateEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key := msg.String(); key {
	case m.cfg.Keys.Cancel, "esc":
		m.store.CancelEdit()
		m.state = m.store.Snapshot()
		m.blurAll(m.editInputs)
		m.status = "Edit cancelled"
		return m, nil
	case m.cfg.Keys.NextField, "shift+tab":
		cmd := m.cycleFocus(m.editInputs, key == "shift+tab")
		return m, cmd
	case m.cfg.Keys.Confirm:
		if m.loading() {
			return m, nil
		}
		for i, f := range formFields {
			m.store.SetEditField(f, m.editInputs[i].Value())
		}
		cmd := m.run("save", m.store.SaveEdit)
		return m, cmd
	default:
		var cmd tea.Cmd
		m.editInputs[m.focus], cmd = m.editInputs[m.focus].Update(msg)
		m.store.SetEditField(formFields[m.focus], m.editInputs[m.focus].Value())
		m.state = m.store.Snapshot()
		return m, cmd
	}
}

func (m Model) updateDeleteConfirm(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "n", "N", "esc":
		m.status = "Delete cancelled"
		m.confirmDel = false
		m.pendingDel = nil
		return m, nil
	case "y", "Y":
		m.confirmDel = false
		if m.pendingDel == nil {
			m.status = "Nothing to delete"
			return m, nil
		}
		id := m.pendingDel.ID
		m.pendingDel = nil
		cmd := m.run("delete", func(ctx context.Context) error {
			return m.store.RemoveTask(ctx, id)
		})
		return m, cmd
	default:
		return m, nil
	}
}

func (m *Model) cycleFocus(inputs []textinput.Model, back bool) tea.Cmd {
	inputs[m.focus].Blur()
	if back {
		m.focus = wrapIndex(m.focus-1, len(inputs))
	} else {
		m.focus = wrapIndex(m.focus+1, len(inputs))
	}
	return inputs[m.focus].Focus()
}

func (m *Model) blurAll(inputs []textinput.Model) {
	for i := range inputs {
		inputs[i].Blur()
	}
	m.focus = 0
}

func (m Model) visible() []task.Task {
	return task.Filter(m.state.Tasks, m.tab, m.now())
}

func (m Model) View() string {
	var b strings.Builder
	now := m.now()

	b.WriteString(titleStyle.Render("Smart Todo List"))
	if m.loading() {
		b.WriteString(" " + m.spinner.View())
	}
	b.WriteString("\n\n")
	b.WriteString(m.renderTabs(now))
	b.WriteString("\n\n")

	if m.state.Err != "" {
		b.WriteString(bannerStyle.Render(m.state.Err))
		b.WriteString("\n\n")
	}

	visible := task.Filter(m.state.Tasks, m.tab, now)
	switch {
	case len(visible) == 0 && m.loading():
		b.WriteString(dimStyle.Render("Loading tasks..."))
		b.WriteString("\n")
	case len(visible) == 0:
		b.WriteString(dimStyle.Render(fmt.Sprintf("No %s tasks.", strings.ToLower(m.tab.String()))))
		b.WriteString("\n")
	default:
		for i, t := range visible {
			b.WriteString(m.renderCard(i, t, now))
		}
	}

	if m.state.DrawerOpen {
		b.WriteString("\n")
		b.WriteString(m.renderDrawer())
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.status)
	b.WriteString("\n")
	b.WriteString(renderHelp(m.cfg.Keys))
	return b.String()
}

func (m Model) renderTabs(now time.Time) string {
	parts := make([]string, 0, len(task.Tabs))
	for _, tab := range task.Tabs {
		label := fmt.Sprintf("%s (%d)", tab, len(task.Filter(m.state.Tasks, tab, now)))
		if tab == m.tab {
			parts = append(parts, activeTabStyle.Render(label))
		} else {
			parts = append(parts, tabStyle.Render(label))
		}
	}
	return strings.Join(parts, "  ")
}

func (m Model) renderCard(i int, t task.Task, now time.Time) string {
	if t.ID == m.state.EditingTaskID {
		return editStyle.Render(m.renderForm("Edit task", m.editInputs, m.state.EditDraft)) + "\n"
	}
	var b strings.Builder
	cursor := " "
	if i == m.cursor && !m.state.DrawerOpen {
		cursor = ">"
	}
	checkbox := "[ ]"
	if t.IsCompleted {
		checkbox = "[x]"
	}
	b.WriteString(fmt.Sprintf("%s %s %s\n", cursor, checkbox, t.Title))
	if strings.TrimSpace(t.Description) != "" {
		b.WriteString("      " + dimStyle.Render(t.Description) + "\n")
	}
	deadline := t.Deadline
	if deadline == "" {
		deadline = "no deadline"
	}
	b.WriteString(fmt.Sprintf("      %s • %s\n", dimStyle.Render(deadline), renderStatus(task.Evaluate(t, now))))
	return b.String()
}

func (m Model) renderDrawer() string {
	return drawerStyle.Render(m.renderForm("Create new task", m.drawerInputs, m.state.NewDraft))
}

func (m Model) renderForm(heading string, inputs []textinput.Model, d store.Draft) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(heading))
	b.WriteString("\n")
	for i, f := range formFields {
		prefix := " "
		if i == m.focus {
			prefix = ">"
		}
		b.WriteString(fmt.Sprintf("%s %-12s %s", prefix, formLabels[f], inputs[i].View()))
		if msg := d.Error(f); msg != "" {
			b.WriteString("\n  " + fieldErrStyle.Render(msg))
		}
		if i < len(formFields)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func renderHelp(k config.Keymap) string {
	return fmt.Sprintf("%s/%s move • %s tabs • %s add • %s edit • %s toggle • %s delete • %s refresh • %s quit",
		k.Up, k.Down, k.NextTab, k.Add, k.Edit, keyLabel(k.Toggle), k.Delete, k.Refresh, k.Quit)
}

func keyLabel(k string) string {
	if k == " " {
		return "space"
	}
	return k
}

func wrapIndex(idx, n int) int {
	if n <= 0 {
		return 0
	}
	idx %= n
	if idx < 0 {
		idx += n
	}
	return idx
}

func clampCursor(cur, n int) int {
	if n <= 0 {
		return 0
	}
	if cur < 0 {
		return 0
	}
	if cur >= n {
		return n - 1
	}
	return cur
}
