package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"bada/internal/config"
	"bada/internal/entity"
	"bada/internal/i18n"
)

// Backend is the data-access contract the screen needs. *crud.Manager
// satisfies it.
type Backend interface {
	Categories() ([]entity.Category, error)
	CreateCategory(name string) (entity.Category, error)
	CreateTask(name, categoryID string) (entity.Task, error)
	UpdateCategory(id string, p entity.CategoryPatch) error
	UpdateTask(id string, p entity.TaskPatch) error
	Delete(obj entity.Named) error
}

type mode int

const (
	modeList mode = iota
	modeInput
	modePick
	modeConfirm
)

type action int

const (
	actionCreate action = iota
	actionUpdate
	actionDelete
)

// row is one line of the list: a category header (task < 0) or a task.
type row struct {
	cat  int
	task int
}

// pending carries a multi-step dialog: prompt for a name, then (for tasks)
// pick a category, or confirm a deletion.
type pending struct {
	action action
	kind   entity.Kind
	target entity.Named
	name   string
	pick   int
}

// mutationMsg is delivered back on the UI goroutine once a store call made
// from a command has returned.
type mutationMsg struct {
	kind   entity.Kind
	status string
	focus  string
	err    error
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	doneStyle   = lipgloss.NewStyle().Faint(true).Strikethrough(true)
	cursorStyle = lipgloss.NewStyle().Bold(true)
	statusStyle = lipgloss.NewStyle().Italic(true)
	helpStyle   = lipgloss.NewStyle().Faint(true)
)

type Model struct {
	backend    Backend
	cfg        config.Config
	tr         *i18n.Bundle
	categories []entity.Category
	rows       []row
	cursor     int
	mode       mode
	input      textinput.Model
	status     string
	pending    *pending
}

func Run(backend Backend, cfg config.Config, tr *i18n.Bundle) error {
	m, err := NewModel(backend, cfg, tr)
	if err != nil {
		return err
	}
	program := tea.NewProgram(m)
	_, err = program.Run()
	return err
}

func NewModel(backend Backend, cfg config.Config, tr *i18n.Bundle) (Model, error) {
	ti := textinput.New()
	ti.CharLimit = 256
	ti.Width = 40

	m := Model{
		backend: backend,
		cfg:     cfg,
		tr:      tr,
		input:   ti,
		mode:    modeList,
		status:  tr.Tf("Main.ready", cfg.Keys.Add, cfg.Keys.AddCategory),
	}
	if err := m.reload(); err != nil {
		return m, err
	}
	return m, nil
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch m.mode {
		case modeInput:
			return m.updateInputMode(msg)
		case modePick:
			return m.updatePickMode(msg.String())
		case modeConfirm:
			return m.updateConfirmMode(msg.String())
		default:
			return m.updateListMode(msg.String())
		}
	case mutationMsg:
		return m.applyMutation(msg), nil
	case tea.WindowSizeMsg:
		m.input.Width = msg.Width - 10
	}
	return m, nil
}

func (m Model) updateListMode(key string) (tea.Model, tea.Cmd) {
	k := m.cfg.Keys
	switch key {
	case "ctrl+c", k.Quit:
		return m, tea.Quit
	case k.Down, "down":
		m.cursor = clampCursor(m.cursor+1, len(m.rows))
	case k.Up, "up":
		m.cursor = clampCursor(m.cursor-1, len(m.rows))
	case k.Add:
		if len(m.categories) == 0 {
			m.status = m.tr.T("Task.needsCategory")
			return m, nil
		}
		return m.startInput(&pending{action: actionCreate, kind: entity.KindTask, pick: m.currentCategory()})
	case k.AddCategory:
		return m.startInput(&pending{action: actionCreate, kind: entity.KindCategory})
	case k.Toggle:
		t := m.selectedTask()
		if t == nil {
			return m, nil
		}
		done := !t.Done
		id := t.ID
		state := m.tr.T("Task.pending")
		if done {
			state = m.tr.T("Task.done")
		}
		return m, m.mutate(entity.KindTask, m.tr.Tf("Task.toggled", state), func() (string, error) {
			return id, m.backend.UpdateTask(id, entity.TaskPatch{Done: &done})
		})
	case k.Edit, k.Confirm:
		target := m.selected()
		if target == nil {
			return m, nil
		}
		p := &pending{action: actionUpdate, kind: target.Kind(), target: target, pick: m.currentCategory()}
		return m.startInput(p)
	case k.Delete:
		target := m.selected()
		if target == nil {
			return m, nil
		}
		m.pending = &pending{action: actionDelete, kind: target.Kind(), target: target}
		m.mode = modeConfirm
		m.status = m.deletePrompt(target) + " " + m.tr.T("Common.confirmHint")
	}
	return m, nil
}

func (m Model) startInput(p *pending) (tea.Model, tea.Cmd) {
	m.pending = p
	m.mode = modeInput
	m.input.SetValue("")
	if p.target != nil {
		m.input.SetValue(p.target.DisplayName())
	}
	m.input.Placeholder = m.tr.KindTitle(p.kind, actionName(p.action))
	m.status = m.input.Placeholder
	cmd := m.input.Focus()
	return m, cmd
}

func (m Model) updateInputMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case m.cfg.Keys.Cancel, "esc":
		return m.cancel(), nil
	case m.cfg.Keys.Confirm, "enter":
		name := strings.TrimSpace(m.input.Value())
		if name == "" {
			m.status = m.tr.T("Common.emptyName")
			return m, nil
		}
		m.pending.name = name
		m.input.Blur()
		if m.pending.kind == entity.KindTask {
			m.mode = modePick
			m.status = m.pickTitle()
			return m, nil
		}
		return m.submit()
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
}

func (m Model) updatePickMode(key string) (tea.Model, tea.Cmd) {
	k := m.cfg.Keys
	switch key {
	case k.Cancel, "esc":
		return m.cancel(), nil
	case k.Down, "down":
		m.pending.pick = clampCursor(m.pending.pick+1, len(m.categories))
	case k.Up, "up":
		m.pending.pick = clampCursor(m.pending.pick-1, len(m.categories))
	case k.Confirm, "enter":
		return m.submit()
	}
	return m, nil
}

func (m Model) updateConfirmMode(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "y", "Y":
		target := m.pending.target
		status := m.tr.T(target.Kind().String() + ".deleted")
		m.pending = nil
		m.mode = modeList
		return m, m.mutate(target.Kind(), status, func() (string, error) {
			return "", m.backend.Delete(target)
		})
	case "n", "N", "esc", m.cfg.Keys.Cancel:
		return m.cancel(), nil
	}
	return m, nil
}

// submit turns the finished dialog into a store call.
func (m Model) submit() (tea.Model, tea.Cmd) {
	p := m.pending
	m.pending = nil
	m.mode = modeList
	name := p.name

	var categoryID string
	if p.kind == entity.KindTask {
		if len(m.categories) == 0 {
			m.status = m.tr.T("Task.needsCategory")
			return m, nil
		}
		categoryID = m.categories[clampCursor(p.pick, len(m.categories))].ID
	}

	switch {
	case p.action == actionCreate && p.kind == entity.KindCategory:
		return m, m.mutate(p.kind, m.tr.T("Category.created"), func() (string, error) {
			c, err := m.backend.CreateCategory(name)
			return c.ID, err
		})
	case p.action == actionCreate && p.kind == entity.KindTask:
		return m, m.mutate(p.kind, m.tr.T("Task.created"), func() (string, error) {
			t, err := m.backend.CreateTask(name, categoryID)
			return t.ID, err
		})
	case p.action == actionUpdate && p.kind == entity.KindCategory:
		id := p.target.Identity()
		return m, m.mutate(p.kind, m.tr.T("Category.updated"), func() (string, error) {
			return id, m.backend.UpdateCategory(id, entity.CategoryPatch{Name: &name})
		})
	case p.action == actionUpdate && p.kind == entity.KindTask:
		id := p.target.Identity()
		return m, m.mutate(p.kind, m.tr.T("Task.updated"), func() (string, error) {
			return id, m.backend.UpdateTask(id, entity.TaskPatch{Name: &name, CategoryID: &categoryID})
		})
	}
	return m, nil
}

// mutate runs fn off the UI goroutine; the result comes back as a
// mutationMsg and is applied in Update.
func (m Model) mutate(kind entity.Kind, status string, fn func() (string, error)) tea.Cmd {
	return func() tea.Msg {
		focus, err := fn()
		return mutationMsg{kind: kind, status: status, focus: focus, err: err}
	}
}

func (m Model) applyMutation(msg mutationMsg) Model {
	if msg.err != nil {
		m.status = m.tr.Tf("Common.saveFailed", m.tr.KindName(msg.kind), msg.err)
		return m
	}
	if err := m.reload(); err != nil {
		m.status = m.tr.Tf("Common.reloadFailed", err)
		return m
	}
	if msg.focus != "" {
		m.focus(msg.focus)
	}
	m.status = msg.status
	return m
}

func (m Model) cancel() Model {
	m.pending = nil
	m.mode = modeList
	m.input.SetValue("")
	m.input.Blur()
	m.status = m.tr.T("Common.cancelled")
	return m
}

func (m *Model) reload() error {
	categories, err := m.backend.Categories()
	if err != nil {
		return err
	}
	entity.SortCategories(categories)
	m.categories = categories
	m.rows = nil
	for ci, c := range categories {
		m.rows = append(m.rows, row{cat: ci, task: -1})
		for ti := range c.Tasks {
			m.rows = append(m.rows, row{cat: ci, task: ti})
		}
	}
	m.cursor = clampCursor(m.cursor, len(m.rows))
	return nil
}

func (m *Model) focus(id string) {
	for i, r := range m.rows {
		if n := m.named(r); n != nil && n.Identity() == id {
			m.cursor = i
			return
		}
	}
}

func (m Model) named(r row) entity.Named {
	c := &m.categories[r.cat]
	if r.task < 0 {
		return c
	}
	return &c.Tasks[r.task]
}

func (m Model) selected() entity.Named {
	if len(m.rows) == 0 {
		return nil
	}
	return m.named(m.rows[m.cursor])
}

func (m Model) selectedTask() *entity.Task {
	t, ok := m.selected().(*entity.Task)
	if !ok {
		return nil
	}
	return t
}

// currentCategory is the index of the category under the cursor.
func (m Model) currentCategory() int {
	if len(m.rows) == 0 {
		return 0
	}
	return m.rows[m.cursor].cat
}

func (m Model) deletePrompt(target entity.Named) string {
	switch t := target.(type) {
	case *entity.Category:
		return m.tr.Tf("Category.removeConfirmationTitle", t.Name, len(t.Tasks))
	default:
		return m.tr.Tf("Task.removeConfirmationTitle", target.DisplayName())
	}
}

func (m Model) pickTitle() string {
	if m.pending != nil && m.pending.action == actionUpdate {
		return m.tr.T("Task.pickNewCategoryTitle")
	}
	return m.tr.T("Task.pickCategoryTitle")
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(m.tr.T("Main.title")))
	b.WriteString("\n\n")

	if len(m.categories) == 0 {
		b.WriteString(m.tr.Tf("Main.empty", m.cfg.Keys.AddCategory))
		b.WriteString("\n")
	} else {
		b.WriteString(m.renderList())
	}

	switch m.mode {
	case modeInput:
		b.WriteString("\n")
		b.WriteString(m.input.Placeholder + ": ")
		b.WriteString(m.input.View())
		b.WriteString("\n")
	case modePick:
		b.WriteString("\n")
		b.WriteString(m.renderPicker())
	}

	b.WriteString("\n")
	b.WriteString(statusStyle.Render(m.status))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(m.renderHelp()))
	return b.String()
}

func (m Model) renderList() string {
	var b strings.Builder
	for i, r := range m.rows {
		cursor := " "
		if i == m.cursor && m.mode == modeList {
			cursor = cursorStyle.Render(">")
		}
		c := m.categories[r.cat]
		if r.task < 0 {
			b.WriteString(fmt.Sprintf("%s %s\n", cursor, headerStyle.Render(c.Name)))
			if len(c.Tasks) == 0 {
				b.WriteString("    " + helpStyle.Render(m.tr.T("Main.emptyCategory")) + "\n")
			}
			continue
		}
		t := c.Tasks[r.task]
		checkbox := "[ ]"
		name := t.Name
		if t.Done {
			checkbox = "[x]"
			name = doneStyle.Render(name)
		}
		b.WriteString(fmt.Sprintf("%s   %s %s\n", cursor, checkbox, name))
	}
	return b.String()
}

func (m Model) renderPicker() string {
	var b strings.Builder
	b.WriteString(m.pickTitle())
	b.WriteString("\n")
	for i, c := range m.categories {
		prefix := "  "
		if m.pending != nil && i == m.pending.pick {
			prefix = cursorStyle.Render("> ")
		}
		b.WriteString(prefix + c.Name + "\n")
	}
	k := m.cfg.Keys
	b.WriteString(helpStyle.Render(m.tr.Tf("Common.pickHint", k.Up, k.Down, k.Confirm, k.Cancel)))
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderHelp() string {
	k := m.cfg.Keys
	return m.tr.Tf("Main.help", k.Up, k.Down, k.Add, k.AddCategory, keyLabel(k.Toggle), k.Edit, k.Delete, k.Quit)
}

func keyLabel(k string) string {
	if k == " " {
		return "space"
	}
	return k
}

func actionName(a action) string {
	switch a {
	case actionUpdate:
		return "update"
	case actionDelete:
		return "removeConfirmation"
	default:
		return "create"
	}
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
