package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/jeterchen1226/fastapi-trello/internal/actions"
	"github.com/jeterchen1226/fastapi-trello/internal/notify"
	"github.com/jeterchen1226/fastapi-trello/internal/view"
	"github.com/jeterchen1226/fastapi-trello/pkg/models"
)

// boardSource is the page as the board view needs it.
type boardSource interface {
	Board() models.Board
	Reload(ctx context.Context) ([]models.FeedbackSignal, error)
}

type boardMover interface {
	Move(ctx context.Context, kind models.ItemKind, itemID, targetID string, index int) (models.FeedbackSignal, error)
}

type boardDeleter interface {
	DeleteTask(ctx context.Context, taskID, name string) ([]models.FeedbackSignal, error)
	DeleteLane(ctx context.Context, laneID, name string) ([]models.FeedbackSignal, error)
}

type boardKeyMap struct {
	Left, Right, Up, Down key.Binding
	Grab, Cancel          key.Binding
	LaneLeft, LaneRight   key.Binding
	DeleteTask            key.Binding
	DeleteLane            key.Binding
	Reload, Quit          key.Binding
	Confirm, Dismiss      key.Binding
}

func newBoardKeyMap() boardKeyMap {
	return boardKeyMap{
		Left:       key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "lane")),
		Right:      key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "lane")),
		Up:         key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "task")),
		Down:       key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "task")),
		Grab:       key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "grab/drop")),
		Cancel:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		LaneLeft:   key.NewBinding(key.WithKeys("H", "<"), key.WithHelp("H", "lane ←")),
		LaneRight:  key.NewBinding(key.WithKeys("L", ">"), key.WithHelp("L", "lane →")),
		DeleteTask: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete task")),
		DeleteLane: key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "delete lane")),
		Reload:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Confirm:    key.NewBinding(key.WithKeys("y", "enter"), key.WithHelp("y", "confirm")),
		Dismiss:    key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "cancel")),
	}
}

func (k boardKeyMap) helpLine(bindings ...key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+": "+h.Desc)
	}
	return strings.Join(parts, " | ")
}

type boardModel struct {
	ctx     context.Context
	source  boardSource
	mover   boardMover
	deleter boardDeleter
	slot    *notify.Slot
	keys    boardKeyMap

	width  int
	height int

	board models.Board
	lane  int
	task  int

	// grabbed is the task being carried; lane/task then point at the drop
	// position.
	grabbed *models.Item

	busy bool
	err  error
}

// boardChangedMsg asks the model to re-read the page after a server round
// trip.
type boardChangedMsg struct{ err error }

// alertMsg is sent whenever the slot gains an alert.
type alertMsg struct{}

func newBoardModel(ctx context.Context, source boardSource, mover boardMover, deleter boardDeleter, slot *notify.Slot) boardModel {
	return boardModel{
		ctx:     ctx,
		source:  source,
		mover:   mover,
		deleter: deleter,
		slot:    slot,
		keys:    newBoardKeyMap(),
		board:   source.Board(),
	}
}

func (m boardModel) Init() tea.Cmd {
	return nil
}

func (m boardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case boardChangedMsg:
		m.busy = false
		m.err = msg.err
		m.board = m.source.Board()
		m.clampCursor()
		return m, nil

	case alertMsg:
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) && msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if a, ok := m.slot.Current(); ok {
			return m.updateAlert(msg, a)
		}
		return m.updateBoard(msg)
	}
	return m, nil
}

// updateAlert handles keys while an alert is displayed; the board behind it
// does not react.
func (m boardModel) updateAlert(msg tea.KeyMsg, a notify.Alert) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		m.slot.Dismiss(true)
	case key.Matches(msg, m.keys.Dismiss):
		m.slot.Dismiss(false)
	case !a.IsPrompt() && msg.String() == " ":
		m.slot.Dismiss(true)
	}
	return m, nil
}

func (m boardModel) updateBoard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Left):
		if m.lane > 0 {
			m.lane--
			m.clampCursor()
		}
	case key.Matches(msg, m.keys.Right):
		if m.lane < len(m.board.Lanes)-1 {
			m.lane++
			m.clampCursor()
		}
	case key.Matches(msg, m.keys.Up):
		if m.task > 0 {
			m.task--
		}
	case key.Matches(msg, m.keys.Down):
		if m.task < m.maxTask() {
			m.task++
		}

	case key.Matches(msg, m.keys.Cancel):
		m.grabbed = nil
		m.clampCursor()

	case m.busy:
		// One server round trip at a time.

	case key.Matches(msg, m.keys.Grab):
		if m.grabbed == nil {
			if t, ok := m.selectedTask(); ok {
				m.grabbed = &t
			}
			return m, nil
		}
		item := *m.grabbed
		lane := m.board.Lanes[m.lane]
		m.grabbed = nil
		m.busy = true
		return m, m.moveCmd(models.KindTask, item.ID, lane.ID, m.task)

	case key.Matches(msg, m.keys.LaneLeft), key.Matches(msg, m.keys.LaneRight):
		if m.grabbed != nil || len(m.board.Lanes) == 0 {
			return m, nil
		}
		to := m.lane + 1
		if key.Matches(msg, m.keys.LaneLeft) {
			to = m.lane - 1
		}
		if to < 0 || to >= len(m.board.Lanes) {
			return m, nil
		}
		lane := m.board.Lanes[m.lane]
		m.lane = to
		m.busy = true
		return m, m.moveCmd(models.KindLane, lane.ID, m.board.ProjectID, to)

	case key.Matches(msg, m.keys.DeleteTask):
		t, ok := m.selectedTask()
		if !ok || m.grabbed != nil {
			return m, nil
		}
		m.busy = true
		return m, m.deleteCmd(func(ctx context.Context) error {
			_, err := m.deleter.DeleteTask(ctx, t.ID, t.Name)
			return err
		})

	case key.Matches(msg, m.keys.DeleteLane):
		if len(m.board.Lanes) == 0 || m.grabbed != nil {
			return m, nil
		}
		l := m.board.Lanes[m.lane]
		m.busy = true
		return m, m.deleteCmd(func(ctx context.Context) error {
			_, err := m.deleter.DeleteLane(ctx, l.ID, l.Name)
			return err
		})

	case key.Matches(msg, m.keys.Reload):
		m.busy = true
		ctx, source := m.ctx, m.source
		return m, func() tea.Msg {
			_, err := source.Reload(ctx)
			return boardChangedMsg{err: err}
		}
	}
	return m, nil
}

// moveCmd commits a reorder off the UI goroutine. The resulting alert
// reaches the slot through the arbiter.
func (m boardModel) moveCmd(kind models.ItemKind, itemID, targetID string, index int) tea.Cmd {
	ctx, mover := m.ctx, m.mover
	return func() tea.Msg {
		_, err := mover.Move(ctx, kind, itemID, targetID, index)
		return boardChangedMsg{err: err}
	}
}

// deleteCmd runs a destructive action. The action blocks on its
// confirmation prompt, which is answered from Update through the slot.
func (m boardModel) deleteCmd(run func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		err := run(ctx)
		if errors.Is(err, actions.ErrCancelled) {
			err = nil
		}
		return boardChangedMsg{err: err}
	}
}

func (m boardModel) selectedTask() (models.Item, bool) {
	if m.lane >= len(m.board.Lanes) {
		return models.Item{}, false
	}
	tasks := m.board.Lanes[m.lane].Tasks
	if m.task >= len(tasks) {
		return models.Item{}, false
	}
	return tasks[m.task], true
}

// maxTask is the last cursor row in the current lane. While carrying a task
// into another lane the cursor may also sit past its last task.
func (m boardModel) maxTask() int {
	if m.lane >= len(m.board.Lanes) {
		return 0
	}
	lane := m.board.Lanes[m.lane]
	n := len(lane.Tasks)
	if m.grabbed != nil && m.grabbed.ContainerID != lane.ID {
		return n
	}
	if n == 0 {
		return 0
	}
	return n - 1
}

func (m *boardModel) clampCursor() {
	if m.lane >= len(m.board.Lanes) {
		m.lane = max(len(m.board.Lanes)-1, 0)
	}
	if m.task > m.maxTask() {
		m.task = m.maxTask()
	}
}

// Style definitions.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	laneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	activeLaneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			MarginBottom(1)

	cursorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62"))
	grabbedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Bold(true)
	placeholderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)

	modalStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.DoubleBorder()).
			Padding(1, 3)

	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	promptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Bold(true)

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

const laneWidth = 24

func (m boardModel) View() string {
	title := titleStyle.Render(" Board " + m.board.ProjectID + " ")
	help := helpStyle.Render(m.keys.helpLine(
		m.keys.Left, m.keys.Up, m.keys.Grab, m.keys.LaneLeft, m.keys.LaneRight,
		m.keys.DeleteTask, m.keys.DeleteLane, m.keys.Reload, m.keys.Quit,
	))

	if a, ok := m.slot.Current(); ok {
		return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.renderAlert(a), help)
	}

	var body string
	if len(m.board.Lanes) == 0 {
		body = placeholderStyle.Render(view.PlaceholderLabel(models.KindLane))
	} else {
		cols := make([]string, 0, len(m.board.Lanes))
		for i := range m.board.Lanes {
			cols = append(cols, m.renderLane(i))
		}
		body = lipgloss.JoinHorizontal(lipgloss.Top, cols...)
	}

	status := ""
	switch {
	case m.busy:
		status = "\n  Working..."
	case m.err != nil:
		status = "\n  " + errorStyle.Render("Error: "+m.err.Error())
	case m.grabbed != nil:
		status = "\n  Carrying " + grabbedStyle.Render(m.grabbed.Name) + ", space to drop, esc to cancel"
	}

	return fmt.Sprintf("%s\n\n%s\n%s\n\n%s", title, body, status, help)
}

func (m boardModel) renderLane(i int) string {
	lane := m.board.Lanes[i]
	active := i == m.lane

	var b strings.Builder
	b.WriteString(headerStyle.Render(lane.Name))
	b.WriteString("\n")

	rows := make([]string, 0, len(lane.Tasks)+1)
	for _, t := range lane.Tasks {
		label := t.Name
		if m.grabbed != nil && t.ID == m.grabbed.ID {
			label = grabbedStyle.Render("» " + label)
		}
		rows = append(rows, label)
	}
	if m.grabbed != nil && active && m.grabbed.ContainerID != lane.ID {
		rows = append(rows, "")
	}

	if len(rows) == 0 {
		line := placeholderStyle.Render(view.PlaceholderLabel(models.KindTask))
		if active {
			line = cursorStyle.Render(view.PlaceholderLabel(models.KindTask))
		}
		b.WriteString(line)
	}
	for r, row := range rows {
		if active && r == m.task {
			if m.grabbed != nil && row == "" {
				row = "── drop here ──"
			}
			row = cursorStyle.Render(row)
		}
		b.WriteString(row)
		b.WriteString("\n")
	}

	style := laneStyle
	if active {
		style = activeLaneStyle
	}
	return style.Width(laneWidth).Render(b.String())
}

func (m boardModel) renderAlert(a notify.Alert) string {
	heading := successStyle
	border := lipgloss.Color("46")
	switch {
	case a.IsPrompt():
		heading, border = promptStyle, lipgloss.Color("226")
	case a.Severity == models.SeverityError:
		heading, border = errorStyle, lipgloss.Color("196")
	}

	buttons := helpStyle.Render("enter: OK")
	if a.IsPrompt() {
		buttons = helpStyle.Render(fmt.Sprintf("y: %s | n: %s", notify.ButtonConfirm, notify.ButtonCancel))
	}
	box := modalStyle.BorderForeground(border).Render(
		heading.Render(a.Title) + "\n\n" + a.Body + "\n\n" + buttons,
	)
	if m.width == 0 {
		return box
	}
	return lipgloss.Place(m.width, max(m.height-4, lipgloss.Height(box)), lipgloss.Center, lipgloss.Center, box)
}

var uiPage string

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Interactive board view",
	Long: `Open the board page in a terminal view with one column per lane.

Move the cursor with the arrow keys, pick up a task with space and drop it
with space in its new place. H and L move the current lane. d and D delete
the current task or lane after confirmation. Alerts appear one at a time.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Slot == nil || Pipeline == nil || NewActions == nil {
			return fmt.Errorf("board client not initialized")
		}
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		// The slot shows the page's feedback inside the view.
		if err := openPage(ctx, io.Discard, uiPage); err != nil {
			return err
		}
		if Config != nil && Config.Log.File == "" && Logger != nil {
			Logger.SetOutput(io.Discard)
		}

		deleter := NewActions(actions.SlotConfirmer{Slot: Slot})
		p := tea.NewProgram(newBoardModel(ctx, Page, Pipeline, deleter, Slot), tea.WithAltScreen())
		Slot.OnChange(func() { p.Send(alertMsg{}) })
		defer Slot.OnChange(nil)

		_, err := p.Run()
		// Unblock a delete still waiting on its prompt.
		cancel()
		Pipeline.Wait()
		if perr := persist(); err == nil {
			err = perr
		}
		return err
	},
}

func init() {
	uiCmd.Flags().StringVar(&uiPage, "page", "", "Page to load first (default: the saved page)")
	rootCmd.AddCommand(uiCmd)
}
