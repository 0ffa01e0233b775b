// Package display provides the push-to-talk terminal UI using Bubble Tea.
//
// A terminal cannot see key release, so the space bar toggles: the first
// press starts listening, the second ends the turn and hands the
// recording to the pipeline. Chat lines are printed above the rendered
// area via tea.Println so the scrollback survives resizes; the view
// itself is only the status line and key hints.
package display

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hammamikhairi/voicechat/internal/conversation"
	"github.com/hammamikhairi/voicechat/internal/logger"
	"github.com/hammamikhairi/voicechat/internal/pipeline"
)

// ── Styles ───────────────────────────────────────────────────────

var (
	// BannerStyle is used for the startup banner and hints.
	BannerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#94a3b8"))

	participantStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#60a5fa")).
				Align(lipgloss.Right)

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f472b6")).
			Align(lipgloss.Left)

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fca5a5"))

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#71717a"))

	spinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#a1a1aa"))
)

// Status is the coarse state shown under the chat.
type Status int

const (
	StatusReady Status = iota
	StatusListening
	StatusProcessing
	StatusSpeaking
)

func (s Status) String() string {
	switch s {
	case StatusListening:
		return "Listening…"
	case StatusProcessing:
		return "Processing…"
	case StatusSpeaking:
		return "Speaking…"
	default:
		return "Ready"
	}
}

var statusColors = map[Status]lipgloss.Color{
	StatusReady:      lipgloss.Color("#86efac"),
	StatusListening:  lipgloss.Color("#f87171"),
	StatusProcessing: lipgloss.Color("#93c5fd"),
	StatusSpeaking:   lipgloss.Color("#c4b5fd"),
}

// Controller is the push-to-talk gate, normally a *pipeline.Runner.
type Controller interface {
	Begin() error
	End(ctx context.Context) (<-chan pipeline.Event, error)
	Listening() bool
}

// ── UI ───────────────────────────────────────────────────────────

// UI owns the terminal while a conversation runs.
type UI struct {
	ctrl    Controller
	log     *logger.Logger
	program *tea.Program
}

// NewUI creates the display. Call Run to start.
func NewUI(ctrl Controller, log *logger.Logger) *UI {
	return &UI{ctrl: ctrl, log: log}
}

// Run starts the Bubble Tea event loop. It blocks until the user quits or
// ctx is cancelled.
func (u *UI) Run(ctx context.Context) error {
	u.program = tea.NewProgram(newModel(ctx, u.ctrl, u.log), tea.WithContext(ctx))
	_, err := u.program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Quit tells Bubble Tea to exit.
func (u *UI) Quit() {
	if u.program != nil {
		u.program.Quit()
	}
}

// ── Bubble Tea model ─────────────────────────────────────────────

type speaker int

const (
	participant speaker = iota
	assistant
	notice
)

type chatLine struct {
	who  speaker
	text string
}

type model struct {
	ctx     context.Context
	ctrl    Controller
	log     *logger.Logger
	spinner spinner.Model
	status  Status
	events  <-chan pipeline.Event // non-nil while a turn is in flight
	lines   []chatLine
	width   int
}

// Messages.
type (
	eventMsg      pipeline.Event
	turnClosedMsg struct{}
)

func newModel(ctx context.Context, ctrl Controller, log *logger.Logger) model {
	return model{
		ctx:  ctx,
		ctrl: ctrl,
		log:  log,
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(spinnerStyle),
		),
		width: 80,
	}
}

func (m model) Init() tea.Cmd {
	return tea.SetWindowTitle("Voice Chat")
}

// waitForEvent blocks on the turn's event stream outside Update.
func waitForEvent(ch <-chan pipeline.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return turnClosedMsg{}
		}
		return eventMsg(ev)
	}
}

func (m model) busy() bool {
	return m.status == StatusProcessing || m.status == StatusSpeaking
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case msg.Type == tea.KeyCtrlC, msg.String() == "q":
			return m, tea.Quit
		case msg.Type == tea.KeySpace, msg.String() == " ":
			return m.toggle()
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case eventMsg:
		return m.handleEvent(pipeline.Event(msg))

	case turnClosedMsg:
		m.events = nil
		m.status = StatusReady
		return m, nil

	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// toggle starts or ends listening. Presses during a turn are ignored.
func (m model) toggle() (tea.Model, tea.Cmd) {
	if m.events != nil {
		m.log.Debug("ignoring press: turn in flight")
		return m, nil
	}

	if !m.ctrl.Listening() {
		if err := m.ctrl.Begin(); err != nil {
			m.log.Warn("begin: %v", err)
			return m, nil
		}
		m.status = StatusListening
		return m, nil
	}

	events, err := m.ctrl.End(m.ctx)
	if err != nil {
		m.log.Warn("end: %v", err)
		m.status = StatusReady
		return m, nil
	}
	m.events = events
	m.status = StatusProcessing
	return m, tea.Batch(waitForEvent(events), m.spinner.Tick)
}

func (m model) handleEvent(ev pipeline.Event) (tea.Model, tea.Cmd) {
	var out tea.Cmd
	switch ev.Kind {
	case pipeline.EventTranscribed:
		text := ev.Text
		if text == "" {
			text = conversation.LineNoSpeech
		}
		out = m.add(participant, text)
	case pipeline.EventReplied:
		out = m.add(assistant, ev.Reply)
		if ev.OutputPath != "" {
			m.status = StatusSpeaking
		}
	case pipeline.EventSpoken:
		m.status = StatusProcessing
	case pipeline.EventDone:
		if ev.Result != nil && ev.Result.LogErr != nil {
			out = m.add(notice, fmt.Sprintf("turn %d was not logged: %v", ev.TurnID, ev.Result.LogErr))
		}
	case pipeline.EventFailed:
		out = m.add(notice, fmt.Sprintf("(transcription failed: %v)", ev.Err))
	}
	return m, tea.Batch(out, waitForEvent(m.events))
}

func (m *model) add(who speaker, text string) tea.Cmd {
	l := chatLine{who: who, text: text}
	m.lines = append(m.lines, l)
	return tea.Println(m.render(l) + "\n")
}

func (m model) render(l chatLine) string {
	w := m.width - 2
	if w < 20 {
		w = 20
	}
	switch l.who {
	case participant:
		return participantStyle.Width(w).Render(l.text)
	case assistant:
		return assistantStyle.Width(w).Render(l.text)
	default:
		return noticeStyle.Width(w).Render(l.text)
	}
}

func (m model) View() string {
	var b strings.Builder
	b.WriteByte('\n')
	if m.busy() {
		b.WriteString(m.spinner.View())
		b.WriteByte(' ')
	}
	st := lipgloss.NewStyle().Foreground(statusColors[m.status]).Bold(true)
	b.WriteString(st.Render(m.status.String()))
	b.WriteByte('\n')

	hint := "space: talk · q: quit"
	if m.status == StatusListening {
		hint = "space: send · q: quit"
	}
	b.WriteString(hintStyle.Render(hint))
	return b.String()
}
