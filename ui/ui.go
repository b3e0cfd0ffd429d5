// Package ui is the terminal viewer for a running conversation: a scrolling
// transcript, a mouth meter per character and a status bar with session
// controls.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/termenv"

	"github.com/dgnsrekt/troupe/agent"
	"github.com/dgnsrekt/troupe/dialogue"
)

const (
	statusBarHeight = 1
	eventBuffer     = 64
	statusTimeout   = 3 * time.Second
)

// Session is what the viewer controls.
type Session interface {
	Session() dialogue.Session
	History() *dialogue.History
	Bus() *dialogue.Bus
	Pause() bool
	Resume() bool
	Stop()
}

var _ Session = (*dialogue.Orchestrator)(nil)

// Voice is a character whose mouth is shown in the meter panel.
type Voice struct {
	ID     string
	Name   string
	Output *agent.Output
}

// NewProgram returns a program viewing session. The caller starts the
// conversation and stops it after the program exits.
func NewProgram(cfg Config, session Session, voices []Voice) *tea.Program {
	log.Debug(
		"Starting viewer",
		"high_perf_pager", cfg.HighPerformancePager,
		"glamour", cfg.GlamourEnabled,
		"voices", len(voices),
	)

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(newModel(cfg, session, voices), opts...)
}

type (
	eventMsg                dialogue.Event
	busClosedMsg            struct{}
	frameTickMsg            time.Time
	contentRenderedMsg      string
	statusMessageTimeoutMsg struct{}
)

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

type model struct {
	cfg     Config
	session Session
	voices  []Voice
	names   map[string]string

	events      <-chan dialogue.Event
	unsubscribe func()

	viewport viewport.Model
	spinner  spinner.Model
	width    int
	height   int
	ready    bool
	showHelp bool

	topic     string
	info      dialogue.Session
	history   []agent.Utterance
	frames    []agent.Frame
	lastError string

	statusMessage      string
	statusMessageTimer *time.Timer
}

func newModel(cfg Config, session Session, voices []Voice) model {
	if cfg.FPS <= 0 {
		cfg.FPS = 20
	}
	events, unsubscribe := session.Bus().Subscribe(eventBuffer)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(green)

	names := make(map[string]string, len(voices))
	for _, v := range voices {
		names[v.ID] = v.Name
	}

	info := session.Session()
	return model{
		cfg:         cfg,
		session:     session,
		voices:      voices,
		names:       names,
		events:      events,
		unsubscribe: unsubscribe,
		spinner:     sp,
		topic:       firstNonEmpty(cfg.Topic, info.Topic),
		info:        info,
		history:     session.History().Snapshot(),
		frames:      make([]agent.Frame, len(voices)),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		waitForEvent(m.events),
		m.spinner.Tick,
		frameTick(m.cfg.FPS),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.showHelp && msg.String() != "?" && msg.String() != "q" && msg.String() != "ctrl+c" {
			m.showHelp = false
			m.setSize(m.width, m.height)
			return m, nil
		}

		switch msg.String() {
		case "q", "ctrl+c":
			m.unsubscribe()
			return m, tea.Quit

		case "p":
			if m.info.Paused {
				if m.session.Resume() {
					cmds = append(cmds, m.showStatusMessage("Resumed"))
				}
			} else if m.session.Pause() {
				cmds = append(cmds, m.showStatusMessage("Paused"))
			}
			m.info = m.session.Session()

		case "s":
			m.session.Stop()
			m.info = m.session.Session()
			cmds = append(cmds, m.showStatusMessage("Stopped"))

		case "c":
			md := Transcript(m.topic, m.history)
			termenv.Copy(md)
			if err := clipboard.WriteAll(md); err != nil {
				log.Debug("clipboard unavailable", "err", err)
			}
			cmds = append(cmds, m.showStatusMessage("Copied transcript"))

		case "g", "home":
			m.viewport.GotoTop()
		case "G", "end":
			m.viewport.GotoBottom()

		case "?":
			m.showHelp = !m.showHelp
			m.setSize(m.width, m.height)
			if m.viewport.PastBottom() {
				m.viewport.GotoBottom()
			}
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		if !m.ready {
			m.viewport = viewport.New(0, 0)
			m.viewport.HighPerformanceRendering = m.cfg.HighPerformancePager
			m.ready = true
		}
		m.setSize(msg.Width, msg.Height)
		cmds = append(cmds, m.render())

	case eventMsg:
		m.handleEvent(dialogue.Event(msg))
		cmds = append(cmds, waitForEvent(m.events))
		if msg.Type == dialogue.EventLogUpdate || msg.Type == dialogue.EventConversationStart {
			cmds = append(cmds, m.render())
		}
		if msg.Type == dialogue.EventConversationEnd {
			cmds = append(cmds, m.showStatusMessage("Conversation ended"))
		}

	case busClosedMsg:
		return m, nil

	case frameTickMsg:
		for i, v := range m.voices {
			m.frames[i] = v.Output.Current()
		}
		return m, frameTick(m.cfg.FPS)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case contentRenderedMsg:
		atBottom := m.viewport.AtBottom() || m.viewport.TotalLineCount() == 0
		m.viewport.SetContent(string(msg))
		if atBottom {
			m.viewport.GotoBottom()
		}
		if m.viewport.HighPerformanceRendering {
			cmds = append(cmds, viewport.Sync(m.viewport))
		}

	case statusMessageTimeoutMsg:
		m.statusMessage = ""

	case errMsg:
		m.lastError = msg.Error()
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *model) handleEvent(e dialogue.Event) {
	m.info = m.session.Session()
	switch e.Type {
	case dialogue.EventConversationStart:
		m.topic = e.Topic
		m.history = nil
		m.lastError = ""
	case dialogue.EventLogUpdate:
		m.history = e.History
	case dialogue.EventTurnEnd:
		m.lastError = ""
	case dialogue.EventTurnFailed:
		m.lastError = fmt.Sprintf("%s: %s", m.name(e.SpeakerID), e.Error)
	}
}

func (m *model) setSize(w, h int) {
	m.viewport.Width = w
	m.viewport.Height = max(0, h-statusBarHeight-len(m.voices)-1)
	if m.showHelp {
		m.viewport.Height = max(0, m.viewport.Height-strings.Count(m.helpView(), "\n")-1)
	}
}

// Perform some cleanup and set a status message.
func (m *model) showStatusMessage(msg string) tea.Cmd {
	m.statusMessage = msg
	if m.statusMessageTimer != nil {
		m.statusMessageTimer.Stop()
	}
	m.statusMessageTimer = time.NewTimer(statusTimeout)
	return waitForStatusMessageTimeout(m.statusMessageTimer)
}

func (m model) name(id string) string {
	if n, ok := m.names[id]; ok && n != "" {
		return n
	}
	return id
}

func (m model) View() string {
	if !m.ready {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.metersView())
	b.WriteString(m.statusBarView())
	if m.showHelp {
		b.WriteString("\n")
		b.WriteString(m.helpView())
	}
	return b.String()
}

func (m model) metersView() string {
	var b strings.Builder
	b.WriteString(truncate.String(errorMessageStyle(m.lastError), uint(max(0, m.width)))) //nolint:gosec
	b.WriteString("\n")
	for i, v := range m.voices {
		b.WriteString(truncate.String(meter(v.Name, m.frames[i]), uint(max(0, m.width)))) //nolint:gosec
		b.WriteString("\n")
	}
	return b.String()
}

func (m model) statusBarView() string {
	showStatusMessage := m.statusMessage != ""

	logo := logoStyle(" Troupe ")

	state := m.info.State.String()
	badge := stateStyles[state].Render(" " + state + " ")

	turns := fmt.Sprintf(" %d ", m.info.TurnCount)
	if m.info.MaxTurns > 0 {
		turns = fmt.Sprintf(" %d/%d ", m.info.TurnCount, m.info.MaxTurns)
	}
	turns = statusBarTurnStyle(turns)

	var helpNote string
	if showStatusMessage {
		helpNote = statusBarMessageHelpStyle(" ? Help ")
	} else {
		helpNote = statusBarHelpStyle(" ? Help ")
	}

	var note string
	switch {
	case showStatusMessage:
		note = m.statusMessage
	case m.info.CurrentSpeakerID != "" && m.info.Running:
		note = m.spinner.View() + " " + m.name(m.info.CurrentSpeakerID) + " is speaking"
	case len(m.history) > 0:
		last := m.history[len(m.history)-1]
		note = m.name(last.SpeakerID) + " spoke " + ago(last)
	default:
		note = m.topic
	}
	note = truncate.StringWithTail(" "+note+" ", uint(max(0, //nolint:gosec
		m.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(badge)-
			ansi.PrintableRuneWidth(turns)-
			ansi.PrintableRuneWidth(helpNote),
	)), ellipsis)
	if showStatusMessage {
		note = statusBarMessageStyle(note)
	} else {
		note = statusBarNoteStyle(note)
	}

	// Empty space
	padding := max(0,
		m.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(badge)-
			ansi.PrintableRuneWidth(note)-
			ansi.PrintableRuneWidth(turns)-
			ansi.PrintableRuneWidth(helpNote),
	)
	emptySpace := strings.Repeat(" ", padding)
	if showStatusMessage {
		emptySpace = statusBarMessageStyle(emptySpace)
	} else {
		emptySpace = statusBarNoteStyle(emptySpace)
	}

	return logo + badge + note + emptySpace + turns + helpNote
}

const ellipsis = "…"

func (m model) helpView() string {
	s := "\n"
	s += "k/↑      up                  p        pause or resume\n"
	s += "j/↓      down                s        stop conversation\n"
	s += "u        ½ page up           c        copy transcript\n"
	s += "d        ½ page down         q        quit\n"
	s += "g/home   go to top\n"
	s += "G/end    go to bottom"

	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = "  " + lines[i]
		if m.width > 0 {
			lines[i] += strings.Repeat(" ", max(0, m.width-ansi.PrintableRuneWidth(lines[i])))
		}
	}
	return helpViewStyle(strings.Join(lines, "\n"))
}

// COMMANDS

func (m model) render() tea.Cmd {
	md := Transcript(m.topic, m.history)
	cfg := m.cfg
	width := m.viewport.Width
	return func() tea.Msg {
		if !cfg.GlamourEnabled {
			return contentRenderedMsg(md)
		}
		if cfg.GlamourMaxWidth > 0 {
			width = min(int(cfg.GlamourMaxWidth), width) //nolint:gosec
		}
		out, err := Render(md, cfg.GlamourStyle, width)
		if err != nil {
			log.Error("error rendering with Glamour", "error", err)
			return errMsg{err}
		}
		return contentRenderedMsg(out)
	}
}

func waitForEvent(events <-chan dialogue.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return busClosedMsg{}
		}
		return eventMsg(e)
	}
}

func frameTick(fps int) tea.Cmd {
	return tea.Tick(time.Second/time.Duration(fps), func(t time.Time) tea.Msg {
		return frameTickMsg(t)
	})
}

func waitForStatusMessageTimeout(t *time.Timer) tea.Cmd {
	return func() tea.Msg {
		<-t.C
		return statusMessageTimeoutMsg{}
	}
}

func firstNonEmpty(s ...string) string {
	for _, v := range s {
		if v != "" {
			return v
		}
	}
	return ""
}
