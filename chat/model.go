// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/palaver-foundation/palaver/lib/clock"
	"github.com/palaver-foundation/palaver/lib/ref"
	"github.com/palaver-foundation/palaver/lib/tui"
	"github.com/palaver-foundation/palaver/mesh"
	"github.com/palaver-foundation/palaver/wire"
)

const (
	// redrawInterval paces unconditional re-renders, covering updates
	// that arrive without a bubbletea message (notice expiry).
	redrawInterval = 100 * time.Millisecond

	// noticeLifetime is how long a status-line notice stays visible.
	noticeLifetime = 5 * time.Second
)

// Session is the slice of the mesh subscription the chat model uses.
// *mesh.Subscription implements it; tests substitute an in-memory
// fake.
type Session interface {
	Topic() ref.TopicID
	Broadcast(payload []byte) error
	Next(ctx context.Context) ([]byte, error)
	PeerCount() int
	Close() error
}

// broadcastReceivedMsg delivers one raw payload from the mesh.
type broadcastReceivedMsg struct {
	payload []byte
}

// sessionClosedMsg reports that the receive loop stopped.
type sessionClosedMsg struct {
	err error
}

// redrawTickMsg is the periodic re-render pulse.
type redrawTickMsg time.Time

// Model is the bubbletea model for one chat session. Update is the
// single writer: every mutation of the session state happens there,
// serialized by the bubbletea runtime.
type Model struct {
	session Session
	state   *State
	keys    KeyMap
	theme   tui.Theme
	clock   clock.Clock
	logger  *slog.Logger

	input  textinput.Model
	width  int
	height int

	notice      string
	noticeLevel slog.Level
	noticeAt    time.Time

	quitting bool
}

// NewModel wires a chat session to the terminal. The caller supplies
// the mesh session, the local identity the session's node broadcasts
// under, and the display name announced to peers.
func NewModel(session Session, self ref.PeerID, displayName string, logger *slog.Logger, clk clock.Clock) Model {
	input := textinput.New()
	input.Placeholder = "type a message"
	input.Prompt = "> "
	input.Focus()

	return Model{
		session: session,
		state:   NewState(self, displayName, clk),
		keys:    DefaultKeyMap,
		theme:   tui.DefaultTheme,
		clock:   clk,
		logger:  logger,
		input:   input,
	}
}

// State exposes the session record, for inspection after the program
// exits and in tests.
func (m Model) State() *State { return m.state }

// Init broadcasts the join handshake and arms the receive loop and the
// redraw tick. Two broadcasts: WhoIsThere so the joiner learns who is
// already in the room, and AboutMe so every existing peer learns the
// joiner — nobody re-sends WhoIsThere later, so the announcement must
// go out unprompted.
func (m Model) Init() tea.Cmd {
	if err := m.broadcast(wire.WhoIsThere{}); err != nil {
		m.logger.Warn("discovery broadcast failed", "error", err)
	}
	if err := m.broadcast(wire.AboutMe{Name: m.state.SelfName()}); err != nil {
		m.logger.Warn("announcement broadcast failed", "error", err)
	}
	return tea.Batch(textinput.Blink, m.listenForBroadcast(), m.scheduleRedraw())
}

// Update is the event loop body. Keyboard, network, log records, and
// the tick all land here.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-6, 10)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			if err := m.session.Close(); err != nil {
				m.logger.Warn("closing session", "error", err)
			}
			return m, tea.Quit
		case key.Matches(msg, m.keys.Submit):
			m.submit()
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case broadcastReceivedMsg:
		// A frame that was already queued when the quit key arrived
		// must not mutate state after the session closed.
		if m.quitting {
			return m, nil
		}
		m.receive(msg.payload)
		return m, m.listenForBroadcast()

	case sessionClosedMsg:
		if !m.quitting {
			m.state.AppendSystem("connection to the session lost")
			m.setNotice(slog.LevelError, "connection lost")
			m.logger.Error("receive loop stopped", "error", msg.err)
		}
		return m, nil

	case redrawTickMsg:
		return m, m.scheduleRedraw()

	case LogMsg:
		m.setNotice(msg.Level, msg.Message)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit validates, encodes, broadcasts, and echoes the typed message.
// Encoding runs before anything is sent or shown: an oversized message
// is refused with a notice and the input keeps its content for the
// user to shorten.
func (m *Model) submit() {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return
	}

	message, err := wire.New(m.state.Self(), wire.Chat{Text: text})
	if err != nil {
		m.logger.Error("constructing message", "error", err)
		m.setNotice(slog.LevelError, "could not construct message")
		return
	}
	payload, err := wire.Encode(message, mesh.MaxPayloadSize)
	if err != nil {
		var encodingErr *wire.EncodingError
		if errors.As(err, &encodingErr) {
			m.setNotice(slog.LevelWarn, fmt.Sprintf(
				"message too long: %d bytes encoded, limit %d", encodingErr.Size, encodingErr.Limit))
			return
		}
		m.logger.Error("encoding message", "error", err)
		m.setNotice(slog.LevelError, "could not encode message")
		return
	}

	if err := m.session.Broadcast(payload); err != nil {
		m.logger.Warn("broadcast failed", "error", err)
		m.setNotice(slog.LevelError, "send failed")
		return
	}
	m.state.ApplyLocalEcho(message)
	m.input.Reset()
}

// receive decodes and applies one inbound payload. Malformed frames
// are dropped with a notice; the session continues.
func (m *Model) receive(payload []byte) {
	message, err := wire.Decode(payload)
	if err != nil {
		m.logger.Warn("dropping malformed frame", "error", err)
		m.setNotice(slog.LevelWarn, "dropped a malformed frame")
		return
	}

	applied := m.state.ApplyIncoming(message)
	if applied.ReplyAboutMe {
		if err := m.broadcast(wire.AboutMe{Name: m.state.SelfName()}); err != nil {
			m.logger.Warn("announcement broadcast failed", "error", err)
		}
	}
}

// broadcast encodes and sends a protocol message, burning its ID
// locally so a relayed copy is ignored.
func (m *Model) broadcast(body wire.Body) error {
	message, err := wire.New(m.state.Self(), body)
	if err != nil {
		return err
	}
	payload, err := wire.Encode(message, mesh.MaxPayloadSize)
	if err != nil {
		return err
	}
	if err := m.session.Broadcast(payload); err != nil {
		return err
	}
	m.state.ApplyLocalEcho(message)
	return nil
}

// listenForBroadcast blocks on the next mesh payload and re-arms after
// each delivery. One receive in flight at a time keeps ordering.
func (m Model) listenForBroadcast() tea.Cmd {
	session := m.session
	return func() tea.Msg {
		payload, err := session.Next(context.Background())
		if err != nil {
			return sessionClosedMsg{err: err}
		}
		return broadcastReceivedMsg{payload: payload}
	}
}

func (m Model) scheduleRedraw() tea.Cmd {
	return tea.Tick(redrawInterval, func(t time.Time) tea.Msg {
		return redrawTickMsg(t)
	})
}

func (m *Model) setNotice(level slog.Level, text string) {
	m.notice = text
	m.noticeLevel = level
	m.noticeAt = m.clock.Now()
}

// View renders header, log, input, help, and the status line.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "starting..."
	}

	header := lipgloss.NewStyle().Foreground(m.theme.FaintText).Render(
		ansi.Truncate(fmt.Sprintf("palaver · topic %s · %d participants · %d links",
			m.session.Topic().Short(), m.state.Participants(), m.session.PeerCount()),
			m.width, "…"))

	inputBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.theme.BorderFocusedColor).
		Width(max(m.width-2, 12)).
		Render(m.input.View())

	help := lipgloss.NewStyle().Foreground(m.theme.HelpText).Render(
		m.keys.Submit.Help().Key + " " + m.keys.Submit.Help().Desc +
			" · " + m.keys.Quit.Help().Key + " " + m.keys.Quit.Help().Desc)

	// Header plus bordered input (3 rows) plus help and status.
	logHeight := max(m.height-6, 1)
	logPane := m.renderLog(logHeight)

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		logPane,
		inputBox,
		help,
		m.renderNotice(),
	)
}

// renderLog shows the newest entries that fit in the given height.
func (m Model) renderLog(height int) string {
	entries := m.state.Entries()
	if len(entries) > height {
		entries = entries[len(entries)-height:]
	}

	lines := make([]string, 0, height)
	timeStyle := lipgloss.NewStyle().Foreground(m.theme.FaintText)
	systemStyle := lipgloss.NewStyle().Foreground(m.theme.SystemText)
	textStyle := lipgloss.NewStyle().Foreground(m.theme.NormalText)

	for _, entry := range entries {
		stamp := timeStyle.Render(entry.At.Format("15:04:05"))
		var line string
		if entry.System {
			line = stamp + " " + systemStyle.Render("· "+entry.Text)
		} else {
			nameColor := m.theme.PeerColor(entry.Sender)
			if entry.Sender == m.state.Self() {
				nameColor = m.theme.SelfText
			}
			name := lipgloss.NewStyle().Foreground(nameColor).Bold(true).Render(entry.Name)
			line = stamp + " " + name + textStyle.Render(": "+entry.Text)
		}
		lines = append(lines, ansi.Truncate(line, m.width, "…"))
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// renderNotice shows the most recent log notice until it ages out.
func (m Model) renderNotice() string {
	if m.notice == "" || m.clock.Now().Sub(m.noticeAt) > noticeLifetime {
		return ""
	}
	color := m.theme.StatusWarning
	if m.noticeLevel >= slog.LevelError {
		color = m.theme.StatusError
	}
	return lipgloss.NewStyle().Foreground(color).Render(
		ansi.Truncate(m.notice, m.width, "…"))
}
