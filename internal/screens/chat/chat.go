package chat

import (
	"context"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/lingoflow/internal/conversation"
	"github.com/abhisek/lingoflow/internal/router"
	"github.com/abhisek/lingoflow/internal/screen"
	"github.com/abhisek/lingoflow/internal/store"
	"github.com/abhisek/lingoflow/internal/ui/components"
	"github.com/abhisek/lingoflow/internal/ui/layout"
	"github.com/abhisek/lingoflow/internal/ui/theme"
)

// Conversations is the part of conversation.Service the chat screen drives.
type Conversations interface {
	Turn(ctx context.Context, scenarioID, message string) (*conversation.TurnResult, error)
	Hint(ctx context.Context, scenarioID string) (string, error)
	Abandon(ctx context.Context, scenarioID string) error
	Transcript(ctx context.Context, scenarioID string) ([]store.Message, error)
}

type transcriptLoadedMsg struct {
	Messages []store.Message
	Err      error
}

type turnDoneMsg struct {
	Result *conversation.TurnResult
	Err    error
}

type hintMsg struct {
	Hint string
	Err  error
}

type abandonedMsg struct {
	Err error
}

// ChatScreen runs a conversation against one scenario.
type ChatScreen struct {
	convs    Conversations
	scenario store.Scenario

	messages []store.Message
	input    components.TextInput
	hint     string
	summary  string
	reached  bool
	waiting  bool
	confirm  bool
	errMsg   string
}

var _ screen.Screen = (*ChatScreen)(nil)
var _ screen.KeyHintProvider = (*ChatScreen)(nil)

// New creates a chat screen for a scenario.
func New(convs Conversations, sc store.Scenario) *ChatScreen {
	return &ChatScreen{
		convs:    convs,
		scenario: sc,
		input:    components.NewTextInput("Say something...", 500),
	}
}

func (s *ChatScreen) Init() tea.Cmd {
	convs, id := s.convs, s.scenario.ID
	return tea.Batch(
		s.input.Init(),
		func() tea.Msg {
			msgs, err := convs.Transcript(context.Background(), id)
			return transcriptLoadedMsg{Messages: msgs, Err: err}
		},
	)
}

func (s *ChatScreen) Title() string {
	if s.scenario.Setting != "" {
		return s.scenario.Setting
	}
	return "Chat"
}

func (s *ChatScreen) KeyHints() []layout.KeyHint {
	switch {
	case s.confirm:
		return []layout.KeyHint{
			{Key: "Y", Description: "Abandon"},
			{Key: "N", Description: "Keep talking"},
		}
	case s.reached:
		return []layout.KeyHint{
			{Key: "Esc", Description: "Back"},
		}
	}
	return []layout.KeyHint{
		{Key: "Enter", Description: "Send"},
		{Key: "Ctrl+H", Description: "Hint"},
		{Key: "Esc", Description: "Abandon"},
	}
}

func (s *ChatScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case transcriptLoadedMsg:
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
			return s, nil
		}
		s.messages = msg.Messages
		return s, nil

	case turnDoneMsg:
		return s.handleTurn(msg)

	case hintMsg:
		s.waiting = false
		s.input.SetDisabled(false)
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
			return s, nil
		}
		s.hint = msg.Hint
		return s, nil

	case abandonedMsg:
		if msg.Err != nil {
			s.confirm = false
			s.errMsg = msg.Err.Error()
			return s, nil
		}
		return s, func() tea.Msg { return router.PopScreenMsg{} }

	case tea.KeyMsg:
		return s.handleKey(msg)
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return s, cmd
}

func (s *ChatScreen) handleKey(msg tea.KeyMsg) (screen.Screen, tea.Cmd) {
	key := msg.String()

	if s.confirm {
		switch key {
		case "y", "Y":
			return s, s.abandon()
		case "n", "N", "esc":
			s.confirm = false
		}
		return s, nil
	}

	switch key {
	case "esc":
		if s.reached || len(s.messages) == 0 {
			return s, func() tea.Msg { return router.PopScreenMsg{} }
		}
		s.confirm = true
		return s, nil
	case "ctrl+h":
		if s.waiting || s.reached {
			return s, nil
		}
		return s, s.requestHint()
	case "enter":
		if s.waiting || s.reached {
			return s, nil
		}
		text := s.input.Value()
		if text == "" {
			return s, nil
		}
		return s, s.send(text)
	}

	if s.reached {
		return s, nil
	}
	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return s, cmd
}

func (s *ChatScreen) send(text string) tea.Cmd {
	s.messages = append(s.messages, store.Message{Speaker: store.SpeakerUser, Content: text})
	s.input.Reset()
	s.input.SetDisabled(true)
	s.waiting = true
	s.hint = ""
	s.errMsg = ""

	convs, id := s.convs, s.scenario.ID
	return func() tea.Msg {
		res, err := convs.Turn(context.Background(), id, text)
		return turnDoneMsg{Result: res, Err: err}
	}
}

func (s *ChatScreen) handleTurn(msg turnDoneMsg) (screen.Screen, tea.Cmd) {
	s.waiting = false
	s.input.SetDisabled(false)
	if msg.Err != nil {
		// The user line was optimistically shown; drop it so a retry does not duplicate it.
		if n := len(s.messages); n > 0 && s.messages[n-1].Speaker == store.SpeakerUser {
			s.messages = s.messages[:n-1]
		}
		s.errMsg = msg.Err.Error()
		return s, nil
	}

	res := msg.Result
	s.messages = append(s.messages, store.Message{HistoryID: res.HistoryID, Speaker: store.SpeakerBot, Content: res.Reply})
	if res.Status != conversation.StatusReached {
		return s, nil
	}
	s.reached = true
	s.input.SetDisabled(true)
	if res.Summary != nil {
		s.summary = *res.Summary
	}
	return s, func() tea.Msg { return screen.RefreshHeaderMsg{} }
}

func (s *ChatScreen) requestHint() tea.Cmd {
	s.waiting = true
	s.input.SetDisabled(true)
	convs, id := s.convs, s.scenario.ID
	return func() tea.Msg {
		h, err := convs.Hint(context.Background(), id)
		return hintMsg{Hint: h, Err: err}
	}
}

func (s *ChatScreen) abandon() tea.Cmd {
	convs, id := s.convs, s.scenario.ID
	return func() tea.Msg {
		return abandonedMsg{Err: convs.Abandon(context.Background(), id)}
	}
}

func (s *ChatScreen) View(width, height int) string {
	inner := width - 4
	if inner < 20 {
		inner = 20
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(theme.Hint.Render(fmt.Sprintf("  Goal: %s", s.scenario.Goal)))
	b.WriteString("\n")
	if s.scenario.Description != "" {
		b.WriteString(lipgloss.NewStyle().Foreground(theme.TextDim).Width(inner).Render("  " + s.scenario.Description))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(s.renderTranscript(inner))

	switch {
	case s.waiting:
		b.WriteString(theme.Hint.Render("  ..."))
		b.WriteString("\n")
	case s.reached:
		b.WriteString("\n")
		b.WriteString(theme.Reached.Render("  Goal reached!"))
		b.WriteString("\n")
		if s.summary != "" {
			b.WriteString(theme.Card.Width(inner).Render(s.summary))
			b.WriteString("\n")
		}
	}

	if s.hint != "" {
		b.WriteString(theme.HintBox.Width(inner).Render("  Hint: " + s.hint))
		b.WriteString("\n")
	}
	if s.errMsg != "" {
		b.WriteString(theme.Failed.Render("  Error: " + s.errMsg))
		b.WriteString("\n")
	}
	if s.confirm {
		b.WriteString("\n")
		b.WriteString(theme.Selected.Render("  Abandon this conversation? (y/n)"))
		b.WriteString("\n")
	}

	if !s.reached {
		b.WriteString("\n  ")
		b.WriteString(s.input.View())
	}

	return tail(b.String(), height)
}

func (s *ChatScreen) renderTranscript(width int) string {
	if len(s.messages) == 0 {
		return theme.Hint.Render("  Start the conversation in your practice language.") + "\n"
	}
	bubbleWidth := width * 3 / 4
	var b strings.Builder
	for _, m := range s.messages {
		if m.Speaker == store.SpeakerUser {
			line := theme.UserBubble.Render(wrap(m.Content, bubbleWidth))
			b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Right, line))
		} else {
			b.WriteString("  ")
			b.WriteString(theme.BotBubble.Render(wrap(m.Content, bubbleWidth)))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func wrap(s string, width int) string {
	return lipgloss.NewStyle().Width(width).Render(s)
}

// tail keeps the last height lines so the input stays visible.
func tail(s string, height int) string {
	if height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) <= height {
		return s
	}
	return strings.Join(lines[len(lines)-height:], "\n")
}
