package history

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
	"github.com/abhisek/lingoflow/internal/ui/layout"
	"github.com/abhisek/lingoflow/internal/ui/theme"
)

// Archive is the read/delete side of completed conversations.
type Archive interface {
	ListCompleted(ctx context.Context) ([]store.Conversation, error)
	History(ctx context.Context, historyID int64) (*conversation.Detail, error)
	Summary(ctx context.Context, historyID int64) (string, error)
	Delete(ctx context.Context, historyID int64) error
}

type historyLoadedMsg struct {
	Conversations []store.Conversation
	Err           error
}

type deletedMsg struct {
	Err error
}

// HistoryScreen lists completed conversations.
type HistoryScreen struct {
	archive       Archive
	conversations []store.Conversation
	selected      int
	loaded        bool
	errMsg        string
}

var _ screen.Screen = (*HistoryScreen)(nil)
var _ screen.KeyHintProvider = (*HistoryScreen)(nil)
var _ screen.Resumer = (*HistoryScreen)(nil)

// New creates a new HistoryScreen.
func New(archive Archive) *HistoryScreen {
	return &HistoryScreen{archive: archive}
}

func (s *HistoryScreen) Init() tea.Cmd {
	archive := s.archive
	return func() tea.Msg {
		list, err := archive.ListCompleted(context.Background())
		return historyLoadedMsg{Conversations: list, Err: err}
	}
}

// Resume reloads the list after a detail screen closes.
func (s *HistoryScreen) Resume() tea.Cmd {
	return s.Init()
}

func (s *HistoryScreen) Title() string {
	return "History"
}

func (s *HistoryScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "Enter", Description: "Details"},
		{Key: "D", Description: "Delete"},
		{Key: "↑↓", Description: "Navigate"},
		{Key: "Esc", Description: "Back"},
	}
}

func (s *HistoryScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case historyLoadedMsg:
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
		} else {
			s.errMsg = ""
			s.conversations = msg.Conversations
			if s.selected >= len(s.conversations) {
				s.selected = max(len(s.conversations)-1, 0)
			}
		}
		s.loaded = true
		return s, nil

	case deletedMsg:
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
			return s, nil
		}
		return s, s.Init()

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return s, func() tea.Msg { return router.PopScreenMsg{} }
		case "up", "k":
			if s.selected > 0 {
				s.selected--
			}
		case "down", "j":
			if s.selected < len(s.conversations)-1 {
				s.selected++
			}
		case "enter":
			if c, ok := s.current(); ok {
				return s, func() tea.Msg {
					return router.PushScreenMsg{Screen: NewDetail(s.archive, c.ID)}
				}
			}
		case "d":
			if c, ok := s.current(); ok {
				archive, id := s.archive, c.ID
				return s, func() tea.Msg {
					return deletedMsg{Err: archive.Delete(context.Background(), id)}
				}
			}
		}
	}
	return s, nil
}

func (s *HistoryScreen) current() (store.Conversation, bool) {
	if s.selected < 0 || s.selected >= len(s.conversations) {
		return store.Conversation{}, false
	}
	return s.conversations[s.selected], true
}

func (s *HistoryScreen) View(width, height int) string {
	if s.errMsg != "" {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.Error).
			Render(fmt.Sprintf("\n\nError: %s", s.errMsg))
	}
	if !s.loaded {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.TextDim).
			Render("\n\n  Loading history...")
	}
	if len(s.conversations) == 0 {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.TextDim).Italic(true).
			Render("\n\n  No completed conversations yet. Go talk to someone!")
	}

	var b strings.Builder
	b.WriteString("\n")
	for i, c := range s.conversations {
		prefix := "  "
		style := lipgloss.NewStyle().Foreground(theme.Text)
		if i == s.selected {
			prefix = "> "
			style = style.Foreground(theme.Primary).Bold(true)
		}
		line := fmt.Sprintf("%s%s  %-10s  %-24s  %s",
			prefix, c.Timestamp.Local().Format("Jan 02, 2006 15:04"), c.PracticeLanguage, c.ScenarioID, c.Model)
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, style.Render(line)))
		b.WriteString("\n")
	}
	return b.String()
}
