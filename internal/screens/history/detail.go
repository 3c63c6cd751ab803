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
	"github.com/abhisek/lingoflow/internal/ui/theme"
)

type detailLoadedMsg struct {
	Detail *conversation.Detail
	Err    error
}

type summaryLoadedMsg struct {
	Summary string
	Err     error
}

// DetailScreen shows the transcript and summary of one conversation.
// A missing summary is generated on open.
type DetailScreen struct {
	archive Archive
	id      int64
	detail  *conversation.Detail
	summary string
	pending bool
	errMsg  string
}

var _ screen.Screen = (*DetailScreen)(nil)

// NewDetail creates a detail screen for a history entry.
func NewDetail(archive Archive, id int64) *DetailScreen {
	return &DetailScreen{archive: archive, id: id}
}

func (s *DetailScreen) Init() tea.Cmd {
	archive, id := s.archive, s.id
	return func() tea.Msg {
		d, err := archive.History(context.Background(), id)
		return detailLoadedMsg{Detail: d, Err: err}
	}
}

func (s *DetailScreen) Title() string {
	return fmt.Sprintf("Conversation #%d", s.id)
}

func (s *DetailScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case detailLoadedMsg:
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
			return s, nil
		}
		s.detail = msg.Detail
		if msg.Detail.Summary != nil {
			s.summary = *msg.Detail.Summary
			return s, nil
		}
		if !msg.Detail.Completed {
			return s, nil
		}
		s.pending = true
		archive, id := s.archive, s.id
		return s, func() tea.Msg {
			sum, err := archive.Summary(context.Background(), id)
			return summaryLoadedMsg{Summary: sum, Err: err}
		}

	case summaryLoadedMsg:
		s.pending = false
		if msg.Err == nil {
			s.summary = msg.Summary
		}
		return s, nil

	case tea.KeyMsg:
		if msg.String() == "esc" {
			return s, func() tea.Msg { return router.PopScreenMsg{} }
		}
	}
	return s, nil
}

func (s *DetailScreen) View(width, height int) string {
	if s.errMsg != "" {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.Error).
			Render(fmt.Sprintf("\n\nError: %s", s.errMsg))
	}
	if s.detail == nil {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.TextDim).
			Render("\n\n  Loading...")
	}

	inner := width - 6
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(theme.Hint.Render(fmt.Sprintf("  %s · %s · %s",
		s.detail.ScenarioID, s.detail.PracticeLanguage, s.detail.Timestamp.Local().Format("Jan 02, 2006 15:04"))))
	b.WriteString("\n\n")

	switch {
	case s.pending:
		b.WriteString(theme.Hint.Render("  Writing summary..."))
	case s.summary != "":
		b.WriteString(theme.Card.Width(inner).Render(s.summary))
	default:
		b.WriteString(theme.Hint.Render("  No summary available."))
	}
	b.WriteString("\n\n")

	for _, m := range s.detail.Messages {
		speaker := theme.Selected.Render("Bot ")
		if m.Speaker == store.SpeakerUser {
			speaker = lipgloss.NewStyle().Foreground(theme.Secondary).Bold(true).Render("You ")
		}
		b.WriteString("  " + speaker + lipgloss.NewStyle().Foreground(theme.Text).Width(inner-4).Render(m.Content))
		b.WriteString("\n")
	}
	return b.String()
}
