package home

import (
	"context"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/lingoflow/internal/router"
	"github.com/abhisek/lingoflow/internal/screen"
	"github.com/abhisek/lingoflow/internal/screens/chat"
	"github.com/abhisek/lingoflow/internal/screens/history"
	"github.com/abhisek/lingoflow/internal/store"
	"github.com/abhisek/lingoflow/internal/ui/components"
	"github.com/abhisek/lingoflow/internal/ui/theme"
)

// Catalog lists and regenerates active scenarios.
type Catalog interface {
	List(ctx context.Context) ([]store.Scenario, error)
	Regenerate(ctx context.Context) ([]store.Scenario, error)
}

// Conversations is everything the chat and history screens need.
type Conversations interface {
	chat.Conversations
	history.Archive
}

type scenariosLoadedMsg struct {
	Scenarios []store.Scenario
	Err       error
}

// HomeScreen lists the active scenarios.
type HomeScreen struct {
	catalog   Catalog
	convs     Conversations
	menu      components.Menu
	scenarios []store.Scenario
	loading   bool
	errMsg    string
}

var _ screen.Screen = (*HomeScreen)(nil)
var _ screen.Resumer = (*HomeScreen)(nil)

// New creates a new HomeScreen.
func New(catalog Catalog, convs Conversations) *HomeScreen {
	s := &HomeScreen{catalog: catalog, convs: convs, loading: true}
	s.rebuildMenu()
	return s
}

func (s *HomeScreen) Init() tea.Cmd {
	return s.load(false)
}

// Resume reloads the catalog; a finished chat retires its scenario.
func (s *HomeScreen) Resume() tea.Cmd {
	return s.load(false)
}

func (s *HomeScreen) Title() string {
	return "Scenarios"
}

// load lists the catalog, generating a batch when it is empty or when
// regenerate is set.
func (s *HomeScreen) load(regenerate bool) tea.Cmd {
	s.loading = true
	s.errMsg = ""
	s.rebuildMenu()
	catalog := s.catalog
	return func() tea.Msg {
		ctx := context.Background()
		if !regenerate {
			list, err := catalog.List(ctx)
			if err != nil || len(list) > 0 {
				return scenariosLoadedMsg{Scenarios: list, Err: err}
			}
		}
		list, err := catalog.Regenerate(ctx)
		return scenariosLoadedMsg{Scenarios: list, Err: err}
	}
}

func (s *HomeScreen) rebuildMenu() {
	var items []components.MenuItem
	switch {
	case s.loading:
		items = append(items, components.MenuItem{Label: "Loading scenarios...", Disabled: true})
	case len(s.scenarios) == 0:
		items = append(items, components.MenuItem{Label: "No scenarios available", Disabled: true})
	}
	if !s.loading {
		for _, sc := range s.scenarios {
			items = append(items, components.MenuItem{
				Label:  sc.Setting,
				Detail: sc.Goal,
				Action: s.open(sc),
			})
		}
	}
	items = append(items,
		components.MenuItem{Label: "NEW SCENARIOS", Disabled: s.loading, Action: func() tea.Cmd { return s.load(true) }},
		components.MenuItem{Label: "HISTORY", Action: func() tea.Cmd {
			return func() tea.Msg { return router.PushScreenMsg{Screen: history.New(s.convs)} }
		}},
		components.MenuItem{Label: "QUIT", Action: func() tea.Cmd { return tea.Quit }},
	)
	s.menu = components.NewMenu(items)
}

func (s *HomeScreen) open(sc store.Scenario) func() tea.Cmd {
	return func() tea.Cmd {
		return func() tea.Msg { return router.PushScreenMsg{Screen: chat.New(s.convs, sc)} }
	}
}

func (s *HomeScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case scenariosLoadedMsg:
		s.loading = false
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
		}
		s.scenarios = msg.Scenarios
		s.rebuildMenu()
		return s, nil
	}

	var cmd tea.Cmd
	s.menu, cmd = s.menu.Update(msg)
	return s, cmd
}

func (s *HomeScreen) View(width, height int) string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(theme.Title.Width(width).Render("Where do you want to practice today?"))
	b.WriteString("\n")
	b.WriteString(theme.Subtitle.Width(width).Render(fmt.Sprintf("%d scenarios ready", len(s.scenarios))))
	b.WriteString("\n\n")
	b.WriteString(lipgloss.NewStyle().PaddingLeft(4).Render(s.menu.View()))
	if s.errMsg != "" {
		b.WriteString("\n")
		b.WriteString(theme.Failed.Render("    " + s.errMsg))
	}
	return b.String()
}
