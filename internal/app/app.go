package app

import (
	"context"
	"fmt"
	"os"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/lingoflow/internal/router"
	"github.com/abhisek/lingoflow/internal/screen"
	"github.com/abhisek/lingoflow/internal/screens/home"
	"github.com/abhisek/lingoflow/internal/store"
	"github.com/abhisek/lingoflow/internal/ui/layout"
)

// Options carries the services the screens run on.
type Options struct {
	Settings      store.SettingsRepo
	Catalog       home.Catalog
	Conversations home.Conversations
}

type settingsLoadedMsg struct {
	Settings *store.Settings
}

// AppModel is the root Bubble Tea model.
type AppModel struct {
	router   *router.Router
	settings store.SettingsRepo
	score    int
	language string
	width    int
	height   int
}

// newAppModel creates a new AppModel with the home screen.
func newAppModel(opts Options) AppModel {
	return AppModel{
		router:   router.New(home.New(opts.Catalog, opts.Conversations)),
		settings: opts.Settings,
	}
}

func (m AppModel) Init() tea.Cmd {
	return tea.Batch(m.loadSettings(), m.router.Active().Init())
}

func (m AppModel) loadSettings() tea.Cmd {
	repo := m.settings
	if repo == nil {
		return nil
	}
	return func() tea.Msg {
		st, err := repo.Get(context.Background())
		if err != nil {
			return nil
		}
		return settingsLoadedMsg{Settings: st}
	}
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case settingsLoadedMsg:
		m.score = msg.Settings.Score
		m.language = msg.Settings.PracticeLanguage
		return m, nil

	case screen.RefreshHeaderMsg:
		return m, m.loadSettings()

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}

	cmd := m.router.Update(msg)
	return m, cmd
}

func (m AppModel) View() tea.View {
	v := tea.NewView("")
	v.AltScreen = true

	if m.width == 0 || m.height == 0 {
		return v
	}

	if layout.IsTooSmall(m.width, m.height) {
		v.SetContent(layout.RenderMinSizeMessage(m.width, m.height))
		return v
	}

	active := m.router.Active()
	title := ""
	if active != nil {
		title = active.Title()
	}

	header := layout.RenderHeader(title, m.score, m.language, m.width)

	var footerHints []layout.KeyHint
	if p, ok := active.(screen.KeyHintProvider); ok {
		footerHints = p.KeyHints()
	}
	if footerHints == nil {
		footerHints = []layout.KeyHint{
			{Key: "↑↓", Description: "Navigate"},
			{Key: "Enter", Description: "Select"},
		}
	}
	footerHints = append(footerHints, layout.KeyHint{Key: "Ctrl+C", Description: "Quit"})

	footer := layout.RenderFooter(footerHints, m.width)

	headerHeight := lipgloss.Height(header)
	footerHeight := lipgloss.Height(footer)
	contentHeight := m.height - headerHeight - footerHeight
	if contentHeight < 0 {
		contentHeight = 0
	}

	content := m.router.View(m.width, contentHeight)
	frame := layout.RenderFrame(header, content, footer, m.width, m.height)

	v.SetContent(frame)
	return v
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	p := tea.NewProgram(newAppModel(opts))
	_, err := p.Run()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error running program:", err)
		return err
	}
	return nil
}
