package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"marketdash/internal/client"
	"marketdash/pkg/models"
)

const (
	cardWidth  = 34
	maxNotices = 5
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	gainStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	noticeStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("3"))
	symbolStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	cardStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1).
			Width(cardWidth)
)

// viewMsg carries the poller's state after each applied fetch.
type viewMsg struct {
	view      client.View
	active    int
	triggered int
}

type searchMsg struct {
	query   string
	matches []models.Quote
}

type noticeMsg struct {
	text string
}

type model struct {
	search   textinput.Model
	viewport viewport.Model
	searcher *client.Searcher

	view      client.View
	query     string
	matches   []models.Quote
	notices   []string
	active    int
	triggered int

	width  int
	height int
	ready  bool
}

func newModel(searcher *client.Searcher) model {
	ti := textinput.New()
	ti.Placeholder = "Search by symbol or company name"
	ti.Prompt = "🔍 "
	ti.CharLimit = 64
	ti.Focus()

	return model{
		search:   ti,
		searcher: searcher,
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "down", "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

		before := m.search.Value()
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		cmds = append(cmds, cmd)
		if after := m.search.Value(); after != before && m.searcher != nil {
			m.searcher.Search(after)
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		vpHeight := msg.Height - m.chromeHeight()
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = vpHeight
		}

	case viewMsg:
		m.view = msg.view
		m.active, m.triggered = msg.active, msg.triggered
		if m.query != "" {
			m.matches = client.Filter(msg.view.Quotes, m.query)
		}

	case searchMsg:
		// Only the latest keystroke's result counts.
		if msg.query == m.search.Value() {
			m.query = strings.TrimSpace(msg.query)
			m.matches = msg.matches
		}

	case noticeMsg:
		m.notices = append([]string{msg.text}, m.notices...)
		if len(m.notices) > maxNotices {
			m.notices = m.notices[:maxNotices]
		}
	}

	if m.ready {
		m.viewport.SetContent(m.renderCards())
	}
	return m, tea.Batch(cmds...)
}

func (m model) chromeHeight() int {
	return 4 + len(m.notices)
}

func (m model) visibleQuotes() []models.Quote {
	if m.query == "" {
		return m.view.Quotes
	}
	return m.matches
}

func (m model) renderCards() string {
	quotes := m.visibleQuotes()
	if len(quotes) == 0 {
		if m.query != "" {
			return dimStyle.Render(fmt.Sprintf("No stocks match %q", m.query))
		}
		return dimStyle.Render("Loading market data...")
	}

	perRow := 1
	if m.width > 0 {
		perRow = m.width / (cardWidth + 4)
		if perRow < 1 {
			perRow = 1
		}
	}

	var rows []string
	for i := 0; i < len(quotes); i += perRow {
		end := i + perRow
		if end > len(quotes) {
			end = len(quotes)
		}
		cards := make([]string, 0, perRow)
		for _, q := range quotes[i:end] {
			cards = append(cards, renderCard(client.NewCard(q)))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cards...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func renderCard(c client.Card) string {
	change := gainStyle
	if !c.Positive {
		change = lossStyle
	}
	body := strings.Join([]string{
		symbolStyle.Render(c.Symbol) + "  " + dimStyle.Render(c.Name),
		c.Price + "  " + change.Render(c.Change),
		dimStyle.Render(c.Volume),
		dimStyle.Render(c.Range),
		fmt.Sprintf("Success rate: %d%%", c.SuccessRate),
	}, "\n")
	return cardStyle.Render(body)
}

func (m model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var b strings.Builder

	updated := "never"
	if !m.view.UpdatedAt.IsZero() {
		updated = m.view.UpdatedAt.Format(time.TimeOnly)
	}
	b.WriteString(titleStyle.Render("Indian Market Dashboard"))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  updated %s · alerts %d active, %d triggered", updated, m.active, m.triggered)))
	b.WriteString("\n")

	if m.view.Err != nil {
		b.WriteString(errorStyle.Render("Failed to fetch stock data: " + m.view.Err.Error()))
	}
	b.WriteString("\n")

	for _, n := range m.notices {
		b.WriteString(noticeStyle.Render(n))
		b.WriteString("\n")
	}

	b.WriteString(m.search.View())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("esc quit · ↑/↓ scroll"))
	return b.String()
}
