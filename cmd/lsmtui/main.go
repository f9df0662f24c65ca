// Command lsmtui is a read-only terminal dashboard: it polls stats()
// over the command socket once a second and renders per-source
// population as bars, reusing the teacher's Bubble Tea model/view/update
// structure and style palette (cmd/tui/main.go) with the graph-specific
// views collapsed into a single storage-population dashboard.
package main

import (
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nrigby/lsmkv/pkg/transport"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF00FF")).
			MarginLeft(2).
			MarginTop(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FFFF")).
			Padding(0, 1)

	statsBoxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FF00")).
			Padding(1, 2).
			MarginRight(2)

	barStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	contentStyle = lipgloss.NewStyle().MarginLeft(2).MarginTop(1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			MarginTop(1).
			MarginLeft(2)
)

type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

func (k keyMap) ShortHelp() []key.Binding  { return []key.Binding{k.Quit} }
func (k keyMap) FullHelp() [][]key.Binding { return [][]key.Binding{{k.Quit}} }

type source struct {
	label string
	count int
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

type model struct {
	client       *transport.Client
	help         help.Model
	keys         keyMap
	startTime    time.Time
	logicalPairs int
	populations  []source
	err          error
}

func initialModel(client *transport.Client) model {
	return model{
		client:    client,
		help:      help.New(),
		keys:      keys,
		startTime: time.Now(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(pollStats(m.client), tickCmd())
}

type statsMsg struct {
	logicalPairs int
	populations  []source
	err          error
}

func pollStats(client *transport.Client) tea.Cmd {
	return func() tea.Msg {
		resp, err := client.Send("s")
		if err != nil {
			return statsMsg{err: err}
		}
		logical, pops, err := parseStats(resp)
		return statsMsg{logicalPairs: logical, populations: pops, err: err}
	}
}

// parseStats extracts the "Logical Pairs: N" and "BUF: n, L1: n, ..."
// lines from a stats() response; the following K:V:LABEL lines are not
// needed for the dashboard's population bars.
func parseStats(resp string) (int, []source, error) {
	lines := strings.Split(resp, "\n")
	if len(lines) < 1 {
		return 0, nil, fmt.Errorf("empty stats response")
	}

	logical := 0
	if _, err := fmt.Sscanf(lines[0], "Logical Pairs: %d", &logical); err != nil {
		return 0, nil, fmt.Errorf("parse logical pairs: %w", err)
	}

	var pops []source
	if len(lines) >= 2 {
		for _, part := range strings.Split(lines[1], ",") {
			part = strings.TrimSpace(part)
			fields := strings.SplitN(part, ":", 2)
			if len(fields) != 2 {
				continue
			}
			n, err := strconv.Atoi(strings.TrimSpace(fields[1]))
			if err != nil {
				continue
			}
			pops = append(pops, source{label: strings.TrimSpace(fields[0]), count: n})
		}
	}
	return logical, pops, nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
	case tickMsg:
		return m, tea.Batch(pollStats(m.client), tickCmd())
	case statsMsg:
		m.err = msg.err
		if msg.err == nil {
			m.logicalPairs = msg.logicalPairs
			m.populations = msg.populations
		}
	}
	return m, nil
}

func (m model) View() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("lsmkv storage dashboard"))
	s.WriteString("\n\n")

	if m.err != nil {
		s.WriteString(errorStyle.Render("error: " + m.err.Error()))
		s.WriteString("\n\n")
	}

	uptime := time.Since(m.startTime).Round(time.Second)
	summary := fmt.Sprintf("Logical Pairs: %d\nUptime:        %s", m.logicalPairs, uptime)
	s.WriteString(contentStyle.Render(statsBoxStyle.Render(summary)))
	s.WriteString("\n\n")

	s.WriteString(contentStyle.Render(headerStyle.Render("Per-Source Population")))
	s.WriteString("\n")
	s.WriteString(contentStyle.Render(renderBars(m.populations)))

	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render(m.help.ShortHelpView(m.keys.ShortHelp())))

	return s.String()
}

func renderBars(pops []source) string {
	if len(pops) == 0 {
		return "no data yet"
	}
	max := 1
	for _, p := range pops {
		if p.count > max {
			max = p.count
		}
	}
	var b strings.Builder
	for _, p := range pops {
		width := (p.count * 40) / max
		bar := barStyle.Render(strings.Repeat("#", width))
		fmt.Fprintf(&b, "%-4s %6d %s\n", p.label, p.count, bar)
	}
	return b.String()
}

func main() {
	addr := flag.String("addr", "ipc:///tmp/lsmkv.sock", "command socket address")
	flag.Parse()

	factory := transport.NewMangosSocketFactory()
	client, err := transport.NewClient(factory, *addr, false)
	if err != nil {
		log.Fatalf("failed to connect to %s: %v", *addr, err)
	}
	defer client.Close()

	p := tea.NewProgram(initialModel(client), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("error running program: %v", err)
	}
}
