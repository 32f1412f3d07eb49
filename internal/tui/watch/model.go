package watch

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/toolfleet/toolfleet/internal/job"
)

const (
	pollInterval = 2 * time.Second
	fetchLimit   = 50
)

// Model is the main BubbleTea model for the watch TUI.
type Model struct {
	apiURL string
	apiKey string

	width  int
	height int

	jobs      []*job.Job
	total     int
	connected bool
	uptime    int64

	table table.Model
	theme Theme

	lastError string
}

// New creates a new watch TUI model.
func New(apiURL, apiKey string) *Model {
	theme := NewDefaultTheme()

	columns := []table.Column{
		{Title: "ID", Width: 10},
		{Title: "Type", Width: 28},
		{Title: "Status", Width: 11},
		{Title: "Progress", Width: 8},
		{Title: "Updated", Width: 20},
	}

	tbl := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).Foreground(lipgloss.Color("#61AFEF"))
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("#E5C07B")).Bold(true)
	tbl.SetStyles(styles)

	return &Model{
		apiURL: apiURL,
		apiKey: apiKey,
		table:  tbl,
		theme:  theme,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		fetchJobs(m.apiURL, m.apiKey, fetchLimit),
		fetchHealth(m.apiURL, m.apiKey),
		tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) }),
		tea.EnterAltScreen,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "c":
			if j := m.selectedJob(); j != nil && !j.Status.Terminal() {
				return m, cancelJob(m.apiURL, m.apiKey, j.ID)
			}
		case "r":
			return m, fetchJobs(m.apiURL, m.apiKey, fetchLimit)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if msg.Height > 10 {
			m.table.SetHeight(msg.Height - 8)
		}

	case tickMsg:
		return m, tea.Batch(
			fetchJobs(m.apiURL, m.apiKey, fetchLimit),
			tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) }),
		)

	case jobsMsg:
		m.jobs = msg.Items
		m.total = msg.Total
		m.connected = true
		m.lastError = ""
		m.table.SetRows(m.rows())

	case healthMsg:
		m.connected = true
		m.uptime = msg.UptimeSeconds
		return m, tea.Tick(5*time.Second, func(time.Time) tea.Msg {
			return fetchHealth(m.apiURL, m.apiKey)()
		})

	case cancelledMsg:
		return m, fetchJobs(m.apiURL, m.apiKey, fetchLimit)

	case errMsg:
		m.connected = false
		m.lastError = msg.Error()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.width == 0 {
		return "Connecting to toolfleet..."
	}

	status := m.theme.StatusFailed.Render("● disconnected")
	if m.connected {
		status = m.theme.StatusSucceeded.Render("● connected")
	}
	title := m.theme.Title.Render("toolfleet watch")
	header := lipgloss.JoinHorizontal(lipgloss.Center,
		title, "  ", status, "  ",
		m.theme.Dim.Render(fmt.Sprintf("%d jobs", m.total)),
	)

	var errBar string
	if m.lastError != "" {
		errBar = m.theme.StatusFailed.Render(fmt.Sprintf(" ⚠ %s", m.lastError))
	}

	help := m.theme.Dim.Render(" [q] Quit • [↑/↓] Navigate • [c] Cancel job • [r] Refresh")

	parts := []string{header, m.theme.Border.Render(m.table.View())}
	if errBar != "" {
		parts = append(parts, errBar)
	}
	parts = append(parts, help)

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}

func (m Model) rows() []table.Row {
	rows := make([]table.Row, 0, len(m.jobs))
	for _, j := range m.jobs {
		rows = append(rows, table.Row{
			shortID(j.ID),
			j.Type,
			m.renderStatus(j.Status),
			fmt.Sprintf("%3d%%", j.Progress),
			j.UpdatedAt.Local().Format("2006-01-02 15:04:05"),
		})
	}
	return rows
}

func (m Model) selectedJob() *job.Job {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.jobs) {
		return nil
	}
	return m.jobs[idx]
}

func (m Model) renderStatus(s job.Status) string {
	switch s {
	case job.StatusSucceeded:
		return m.theme.StatusSucceeded.Render(string(s))
	case job.StatusRunning:
		return m.theme.StatusRunning.Render(string(s))
	case job.StatusFailed:
		return m.theme.StatusFailed.Render(string(s))
	case job.StatusCancelling:
		return m.theme.StatusCancelling.Render(string(s))
	case job.StatusCancelled:
		return m.theme.StatusCancelled.Render(string(s))
	default:
		return m.theme.StatusQueued.Render(string(s))
	}
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// Run starts the watch TUI and blocks until the user quits.
func Run(apiURL, apiKey string) error {
	p := tea.NewProgram(New(apiURL, apiKey))
	_, err := p.Run()
	return err
}
