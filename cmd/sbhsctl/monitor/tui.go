package monitor

import (
	"fmt"
	"slices"

	"github.com/CruiseDevice/sbhsd"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type model struct {
	table table.Model
}

func newTUI() *model {
	columns := []table.Column{
		{Title: "Boards", Width: 24},
		{Title: "Temperature", Width: 12},
		{Title: "Heat", Width: 6},
		{Title: "Fan", Width: 6},
		{Title: "Read at", Width: 10},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(false),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		Foreground(lipgloss.Color("#ff8700")).
		BorderForeground(lipgloss.Color("#ff8700")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#ffffff")).
		Bold(false)
	t.SetStyles(s)

	return &model{
		table: t,
	}
}

func (m *model) Init() tea.Cmd {
	return nil
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.table.SetWidth(msg.Width)
		m.table.SetHeight(msg.Height)
	case []sbhsd.Reading:
		m.table.SetRows(rows(msg))
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	}
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *model) View() string {
	return m.table.View()
}

func rows(readings []sbhsd.Reading) []table.Row {
	slices.SortStableFunc(readings, func(a, b sbhsd.Reading) int {
		return int(a.USB) - int(b.USB)
	})

	rows := make([]table.Row, 0, len(readings))
	for _, r := range readings {
		temperature := "n/a"
		if r.Temperature != 0 {
			temperature = fmt.Sprintf("%5.1f°C", r.Temperature)
		}

		readAt := "-"
		if !r.ReadAt.IsZero() {
			readAt = r.ReadAt.Local().Format("15:04:05")
		}

		rows = append(rows, table.Row{
			fmt.Sprintf("%s(%s)", r.USB, r.Label),
			temperature,
			percent(r.Heat),
			percent(r.Fan),
			readAt,
		})
	}

	return rows
}

func percent(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%3d%%", *v)
}
