package handlers

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	statusColorGreen = lipgloss.Color("#22c55e")
	statusColorRed   = lipgloss.Color("#ef4444")
	statusColorDim   = lipgloss.Color("#6b7280")
	statusColorWhite = lipgloss.Color("#f9fafb")
)

var (
	statusTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(statusColorWhite)

	statusHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Padding(0, 1)

	statusCellStyle = lipgloss.NewStyle().
			Padding(0, 1)

	statusDimStyle = lipgloss.NewStyle().
			Foreground(statusColorDim)

	statusReadyStyle = statusCellStyle.
				Foreground(statusColorGreen)

	statusNotReadyStyle = statusCellStyle.
				Foreground(statusColorRed)
)

var statusHeaders = []string{"NAME", "POOL", "ROLE", "SERVER", "PUBLIC IP", "PRIVATE IP", "NODE"}

// nodeColumn is the index of the NODE column.
const nodeColumn = 6

// renderStatus produces the lipgloss-styled status output.
func renderStatus(cluster string, rows []statusRow, kubeErr error) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(statusTitleStyle.Render(fmt.Sprintf("  oxide status: %s", cluster)))
	b.WriteString("\n\n")

	if len(rows) == 0 {
		b.WriteString(statusDimStyle.Render("  No servers found. Run 'oxide create' to create the cluster."))
		b.WriteString("\n")
		return b.String()
	}

	cells := make([][]string, len(rows))
	for i, r := range rows {
		cells[i] = []string{r.Name, r.Pool, r.Role, r.Server, r.PublicIP, r.PrivateIP, r.Node}
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(statusDimStyle).
		Headers(statusHeaders...).
		Rows(cells...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return statusHeaderStyle
			case col == nodeColumn && strings.HasPrefix(cells[row][col], "Ready"):
				return statusReadyStyle
			case col == nodeColumn && cells[row][col] != "-":
				return statusNotReadyStyle
			default:
				return statusCellStyle
			}
		})
	b.WriteString(t.Render())
	b.WriteString("\n")

	switch {
	case kubeErr != nil:
		b.WriteString(statusDimStyle.Render(fmt.Sprintf("  Node readiness unavailable: %v", kubeErr)))
		b.WriteString("\n")
	case rows[0].Node == "-":
		b.WriteString(statusDimStyle.Render("  No kubeconfig yet, node readiness not shown."))
		b.WriteString("\n")
	}
	return b.String()
}
