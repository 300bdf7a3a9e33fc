package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	ColorBorder = lipgloss.Color("#575653")
	ColorText   = lipgloss.Color("#FFFCF0")
	ColorMuted  = lipgloss.Color("#6F6E69")
	ColorAccent = lipgloss.Color("#3AA99F")
	ColorRed    = lipgloss.Color("#D14D41")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorText).
			Align(lipgloss.Center)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent)

	dimStyle = lipgloss.NewStyle().
			Foreground(ColorBorder)

	mutedStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	errorStyle = lipgloss.NewStyle().
			Foreground(ColorRed)
)

// Table is a bordered text table. Cells may contain styled text.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string

	// RightAlign marks columns, by index, whose cells are right aligned.
	RightAlign map[int]bool
}

// RenderTitle renders a centered title in a rounded box.
func RenderTitle(title string) string {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Width(55).
		Align(lipgloss.Center).
		Padding(0, 1).
		Render(titleStyle.Render(title))
}

// RenderTable renders t with box-drawing borders. A row holding the single
// cell "---" becomes a separator line.
func RenderTable(t Table) string {
	numCols := len(t.Headers)
	for _, row := range t.Rows {
		numCols = max(numCols, len(row))
	}
	if numCols == 0 {
		return ""
	}

	widths := make([]int, numCols)
	for i, h := range t.Headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		if isSeparator(row) {
			continue
		}
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	var b strings.Builder
	if t.Title != "" {
		b.WriteString("  " + headerStyle.Render(t.Title) + "\n")
	}

	b.WriteString(rule("╭", "┬", "╮", widths))
	if len(t.Headers) > 0 {
		cells := make([]string, numCols)
		for i := range cells {
			if i < len(t.Headers) {
				cells[i] = headerStyle.Render(t.Headers[i])
			}
		}
		b.WriteString(line(cells, widths, t.RightAlign))
		b.WriteString(rule("├", "┼", "┤", widths))
	}
	for _, row := range t.Rows {
		if isSeparator(row) {
			b.WriteString(rule("├", "┼", "┤", widths))
			continue
		}
		cells := make([]string, numCols)
		copy(cells, row)
		b.WriteString(line(cells, widths, t.RightAlign))
	}
	b.WriteString(rule("╰", "┴", "╯", widths))
	return b.String()
}

// Swatch renders a two-cell block filled with a "#rrggbb" colour.
func Swatch(hex string) string {
	return lipgloss.NewStyle().Background(lipgloss.Color(hex)).Render("  ")
}

// Bar renders a horizontal bar of width cells, filled to fraction in hex.
func Bar(fraction float64, width int, hex string) string {
	fraction = min(max(fraction, 0), 1)
	filled := int(fraction*float64(width) + 0.5)
	return lipgloss.NewStyle().Foreground(lipgloss.Color(hex)).Render(strings.Repeat("█", filled)) +
		dimStyle.Render(strings.Repeat("░", width-filled))
}

// Muted renders s in the secondary text colour.
func Muted(s string) string {
	return mutedStyle.Render(s)
}

// Error renders s in the error colour.
func Error(s string) string {
	return errorStyle.Render(s)
}

func isSeparator(row []string) bool {
	return len(row) == 1 && row[0] == "---"
}

func rule(left, mid, right string, widths []int) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		parts[i] = strings.Repeat("─", w+2)
	}
	return dimStyle.Render(left+strings.Join(parts, mid)+right) + "\n"
}

func line(cells []string, widths []int, right map[int]bool) string {
	var b strings.Builder
	b.WriteString(dimStyle.Render("│"))
	for i, cell := range cells {
		pad := strings.Repeat(" ", widths[i]-lipgloss.Width(cell))
		if right[i] {
			b.WriteString(" " + pad + cell + " ")
		} else {
			b.WriteString(" " + cell + pad + " ")
		}
		b.WriteString(dimStyle.Render("│"))
	}
	b.WriteString("\n")
	return b.String()
}
