package cli

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestRenderTable_AlignsColumns(t *testing.T) {
	out := RenderTable(Table{
		Title:   "Expenses",
		Headers: []string{"Date", "Description", "Amount"},
		Rows: [][]string{
			{"2024-03-05", "Groceries", "LKR 10.00"},
			{"---"},
			{"", "Total", "LKR 1,234.50"},
		},
		RightAlign: map[int]bool{2: true},
	})

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if !strings.Contains(lines[0], "Expenses") {
		t.Fatalf("title line = %q", lines[0])
	}
	body := lines[1:]
	if len(body) != 7 {
		t.Fatalf("got %d table lines, want 7:\n%s", len(body), out)
	}
	width := lipgloss.Width(body[0])
	for i, l := range body {
		if w := lipgloss.Width(l); w != width {
			t.Errorf("line %d width %d, want %d: %q", i, w, width, l)
		}
	}
	if !strings.Contains(out, "   LKR 10.00 │") {
		t.Errorf("amount not right aligned:\n%s", out)
	}
}

func TestRenderTable_Empty(t *testing.T) {
	if got := RenderTable(Table{}); got != "" {
		t.Errorf("RenderTable(empty) = %q", got)
	}
}

func TestBar(t *testing.T) {
	tests := []struct {
		fraction   float64
		wantFilled int
	}{
		{0, 0},
		{0.5, 5},
		{1, 10},
		{1.7, 10},
		{-1, 0},
	}
	for _, tt := range tests {
		got := Bar(tt.fraction, 10, "#3AA99F")
		if lipgloss.Width(got) != 10 {
			t.Errorf("Bar(%v) width = %d", tt.fraction, lipgloss.Width(got))
		}
		if n := strings.Count(got, "█"); n != tt.wantFilled {
			t.Errorf("Bar(%v) filled = %d, want %d", tt.fraction, n, tt.wantFilled)
		}
	}
}

func TestSwatchWidth(t *testing.T) {
	if w := lipgloss.Width(Swatch("#ff0000")); w != 2 {
		t.Errorf("swatch width = %d, want 2", w)
	}
}
