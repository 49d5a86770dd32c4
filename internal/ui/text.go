package ui

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

func compactSingleLine(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// truncate cuts text to limit display cells, keeping escape sequences intact.
func truncate(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	return ansi.Truncate(text, limit, "…")
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func clampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
