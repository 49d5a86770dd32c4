package ui

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

const markdownCacheLimit = 512

type markdownKey struct {
	width   int
	content string
}

// markdown renders assistant messages. Rendering is slow compared to a frame,
// so results are cached per width and content.
type markdown struct {
	mu        sync.Mutex
	style     string
	renderers map[int]*glamour.TermRenderer
	cache     map[markdownKey][]string
}

func newMarkdown(style string) *markdown {
	if style == "" {
		style = "dark"
	}
	return &markdown{
		style:     style,
		renderers: make(map[int]*glamour.TermRenderer),
		cache:     make(map[markdownKey][]string),
	}
}

// Lines returns the rendered lines of content wrapped to width. Content
// glamour cannot render falls back to plain wrapping.
func (m *markdown) Lines(content string, width int) []string {
	width = maxInt(10, width)
	key := markdownKey{width: width, content: content}

	m.mu.Lock()
	defer m.mu.Unlock()
	if lines, ok := m.cache[key]; ok {
		return lines
	}

	lines := m.render(content, width)
	if len(m.cache) >= markdownCacheLimit {
		m.cache = make(map[markdownKey][]string)
	}
	m.cache[key] = lines
	return lines
}

func (m *markdown) render(content string, width int) []string {
	r, ok := m.renderers[width]
	if !ok {
		var err error
		r, err = glamour.NewTermRenderer(
			glamour.WithStandardStyle(m.style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return wrapLines(content, width)
		}
		m.renderers[width] = r
	}
	out, err := r.Render(content)
	if err != nil {
		return wrapLines(content, width)
	}
	out = strings.Trim(out, "\n")
	lines := strings.Split(out, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " ")
	}
	return lines
}

// wrapLines word-wraps plain text to width.
func wrapLines(content string, width int) []string {
	if strings.TrimSpace(content) == "" {
		return []string{""}
	}
	wrapped := lipgloss.NewStyle().Width(maxInt(1, width)).Render(content)
	lines := strings.Split(wrapped, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " ")
	}
	return lines
}
