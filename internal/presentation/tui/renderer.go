package tui

import (
	"github.com/charmbracelet/glamour"
)

// DefaultWordWrap is the column at which rendered lines wrap.
const DefaultWordWrap = 80

// NewRenderer returns a function that renders dialogue lines as Markdown using glamour.
// If the renderer cannot be built, content is returned unchanged.
func NewRenderer() func(string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
		glamour.WithWordWrap(DefaultWordWrap),
	)
	if err != nil {
		return func(markdown string) (string, error) { return markdown, nil }
	}
	return r.Render
}
