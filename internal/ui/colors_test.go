package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestPalette(t *testing.T) {
	p := Styles()
	var _ Painter = p

	for name, render := range map[string]func(string) string{
		"Title": p.Title,
		"OK":    p.OK,
		"Err":   p.Err,
		"Warn":  p.Warn,
		"Help":  p.Help,
	} {
		if got := render("hello"); !strings.Contains(got, "hello") {
			t.Errorf("%s() lost its text: %q", name, got)
		}
	}

	if got := p.As("text", lipgloss.Color("#FF0000")); !strings.Contains(got, "text") {
		t.Errorf("As() lost its text: %q", got)
	}
	if got := p.On("text", lipgloss.Color("#FF0000")); !strings.Contains(got, "text") {
		t.Errorf("On() lost its text: %q", got)
	}
}
