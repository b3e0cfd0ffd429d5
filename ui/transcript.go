package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/dustin/go-humanize"

	"github.com/dgnsrekt/troupe/agent"
	"github.com/dgnsrekt/troupe/emotion"
)

// Transcript renders a conversation as markdown.
func Transcript(topic string, history []agent.Utterance) string {
	var b strings.Builder
	if topic != "" {
		fmt.Fprintf(&b, "# %s\n\n", topic)
	}
	for _, u := range history {
		b.WriteString(Line(u))
		b.WriteString("\n\n")
	}
	return b.String()
}

// Line renders one utterance as a markdown paragraph.
func Line(u agent.Utterance) string {
	name := u.SpeakerName
	if name == "" {
		name = u.SpeakerID
	}
	s := fmt.Sprintf("**%s**", name)
	if u.Emotion != "" && u.Emotion != emotion.Normal {
		s += fmt.Sprintf(" _(%s)_", u.Emotion)
	}
	return s + ": " + u.Text
}

// Render formats markdown for the terminal. An empty or "auto" style picks
// light or dark from the terminal background.
func Render(md, style string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamourStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("error creating glamour renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("error rendering markdown: %w", err)
	}
	return out, nil
}

func glamourStyle(style string) glamour.TermRendererOption {
	if style == "" || style == "auto" {
		return glamour.WithAutoStyle()
	}
	return glamour.WithStylePath(style)
}

// ago is the relative age shown next to the last line in the status bar.
func ago(u agent.Utterance) string {
	if u.Timestamp.IsZero() {
		return ""
	}
	return humanize.Time(u.Timestamp)
}
