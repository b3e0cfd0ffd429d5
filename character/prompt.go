package character

import "strings"

// behaviorPolicy is appended to every system prompt.
const behaviorPolicy = `Stay in character at all times and answer as this character would.
Reply in 2-3 sentences of natural spoken dialogue.
Express negative emotions too (annoyance, sadness, doubt, anger) when the moment calls for it.
Do not default to being positive or agreeable in every reply.
Do not describe actions or write stage directions; only say the words.`

// SystemPrompt builds the system prompt for one turn from the profile and an
// optional session-level context.
func SystemPrompt(p Profile, extraContext string) string {
	var b strings.Builder

	b.WriteString("You are ")
	b.WriteString(p.Name())
	b.WriteString(".\n\n")

	b.WriteString("Personality:\n")
	b.WriteString(strings.TrimSpace(p.Personality))
	b.WriteString("\n")

	if ctx := strings.TrimSpace(p.Context); ctx != "" {
		b.WriteString("\nSituation:\n")
		b.WriteString(ctx)
		b.WriteString("\n")
	}

	if extra := strings.TrimSpace(extraContext); extra != "" {
		b.WriteString("\nScene:\n")
		b.WriteString(extra)
		b.WriteString("\n")
	}

	b.WriteString("\nRules:\n")
	b.WriteString(behaviorPolicy)

	return b.String()
}
