package dialogue

import (
	"fmt"
	"math/rand"
	"strings"
	"unicode"

	"github.com/dgnsrekt/troupe/agent"
	"github.com/dgnsrekt/troupe/emotion"
)

// TurnMode selects how the next speaker is chosen.
type TurnMode string

const (
	RoundRobin TurnMode = "round_robin"
	Dynamic    TurnMode = "dynamic"
)

// ParseTurnMode accepts "round_robin", "round-robin", "roundrobin" and
// "dynamic".
func ParseTurnMode(s string) (TurnMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "round_robin", "round-robin", "roundrobin":
		return RoundRobin, nil
	case "dynamic":
		return Dynamic, nil
	default:
		return "", fmt.Errorf("unknown turn mode %q", s)
	}
}

// TurnType distinguishes the opening turn from replies.
type TurnType string

const (
	TurnInitial  TurnType = "initial"
	TurnResponse TurnType = "response"
)

// participant is what a policy needs to know about a speaker.
type participant struct {
	id   string
	name string
}

// nextRoundRobin returns the participant after last in order, wrapping.
// When last is no longer in order, the walk continues from its place in
// roster. An unknown last starts from the first participant.
func nextRoundRobin(order []participant, roster []string, last string) string {
	if len(order) == 0 {
		return ""
	}
	for i, p := range order {
		if p.id == last {
			return order[(i+1)%len(order)].id
		}
	}

	enabled := make(map[string]bool, len(order))
	for _, p := range order {
		enabled[p.id] = true
	}
	for i, id := range roster {
		if id != last {
			continue
		}
		for j := 1; j < len(roster); j++ {
			if next := roster[(i+j)%len(roster)]; enabled[next] {
				return next
			}
		}
	}
	return order[0].id
}

// nextDynamic picks a participant other than the last speaker: first anyone
// mentioned by name in the last line (roster order breaks ties), then
// anyone who did not speak in the last two turns, then anyone at random.
func nextDynamic(order []participant, last string, recent []agent.Utterance, rng emotion.Rand) string {
	var others []participant
	for _, p := range order {
		if p.id != last {
			others = append(others, p)
		}
	}
	switch len(others) {
	case 0:
		if len(order) > 0 {
			return order[0].id
		}
		return ""
	case 1:
		return others[0].id
	}

	if len(recent) > 0 {
		text := recent[len(recent)-1].Text
		for _, p := range others {
			if mentions(text, p.name) || mentions(text, p.id) {
				return p.id
			}
		}
	}

	spoke := make(map[string]bool)
	if len(recent) > 2 {
		recent = recent[len(recent)-2:]
	}
	for _, u := range recent {
		spoke[u.SpeakerID] = true
	}
	var quiet []participant
	for _, p := range others {
		if !spoke[p.id] {
			quiet = append(quiet, p)
		}
	}
	if len(quiet) > 0 {
		return quiet[intN(rng, len(quiet))].id
	}
	return others[intN(rng, len(others))].id
}

// mentions reports whether name occurs in text as a whole word, ignoring
// case.
func mentions(text, name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	lower, needle := strings.ToLower(text), strings.ToLower(name)
	for from := 0; ; {
		i := strings.Index(lower[from:], needle)
		if i < 0 {
			return false
		}
		start, end := from+i, from+i+len(needle)
		if boundary(lower, start-1) && boundary(lower, end) {
			return true
		}
		from = start + 1
	}
}

func boundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	r := rune(s[i])
	return r < 0x80 && !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func intN(rng emotion.Rand, n int) int {
	if rng == nil {
		return rand.Intn(n)
	}
	return rng.IntN(n)
}
