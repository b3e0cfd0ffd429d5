// Package emotion holds the closed set of emotion labels a character can
// show, the classifiers that assign one to a line of dialogue, and the table
// mapping each label to a motion clip and facial expression.
package emotion

import (
	"strings"
	"unicode"
)

// Label is one member of the closed emotion set.
type Label string

const (
	Normal       Label = "normal"
	Thinking     Label = "thinking"
	Surprised    Label = "surprised"
	Shy          Label = "shy"
	Grateful     Label = "grateful"
	Proud        Label = "proud"
	Happy        Label = "happy"
	HappyStrong  Label = "happy_strong"
	Sad          Label = "sad"
	SadStrong    Label = "sad_strong"
	Angry        Label = "angry"
	AngryStrong  Label = "angry_strong"
	Disappointed Label = "disappointed"
	StrongOK     Label = "strong_ok"
)

// Labels lists every label in canonical order.
var Labels = []Label{
	Normal, Thinking, Surprised, Shy, Grateful, Proud,
	Happy, HappyStrong, Sad, SadStrong, Angry, AngryStrong,
	Disappointed, StrongOK,
}

var known = func() map[Label]bool {
	m := make(map[Label]bool, len(Labels))
	for _, l := range Labels {
		m[l] = true
	}
	return m
}()

// Valid reports whether l is in the closed set.
func (l Label) Valid() bool { return known[l] }

func (l Label) String() string { return string(l) }

// Parse extracts a label from free-form classifier output. Exactly one
// distinct label must appear; anything else yields Normal.
func Parse(s string) Label {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r != '_' && !unicode.IsLetter(r)
	})

	var found Label
	for _, f := range fields {
		l := Label(f)
		if !l.Valid() {
			continue
		}
		if found != "" && found != l {
			return Normal
		}
		found = l
	}
	if found == "" {
		return Normal
	}
	return found
}
