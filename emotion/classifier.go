package emotion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgnsrekt/troupe/llm"
)

// DefaultTimeout bounds a classification call.
const DefaultTimeout = 8 * time.Second

// ErrNoClassifier is returned by Classify when no classifier is configured.
var ErrNoClassifier = errors.New("no emotion classifier configured")

// Classifier assigns an emotion label to a line of dialogue.
type Classifier interface {
	Classify(ctx context.Context, text string) (Label, error)
}

// ClassificationError reports a failed classification. Callers log it and
// fall back to Normal.
type ClassificationError struct {
	Err error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("emotion classification: %v", e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// Classify runs c with timeout and always yields a usable label. The error,
// if any, is a *ClassificationError describing why Normal was substituted.
func Classify(ctx context.Context, c Classifier, text string, timeout time.Duration) (Label, error) {
	if c == nil {
		return Normal, &ClassificationError{Err: ErrNoClassifier}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		label Label
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("classifier panic: %v", r)}
			}
		}()
		l, err := c.Classify(ctx, text)
		ch <- result{l, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return Normal, &ClassificationError{Err: r.err}
		}
		if !r.label.Valid() {
			return Normal, nil
		}
		return r.label, nil
	case <-ctx.Done():
		return Normal, &ClassificationError{Err: ctx.Err()}
	}
}

// LLMClassifier asks a language model for the label.
type LLMClassifier struct {
	backend llm.Backend
}

// NewLLMClassifier creates a classifier backed by b.
func NewLLMClassifier(b llm.Backend) *LLMClassifier {
	return &LLMClassifier{backend: b}
}

var classifyPrompt = "You label the emotion of a line of dialogue. " +
	"Answer with exactly one word from this list and nothing else: " +
	joinLabels() + "."

func joinLabels() string {
	names := make([]string, len(Labels))
	for i, l := range Labels {
		names[i] = string(l)
	}
	return strings.Join(names, ", ")
}

// Classify implements Classifier.
func (c *LLMClassifier) Classify(ctx context.Context, text string) (Label, error) {
	out, err := c.backend.Complete(ctx, classifyPrompt, []llm.Message{{Role: llm.RoleUser, Content: text}})
	if err != nil {
		return Normal, err
	}
	return Parse(out), nil
}

// KeywordClassifier labels text by cue words. It needs no network and is
// used by the offline demo.
type KeywordClassifier struct{}

var cues = []struct {
	label Label
	words []string
}{
	{AngryStrong, []string{"furious", "outrageous", "infuriating", "hate"}},
	{Angry, []string{"angry", "annoyed", "ugh", "ridiculous", "annoying"}},
	{SadStrong, []string{"devastated", "heartbroken", "miserable"}},
	{Sad, []string{"sad", "sorry", "miss", "lonely", "unfortunately"}},
	{Disappointed, []string{"disappointed", "overrated", "meh", "letdown"}},
	{HappyStrong, []string{"amazing", "fantastic", "wonderful", "love", "thrilled"}},
	{Happy, []string{"happy", "glad", "fun", "nice", "great", "haha"}},
	{Grateful, []string{"thank", "thanks", "grateful", "appreciate"}},
	{Proud, []string{"proud", "accomplished", "nailed"}},
	{Shy, []string{"blush", "embarrassed", "shy", "um"}},
	{Surprised, []string{"wow", "whoa", "really", "surprising", "unbelievable"}},
	{Thinking, []string{"hmm", "think", "wonder", "perhaps", "maybe"}},
	{StrongOK, []string{"absolutely", "definitely", "deal", "agreed"}},
}

// Classify implements Classifier. The cue group with the most hits wins. No
// hits, or a tie for the most, yields Normal.
func (KeywordClassifier) Classify(_ context.Context, text string) (Label, error) {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && r != '\''
	})

	best, bestHits, tied := Normal, 0, false
	for _, cue := range cues {
		hits := 0
		for _, w := range words {
			for _, c := range cue.words {
				if matchesCue(w, c) {
					hits++
				}
			}
		}
		switch {
		case hits > bestHits:
			best, bestHits, tied = cue.label, hits, false
		case hits > 0 && hits == bestHits:
			tied = true
		}
	}
	if tied {
		return Normal, nil
	}
	return best, nil
}

// inflections are the endings a cue word may carry and still match.
var inflections = []string{"s", "es", "ed", "ing", "ly"}

// matchesCue reports whether w is cue or an inflected form of it.
func matchesCue(w, cue string) bool {
	if w == cue {
		return true
	}
	if len(cue) < 3 || !strings.HasPrefix(w, cue) {
		return false
	}
	rest := w[len(cue):]
	if rest == "d" && strings.HasSuffix(cue, "e") {
		return true
	}
	for _, suffix := range inflections {
		if rest == suffix {
			return true
		}
	}
	return false
}
