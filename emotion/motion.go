package emotion

import (
	"math/rand"
	"sync"
)

// Entry is the bucket of motion clips and the facial expression for a label.
type Entry struct {
	Clips      []string `mapstructure:"clips" yaml:"clips"`
	Expression string   `mapstructure:"expression" yaml:"expression"`
	Weight     float64  `mapstructure:"weight" yaml:"weight"`
}

// Choice is the result of selecting from the table.
type Choice struct {
	MotionID         string
	Expression       string
	ExpressionWeight float64
}

// Rand is the subset of *rand.Rand used for selection.
type Rand interface {
	IntN(n int) int
}

var defaultEntries = map[Label]Entry{
	Normal:       {Clips: []string{"idle_talk_01", "idle_talk_02", "idle_talk_03"}, Expression: "neutral", Weight: 0},
	Thinking:     {Clips: []string{"think_chin", "think_look_up"}, Expression: "thinking", Weight: 0.6},
	Surprised:    {Clips: []string{"surprise_step_back", "surprise_hands_up"}, Expression: "surprised", Weight: 0.8},
	Shy:          {Clips: []string{"shy_look_away", "shy_fidget"}, Expression: "shy", Weight: 0.6},
	Grateful:     {Clips: []string{"bow_small", "hand_on_chest"}, Expression: "happy", Weight: 0.5},
	Proud:        {Clips: []string{"chest_out", "hands_on_hips"}, Expression: "confident", Weight: 0.7},
	Happy:        {Clips: []string{"happy_nod", "happy_gesture"}, Expression: "happy", Weight: 0.6},
	HappyStrong:  {Clips: []string{"jump_joy", "clap"}, Expression: "happy", Weight: 1},
	Sad:          {Clips: []string{"sad_look_down", "sad_sigh"}, Expression: "sad", Weight: 0.6},
	SadStrong:    {Clips: []string{"sad_cover_face", "sad_slump"}, Expression: "sad", Weight: 1},
	Angry:        {Clips: []string{"angry_cross_arms", "angry_point"}, Expression: "angry", Weight: 0.6},
	AngryStrong:  {Clips: []string{"angry_stomp", "angry_fist"}, Expression: "angry", Weight: 1},
	Disappointed: {Clips: []string{"shake_head", "shrug"}, Expression: "concerned", Weight: 0.6},
	StrongOK:     {Clips: []string{"thumbs_up", "ok_sign"}, Expression: "confident", Weight: 0.8},
}

// Table maps every label to an Entry. It is total: labels without an entry
// use the Normal entry.
type Table struct {
	mu      sync.RWMutex
	entries map[Label]Entry
}

// DefaultTable returns the built-in mapping.
func DefaultTable() *Table {
	t := &Table{entries: make(map[Label]Entry, len(defaultEntries))}
	for l, e := range defaultEntries {
		t.entries[l] = e
	}
	return t
}

// NewTable returns the default mapping with overrides applied. Unknown
// labels in overrides are ignored and returned.
func NewTable(overrides map[string]Entry) (*Table, []string) {
	t := DefaultTable()
	var unknown []string
	for name, e := range overrides {
		l := Label(name)
		if !l.Valid() {
			unknown = append(unknown, name)
			continue
		}
		t.Set(l, e)
	}
	return t, unknown
}

// Set replaces the entry for l.
func (t *Table) Set(l Label, e Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[l] = e
}

// Entry returns the entry for l, falling back to Normal.
func (t *Table) Entry(l Label) Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if e, ok := t.entries[l]; ok {
		return e
	}
	return t.entries[Normal]
}

// Select draws a clip from the label's bucket. An empty bucket yields an
// empty MotionID. A nil rng uses the global source.
func (t *Table) Select(l Label, rng Rand) Choice {
	e := t.Entry(l)
	c := Choice{Expression: e.Expression, ExpressionWeight: e.Weight}
	if len(e.Clips) == 0 {
		return c
	}
	var i int
	if rng != nil {
		i = rng.IntN(len(e.Clips))
	} else {
		i = rand.Intn(len(e.Clips))
	}
	c.MotionID = e.Clips[i]
	return c
}
