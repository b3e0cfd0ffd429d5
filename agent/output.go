package agent

import "sync"

// Frame is the animation state of one character at an instant.
type Frame struct {
	AgentID          string  `json:"agent_id"`
	Viseme           float64 `json:"viseme"`
	Speaking         bool    `json:"speaking"`
	MotionID         string  `json:"motion_id,omitempty"`
	Expression       string  `json:"expression,omitempty"`
	ExpressionWeight float64 `json:"expression_weight,omitempty"`
}

// Output carries an agent's animation state to renderers. Readers either
// poll Current or Subscribe to every change.
type Output struct {
	mu    sync.Mutex
	frame Frame
	subs  map[int]chan Frame
	next  int
}

// NewOutput creates an output for agentID with a closed mouth.
func NewOutput(agentID string) *Output {
	return &Output{frame: Frame{AgentID: agentID}, subs: make(map[int]chan Frame)}
}

// Current returns the latest frame.
func (o *Output) Current() Frame {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.frame
}

// Subscribe returns a channel receiving every frame change and a function
// that unsubscribes and closes it. Frames are dropped for slow readers.
func (o *Output) Subscribe(buffer int) (<-chan Frame, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Frame, buffer)

	o.mu.Lock()
	id := o.next
	o.next++
	o.subs[id] = ch
	o.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.subs, id)
			o.mu.Unlock()
			close(ch)
		})
	}
}

// SetViseme publishes a new mouth openness.
func (o *Output) SetViseme(v float64) {
	o.update(func(f *Frame) { f.Viseme = v })
}

func (o *Output) update(fn func(*Frame)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(&o.frame)
	for _, ch := range o.subs {
		select {
		case ch <- o.frame:
		default:
		}
	}
}
