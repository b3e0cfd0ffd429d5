// Package dialogue schedules turns between speaking characters.
//
// An Orchestrator owns the roster, the session state machine and the shared
// history. Exactly one turn runs at a time; the next is scheduled after an
// inter-turn delay once the previous one has finished speaking.
package dialogue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/troupe/agent"
	"github.com/dgnsrekt/troupe/emotion"
)

const (
	// DefaultTurnDelay is the pause between two turns.
	DefaultTurnDelay = time.Second
	// DefaultHistoryWindow is how many past utterances a reply prompt quotes.
	DefaultHistoryWindow = 8
)

// Speaker is a participant able to take a turn. *agent.Agent implements it.
type Speaker interface {
	ID() string
	Name() string
	Enabled() bool
	SetEnabled(enabled bool)
	GenerateTurn(ctx context.Context, prompt, extraContext string) (*agent.Utterance, error)
}

var _ Speaker = (*agent.Agent)(nil)

// Config configures sessions. MaxTurns 0 means unlimited.
type Config struct {
	MaxTurns      int           `mapstructure:"max_turns"`
	Mode          TurnMode      `mapstructure:"turn_mode"`
	Context       string        `mapstructure:"context"`
	TurnDelay     time.Duration `mapstructure:"turn_delay"`
	HistoryWindow int           `mapstructure:"history_window"`
	HistoryLimit  int           `mapstructure:"history_limit"`
}

// Session is a snapshot of the orchestration state.
type Session struct {
	Topic            string   `json:"topic"`
	ParticipantIDs   []string `json:"participant_ids"`
	TurnMode         TurnMode `json:"turn_mode"`
	CurrentSpeakerID string   `json:"current_speaker_id,omitempty"`
	TurnCount        int      `json:"turn_count"`
	MaxTurns         int      `json:"max_turns"`
	Running          bool     `json:"running"`
	Paused           bool     `json:"paused"`
	State            State    `json:"state"`
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithRand sets the random source of the dynamic policy.
func WithRand(r emotion.Rand) Option {
	return func(o *Orchestrator) { o.rng = r }
}

// WithBus publishes events on b instead of a private bus.
func WithBus(b *Bus) Option {
	return func(o *Orchestrator) { o.bus = b }
}

type pendingTurn struct {
	speaker string
	prev    *agent.Utterance
	kind    TurnType
}

// Orchestrator is the TurnScheduler.
type Orchestrator struct {
	logger  *log.Logger
	rng     emotion.Rand
	bus     *Bus
	history *History

	mu           sync.Mutex
	cfg          Config
	sm           *stateMachine
	roster       []Speaker
	participants []string
	topic        string
	current      string
	turnCount    int
	gen          uint64
	cancel       context.CancelFunc
	ctx          context.Context
	timer        *time.Timer
	pending      *pendingTurn
	done         chan struct{}
}

// New creates an idle orchestrator.
func New(cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{sm: newStateMachine()}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = log.Default().WithPrefix("dialogue")
	}
	if o.bus == nil {
		o.bus = NewBus()
	}
	o.cfg = normalize(cfg)
	o.history = NewHistory(o.cfg.HistoryLimit)

	o.done = make(chan struct{})
	close(o.done)

	for _, s := range []State{StateRunning, StatePaused, StateStopped} {
		s := s
		o.sm.onEnter[s] = func() {
			o.logger.Debug("state changed", "state", s)
			o.bus.Publish(Event{Type: EventStateChanged, Time: time.Now(), State: s})
		}
	}
	return o
}

func normalize(cfg Config) Config {
	if cfg.Mode == "" {
		cfg.Mode = RoundRobin
	}
	if cfg.TurnDelay == 0 {
		cfg.TurnDelay = DefaultTurnDelay
	}
	if cfg.TurnDelay < 0 {
		cfg.TurnDelay = 0
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = DefaultHistoryWindow
	}
	if cfg.MaxTurns < 0 {
		cfg.MaxTurns = 0
	}
	return cfg
}

// Bus returns the event bus.
func (o *Orchestrator) Bus() *Bus { return o.bus }

// History returns the session history.
func (o *Orchestrator) History() *History { return o.history }

// Add appends a speaker to the roster.
func (o *Orchestrator) Add(s Speaker) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.lookupLocked(s.ID()) != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateSpeaker, s.ID())
	}
	o.roster = append(o.roster, s)
	return nil
}

// Remove drops a speaker from the roster. A turn it is taking completes.
func (o *Orchestrator) Remove(id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, s := range o.roster {
		if s.ID() == id {
			o.roster = append(o.roster[:i], o.roster[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownSpeaker, id)
}

// SetEnabled enables or disables a speaker. It applies from the next turn
// boundary and never alters recorded history.
func (o *Orchestrator) SetEnabled(id string, enabled bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.lookupLocked(id)
	if s == nil {
		return fmt.Errorf("%w: %s", ErrUnknownSpeaker, id)
	}
	s.SetEnabled(enabled)
	return nil
}

// Speakers returns the roster in order.
func (o *Orchestrator) Speakers() []Speaker {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Speaker(nil), o.roster...)
}

// SetMaxTurns changes the turn ceiling. 0 means unlimited.
func (o *Orchestrator) SetMaxTurns(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cfg.MaxTurns = max(n, 0)
}

// SetTurnMode changes the policy used from the next turn boundary.
func (o *Orchestrator) SetTurnMode(m TurnMode) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cfg.Mode = m
}

// SetContext changes the scene description given to every speaker.
func (o *Orchestrator) SetContext(c string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cfg.Context = c
}

// State returns the lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sm.current
}

// Done is closed when the current session ends.
func (o *Orchestrator) Done() <-chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.done
}

// Session returns a snapshot of the session.
func (o *Orchestrator) Session() Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Session{
		Topic:            o.topic,
		ParticipantIDs:   append([]string(nil), o.participants...),
		TurnMode:         o.cfg.Mode,
		CurrentSpeakerID: o.current,
		TurnCount:        o.turnCount,
		MaxTurns:         o.cfg.MaxTurns,
		Running:          o.sm.current == StateRunning || o.sm.current == StatePaused,
		Paused:           o.sm.current == StatePaused,
		State:            o.sm.current,
	}
}

// Start begins a session on topic with the enabled speakers in roster
// order. It fails with ErrNoParticipants, leaving the state unchanged, when
// nobody is enabled.
func (o *Orchestrator) Start(topic string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if s := o.sm.current; s == StateRunning || s == StatePaused {
		return ErrAlreadyRunning
	}
	order := o.enabledLocked()
	if len(order) == 0 {
		return ErrNoParticipants
	}

	o.gen++
	o.topic = strings.TrimSpace(topic)
	o.turnCount = 0
	o.current = ""
	o.pending = nil
	o.history.reset()
	o.ctx, o.cancel = context.WithCancel(context.Background())
	o.done = make(chan struct{})

	o.bus.Publish(Event{Type: EventConversationStart, Time: time.Now(), Topic: o.topic})
	o.sm.transition(StateRunning)
	o.logger.Info("conversation started", "topic", o.topic, "participants", o.participants, "mode", o.cfg.Mode)

	go o.runTurn(o.gen, order[0].id, nil, TurnInitial)
	return nil
}

// Pause stops advancing turns at the next boundary. A turn in flight
// completes. It reports whether the state changed.
func (o *Orchestrator) Pause() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sm.current != StateRunning {
		return false
	}
	return o.sm.transition(StatePaused)
}

// Resume continues a paused session, running the turn that was held back
// if any.
func (o *Orchestrator) Resume() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sm.current != StatePaused {
		return false
	}
	o.sm.transition(StateRunning)
	if p := o.pending; p != nil {
		o.pending = nil
		go o.runTurn(o.gen, p.speaker, p.prev, p.kind)
	}
	return true
}

// Stop ends the session. The turn in flight is cancelled and its result,
// should it still arrive, is discarded.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s := o.sm.current; s != StateRunning && s != StatePaused {
		return
	}
	o.endLocked()
}

// endLocked moves to Stopped and invalidates everything scheduled.
func (o *Orchestrator) endLocked() {
	o.gen++
	o.current = ""
	o.pending = nil
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	if o.cancel != nil {
		o.cancel()
	}
	o.sm.transition(StateStopped)
	o.bus.Publish(Event{Type: EventConversationEnd, Time: time.Now(), State: StateStopped})
	o.logger.Info("conversation ended", "turns", o.turnCount, "utterances", o.history.Len())
	close(o.done)
}

func (o *Orchestrator) runTurn(gen uint64, speakerID string, prev *agent.Utterance, kind TurnType) {
	o.mu.Lock()
	if gen != o.gen {
		o.mu.Unlock()
		return
	}
	switch o.sm.current {
	case StateRunning:
	case StatePaused:
		o.pending = &pendingTurn{speaker: speakerID, prev: prev, kind: kind}
		o.mu.Unlock()
		return
	default:
		o.mu.Unlock()
		return
	}
	if o.cfg.MaxTurns > 0 && o.turnCount >= o.cfg.MaxTurns {
		o.endLocked()
		o.mu.Unlock()
		return
	}

	sp := o.lookupLocked(speakerID)
	if sp == nil || !sp.Enabled() {
		last := ""
		if prev != nil {
			last = prev.SpeakerID
		}
		speakerID = o.nextLocked(last)
		sp = o.lookupLocked(speakerID)
		if sp == nil {
			o.logger.Warn("no enabled participants left")
			o.endLocked()
			o.mu.Unlock()
			return
		}
	}

	o.turnCount++
	o.current = speakerID
	ctx := o.ctx
	prompt := o.promptLocked(sp, prev, kind)
	extra := o.cfg.Context
	o.mu.Unlock()

	o.bus.Publish(Event{Type: EventTurnStart, Time: time.Now(), SpeakerID: speakerID, TurnType: kind, State: StateRunning})
	o.logger.Debug("turn started", "speaker", speakerID, "type", kind)

	u, err := sp.GenerateTurn(ctx, prompt, extra)

	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.gen {
		o.logger.Debug("discarding stale turn", "speaker", speakerID)
		return
	}
	o.current = ""

	if err != nil {
		o.logger.Warn("turn failed", "speaker", speakerID, "err", err)
		o.bus.Publish(Event{Type: EventTurnFailed, Time: time.Now(), SpeakerID: speakerID, Error: err.Error(), State: o.sm.current})
	} else {
		o.history.append(*u)
		prev, kind = u, TurnResponse
		o.bus.Publish(Event{Type: EventTurnEnd, Time: time.Now(), SpeakerID: speakerID, Utterance: u, State: o.sm.current})
		o.bus.Publish(Event{Type: EventLogUpdate, Time: time.Now(), History: o.history.Snapshot(), State: o.sm.current})
	}

	if o.cfg.MaxTurns > 0 && o.turnCount >= o.cfg.MaxTurns {
		o.endLocked()
		return
	}
	next := o.nextLocked(speakerID)
	if next == "" {
		o.endLocked()
		return
	}
	o.timer = time.AfterFunc(o.cfg.TurnDelay, func() { o.runTurn(gen, next, prev, kind) })
}

// enabledLocked returns the enabled speakers in roster order and records
// them as the current participants.
func (o *Orchestrator) enabledLocked() []participant {
	var order []participant
	o.participants = o.participants[:0]
	for _, s := range o.roster {
		if s.Enabled() {
			order = append(order, participant{id: s.ID(), name: s.Name()})
			o.participants = append(o.participants, s.ID())
		}
	}
	return order
}

func (o *Orchestrator) nextLocked(last string) string {
	order := o.enabledLocked()
	if o.cfg.Mode == Dynamic {
		return nextDynamic(order, last, o.history.Recent(2), o.rng)
	}
	roster := make([]string, len(o.roster))
	for i, s := range o.roster {
		roster[i] = s.ID()
	}
	return nextRoundRobin(order, roster, last)
}

func (o *Orchestrator) lookupLocked(id string) Speaker {
	for _, s := range o.roster {
		if s.ID() == id {
			return s
		}
	}
	return nil
}

// promptLocked builds the user prompt for a turn. Opening turns carry the
// topic; replies also quote recent history and the line being answered.
func (o *Orchestrator) promptLocked(sp Speaker, prev *agent.Utterance, kind TurnType) string {
	var b strings.Builder
	if o.topic != "" {
		b.WriteString("Topic: ")
		b.WriteString(o.topic)
		b.WriteString("\n")
	}

	if kind == TurnInitial || prev == nil {
		var others []string
		for _, id := range o.participants {
			if id == sp.ID() {
				continue
			}
			// the roster may have changed since participants was recorded
			if other := o.lookupLocked(id); other != nil && other.Enabled() {
				others = append(others, other.Name())
			}
		}
		if len(others) > 0 {
			fmt.Fprintf(&b, "You are talking with %s.\n", strings.Join(others, ", "))
		}
		b.WriteString("Open the conversation on this topic.")
		return b.String()
	}

	if recent := o.history.Recent(o.cfg.HistoryWindow); len(recent) > 0 {
		b.WriteString("\nConversation so far:\n")
		for _, u := range recent {
			fmt.Fprintf(&b, "%s: %s\n", u.SpeakerName, u.Text)
		}
	}
	fmt.Fprintf(&b, "\n%s just said: %q\nReply to %s.", prev.SpeakerName, prev.Text, prev.SpeakerName)
	return b.String()
}
