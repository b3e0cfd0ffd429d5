// Package agent runs the speaking pipeline of one character: ask the model
// for a line, read its emotion, pick a motion, synthesize and play it while
// the mouth follows the voice.
package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/troupe/character"
	"github.com/dgnsrekt/troupe/emotion"
	"github.com/dgnsrekt/troupe/llm"
	"github.com/dgnsrekt/troupe/tts"
	"github.com/dgnsrekt/troupe/tts/audio"
	"github.com/dgnsrekt/troupe/viseme"
)

// Utterance is one committed line of dialogue.
type Utterance struct {
	SpeakerID        string        `json:"speaker_id" yaml:"speaker_id"`
	SpeakerName      string        `json:"speaker_name" yaml:"speaker_name"`
	Text             string        `json:"text" yaml:"text"`
	Emotion          emotion.Label `json:"emotion" yaml:"emotion"`
	MotionID         string        `json:"motion_id,omitempty" yaml:"motion_id,omitempty"`
	Expression       string        `json:"expression,omitempty" yaml:"expression,omitempty"`
	ExpressionWeight float64       `json:"expression_weight" yaml:"expression_weight"`
	Timestamp        time.Time     `json:"timestamp" yaml:"timestamp"`
}

// Config wires an agent to its collaborators. Only Profile and Backend are
// required.
type Config struct {
	Profile         character.Profile
	Backend         llm.Backend
	Classifier      emotion.Classifier
	ClassifyTimeout time.Duration
	Motions         *emotion.Table
	Speech          tts.Engine
	Player          audio.Player
	Viseme          viseme.Config
	FPS             int
	MemoryLimit     int
	Rand            emotion.Rand
	Logger          *log.Logger
	Now             func() time.Time
}

// Agent is a SpeechAgent. At most one turn runs at a time.
type Agent struct {
	mu      sync.RWMutex
	profile character.Profile

	memory          *character.Memory
	backend         llm.Backend
	classifier      emotion.Classifier
	classifyTimeout time.Duration
	motions         *emotion.Table
	speech          tts.Engine
	player          audio.Player
	driver          *viseme.Driver
	output          *Output
	rng             emotion.Rand
	logger          *log.Logger
	now             func() time.Time

	busy atomic.Bool
}

// New builds an agent from cfg.
func New(cfg Config) (*Agent, error) {
	if err := cfg.Profile.Validate(); err != nil {
		return nil, err
	}
	if cfg.Backend == nil {
		return nil, errors.New("agent " + cfg.Profile.ID + ": no language model backend")
	}

	a := &Agent{
		profile:         cfg.Profile,
		memory:          character.NewMemory(cfg.MemoryLimit),
		backend:         cfg.Backend,
		classifier:      cfg.Classifier,
		classifyTimeout: cfg.ClassifyTimeout,
		motions:         cfg.Motions,
		speech:          cfg.Speech,
		player:          cfg.Player,
		output:          NewOutput(cfg.Profile.ID),
		rng:             cfg.Rand,
		logger:          cfg.Logger,
		now:             cfg.Now,
	}
	if a.logger == nil {
		a.logger = log.Default().WithPrefix("agent")
	}
	a.logger = a.logger.With("agent", cfg.Profile.ID)
	if a.motions == nil {
		a.motions = emotion.DefaultTable()
	}
	if a.speech == nil {
		a.speech = tts.NewChain(nil, tts.WithLogger(a.logger))
	}
	if a.player == nil {
		a.player = audio.NewClockPlayer(nil)
	}
	if a.now == nil {
		a.now = time.Now
	}
	if cfg.Viseme.FFTSize == 0 {
		cfg.Viseme = viseme.DefaultConfig()
	}
	synth := viseme.New(cfg.Viseme, viseme.WithLogger(a.logger))
	a.driver = viseme.NewDriver(synth, cfg.FPS, a.output.SetViseme)
	return a, nil
}

// ID returns the character id.
func (a *Agent) ID() string { return a.Profile().ID }

// Name returns the display name.
func (a *Agent) Name() string { return a.Profile().Name() }

// Enabled reports whether the character takes part in sessions.
func (a *Agent) Enabled() bool { return a.Profile().Enabled }

// Profile returns a snapshot of the profile.
func (a *Agent) Profile() character.Profile {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.profile
}

// SetEnabled toggles participation. It takes effect from the next session
// or roster reload.
func (a *Agent) SetEnabled(enabled bool) {
	a.mu.Lock()
	a.profile.Enabled = enabled
	a.mu.Unlock()
}

// Update replaces the profile. The id cannot change. A turn in flight keeps
// the profile it started with.
func (a *Agent) Update(p character.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if p.ID != a.profile.ID {
		return errors.New("agent " + a.profile.ID + ": profile id cannot change to " + p.ID)
	}
	a.profile = p
	return nil
}

// Memory returns the conversation memory.
func (a *Agent) Memory() *character.Memory { return a.memory }

// Output returns the animation side channel.
func (a *Agent) Output() *Output { return a.output }

// Busy reports whether a turn is in flight.
func (a *Agent) Busy() bool { return a.busy.Load() }

// GenerateTurn speaks one line in reply to prompt and returns it once
// playback has ended. It fails with ErrBusy when a turn is already running
// and with a *TurnError when the model fails or ctx is cancelled; in both
// cases memory is unchanged.
func (a *Agent) GenerateTurn(ctx context.Context, prompt, extraContext string) (*Utterance, error) {
	if !a.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer a.busy.Store(false)

	p := a.Profile()
	start := a.now()

	text, err := a.backend.Complete(ctx, character.SystemPrompt(p, extraContext), a.history(prompt))
	if err != nil {
		return nil, &TurnError{Stage: StageLanguageModel, Agent: p.ID, Err: err}
	}
	text = strings.TrimSpace(text)

	label := emotion.Normal
	if a.classifier != nil {
		if label, err = emotion.Classify(ctx, a.classifier, text, a.classifyTimeout); err != nil {
			a.logger.Warn("emotion classification failed", "err", err, "emotion", label)
		}
	}
	choice := a.motions.Select(label, a.rng)

	clip, err := a.speech.Synthesize(ctx, SpeakableText(text), p.Speech.VoiceID)
	if err != nil || clip == nil {
		a.logger.Warn("speech synthesis failed, speaking silently", "err", err)
		clip, _ = tts.Silent{}.Synthesize(ctx, text, "")
	}

	a.output.update(func(f *Frame) {
		f.Speaking = true
		f.MotionID = choice.MotionID
		f.Expression = choice.Expression
		f.ExpressionWeight = choice.ExpressionWeight
	})
	err = a.play(ctx, clip)
	a.output.update(func(f *Frame) {
		f.Speaking = false
		f.Viseme = 0
		f.MotionID = ""
	})
	if err != nil {
		return nil, &TurnError{Stage: StagePlayback, Agent: p.ID, Err: err}
	}

	a.memory.Append(
		character.Entry{Role: character.RoleUser, Content: prompt},
		character.Entry{Role: character.RoleAgent, Content: text},
	)

	a.logger.Debug("turn complete",
		"emotion", label,
		"motion", choice.MotionID,
		"engine", a.speech.Name(),
		"elapsed", a.now().Sub(start))

	return &Utterance{
		SpeakerID:        p.ID,
		SpeakerName:      p.Name(),
		Text:             text,
		Emotion:          label,
		MotionID:         choice.MotionID,
		Expression:       choice.Expression,
		ExpressionWeight: choice.ExpressionWeight,
		Timestamp:        a.now(),
	}, nil
}

func (a *Agent) history(prompt string) []llm.Message {
	entries := a.memory.Entries()
	msgs := make([]llm.Message, 0, len(entries)+1)
	for _, e := range entries {
		role := llm.RoleUser
		if e.Role == character.RoleAgent {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: e.Content})
	}
	return append(msgs, llm.Message{Role: llm.RoleUser, Content: prompt})
}

// VisemeMode reports what drove the mouth during the most recent line:
// the audio itself or the fallback pattern.
func (a *Agent) VisemeMode() viseme.Mode { return a.driver.LastMode() }

// play blocks until the clip ends or ctx is cancelled, driving the mouth
// meanwhile. A player failure falls back to timing the clip by the clock.
func (a *Agent) play(ctx context.Context, clip *tts.Audio) error {
	handle, err := a.player.Play(ctx, clip)
	if err != nil {
		a.logger.Warn("audio playback failed, timing clip instead", "err", err)
		handle, err = audio.NewClockPlayer(a.now).Play(ctx, clip)
		if err != nil {
			return err
		}
	}

	var src viseme.Source
	if clip.Analyzable {
		src = handle
	}
	a.driver.Start(src, clip.Duration)
	defer a.driver.Stop()

	select {
	case <-handle.Done():
	case <-ctx.Done():
		handle.Stop()
	}
	return ctx.Err()
}
