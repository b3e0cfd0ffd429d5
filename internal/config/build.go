package config

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/troupe/agent"
	"github.com/dgnsrekt/troupe/character"
	"github.com/dgnsrekt/troupe/dialogue"
	"github.com/dgnsrekt/troupe/emotion"
	"github.com/dgnsrekt/troupe/internal/cache"
	"github.com/dgnsrekt/troupe/llm"
	"github.com/dgnsrekt/troupe/tts"
	"github.com/dgnsrekt/troupe/tts/audio"

	// Providers and engines register themselves.
	_ "github.com/dgnsrekt/troupe/llm/anthropic"
	_ "github.com/dgnsrekt/troupe/llm/mock"
	_ "github.com/dgnsrekt/troupe/llm/openai"
	_ "github.com/dgnsrekt/troupe/tts/engines/mock"
	_ "github.com/dgnsrekt/troupe/tts/engines/openai"
	_ "github.com/dgnsrekt/troupe/tts/engines/piper"
)

// Builder turns a Config into agents and an orchestrator.
type Builder struct {
	cfg    *Config
	creds  Credentials
	player audio.Player
	store  *cache.Manager
	logger *log.Logger
}

// NewBuilder opens the audio cache, if enabled. player may be nil, in which
// case clips are only timed.
func NewBuilder(cfg *Config, creds Credentials, player audio.Player, logger *log.Logger) (*Builder, error) {
	if logger == nil {
		logger = log.Default()
	}
	b := &Builder{cfg: cfg, creds: creds, player: player, logger: logger}

	if cfg.Cache.Enabled {
		cc := cache.DefaultConfig()
		cc.Dir = cfg.Cache.Dir
		if cfg.Cache.MemoryMB > 0 {
			cc.MemoryCapacity = int64(cfg.Cache.MemoryMB) << 20
		}
		if cfg.Cache.DiskMB > 0 {
			cc.DiskCapacity = int64(cfg.Cache.DiskMB) << 20
		}
		if cfg.Cache.TTL > 0 {
			cc.TTL = cfg.Cache.TTL
		}
		store, err := cache.NewManager(cc, logger.WithPrefix("cache"))
		if err != nil {
			return nil, fmt.Errorf("unable to open audio cache: %w", err)
		}
		b.store = store
	}
	return b, nil
}

// Cache returns the audio cache, or nil when disabled.
func (b *Builder) Cache() *cache.Manager { return b.store }

// Close flushes the audio cache.
func (b *Builder) Close() error {
	if b.store == nil {
		return nil
	}
	return b.store.Close()
}

// Session builds an orchestrator with one agent per configured character,
// in file order.
func (b *Builder) Session(opts ...dialogue.Option) (*dialogue.Orchestrator, []*agent.Agent, error) {
	opts = append([]dialogue.Option{dialogue.WithLogger(b.logger.WithPrefix("dialogue"))}, opts...)
	o := dialogue.New(b.cfg.Session, opts...)

	agents := make([]*agent.Agent, 0, len(b.cfg.Characters))
	for _, p := range b.cfg.Characters {
		a, err := b.Agent(p)
		if err != nil {
			return nil, nil, err
		}
		if err := o.Add(a); err != nil {
			return nil, nil, err
		}
		agents = append(agents, a)
	}
	return o, agents, nil
}

// Agent builds the speaking pipeline of one character.
func (b *Builder) Agent(p character.Profile) (*agent.Agent, error) {
	logger := b.logger.WithPrefix("agent")

	backend, err := b.Backend(p)
	if err != nil {
		return nil, fmt.Errorf("character %s: %w", p.ID, err)
	}

	motions, unknown := emotion.NewTable(b.cfg.Motions)
	if len(unknown) > 0 {
		logger.Warn("ignoring motions for unknown emotions", "labels", unknown)
	}

	var classifier emotion.Classifier
	switch strings.ToLower(b.cfg.Emotion.Classifier) {
	case "", "keyword":
		classifier = emotion.KeywordClassifier{}
	case "llm":
		classifier = emotion.NewLLMClassifier(backend)
	}

	return agent.New(agent.Config{
		Profile:         p,
		Backend:         backend,
		Classifier:      classifier,
		ClassifyTimeout: b.cfg.Emotion.Timeout,
		Motions:         motions,
		Speech:          b.Speech(p),
		Player:          b.player,
		Viseme:          b.cfg.Viseme,
		MemoryLimit:     b.cfg.MemoryLimit,
		Logger:          logger,
	})
}

// Backend builds the language model of a character. A credential in the
// profile wins over the environment.
func (b *Builder) Backend(p character.Profile) (llm.Backend, error) {
	key := p.LLM.Credential
	if key == "" {
		key = b.creds.For(p.LLM.Provider)
	}
	return llm.New(llm.Config{
		Provider:          p.LLM.Provider,
		Model:             p.LLM.Model,
		APIKey:            key,
		Timeout:           b.cfg.LLM.Timeout,
		MaxTokens:         b.cfg.LLM.MaxTokens,
		Temperature:       b.cfg.LLM.Temperature,
		RequestsPerMinute: b.cfg.LLM.RequestsPerMinute,
	})
}

// Speech builds the fallback chain of a character: its own engine, then
// the configured fallbacks, then silence. Engines that cannot be built are
// logged and left out.
func (b *Builder) Speech(p character.Profile) *tts.Chain {
	logger := b.logger.WithPrefix("tts")

	names := []string{p.Speech.Engine}
	names = append(names, b.cfg.Speech.Fallback...)

	var engines []tts.Engine
	seen := make(map[string]bool)
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || name == tts.SilentName || seen[name] {
			continue
		}
		seen[name] = true

		e, err := tts.NewEngine(b.engineConfig(name))
		if err != nil {
			logger.Warn("speech engine unavailable", "character", p.ID, "engine", name, "err", err)
			continue
		}
		if b.store != nil {
			e = tts.NewCached(e, b.store, logger)
		}
		engines = append(engines, e)
	}

	return tts.NewChain(engines,
		tts.WithLogger(logger),
		tts.WithBenching(b.cfg.Speech.BenchAfter, b.cfg.Speech.BenchFor))
}

func (b *Builder) engineConfig(name string) tts.EngineConfig {
	ec := tts.EngineConfig{Name: name, Timeout: b.cfg.Speech.Timeout}
	switch name {
	case "piper":
		ec.Binary = b.cfg.Speech.Piper.Binary
		ec.Model = b.cfg.Speech.Piper.Model
	case "openai":
		ec.Model = b.cfg.Speech.OpenAI.Model
		ec.BaseURL = b.cfg.Speech.OpenAI.BaseURL
		ec.APIKey = b.creds.OpenAI
	}
	return ec
}

// Reload applies an edited configuration to a running session. Profiles of
// known characters are replaced, new characters join the roster and
// removed ones leave it. Everything takes effect at the next turn boundary.
func (b *Builder) Reload(o *dialogue.Orchestrator, cfg *Config) {
	b.cfg = cfg
	logger := b.logger.WithPrefix("config")

	current := make(map[string]*agent.Agent)
	for _, s := range o.Speakers() {
		if a, ok := s.(*agent.Agent); ok {
			current[a.ID()] = a
		}
	}

	keep := make(map[string]bool)
	for _, p := range cfg.Characters {
		keep[p.ID] = true
		if a, ok := current[p.ID]; ok {
			if a.Profile().LLM != p.LLM {
				logger.Warn("language model changes apply after restart", "character", p.ID)
			}
			if err := a.Update(p); err != nil {
				logger.Warn("unable to update character", "character", p.ID, "err", err)
			}
			continue
		}
		a, err := b.Agent(p)
		if err != nil {
			logger.Warn("unable to add character", "character", p.ID, "err", err)
			continue
		}
		if err := o.Add(a); err != nil {
			logger.Warn("unable to add character", "character", p.ID, "err", err)
			continue
		}
		logger.Info("character joined", "character", p.ID)
	}
	for id := range current {
		if !keep[id] {
			_ = o.Remove(id)
			logger.Info("character left", "character", id)
		}
	}

	o.SetMaxTurns(cfg.Session.MaxTurns)
	o.SetTurnMode(cfg.Session.Mode)
	o.SetContext(cfg.Session.Context)
}
