// Package config loads troupe's configuration file, resolves provider
// credentials and builds the session objects it describes.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/troupe/character"
	"github.com/dgnsrekt/troupe/dialogue"
	"github.com/dgnsrekt/troupe/emotion"
	"github.com/dgnsrekt/troupe/viseme"
)

// Config is the decoded configuration file.
type Config struct {
	LogLevel    string                   `mapstructure:"log_level"`
	Mute        bool                     `mapstructure:"mute"`
	MemoryLimit int                      `mapstructure:"memory_limit"`
	Session     dialogue.Config          `mapstructure:"session"`
	LLM         LLMConfig                `mapstructure:"llm"`
	Speech      SpeechConfig             `mapstructure:"speech"`
	Emotion     EmotionConfig            `mapstructure:"emotion"`
	Viseme      viseme.Config            `mapstructure:"viseme"`
	Cache       CacheConfig              `mapstructure:"cache"`
	Server      ServerConfig             `mapstructure:"server"`
	Characters  []character.Profile      `mapstructure:"characters"`
	Motions     map[string]emotion.Entry `mapstructure:"motions"`
}

// LLMConfig holds settings shared by every language-model backend.
type LLMConfig struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxTokens         int           `mapstructure:"max_tokens"`
	Temperature       float64       `mapstructure:"temperature"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
}

// SpeechConfig configures synthesis engines. Fallback engines are tried,
// in order, after a character's own engine.
type SpeechConfig struct {
	Fallback   []string      `mapstructure:"fallback"`
	Timeout    time.Duration `mapstructure:"timeout"`
	BenchAfter int           `mapstructure:"bench_after"`
	BenchFor   time.Duration `mapstructure:"bench_for"`
	Piper      PiperConfig   `mapstructure:"piper"`
	OpenAI     OpenAIConfig  `mapstructure:"openai"`
}

// PiperConfig configures the local piper engine.
type PiperConfig struct {
	Binary string `mapstructure:"binary"`
	Model  string `mapstructure:"model"`
}

// OpenAIConfig configures the OpenAI speech engine.
type OpenAIConfig struct {
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// EmotionConfig selects the classifier: "keyword", "llm" or "none".
type EmotionConfig struct {
	Classifier string        `mapstructure:"classifier"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// CacheConfig configures the synthesized-audio cache.
type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Dir      string        `mapstructure:"dir"`
	MemoryMB int           `mapstructure:"memory_mb"`
	DiskMB   int           `mapstructure:"disk_mb"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// ServerConfig configures the HTTP control surface.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("mute", false)
	v.SetDefault("memory_limit", character.DefaultMemoryLimit)

	v.SetDefault("session.max_turns", 0)
	v.SetDefault("session.turn_mode", string(dialogue.RoundRobin))
	v.SetDefault("session.turn_delay", dialogue.DefaultTurnDelay)
	v.SetDefault("session.history_window", dialogue.DefaultHistoryWindow)
	v.SetDefault("session.history_limit", dialogue.DefaultHistoryLimit)

	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.max_tokens", 400)
	v.SetDefault("llm.temperature", 0.9)
	v.SetDefault("llm.requests_per_minute", 0)

	v.SetDefault("speech.fallback", []string{})
	v.SetDefault("speech.timeout", 30*time.Second)
	v.SetDefault("speech.bench_after", 3)
	v.SetDefault("speech.bench_for", time.Minute)

	v.SetDefault("emotion.classifier", "keyword")
	v.SetDefault("emotion.timeout", emotion.DefaultTimeout)

	d := viseme.DefaultConfig()
	v.SetDefault("viseme.fft_size", d.FFTSize)
	v.SetDefault("viseme.smoothing", d.Smoothing)
	v.SetDefault("viseme.low_band", d.LowBandFraction)
	v.SetDefault("viseme.min_db", d.MinDecibels)
	v.SetDefault("viseme.max_db", d.MaxDecibels)
	v.SetDefault("viseme.exponent", d.Exponent)
	v.SetDefault("viseme.pattern", d.Pattern)
	v.SetDefault("viseme.pattern_step", d.PatternStep)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.dir", "")
	v.SetDefault("cache.memory_mb", 64)
	v.SetDefault("cache.disk_mb", 512)
	v.SetDefault("cache.ttl", 7*24*time.Hour)

	v.SetDefault("server.addr", "127.0.0.1:8787")
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the roster and enumerated settings.
func (c *Config) Validate() error {
	var errs []error

	mode, err := dialogue.ParseTurnMode(string(c.Session.Mode))
	if err != nil {
		errs = append(errs, err)
	}
	c.Session.Mode = mode

	switch strings.ToLower(c.Emotion.Classifier) {
	case "", "keyword", "llm", "none":
	default:
		errs = append(errs, fmt.Errorf("unknown emotion classifier %q", c.Emotion.Classifier))
	}

	seen := make(map[string]bool)
	for _, p := range c.Characters {
		if err := p.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[p.ID] {
			errs = append(errs, fmt.Errorf("duplicate character id %q", p.ID))
		}
		seen[p.ID] = true
	}
	return errors.Join(errs...)
}

// Credentials are provider API keys read from the environment.
type Credentials struct {
	OpenAI     string `env:"OPENAI_API_KEY"`
	Anthropic  string `env:"ANTHROPIC_API_KEY"`
	DashScope  string `env:"DASHSCOPE_API_KEY"`
	OpenRouter string `env:"OPENROUTER_API_KEY"`
}

// For returns the key of a provider, or "" if none is known.
func (c Credentials) For(provider string) string {
	switch provider {
	case "openai":
		return c.OpenAI
	case "anthropic":
		return c.Anthropic
	case "qwen":
		return c.DashScope
	case "openrouter":
		return c.OpenRouter
	default:
		return ""
	}
}

// LoadCredentials loads the given dotenv files, skipping missing ones, and
// then reads provider keys from the environment. Variables already set in
// the environment win over the files.
func LoadCredentials(files ...string) (Credentials, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Credentials{}, fmt.Errorf("unable to load %s: %w", f, err)
		}
	}
	creds, err := env.ParseAs[Credentials]()
	if err != nil {
		return Credentials{}, fmt.Errorf("unable to parse credentials: %w", err)
	}
	return creds, nil
}

// Watch reloads the configuration whenever its file changes and passes
// each valid result to fn. Invalid edits are logged and ignored.
func Watch(v *viper.Viper, logger *log.Logger, fn func(*Config)) {
	if logger == nil {
		logger = log.Default().WithPrefix("config")
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := Load(v)
		if err != nil {
			logger.Warn("ignoring invalid configuration", "path", e.Name, "err", err)
			return
		}
		logger.Info("configuration reloaded", "path", e.Name)
		fn(cfg)
	})
	v.WatchConfig()
}
