package tts

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"

	"github.com/charmbracelet/log"
)

// Store is the byte cache Cached writes to. internal/cache.Manager
// satisfies it.
type Store interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
}

// Cached memoizes an engine's output by engine, voice and text.
type Cached struct {
	next   Engine
	store  Store
	logger *log.Logger
}

// NewCached wraps next.
func NewCached(next Engine, store Store, logger *log.Logger) *Cached {
	if logger == nil {
		logger = log.Default().WithPrefix("tts")
	}
	return &Cached{next: next, store: store, logger: logger}
}

func (c *Cached) Name() string { return c.next.Name() }

// Synthesize serves from the store when possible. Only analyzable audio is
// stored.
func (c *Cached) Synthesize(ctx context.Context, text, voice string) (*Audio, error) {
	key := CacheKey(c.next.Name(), voice, text)
	if raw, ok := c.store.Get(key); ok {
		if audio, err := decodeAudio(raw); err == nil {
			c.logger.Debug("cache hit", "engine", c.next.Name(), "bytes", len(audio.Data))
			return audio, nil
		}
	}

	audio, err := c.next.Synthesize(ctx, text, voice)
	if err != nil {
		return nil, err
	}
	if audio != nil && audio.Analyzable {
		if err := c.store.Put(key, encodeAudio(audio)); err != nil {
			c.logger.Debug("cache store failed", "err", err)
		}
	}
	return audio, nil
}

// CacheKey derives a stable key.
func CacheKey(engine, voice, text string) string {
	sum := sha256.Sum256([]byte(engine + "\x00" + voice + "\x00" + text))
	return engine + ":" + hex.EncodeToString(sum[:])
}

const (
	audioMagic  = "TRP1"
	headerBytes = len(audioMagic) + 4 + 2
)

var errBadCacheEntry = errors.New("malformed cached audio")

func encodeAudio(a *Audio) []byte {
	buf := make([]byte, headerBytes, headerBytes+len(a.Data))
	copy(buf, audioMagic)
	binary.LittleEndian.PutUint32(buf[4:], uint32(a.SampleRate))
	binary.LittleEndian.PutUint16(buf[8:], uint16(a.Channels))
	return append(buf, a.Data...)
}

func decodeAudio(raw []byte) (*Audio, error) {
	if len(raw) < headerBytes || string(raw[:4]) != audioMagic {
		return nil, errBadCacheEntry
	}
	rate := int(binary.LittleEndian.Uint32(raw[4:]))
	channels := int(binary.LittleEndian.Uint16(raw[8:]))
	if rate <= 0 || channels <= 0 {
		return nil, errBadCacheEntry
	}
	data := make([]byte, len(raw)-headerBytes)
	copy(data, raw[headerBytes:])
	return NewPCM16(data, rate, channels), nil
}
