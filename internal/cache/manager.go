package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Manager layers a MemoryCache over an optional DiskCache. Disk hits are
// promoted to memory.
type Manager struct {
	memory *MemoryCache
	disk   *DiskCache
	ttl    time.Duration
	logger *log.Logger

	mu         sync.Mutex
	memoryHits int64
	diskHits   int64
	misses     int64
}

// NewManager builds the levels described by cfg. An empty Dir keeps the
// cache in memory only.
func NewManager(cfg Config, logger *log.Logger) (*Manager, error) {
	if logger == nil {
		logger = log.Default().WithPrefix("cache")
	}
	if cfg.MemoryCapacity <= 0 {
		cfg.MemoryCapacity = DefaultConfig().MemoryCapacity
	}

	m := &Manager{
		memory: NewMemoryCache(cfg.MemoryCapacity),
		ttl:    cfg.TTL,
		logger: logger,
	}

	if cfg.Dir != "" {
		if cfg.DiskCapacity <= 0 {
			cfg.DiskCapacity = DefaultConfig().DiskCapacity
		}
		disk, err := NewDiskCache(cfg.Dir, cfg.DiskCapacity, cfg.CompressionLevel)
		if err != nil {
			return nil, fmt.Errorf("open disk cache: %w", err)
		}
		m.disk = disk
		if m.ttl > 0 {
			if n := disk.RemoveOlderThan(time.Now().Add(-m.ttl)); n > 0 {
				logger.Debug("pruned expired entries", "count", n)
			}
		}
	}
	return m, nil
}

// Get checks memory, then disk.
func (m *Manager) Get(key string) ([]byte, bool) {
	if data, ok := m.memory.Get(key); ok {
		m.count(&m.memoryHits)
		return data, true
	}
	if m.disk != nil {
		if data, ok := m.disk.Get(key); ok {
			m.count(&m.diskHits)
			if err := m.memory.Put(key, data); err != nil {
				m.logger.Debug("promotion skipped", "key", key, "err", err)
			}
			return data, true
		}
	}
	m.count(&m.misses)
	return nil, false
}

// Put writes through to every level. Disk failures are logged, not returned.
func (m *Manager) Put(key string, value []byte) error {
	if err := m.memory.Put(key, value); err != nil && err != ErrItemTooLarge {
		return fmt.Errorf("memory cache: %w", err)
	}
	if m.disk != nil {
		if err := m.disk.Put(key, value); err != nil {
			m.logger.Warn("disk cache write failed", "err", err)
		}
	}
	return nil
}

// Delete removes key from every level.
func (m *Manager) Delete(key string) error {
	m.memory.Delete(key)
	if m.disk != nil {
		return m.disk.Delete(key)
	}
	return nil
}

// Stats merges the levels: capacity and size are the disk's when present.
func (m *Manager) Stats() Stats {
	s := m.memory.Stats()
	if m.disk != nil {
		d := m.disk.Stats()
		s.Capacity, s.Size, s.Items = d.Capacity, d.Size, d.Items
		s.Evictions += d.Evictions
	}
	m.mu.Lock()
	s.Hits = m.memoryHits + m.diskHits
	s.Misses = m.misses
	m.mu.Unlock()
	return s
}

// Close flushes the disk index.
func (m *Manager) Close() error {
	if m.disk != nil {
		return m.disk.Close()
	}
	return nil
}

func (m *Manager) count(n *int64) {
	m.mu.Lock()
	*n++
	m.mu.Unlock()
}
