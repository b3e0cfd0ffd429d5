package character

import "sync"

// DefaultMemoryLimit is the number of entries a Memory keeps when no limit is
// given.
const DefaultMemoryLimit = 20

// Role tags who produced a memory entry.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Entry is one remembered message.
type Entry struct {
	Role    Role   `yaml:"role"`
	Content string `yaml:"content"`
}

// Memory is a capped FIFO of conversation entries. When the cap is exceeded
// the oldest entries are dropped first.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
	limit   int
}

// NewMemory creates a memory holding at most limit entries.
func NewMemory(limit int) *Memory {
	if limit <= 0 {
		limit = DefaultMemoryLimit
	}
	return &Memory{
		entries: make([]Entry, 0, limit),
		limit:   limit,
	}
}

// Append adds entries in order and trims the oldest beyond the cap.
func (m *Memory) Append(entries ...Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = append(m.entries, entries...)
	if over := len(m.entries) - m.limit; over > 0 {
		// copy down so the backing array does not grow without bound
		n := copy(m.entries, m.entries[over:])
		m.entries = m.entries[:n]
	}
}

// Entries returns a copy of the remembered entries, oldest first.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Len returns the number of remembered entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Limit returns the configured cap.
func (m *Memory) Limit() int {
	return m.limit
}

// Reset forgets everything.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = m.entries[:0]
}
