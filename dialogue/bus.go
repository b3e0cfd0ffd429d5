package dialogue

import (
	"sync"
	"time"

	"github.com/dgnsrekt/troupe/agent"
)

// EventType names a lifecycle notification.
type EventType string

const (
	EventConversationStart EventType = "conversation_start"
	EventTurnStart         EventType = "turn_start"
	EventTurnEnd           EventType = "turn_end"
	EventTurnFailed        EventType = "turn_failed"
	EventLogUpdate         EventType = "log_update"
	EventConversationEnd   EventType = "conversation_end"
	EventStateChanged      EventType = "state_changed"
)

// Event is a notification from the orchestrator. Only the fields relevant
// to Type are set.
type Event struct {
	Type      EventType         `json:"type"`
	Time      time.Time         `json:"time"`
	Topic     string            `json:"topic,omitempty"`
	SpeakerID string            `json:"speaker_id,omitempty"`
	TurnType  TurnType          `json:"turn_type,omitempty"`
	Utterance *agent.Utterance  `json:"utterance,omitempty"`
	Error     string            `json:"error,omitempty"`
	History   []agent.Utterance `json:"history,omitempty"`
	State     State             `json:"state"`
}

// Bus fans events out to subscribers. Publishing never blocks; a subscriber
// that falls behind misses events.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe returns a channel of events and a function that closes it.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers e to every subscriber that has room.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
