package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/dgnsrekt/troupe/agent"
	"github.com/dgnsrekt/troupe/dialogue"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the feed is read-only and served on loopback by default
	CheckOrigin: func(*http.Request) bool { return true },
}

// Message is one websocket payload: either an event or a frame.
type Message struct {
	Type  string          `json:"type"`
	Event *dialogue.Event `json:"event,omitempty"`
	Frame *agent.Frame    `json:"frame,omitempty"`
}

func (s *Server) serveWebsocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	s.logger.Debug("websocket client connected", "remote", conn.RemoteAddr())

	send := make(chan Message, sendBuffer)
	done := make(chan struct{})
	var once sync.Once
	closeDone := func() { once.Do(func() { close(done) }) }

	var wg sync.WaitGroup
	forward := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	events, unsubscribe := s.session.Bus().Subscribe(sendBuffer)
	defer unsubscribe()
	forward(func() {
		for {
			select {
			case e, ok := <-events:
				if !ok {
					return
				}
				enqueue(send, Message{Type: "event", Event: &e})
			case <-done:
				return
			}
		}
	})

	// the roster is read per connection so characters added by a config
	// reload stream to clients that connect afterwards
	for _, out := range s.outputs() {
		frames, unsubscribe := out.Subscribe(sendBuffer)
		defer unsubscribe()
		forward(func() {
			for {
				select {
				case f, ok := <-frames:
					if !ok {
						return
					}
					enqueue(send, Message{Type: "frame", Frame: &f})
				case <-done:
					return
				}
			}
		})
	}

	// reader: only pongs and close frames are expected
	forward(func() {
		defer closeDone()
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	enqueue(send, Message{Type: "event", Event: &dialogue.Event{
		Type:    dialogue.EventLogUpdate,
		Time:    time.Now(),
		History: s.session.History().Snapshot(),
		State:   s.session.Session().State,
	}})

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
write:
	for {
		select {
		case m := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(m); err != nil {
				break write
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				break write
			}
		case <-done:
			break write
		}
	}

	closeDone()
	_ = conn.Close()
	wg.Wait()
	s.logger.Debug("websocket client disconnected", "remote", conn.RemoteAddr())
}

// enqueue drops the message when the client is too slow.
func enqueue(send chan<- Message, m Message) {
	select {
	case send <- m:
	default:
	}
}
