// Package server exposes a running session over HTTP: a JSON control API
// and a websocket feed of lifecycle events and mouth frames.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/dgnsrekt/troupe/agent"
	"github.com/dgnsrekt/troupe/dialogue"
)

// Session is the part of the orchestrator the server drives.
// *dialogue.Orchestrator implements it.
type Session interface {
	Session() dialogue.Session
	History() *dialogue.History
	Bus() *dialogue.Bus
	Pause() bool
	Resume() bool
	Stop()
	SetEnabled(id string, enabled bool) error
	Speakers() []dialogue.Speaker
}

// voiced is a speaker with a frame output. *agent.Agent implements it.
type voiced interface {
	Output() *agent.Output
}

var _ Session = (*dialogue.Orchestrator)(nil)

// Response is the envelope of every JSON reply.
type Response struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Server serves one session.
type Server struct {
	session Session
	logger  *log.Logger
	engine  *gin.Engine
}

// New creates a server for session. The frames of every speaker in its
// roster are streamed to websocket clients.
func New(session Session, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default().WithPrefix("server")
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{session: session, logger: logger, engine: gin.New()}
	s.engine.Use(gin.Recovery(), s.requestLogger())

	api := s.engine.Group("/api")
	api.GET("/session", s.getSession)
	api.GET("/history", s.getHistory)
	api.POST("/pause", s.pause)
	api.POST("/resume", s.resume)
	api.POST("/stop", s.stop)
	api.POST("/characters/:id/enable", s.setEnabled(true))
	api.POST("/characters/:id/disable", s.setEnabled(false))
	s.engine.GET("/ws", s.serveWebsocket)
	return s
}

// outputs returns the frame outputs of the current roster.
func (s *Server) outputs() []*agent.Output {
	var outs []*agent.Output
	for _, sp := range s.session.Speakers() {
		if v, ok := sp.(voiced); ok {
			outs = append(outs, v.Output())
		}
	}
	return outs
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start))
	}
}

func respond(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data, Timestamp: time.Now()})
}

func respondError(c *gin.Context, status int, err error) {
	c.JSON(status, Response{Error: err.Error(), Timestamp: time.Now()})
}

func (s *Server) getSession(c *gin.Context) {
	respond(c, s.session.Session())
}

func (s *Server) getHistory(c *gin.Context) {
	respond(c, s.session.History().Snapshot())
}

var errNotRunning = errors.New("session is not in a state that allows this")

func (s *Server) pause(c *gin.Context) {
	if !s.session.Pause() {
		respondError(c, http.StatusConflict, errNotRunning)
		return
	}
	respond(c, s.session.Session())
}

func (s *Server) resume(c *gin.Context) {
	if !s.session.Resume() {
		respondError(c, http.StatusConflict, errNotRunning)
		return
	}
	respond(c, s.session.Session())
}

func (s *Server) stop(c *gin.Context) {
	s.session.Stop()
	respond(c, s.session.Session())
}

func (s *Server) setEnabled(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.session.SetEnabled(c.Param("id"), enabled); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, dialogue.ErrUnknownSpeaker) {
				status = http.StatusNotFound
			}
			respondError(c, status, err)
			return
		}
		respond(c, gin.H{"id": c.Param("id"), "enabled": enabled})
	}
}
