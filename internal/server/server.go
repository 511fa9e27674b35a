package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/cardroom/internal/auth"
	"github.com/lox/cardroom/internal/metrics"
	"github.com/lox/cardroom/internal/sessionid"
)

// Server accepts websocket connections, resolves identities at handshake
// and hands sessions to the coordinator.
type Server struct {
	addr     string
	logger   *log.Logger
	upgrader websocket.Upgrader
	resolver auth.Resolver
	coord    *Coordinator
	metrics  *metrics.Metrics
	sid      *sessionid.Generator

	register   chan *session
	unregister chan *session

	ctx context.Context

	// sessions is owned by the loop goroutine.
	sessions map[*session]bool
}

func NewServer(addr string, resolver auth.Resolver, coord *Coordinator, m *metrics.Metrics, logger *log.Logger) *Server {
	return &Server{
		addr:   addr,
		logger: logger.WithPrefix("server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		resolver:   resolver,
		coord:      coord,
		metrics:    m,
		sid:        sessionid.NewGenerator(nil),
		register:   make(chan *session),
		unregister: make(chan *session),
		sessions:   make(map[*session]bool),
	}
}

// Start begins the session bookkeeping loop. Tests mount Handler on their
// own listener and call this directly; Run does both.
func (s *Server) Start(ctx context.Context) {
	s.ctx = ctx
	go s.loop()
}

// Handler returns the HTTP mux: the websocket endpoint, a health probe and
// the metrics registry.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", s.metrics.Handler())
	return mux
}

// Run serves until ctx is cancelled, then drains with a short grace.
func (s *Server) Run(ctx context.Context) error {
	s.Start(ctx)

	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownErr := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownErr <- httpServer.Shutdown(shutdownCtx)
	}()

	s.logger.Info("listening", "addr", s.addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-shutdownErr
}

func (s *Server) loop() {
	for {
		select {
		case sess := <-s.register:
			s.sessions[sess] = true
			s.metrics.Sessions.Inc()
			s.logger.Info("session connected", "session", sess.id, "sessions", len(s.sessions))

		case sess := <-s.unregister:
			if _, ok := s.sessions[sess]; !ok {
				continue
			}
			delete(s.sessions, sess)
			s.metrics.Sessions.Dec()
			s.coord.sessionClosed(sess)
			_ = sess.close()
			s.logger.Info("session disconnected", "session", sess.id, "sessions", len(s.sessions))

		case <-s.ctx.Done():
			for sess := range s.sessions {
				_ = sess.close()
			}
			return
		}
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimPrefix(h, "Bearer ")
		}
	}

	// Resolve before upgrading; a bad token still gets a spectator
	// session, told via authError once the socket is up.
	var (
		ident   *auth.Identity
		authErr error
	)
	if token != "" {
		ident, authErr = s.resolver.Resolve(r.Context(), token)
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	sess := newSession(s.sid.New(), conn, ident, s.coord, s.logger)

	select {
	case s.register <- sess:
	case <-s.ctx.Done():
		_ = sess.close()
		return
	}

	sess.start()
	if authErr != nil {
		sess.sendEvent(evtAuthError, authErrorPayload{Error: authErr.Error(), Code: CodeNotAuthenticated})
	}

	go func() {
		<-sess.ctx.Done()
		select {
		case s.unregister <- sess:
		case <-s.ctx.Done():
		}
	}()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
