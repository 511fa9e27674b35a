package server

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/cardroom/internal/auth"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 8192
)

var errSessionClosed = websocket.ErrCloseSent

// session is one websocket connection. The identity is bound at handshake
// (or by a later authenticate request) and never rebound; everything else a
// session tracks is which table channels it listens to.
type session struct {
	id     string
	conn   *websocket.Conn
	send   chan *Message
	logger *log.Logger
	coord  *Coordinator

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu       sync.RWMutex
	identity *auth.Identity
	seated   string
	watched  map[string]bool
	lobbySub bool
}

func newSession(id string, conn *websocket.Conn, ident *auth.Identity, coord *Coordinator, logger *log.Logger) *session {
	ctx, cancel := context.WithCancel(context.Background())
	return &session{
		id:       id,
		conn:     conn,
		send:     make(chan *Message, 256),
		logger:   logger.WithPrefix("session").With("session", id),
		coord:    coord,
		ctx:      ctx,
		cancel:   cancel,
		identity: ident,
		watched:  make(map[string]bool),
	}
}

// start begins the read and write pumps.
func (s *session) start() {
	go s.writePump()
	go s.readPump()
}

// close tears the connection down. Safe to call more than once.
func (s *session) close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		close(s.send)
		err = s.conn.Close()
	})
	return err
}

// sendMessage queues a message for the client. A full buffer closes the
// session: a client that cannot keep up with broadcasts is dropped.
func (s *session) sendMessage(msg *Message) error {
	defer func() {
		if r := recover(); r != nil {
			// Send channel closed during shutdown.
			s.logger.Debug("send on closed session", "error", r)
		}
	}()

	select {
	case s.send <- msg:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		s.logger.Warn("send buffer full, closing session")
		_ = s.close()
		return errSessionClosed
	}
}

// sendEvent wraps data in an envelope and queues it.
func (s *session) sendEvent(event string, data any) {
	msg, err := NewMessage(event, data)
	if err != nil {
		s.logger.Error("failed to encode event", "event", event, "error", err)
		return
	}
	_ = s.sendMessage(msg)
}

// reply answers a request, echoing its event name and request id.
func (s *session) reply(req *Message, r Reply) {
	msg, err := NewMessage(req.Event, r)
	if err != nil {
		s.logger.Error("failed to encode reply", "event", req.Event, "error", err)
		return
	}
	msg.RequestID = req.RequestID
	_ = s.sendMessage(msg)
}

// readPump pulls frames off the wire and hands them to the coordinator.
func (s *session) readPump() {
	defer func() { _ = s.close() }()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		var msg Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Error("websocket error", "error", err)
			}
			return
		}
		s.coord.dispatch(s, &msg)
	}
}

// writePump drains the send queue to the wire and keeps the ping cycle.
func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteJSON(msg); err != nil {
				s.logger.Error("failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-s.ctx.Done():
			return
		}
	}
}

// bindIdentity attaches a resolved identity to a spectator session. It
// reports whether the bind took; an already-bound session is never rebound.
func (s *session) bindIdentity(ident *auth.Identity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity != nil {
		return false
	}
	s.identity = ident
	return true
}

// getIdentity returns the bound identity, or nil for a spectator.
func (s *session) getIdentity() *auth.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

func (s *session) setSeated(tableID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seated = tableID
}

// clearSeated drops the seat association only if it still points at tableID.
func (s *session) clearSeated(tableID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seated == tableID {
		s.seated = ""
	}
}

func (s *session) seatedTable() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seated
}

func (s *session) addWatch(tableID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watched[tableID] = true
}

func (s *session) removeWatch(tableID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.watched, tableID)
}

func (s *session) watchList() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.watched))
	for id := range s.watched {
		out = append(out, id)
	}
	return out
}

func (s *session) setLobbySub(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lobbySub = on
}
