package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roach88/fusion/internal/card"
	"github.com/roach88/fusion/internal/ir"
	"github.com/roach88/fusion/internal/selection"
	"github.com/roach88/fusion/internal/session"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 5 * time.Second
	maxMessage   = 16 * 1024
)

// Store persists sessions and their events. *store.Store implements it.
type Store interface {
	session.Recorder
	WriteSession(ctx context.Context, rec ir.SessionRecord) error
}

// Server upgrades HTTP requests and runs one session per connection.
type Server struct {
	matcher selection.Matcher
	store   Store
	clock   session.Sequencer

	mu       sync.RWMutex
	bookHash string

	handSize int
	logger   *slog.Logger

	upgrader websocket.Upgrader
}

// Option configures a Server.
type Option func(*Server)

// WithStore records every session to st under the given book hash.
func WithStore(st Store, bookHash string) Option {
	return func(s *Server) {
		s.store = st
		s.bookHash = bookHash
	}
}

// WithClock stamps all sessions' events from c. It must be safe for
// concurrent use.
func WithClock(c session.Sequencer) Option {
	return func(s *Server) {
		s.clock = c
	}
}

// WithHandSize overrides session.DefaultHandSize.
func WithHandSize(n int) Option {
	return func(s *Server) {
		s.handSize = n
	}
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// SetBookHash changes the book hash recorded for sessions that connect
// from now on. Call it after swapping the catalog behind the matcher.
func (s *Server) SetBookHash(hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookHash = hash
}

func (s *Server) currentBookHash() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bookHash
}

// NewServer creates a server resolving fusions through m, typically a
// *catalog.Holder shared by all connections.
func NewServer(m selection.Matcher, opts ...Option) *Server {
	s := &Server{
		matcher:  m,
		handSize: session.DefaultHandSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 4 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = session.NewClock()
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s
}

// Handler returns the HTTP handler that accepts WebSocket connections.
func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			s.logger.Debug("upgrade failed", "remote", r.RemoteAddr, "error", err)
			return
		}
		defer conn.Close()
		conn.SetReadLimit(maxMessage)

		s.serve(r.Context(), conn)
	}
}

// serve runs the request loop for one connection. Requests are handled
// in order on this goroutine, so the session is never mutated
// concurrently.
func (s *Server) serve(ctx context.Context, conn *websocket.Conn) {
	opts := []session.Option{
		session.WithClock(s.clock),
		session.WithHandSize(s.handSize),
		session.WithLogger(s.logger),
	}
	if s.store != nil {
		opts = append(opts, session.WithRecorder(s.store))
	}
	sess := session.New(s.matcher, opts...)
	logger := s.logger.With("session", sess.ID(), "remote", conn.RemoteAddr().String())

	if s.store != nil {
		if err := s.store.WriteSession(ctx, ir.SessionRecord{
			ID:         sess.ID(),
			BookHash:   s.currentBookHash(),
			HandSize:   sess.HandSize(),
			CreatedSeq: s.clock.Next(),
		}); err != nil {
			logger.Error("failed to store session", "error", err)
			_ = writeJSON(conn, errorReply(ErrCodeInternal, "failed to store session"))
			return
		}
	}

	if err := writeJSON(conn, Reply{Type: TypeWelcome, SessionID: sess.ID(), HandSize: sess.HandSize()}); err != nil {
		return
	}
	logger.Info("client connected")

	for {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("connection lost", "error", err)
			}
			break
		}

		var req Request
		if err := json.Unmarshal(msg, &req); err != nil {
			if err := writeJSON(conn, errorReply(ErrCodeBadRequest, "malformed request: "+err.Error())); err != nil {
				break
			}
			continue
		}

		reply, fatal := s.handle(ctx, sess, req)
		if err := writeJSON(conn, reply); err != nil {
			break
		}
		if fatal != nil {
			logger.Error("closing connection", "error", fatal)
			break
		}
	}

	logger.Info("client disconnected")
}

// handle applies one request. A non-nil error means the session can no
// longer be recorded and the connection should close.
func (s *Server) handle(ctx context.Context, sess *session.Session, req Request) (Reply, error) {
	var (
		ev  ir.Event
		err error
	)

	switch req.Type {
	case TypeToggleOn, TypeToggleOff, TypeToggle:
		if req.Slot == nil || *req.Slot < 0 {
			return errorReply(ErrCodeBadRequest, req.Type+" needs a non-negative slot"), nil
		}
		handle := session.SlotHandle(*req.Slot)
		switch req.Type {
		case TypeToggleOn:
			ev, err = sess.ToggleOn(ctx, handle)
		case TypeToggleOff:
			ev, err = sess.ToggleOff(ctx, handle)
		default:
			ev, err = sess.Toggle(ctx, handle)
		}
	case TypeDeal:
		ev, err = sess.Deal(ctx, card.FromStrings(req.Cards))
	case TypeClear:
		ev, err = sess.Clear(ctx)
	case TypeFuse:
		ev, err = sess.Fuse(ctx)
	case "":
		return errorReply(ErrCodeBadRequest, "type is required"), nil
	default:
		return errorReply(ErrCodeBadRequest, fmt.Sprintf("unknown type %q", req.Type)), nil
	}

	if err != nil && ev.Outcome.Error == "" {
		return errorReply(ErrCodeInternal, "failed to record event"), err
	}

	reply := eventReply(ev)
	if err != nil {
		reply.Error = &ErrorBody{Code: ev.Outcome.Error, Message: err.Error()}
	}
	return reply, nil
}

func eventReply(ev ir.Event) Reply {
	out := ev.Outcome
	return Reply{
		Type:    TypeEvent,
		Seq:     ev.Seq,
		Kind:    string(ev.Kind),
		Handle:  ev.Handle,
		Hand:    ev.Cards,
		Outcome: &out,
	}
}

func errorReply(code, message string) Reply {
	return Reply{Type: TypeError, Error: &ErrorBody{Code: code, Message: message}}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}
