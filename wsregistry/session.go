package wsregistry

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/brightloop/rtmp-ingest/rand"
)

// CloseReason names why a Session was closed, carried in the WebSocket close
// frame's reason text.
type CloseReason string

// ViolatedPolicy is the close reason used by CloseAuthenticatedSessions,
// mirroring Red5's Session.close(CloseReason.VIOLATED_POLICY, ...).
const ViolatedPolicy CloseReason = "VIOLATED_POLICY"

const authenticatedHTTPSessionEnded = "Authenticated HTTP session that has ended"

// Session wraps one upgraded WebSocket connection, carrying the identity
// the registry needs for authenticated-session bookkeeping (spec.md §4.7).
// The registry never dials or accepts a connection itself — it is handed
// one already upgraded by the caller's HTTP layer.
type Session struct {
	ID            string
	Path          string
	UserPrincipal string
	HTTPSessionID string

	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
}

// NewSession wraps conn for registration. userPrincipal/httpSessionID may be
// empty when the endpoint doesn't authenticate its caller; register_session
// only adds the session to authenticated_sessions when both are present.
func NewSession(conn *websocket.Conn, path, userPrincipal, httpSessionID string) *Session {
	return &Session{
		ID:            rand.GenerateUuid(),
		Path:          path,
		UserPrincipal: userPrincipal,
		HTTPSessionID: httpSessionID,
		conn:          conn,
	}
}

// Conn returns the underlying *websocket.Conn for callers that need to read
// or write frames directly.
func (s *Session) Conn() *websocket.Conn {
	return s.conn
}

// Close closes the session's connection once, sending a WebSocket close
// frame whose close-message text is reason followed by ": " and detail.
func (s *Session) Close(reason CloseReason, detail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, string(reason)+": "+detail)
	_ = s.conn.WriteMessage(websocket.CloseMessage, msg)
	return s.conn.Close()
}

// authenticated reports whether this session carries both identities
// register_session needs to index it under authenticated_sessions.
func (s *Session) authenticated() bool {
	return s.UserPrincipal != "" && s.HTTPSessionID != ""
}
