package wsregistry

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/websocket"
)

type stubEncoder struct{}

func (stubEncoder) Encode(v interface{}) ([]byte, error) { return nil, nil }

func TestAddEndpointExactAndTemplated(t *testing.T) {
	r := New(Config{})

	if err := r.AddEndpoint(EndpointConfig{Path: "/rooms/{id}"}); err != nil {
		t.Fatalf("unexpected error adding /rooms/{id}: %v", err)
	}
	if err := r.AddEndpoint(EndpointConfig{Path: "/rooms/lobby"}); err != nil {
		t.Fatalf("unexpected error adding /rooms/lobby: %v", err)
	}

	cfg, params, ok := r.FindMapping("/rooms/lobby")
	if !ok {
		t.Fatal("expected /rooms/lobby to resolve")
	}
	if cfg.Path != "/rooms/lobby" {
		t.Errorf("expected the exact mapping to win, got %q", cfg.Path)
	}
	if len(params) != 0 {
		t.Errorf("expected no path params for an exact match, got %v", params)
	}

	cfg, params, ok = r.FindMapping("/rooms/42")
	if !ok {
		t.Fatal("expected /rooms/42 to resolve against the template")
	}
	if cfg.Path != "/rooms/{id}" {
		t.Errorf("expected the templated mapping, got %q", cfg.Path)
	}
	if params["id"] != "42" {
		t.Errorf("got params %v, want id=42", params)
	}
}

func TestAddEndpointDuplicateExactPath(t *testing.T) {
	r := New(Config{})
	if err := r.AddEndpoint(EndpointConfig{Path: "/rooms/lobby"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := r.AddEndpoint(EndpointConfig{Path: "/rooms/lobby"})
	if err == nil {
		t.Fatal("expected a duplicate path error")
	}
	var depErr *DeploymentError
	if !asDeploymentError(err, &depErr) || depErr.Err != ErrDuplicatePath {
		t.Errorf("expected ErrDuplicatePath, got %v", err)
	}
}

func TestAddEndpointDuplicateTemplateInBucket(t *testing.T) {
	r := New(Config{})
	if err := r.AddEndpoint(EndpointConfig{Path: "/rooms/{id}"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := r.AddEndpoint(EndpointConfig{Path: "/rooms/{roomId}"})
	// Different param name, same literal skeleton ("/rooms/{x}") normalizes
	// to a different raw string (since the param name is part of the raw
	// form here), so this should NOT collide; only an identical template
	// string collides.
	if err != nil {
		t.Fatalf("unexpected error for a differently-named param template: %v", err)
	}

	err = r.AddEndpoint(EndpointConfig{Path: "/rooms/{id}"})
	if err == nil {
		t.Fatal("expected a duplicate template error for a second identical /rooms/{id}")
	}
}

func TestAddEndpointMissingPath(t *testing.T) {
	r := New(Config{})
	err := r.AddEndpoint(EndpointConfig{})
	var depErr *DeploymentError
	if !asDeploymentError(err, &depErr) || depErr.Err != ErrMissingAnnotation {
		t.Errorf("expected ErrMissingAnnotation, got %v", err)
	}
}

func TestAddEndpointEncoderInvalid(t *testing.T) {
	r := New(Config{})
	err := r.AddEndpoint(EndpointConfig{
		Path: "/broken",
		Encoder: func() (Encoder, error) {
			return nil, ErrEncoderInvalid
		},
	})
	var depErr *DeploymentError
	if !asDeploymentError(err, &depErr) || depErr.Err != ErrEncoderInvalid {
		t.Errorf("expected ErrEncoderInvalid, got %v", err)
	}
}

func TestAddEndpointEncoderValid(t *testing.T) {
	r := New(Config{})
	err := r.AddEndpoint(EndpointConfig{
		Path:    "/ok",
		Encoder: func() (Encoder, error) { return stubEncoder{}, nil },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAddEndpointRejectedAfterHandshakeWhenEnforced(t *testing.T) {
	r := New(Config{EnforceNoAddAfterHandshake: true})
	if err := r.AddEndpoint(EndpointConfig{Path: "/a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r.FindMapping("/a") // latches add_allowed -> false

	err := r.AddEndpoint(EndpointConfig{Path: "/b"})
	var depErr *DeploymentError
	if !asDeploymentError(err, &depErr) || depErr.Err != ErrAddNotAllowed {
		t.Errorf("expected ErrAddNotAllowed after the first find_mapping, got %v", err)
	}
}

func TestAddEndpointNotRejectedWithoutEnforcement(t *testing.T) {
	r := New(Config{})
	if err := r.AddEndpoint(EndpointConfig{Path: "/a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r.FindMapping("/a")
	if err := r.AddEndpoint(EndpointConfig{Path: "/b"}); err != nil {
		t.Errorf("expected registration to stay open without EnforceNoAddAfterHandshake, got %v", err)
	}
}

func TestUpgraderSizedFromConfig(t *testing.T) {
	r := New(Config{BinaryBufferSize: 4096, TextBufferSize: 2048})
	u := r.Upgrader()
	if u.ReadBufferSize != 4096 || u.WriteBufferSize != 2048 {
		t.Errorf("got Upgrader{Read:%d,Write:%d}, want {4096,2048}", u.ReadBufferSize, u.WriteBufferSize)
	}
}

func TestFindMappingNoMatch(t *testing.T) {
	r := New(Config{})
	if _, _, ok := r.FindMapping("/nope"); ok {
		t.Error("expected no match on an empty registry")
	}
}

// newTestSession dials a real WebSocket server to produce a usable
// *websocket.Conn, the way vinq1911-nonchalant's handler_test.go exercises
// gorilla/websocket end to end rather than constructing a Conn by hand.
func newTestSession(t *testing.T, path, userPrincipal, httpSessionID string) (*Session, func()) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// Keep the server side open until the test closes the client.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))

	wsURL := "ws" + server.URL[len("http"):] + "/"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to dial test websocket server: %v", err)
	}

	session := NewSession(conn, path, userPrincipal, httpSessionID)
	return session, func() {
		conn.Close()
		server.Close()
	}
}

func TestRegisterAndCloseAuthenticatedSessions(t *testing.T) {
	r := New(Config{})

	s1, cleanup1 := newTestSession(t, "/rooms/lobby", "alice", "http-session-1")
	defer cleanup1()
	s2, cleanup2 := newTestSession(t, "/rooms/lobby", "bob", "http-session-1")
	defer cleanup2()
	s3, cleanup3 := newTestSession(t, "/rooms/lobby", "", "")
	defer cleanup3()

	r.RegisterSession(s1)
	r.RegisterSession(s2)
	r.RegisterSession(s3) // unauthenticated: not indexed

	r.CloseAuthenticatedSessions("http-session-1")

	if _, _, err := s1.Conn().ReadMessage(); err == nil {
		t.Error("expected s1's connection to be closed")
	}
	if _, _, err := s2.Conn().ReadMessage(); err == nil {
		t.Error("expected s2's connection to be closed")
	}

	// A second close of the same (now-empty) bucket must not panic or
	// double-close.
	r.CloseAuthenticatedSessions("http-session-1")
}

func TestUnregisterSessionRemovesFromBucket(t *testing.T) {
	r := New(Config{})
	s1, cleanup1 := newTestSession(t, "/rooms/lobby", "alice", "http-session-2")
	defer cleanup1()

	r.RegisterSession(s1)
	r.UnregisterSession(s1)

	// Closing after unregister should be a no-op (empty bucket), leaving
	// the session's connection open.
	r.CloseAuthenticatedSessions("http-session-2")

	if err := s1.Conn().WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
		t.Errorf("expected s1's connection to remain open after unregister, got %v", err)
	}
}

func asDeploymentError(err error, target **DeploymentError) bool {
	de, ok := err.(*DeploymentError)
	if !ok {
		return false
	}
	*target = de
	return true
}
