package wsregistry

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// templateEntry pairs a parsed template with the endpoint config it maps to.
type templateEntry struct {
	template pathTemplate
	config   EndpointConfig
}

// templateBucket holds every registered template with a given segment
// count, ordered by normalized string form per spec.md §4.7. It is
// copy-on-write: readers load the current slice without locking, writers
// hold mu only to serialize the copy-and-swap, satisfying §5's "readers may
// observe either the pre- or post-insert order but never a torn state".
type templateBucket struct {
	mu      sync.Mutex
	entries atomic.Value // []templateEntry
}

func newTemplateBucket() *templateBucket {
	b := &templateBucket{}
	b.entries.Store([]templateEntry{})
	return b
}

func (b *templateBucket) snapshot() []templateEntry {
	return b.entries.Load().([]templateEntry)
}

// insert adds entry in lexicographic order by its template's normalized
// string form, rejecting an exact duplicate template string.
func (b *templateBucket) insert(entry templateEntry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	cur := b.snapshot()
	raw := entry.template.String()
	idx := sort.Search(len(cur), func(i int) bool { return cur[i].template.String() >= raw })
	if idx < len(cur) && cur[idx].template.String() == raw {
		return ErrDuplicatePath
	}

	next := make([]templateEntry, 0, len(cur)+1)
	next = append(next, cur[:idx]...)
	next = append(next, entry)
	next = append(next, cur[idx:]...)
	b.entries.Store(next)
	return nil
}

// Registry implements C7: the WebSocket endpoint registry described in
// spec.md §4.7, with the concurrency discipline of §5.
type Registry struct {
	cfg Config

	exact     sync.Map // path string -> EndpointConfig
	templated sync.Map // segment count int -> *templateBucket

	registeredPaths sync.Map // normalized path string -> struct{}

	addAllowed atomic.Bool

	// authenticatedSessions maps an HTTP session id to the set of Sessions
	// registered under it. Guarded by mu for the remove-then-iterate
	// discipline close_authenticated_sessions needs.
	mu                    sync.Mutex
	authenticatedSessions map[string]map[string]*Session
}

// New returns a Registry ready to accept endpoint registrations.
func New(cfg Config) *Registry {
	r := &Registry{
		cfg:                   cfg,
		authenticatedSessions: make(map[string]map[string]*Session),
	}
	r.addAllowed.Store(true)
	return r
}

// Upgrader returns a *websocket.Upgrader sized from the registry's Config,
// for callers that perform the HTTP-to-WebSocket handshake themselves — the
// registry never dials or accepts a connection on its own, per spec.md
// §4.7; it only sizes the buffers the eventual Session will read/write
// through (§9's binary_buffer_size/text_buffer_size).
func (r *Registry) Upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  r.cfg.BinaryBufferSize,
		WriteBufferSize: r.cfg.TextBufferSize,
	}
}

// AddEndpoint implements spec.md §4.7's add_endpoint. It is rejected once
// add_allowed has latched false under EnforceNoAddAfterHandshake, rejects a
// duplicate exact path or duplicate template within a segment-count bucket,
// and verifies any declared Encoder is actually instantiable.
func (r *Registry) AddEndpoint(cfg EndpointConfig) error {
	if cfg.Path == "" {
		return wrapDeployment(ErrMissingAnnotation, cfg.Path)
	}
	if r.cfg.EnforceNoAddAfterHandshake && !r.addAllowed.Load() {
		return wrapDeployment(ErrAddNotAllowed, cfg.Path)
	}
	if cfg.Encoder != nil {
		if _, err := cfg.Encoder(); err != nil {
			return wrapDeployment(ErrEncoderInvalid, cfg.Path)
		}
	}

	tmpl := parseTemplate(cfg.Path)
	if !tmpl.hasParams() {
		norm := tmpl.String()
		if _, loaded := r.exact.LoadOrStore(norm, cfg); loaded {
			return wrapDeployment(ErrDuplicatePath, cfg.Path)
		}
		r.registeredPaths.Store(norm, struct{}{})
		return nil
	}

	bucketAny, _ := r.templated.LoadOrStore(tmpl.segmentCount(), newTemplateBucket())
	bucket := bucketAny.(*templateBucket)
	if err := bucket.insert(templateEntry{template: tmpl, config: cfg}); err != nil {
		return wrapDeployment(err, cfg.Path)
	}
	r.registeredPaths.Store(tmpl.String(), struct{}{})
	return nil
}

// FindMapping implements spec.md §4.7's find_mapping: exact match first,
// then the first matching template (in stored, lexicographically-ordered
// form) within the path's segment-count bucket. The first call transitions
// add_allowed to false, one-way.
func (r *Registry) FindMapping(path string) (EndpointConfig, map[string]string, bool) {
	r.addAllowed.Store(false)

	norm := normalizePath(path)
	if v, ok := r.exact.Load(norm); ok {
		return v.(EndpointConfig), map[string]string{}, true
	}

	segs := splitPath(path)
	bucketAny, ok := r.templated.Load(len(segs))
	if !ok {
		return EndpointConfig{}, nil, false
	}
	bucket := bucketAny.(*templateBucket)
	for _, entry := range bucket.snapshot() {
		if params, matched := entry.template.match(path); matched {
			return entry.config, params, true
		}
	}
	return EndpointConfig{}, nil, false
}

// RegisterSession indexes session under authenticated_sessions for
// close_authenticated_sessions when it carries both a user principal and an
// HTTP session id. A session lacking either is not recorded anywhere.
func (r *Registry) RegisterSession(session *Session) {
	if !session.authenticated() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	bucket, ok := r.authenticatedSessions[session.HTTPSessionID]
	if !ok {
		bucket = make(map[string]*Session)
		r.authenticatedSessions[session.HTTPSessionID] = bucket
	}
	bucket[session.ID] = session
}

// UnregisterSession removes session from authenticated_sessions, if present.
func (r *Registry) UnregisterSession(session *Session) {
	if !session.authenticated() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	bucket, ok := r.authenticatedSessions[session.HTTPSessionID]
	if !ok {
		return
	}
	delete(bucket, session.ID)
	if len(bucket) == 0 {
		delete(r.authenticatedSessions, session.HTTPSessionID)
	}
}

// CloseAuthenticatedSessions implements spec.md §4.7's
// close_authenticated_sessions: it atomically removes the HTTP session's
// bucket — so a concurrent register/unregister after the remove observes a
// disjoint state, per §5 — then closes every session in it with reason
// VIOLATED_POLICY.
func (r *Registry) CloseAuthenticatedSessions(httpSessionID string) {
	r.mu.Lock()
	bucket, ok := r.authenticatedSessions[httpSessionID]
	if ok {
		delete(r.authenticatedSessions, httpSessionID)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	for _, session := range bucket {
		_ = session.Close(ViolatedPolicy, authenticatedHTTPSessionEnded)
	}
}
