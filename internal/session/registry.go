package session

import (
	"sync"
	"time"
)

// Stats summarizes the registry for the stats endpoint.
type Stats struct {
	Total        int `json:"total"`
	Active       int `json:"active"`
	Inactive     int `json:"inactive"`
	LiveSocket   int `json:"liveSocket"`
	CallbackOnly int `json:"callbackOnly"`
	FileDropOnly int `json:"fileDropOnly"`
}

// Registry is the single source of truth for connected plugin sessions.
// All mutation goes through it; callers get copies, never shared records.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	window   time.Duration
	now      func() time.Time
}

func NewRegistry(window time.Duration) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		window:   window,
		now:      time.Now,
	}
}

// Register inserts or replaces the session record for id. A re-registration
// is last-writer-wins: prior metadata and callback URL are dropped, but an
// attached socket handle carries over so a live connection is not orphaned
// by a metadata refresh.
func (r *Registry) Register(id string, meta map[string]string, callbackURL string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := &Session{
		ID:            id,
		CallbackURL:   callbackURL,
		LastHeartbeat: r.now(),
		Active:        true,
	}
	if len(meta) > 0 {
		s.Metadata = make(map[string]string, len(meta))
		for k, v := range meta {
			s.Metadata[k] = v
		}
	}
	if existing, ok := r.sessions[id]; ok {
		s.socket = existing.socket
	}
	r.sessions[id] = s
}

// Unregister removes the record for id. Unknown ids are a no-op.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Touch records a heartbeat for id. Unknown ids are a no-op; heartbeats are
// best-effort telemetry and race harmlessly with unregistration.
func (r *Registry) Touch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.LastHeartbeat = r.now()
		s.Active = true
	}
}

// AttachSocket associates an open live-connection handle with id without
// altering other fields. Unknown ids are a no-op; the gateway registers the
// session before attaching.
func (r *Registry) AttachSocket(id string, sock SocketSender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.socket = sock
	}
}

// DetachSocket clears the live-connection handle for id. The record itself
// survives, so a reconnect resumes prior metadata.
func (r *Registry) DetachSocket(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.socket = nil
	}
}

// Get returns a copy of the record for id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	return s.clone(), true
}

// GetAll returns copies of every record.
func (r *Registry) GetAll() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		result = append(result, s.clone())
	}
	return result
}

// ActiveIDs returns the identifiers whose liveness window has not expired,
// as a snapshot at call time. Sessions found expired during the scan get
// their Active flag flipped off but stay registered (lazy eviction, not
// deletion).
func (r *Registry) ActiveIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var active []string
	for id, s := range r.sessions {
		if now.Sub(s.LastHeartbeat) < r.window {
			active = append(active, id)
		} else {
			s.Active = false
		}
	}
	return active
}

// Stats counts sessions by liveness and by best reachable transport.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	st := Stats{Total: len(r.sessions)}
	for _, s := range r.sessions {
		if now.Sub(s.LastHeartbeat) < r.window {
			st.Active++
		} else {
			s.Active = false
			st.Inactive++
		}
		switch {
		case s.socket != nil:
			st.LiveSocket++
		case s.CallbackURL != "":
			st.CallbackOnly++
		default:
			st.FileDropOnly++
		}
	}
	return st
}
