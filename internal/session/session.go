package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound indicates the session does not exist or has expired.
	ErrNotFound = errors.New("session not found")
	// ErrConflict is returned by Save when another request saved the same
	// session after it was loaded.
	ErrConflict = errors.New("session modified concurrently")
	// ErrUnavailable wraps backend failures.
	ErrUnavailable = errors.New("session store unavailable")
)

// Store persists sessions by id.
type Store interface {
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

// Session holds namespaced JSON blobs for one visitor. It is owned by a
// single request and is not safe for concurrent use.
type Session struct {
	id        string
	version   int64
	isNew     bool
	modified  bool
	values    map[string]json.RawMessage
	expiresAt time.Time
}

// NewID returns a fresh random session id.
func NewID() string {
	return uuid.NewString()
}

// New returns an empty, unsaved session.
func New(id string) *Session {
	return &Session{
		id:     id,
		isNew:  true,
		values: make(map[string]json.RawMessage),
	}
}

func restore(id string, version int64, values map[string]json.RawMessage, expiresAt time.Time) *Session {
	if values == nil {
		values = make(map[string]json.RawMessage)
	}
	return &Session{
		id:        id,
		version:   version,
		values:    values,
		expiresAt: expiresAt,
	}
}

func (s *Session) ID() string {
	return s.id
}

// Version is the store version this session was loaded at.
func (s *Session) Version() int64 {
	return s.version
}

func (s *Session) IsNew() bool {
	return s.isNew
}

func (s *Session) Modified() bool {
	return s.modified
}

func (s *Session) ExpiresAt() time.Time {
	return s.expiresAt
}

func (s *Session) Get(key string) ([]byte, bool) {
	v, ok := s.values[key]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true
}

func (s *Session) Set(key string, blob []byte) {
	v := make(json.RawMessage, len(blob))
	copy(v, blob)
	s.values[key] = v
	s.modified = true
}

func (s *Session) Delete(key string) {
	if _, ok := s.values[key]; !ok {
		return
	}
	delete(s.values, key)
	s.modified = true
}

func (s *Session) MarkModified() {
	s.modified = true
}

// Encode serializes all values into one document.
func (s *Session) Encode() ([]byte, error) {
	return json.Marshal(s.values)
}

// committed is called by stores after a successful save.
func (s *Session) committed(version int64, expiresAt time.Time) {
	s.version = version
	s.expiresAt = expiresAt
	s.isNew = false
	s.modified = false
}

func decodeValues(data []byte) (map[string]json.RawMessage, error) {
	values := make(map[string]json.RawMessage)
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, err
	}
	return values, nil
}
