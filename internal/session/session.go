// Package session tracks where each chat is in the post-intake dialogue.
//
// Each Telegram chat owns one session; handlers advance it under a per-chat
// lock so two rapid messages from the same user cannot interleave a
// transition. Sessions idle past a TTL are swept back to Idle.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/LigeronAhill/smmaster/pkg/logx"
)

type State int

const (
	StateIdle State = iota
	StateAwaitingTitle
	StateAwaitingContent
	StateAwaitingMedia
	StateAwaitingPublishDate
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingTitle:
		return "awaiting_title"
	case StateAwaitingContent:
		return "awaiting_content"
	case StateAwaitingMedia:
		return "awaiting_media"
	case StateAwaitingPublishDate:
		return "awaiting_publish_date"
	default:
		return "unknown"
	}
}

// Session is one chat's dialogue position plus whatever the earlier steps
// collected. Fields are meaningful per state: Title after AwaitingContent,
// Title+Content after AwaitingMedia, PostID in AwaitingPublishDate.
type Session struct {
	State   State
	Title   string
	Content string
	PostID  uuid.UUID
	Touched time.Time
}

type entry struct {
	mu sync.Mutex
	s  Session
}

type Manager struct {
	mu       sync.Mutex
	sessions map[int64]*entry
	log      logx.Logger

	Now func() time.Time
}

func NewManager(log logx.Logger) *Manager {
	return &Manager{
		sessions: make(map[int64]*entry),
		log:      log.With(logx.String("comp", "session")),
		Now:      time.Now,
	}
}

func (m *Manager) entryFor(chatID int64) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[chatID]
	if !ok {
		e = &entry{s: Session{State: StateIdle}}
		m.sessions[chatID] = e
	}
	return e
}

// Do runs fn with exclusive access to the chat's session. fn may mutate the
// session in place; the mutation is kept and the touch time updated.
func (m *Manager) Do(chatID int64, fn func(s *Session)) {
	e := m.entryFor(chatID)
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.s)
	e.s.Touched = m.Now()
}

// Get returns a copy of the chat's current session.
func (m *Manager) Get(chatID int64) Session {
	e := m.entryFor(chatID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.s
}

// Reset drops the chat back to Idle, discarding collected fields.
func (m *Manager) Reset(chatID int64) {
	m.Do(chatID, func(s *Session) { *s = Session{State: StateIdle} })
}

// Sweep resets sessions idle longer than ttl and returns how many it reset.
// Idle entries are removed outright to keep the map from growing forever.
func (m *Manager) Sweep(ttl time.Duration) int {
	now := m.Now()
	swept := 0

	m.mu.Lock()
	ids := make([]int64, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		e := m.entryFor(id)
		e.mu.Lock()
		stale := !e.s.Touched.IsZero() && now.Sub(e.s.Touched) > ttl
		idle := e.s.State == StateIdle
		if stale && !idle {
			e.s = Session{State: StateIdle, Touched: now}
			swept++
		}
		e.mu.Unlock()

		if idle && stale {
			m.mu.Lock()
			delete(m.sessions, id)
			m.mu.Unlock()
		}
	}

	if swept > 0 {
		m.log.Info("stale sessions reset", logx.Int("count", swept))
	}
	return swept
}
