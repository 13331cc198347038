package session

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/LigeronAhill/smmaster/pkg/logx"
)

func TestIntakeWalk(t *testing.T) {
	t.Parallel()

	m := NewManager(logx.Nop())
	const chat = int64(100)

	if got := m.Get(chat).State; got != StateIdle {
		t.Fatalf("initial state = %v, want idle", got)
	}

	m.Do(chat, func(s *Session) { s.State = StateAwaitingTitle })
	m.Do(chat, func(s *Session) {
		s.Title = "Заголовок"
		s.State = StateAwaitingContent
	})
	m.Do(chat, func(s *Session) {
		s.Content = "Текст"
		s.State = StateAwaitingMedia
	})

	got := m.Get(chat)
	if got.State != StateAwaitingMedia || got.Title != "Заголовок" || got.Content != "Текст" {
		t.Fatalf("after walk: %+v", got)
	}

	postID := uuid.New()
	m.Do(chat, func(s *Session) {
		*s = Session{State: StateAwaitingPublishDate, PostID: postID}
	})
	if got := m.Get(chat); got.PostID != postID {
		t.Fatalf("post id lost: %+v", got)
	}
}

func TestResetFromAnyState(t *testing.T) {
	t.Parallel()

	states := []State{
		StateAwaitingTitle,
		StateAwaitingContent,
		StateAwaitingMedia,
		StateAwaitingPublishDate,
	}
	for _, st := range states {
		st := st
		t.Run(st.String(), func(t *testing.T) {
			t.Parallel()
			m := NewManager(logx.Nop())
			m.Do(1, func(s *Session) {
				s.State = st
				s.Title = "leftover"
			})
			m.Reset(1)
			got := m.Get(1)
			if got.State != StateIdle || got.Title != "" {
				t.Errorf("after reset: %+v", got)
			}
		})
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	t.Parallel()

	m := NewManager(logx.Nop())
	m.Do(1, func(s *Session) { s.State = StateAwaitingTitle })
	if got := m.Get(2).State; got != StateIdle {
		t.Errorf("chat 2 state = %v, want idle", got)
	}
}

func TestDoSerializesPerChat(t *testing.T) {
	t.Parallel()

	m := NewManager(logx.Nop())
	const n = 100

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Do(1, func(s *Session) { counter++ })
		}()
	}
	wg.Wait()
	if counter != n {
		t.Errorf("counter = %d, want %d (lost updates)", counter, n)
	}
}

func TestSweep(t *testing.T) {
	t.Parallel()

	m := NewManager(logx.Nop())
	now := time.Date(2026, 8, 30, 4, 0, 0, 0, time.UTC)
	m.Now = func() time.Time { return now.Add(-48 * time.Hour) }

	m.Do(1, func(s *Session) { s.State = StateAwaitingContent; s.Title = "half done" })
	m.Do(2, func(s *Session) { s.State = StateAwaitingTitle })

	// A fresh session should survive the sweep.
	m.Now = func() time.Time { return now }
	m.Do(3, func(s *Session) { s.State = StateAwaitingMedia })

	if got := m.Sweep(24 * time.Hour); got != 2 {
		t.Fatalf("swept = %d, want 2", got)
	}
	if got := m.Get(1); got.State != StateIdle || got.Title != "" {
		t.Errorf("chat 1 after sweep: %+v", got)
	}
	if got := m.Get(3).State; got != StateAwaitingMedia {
		t.Errorf("fresh session swept: state = %v", got)
	}

	if got := m.Sweep(24 * time.Hour); got != 0 {
		t.Errorf("second sweep = %d, want 0", got)
	}
}
