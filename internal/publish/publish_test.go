package publish

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/LigeronAhill/smmaster/internal/backend"
	"github.com/LigeronAhill/smmaster/internal/model"
	"github.com/LigeronAhill/smmaster/internal/store"
	"github.com/LigeronAhill/smmaster/pkg/logx"
)

type fakeBroadcaster struct {
	calls []uuid.UUID
	err   error
}

func (f *fakeBroadcaster) Broadcast(_ context.Context, p *model.Post) error {
	f.calls = append(f.calls, p.ID)
	return f.err
}

type fakeWall struct {
	calls       []string
	attachments []string
	err         error
}

func (f *fakeWall) WallPost(_ context.Context, text, attachment string) error {
	f.calls = append(f.calls, text)
	f.attachments = append(f.attachments, attachment)
	return f.err
}

type env struct {
	db    *store.Memory
	posts *backend.Posts
	users *backend.Users
	tg    *fakeBroadcaster
	vk    *fakeWall
	coord *Coordinator
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := store.NewMemory()
	posts := backend.NewPosts(db, logx.Nop())
	users := backend.NewUsers(db, logx.Nop())
	tg := &fakeBroadcaster{}
	vk := &fakeWall{}
	return &env{
		db:    db,
		posts: posts,
		users: users,
		tg:    tg,
		vk:    vk,
		coord: NewCoordinator(posts, tg, vk, logx.Nop()),
	}
}

func (e *env) addUser(t *testing.T, tgID int64) *model.User {
	t.Helper()
	u, err := e.users.Register(context.Background(), backend.Profile{TelegramID: tgID, FirstName: "u"})
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func (e *env) addPost(t *testing.T, tgID int64, title string) *model.Post {
	t.Helper()
	p, err := e.posts.Create(context.Background(), backend.PostDraft{
		AuthorTelegramID: tgID, Title: title, Content: "content " + title,
	})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestPublishNowDeliversBothChannels(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.addUser(t, 100)
	p := e.addPost(t, 100, "hello")
	p.VKPhotoID = "photo-1_2"
	if _, err := e.db.UpdatePost(context.Background(), p); err != nil {
		t.Fatal(err)
	}

	pub, err := e.coord.PublishNow(context.Background(), p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if pub.Status != model.StatusPublished {
		t.Errorf("status = %v, want published", pub.Status)
	}
	if len(e.vk.calls) != 1 || e.vk.attachments[0] != "photo-1_2" {
		t.Errorf("vk calls = %v attachments = %v", e.vk.calls, e.vk.attachments)
	}
	if len(e.tg.calls) != 1 || e.tg.calls[0] != p.ID {
		t.Errorf("tg calls = %v", e.tg.calls)
	}
}

func TestVKFailureIsSwallowed(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.addUser(t, 100)
	p := e.addPost(t, 100, "hello")
	e.vk.err = errors.New("vk is down")

	pub, err := e.coord.PublishNow(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("vk failure propagated: %v", err)
	}
	if pub.Status != model.StatusPublished {
		t.Errorf("status = %v, want published despite vk failure", pub.Status)
	}
	if len(e.tg.calls) != 1 {
		t.Errorf("telegram not attempted after vk failure: %v", e.tg.calls)
	}
}

func TestTelegramFailurePropagates(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.addUser(t, 100)
	p := e.addPost(t, 100, "hello")
	e.tg.err = errors.New("channel gone")

	_, err := e.coord.PublishNow(context.Background(), p.ID)
	if err == nil {
		t.Fatal("telegram failure swallowed")
	}
	// The status flip happened before delivery; the post stays Published.
	got, gerr := e.posts.Get(context.Background(), p.ID)
	if gerr != nil {
		t.Fatal(gerr)
	}
	if got.Status != model.StatusPublished {
		t.Errorf("status = %v, want published (mark-then-deliver)", got.Status)
	}
}

func TestPublishDueSkipsNonPending(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.addUser(t, 100)
	p := e.addPost(t, 100, "hello")

	// Draft: not pending, nothing delivered.
	if err := e.coord.PublishDue(context.Background(), p.ID); err != nil {
		t.Fatal(err)
	}
	if len(e.tg.calls) != 0 || len(e.vk.calls) != 0 {
		t.Errorf("draft delivered: tg=%v vk=%v", e.tg.calls, e.vk.calls)
	}

	// Deleted since the scan: silent no-op.
	if err := e.coord.PublishDue(context.Background(), uuid.New()); err != nil {
		t.Errorf("missing post err = %v, want nil", err)
	}

	// Already published: no double delivery.
	if _, err := e.coord.PublishNow(context.Background(), p.ID); err != nil {
		t.Fatal(err)
	}
	before := len(e.tg.calls)
	if err := e.coord.PublishDue(context.Background(), p.ID); err != nil {
		t.Fatal(err)
	}
	if len(e.tg.calls) != before {
		t.Error("already-published post delivered again")
	}
}

func TestCyclePublishesDueAcrossPages(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	// 15 users so the user walk needs two pages.
	for i := int64(1); i <= 15; i++ {
		e.addUser(t, 100+i)
	}

	due := e.addPost(t, 101, "due")
	if _, err := e.posts.SetPublishDate(ctx, due.ID, now.Add(-time.Minute)); err != nil {
		t.Fatal(err)
	}
	lastPageDue := e.addPost(t, 115, "due-last-page")
	if _, err := e.posts.SetPublishDate(ctx, lastPageDue.ID, now.Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}
	future := e.addPost(t, 101, "future")
	if _, err := e.posts.SetPublishDate(ctx, future.ID, now.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	e.addPost(t, 102, "draft stays")

	sched := NewScheduler(e.users, e.posts, e.coord, logx.Nop())
	sched.Now = func() time.Time { return now }

	if err := sched.Cycle(ctx); err != nil {
		t.Fatal(err)
	}

	published := map[uuid.UUID]bool{}
	for _, id := range e.tg.calls {
		published[id] = true
	}
	if !published[due.ID] || !published[lastPageDue.ID] {
		t.Errorf("due posts not all published: %v", e.tg.calls)
	}
	if published[future.ID] {
		t.Error("future post published early")
	}
	if len(e.tg.calls) != 2 {
		t.Errorf("deliveries = %d, want 2", len(e.tg.calls))
	}

	got, err := e.posts.Get(ctx, future.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.StatusPending {
		t.Errorf("future post status = %v, want still pending", got.Status)
	}
}

func TestCycleAbortsOnErrorAndNextCycleRetries(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	e.addUser(t, 101)
	due := e.addPost(t, 101, "due")
	if _, err := e.posts.SetPublishDate(ctx, due.ID, now.Add(-time.Minute)); err != nil {
		t.Fatal(err)
	}

	sched := NewScheduler(e.users, e.posts, e.coord, logx.Nop())
	sched.Now = func() time.Time { return now }

	e.tg.err = fmt.Errorf("flaky channel")
	if err := sched.Cycle(ctx); err == nil {
		t.Fatal("cycle error swallowed")
	}

	// The failed post was already flipped to Published before delivery,
	// so the retry happens only for posts still Pending. Re-schedule it
	// to model an operator requeue and verify the next cycle picks it up.
	if _, err := e.posts.SetPublishDate(ctx, due.ID, now.Add(-time.Minute)); err != nil {
		t.Fatal(err)
	}
	e.tg.err = nil
	if err := sched.Cycle(ctx); err != nil {
		t.Fatal(err)
	}

	got, err := e.posts.Get(ctx, due.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.StatusPublished {
		t.Errorf("status after retry = %v, want published", got.Status)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	sched := NewScheduler(e.users, e.posts, e.coord, logx.Nop())
	sched.Interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestCyclePublishesFullBacklogOfOneAuthor(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	e.addUser(t, 100)

	// More due posts than one scan page, all for the same author. Publishing
	// must not shift the pending pages under the walk.
	var ids []uuid.UUID
	for i := 0; i < 15; i++ {
		p := e.addPost(t, 100, fmt.Sprintf("backlog %02d", i))
		if _, err := e.posts.SetPublishDate(ctx, p.ID, now.Add(-time.Duration(i+1)*time.Minute)); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, p.ID)
	}

	sched := NewScheduler(e.users, e.posts, e.coord, logx.Nop())
	sched.Now = func() time.Time { return now }

	if err := sched.Cycle(ctx); err != nil {
		t.Fatal(err)
	}

	if len(e.tg.calls) != len(ids) {
		t.Fatalf("deliveries = %d, want %d", len(e.tg.calls), len(ids))
	}
	published := map[uuid.UUID]bool{}
	for _, id := range e.tg.calls {
		published[id] = true
	}
	for _, id := range ids {
		if !published[id] {
			t.Errorf("post %s not published in the same cycle", id)
		}
	}
}
