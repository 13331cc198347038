package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/LigeronAhill/smmaster/internal/model"
)

func TestPageValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		page Page
		ok   bool
	}{
		{"min", Page{Number: 1, Size: 10}, true},
		{"max", Page{Number: 1, Size: 100}, true},
		{"mid", Page{Number: 3, Size: 25}, true},
		{"zero page", Page{Number: 0, Size: 10}, false},
		{"negative page", Page{Number: -1, Size: 10}, false},
		{"size below min", Page{Number: 1, Size: 9}, false},
		{"size above max", Page{Number: 1, Size: 101}, false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.page.Validate()
			if tc.ok && err != nil {
				t.Fatalf("Validate() = %v, want nil", err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidPage) {
				t.Fatalf("Validate() = %v, want ErrInvalidPage", err)
			}
		})
	}
}

func TestTotalPages(t *testing.T) {
	t.Parallel()

	cases := []struct {
		total, size, want int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{9, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{100, 10, 10},
		{101, 10, 11},
		{250, 100, 3},
	}
	for _, tc := range cases {
		if got := TotalPages(tc.total, tc.size); got != tc.want {
			t.Errorf("TotalPages(%d, %d) = %d, want %d", tc.total, tc.size, got, tc.want)
		}
	}
}

// drivers runs the same contract suite over both implementations.
func drivers(t *testing.T) map[string]Store {
	t.Helper()

	sq, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"), time.Second)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sq.Close() })

	return map[string]Store{
		"sqlite": sq,
		"memory": NewMemory(),
	}
}

func newTestPost(t *testing.T, author uuid.UUID, title string, created time.Time) *model.Post {
	t.Helper()
	p, err := model.NewPost(author, title, "content of "+title, created)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func newTestUser(t *testing.T, tgID int64, created time.Time) *model.User {
	t.Helper()
	u, err := model.NewUser(tgID, fmt.Sprintf("user%d", tgID), "", "", "", created)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func TestPostRoundTrip(t *testing.T) {
	t.Parallel()

	for name, st := range drivers(t) {
		st := st
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			author := uuid.New()
			p := newTestPost(t, author, "first", time.Now())
			p.TGPhotoID = "tg-photo-1"
			p.VKPhotoID = "photo-123_456"

			if err := st.CreatePost(ctx, p); err != nil {
				t.Fatalf("create: %v", err)
			}

			got, err := st.GetPost(ctx, p.ID)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.Title != p.Title || got.Content != p.Content {
				t.Errorf("got %q/%q, want %q/%q", got.Title, got.Content, p.Title, p.Content)
			}
			if got.TGPhotoID != "tg-photo-1" || got.VKPhotoID != "photo-123_456" {
				t.Errorf("media refs lost: %+v", got)
			}
			if got.Status != model.StatusDraft {
				t.Errorf("status = %v, want draft", got.Status)
			}
			if !got.PublishAt.IsZero() {
				t.Errorf("publish at = %v, want zero", got.PublishAt)
			}
			if got.AuthorID != author {
				t.Errorf("author = %v, want %v", got.AuthorID, author)
			}

			when := time.Date(2026, 9, 14, 7, 15, 0, 0, time.UTC)
			got.SetPublishDate(when)
			upd, err := st.UpdatePost(ctx, got)
			if err != nil {
				t.Fatalf("update: %v", err)
			}
			if upd.Status != model.StatusPending || !upd.PublishAt.Equal(when) {
				t.Errorf("after update: status=%v publishAt=%v", upd.Status, upd.PublishAt)
			}

			if err := st.DeletePost(ctx, p.ID); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, err := st.GetPost(ctx, p.ID); !errors.Is(err, ErrNotFound) {
				t.Fatalf("get after delete = %v, want ErrNotFound", err)
			}
			if err := st.DeletePost(ctx, p.ID); !errors.Is(err, ErrNotFound) {
				t.Fatalf("second delete = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestPostNotFound(t *testing.T) {
	t.Parallel()

	for name, st := range drivers(t) {
		st := st
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := st.GetPost(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
				t.Errorf("get = %v, want ErrNotFound", err)
			}
			ghost := newTestPost(t, uuid.New(), "ghost", time.Now())
			if _, err := st.UpdatePost(ctx, ghost); !errors.Is(err, ErrNotFound) {
				t.Errorf("update = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestListPostsPagination(t *testing.T) {
	t.Parallel()

	for name, st := range drivers(t) {
		st := st
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			author := uuid.New()
			other := uuid.New()
			base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

			// 25 posts for author, 5 for someone else.
			for i := 0; i < 25; i++ {
				p := newTestPost(t, author, fmt.Sprintf("post-%02d", i), base.Add(time.Duration(i)*time.Minute))
				if err := st.CreatePost(ctx, p); err != nil {
					t.Fatal(err)
				}
			}
			for i := 0; i < 5; i++ {
				p := newTestPost(t, other, fmt.Sprintf("other-%d", i), base)
				if err := st.CreatePost(ctx, p); err != nil {
					t.Fatal(err)
				}
			}

			list, err := st.ListPosts(ctx, PostFilter{AuthorID: &author}, Page{Number: 1, Size: 10}, SortCreatedDesc)
			if err != nil {
				t.Fatalf("list page 1: %v", err)
			}
			if list.TotalCount != 25 || list.TotalPages != 3 || !list.HasNext() {
				t.Fatalf("page 1: total=%d pages=%d hasNext=%v, want 25/3/true",
					list.TotalCount, list.TotalPages, list.HasNext())
			}
			if len(list.Posts) != 10 {
				t.Fatalf("page 1 len = %d, want 10", len(list.Posts))
			}
			if list.Posts[0].Title != "post-24" {
				t.Errorf("desc sort: first = %q, want post-24", list.Posts[0].Title)
			}

			last, err := st.ListPosts(ctx, PostFilter{AuthorID: &author}, Page{Number: 3, Size: 10}, SortCreatedDesc)
			if err != nil {
				t.Fatalf("list page 3: %v", err)
			}
			if len(last.Posts) != 5 || last.HasNext() {
				t.Fatalf("page 3: len=%d hasNext=%v, want 5/false", len(last.Posts), last.HasNext())
			}

			beyond, err := st.ListPosts(ctx, PostFilter{AuthorID: &author}, Page{Number: 4, Size: 10}, SortCreatedDesc)
			if err != nil {
				t.Fatalf("list page 4: %v", err)
			}
			if len(beyond.Posts) != 0 || beyond.TotalPages != 3 {
				t.Fatalf("page beyond end: len=%d pages=%d, want 0/3", len(beyond.Posts), beyond.TotalPages)
			}

			if _, err := st.ListPosts(ctx, PostFilter{}, Page{Number: 0, Size: 10}, SortCreatedDesc); !errors.Is(err, ErrInvalidPage) {
				t.Errorf("page 0 err = %v, want ErrInvalidPage", err)
			}
			if _, err := st.ListPosts(ctx, PostFilter{}, Page{Number: 1, Size: 9}, SortCreatedDesc); !errors.Is(err, ErrInvalidPage) {
				t.Errorf("size 9 err = %v, want ErrInvalidPage", err)
			}
		})
	}
}

func TestListPostsStatusFilter(t *testing.T) {
	t.Parallel()

	for name, st := range drivers(t) {
		st := st
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			author := uuid.New()
			now := time.Now()

			draft := newTestPost(t, author, "draft", now)
			pending := newTestPost(t, author, "pending", now)
			pending.SetPublishDate(now.Add(time.Hour))
			for _, p := range []*model.Post{draft, pending} {
				if err := st.CreatePost(ctx, p); err != nil {
					t.Fatal(err)
				}
			}

			status := model.StatusPending
			list, err := st.ListPosts(ctx, PostFilter{AuthorID: &author, Status: &status}, Page{Number: 1, Size: 10}, SortCreatedDesc)
			if err != nil {
				t.Fatal(err)
			}
			if list.TotalCount != 1 || list.Posts[0].Title != "pending" {
				t.Errorf("status filter: total=%d, want exactly the pending post", list.TotalCount)
			}
		})
	}
}

func TestListDuePosts(t *testing.T) {
	t.Parallel()

	for name, st := range drivers(t) {
		st := st
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			author := uuid.New()
			now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

			overdue := newTestPost(t, author, "overdue", now)
			overdue.SetPublishDate(now.Add(-time.Hour))
			exact := newTestPost(t, author, "exact", now)
			exact.SetPublishDate(now)
			future := newTestPost(t, author, "future", now)
			future.SetPublishDate(now.Add(time.Hour))
			draft := newTestPost(t, author, "draft", now)

			for _, p := range []*model.Post{future, exact, overdue, draft} {
				if err := st.CreatePost(ctx, p); err != nil {
					t.Fatal(err)
				}
			}

			due, err := st.ListDuePosts(ctx, now)
			if err != nil {
				t.Fatal(err)
			}
			if len(due) != 2 {
				t.Fatalf("due len = %d, want 2", len(due))
			}
			if due[0].Title != "overdue" || due[1].Title != "exact" {
				t.Errorf("due order = [%q %q], want [overdue exact]", due[0].Title, due[1].Title)
			}
		})
	}
}

func TestUserRoundTrip(t *testing.T) {
	t.Parallel()

	for name, st := range drivers(t) {
		st := st
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			u := newTestUser(t, 1001, time.Now())
			u.Username = "first_user"

			if err := st.CreateUser(ctx, u); err != nil {
				t.Fatalf("create: %v", err)
			}

			byTG, err := st.GetUserByTelegramID(ctx, 1001)
			if err != nil {
				t.Fatalf("get by telegram id: %v", err)
			}
			if byTG.ID != u.ID || byTG.Username != "first_user" {
				t.Errorf("got %+v, want original user", byTG)
			}

			byTG.Role = model.RoleEditor
			if _, err := st.UpdateUser(ctx, byTG); err != nil {
				t.Fatalf("update: %v", err)
			}
			again, err := st.GetUser(ctx, u.ID)
			if err != nil {
				t.Fatal(err)
			}
			if again.Role != model.RoleEditor {
				t.Errorf("role = %v, want editor", again.Role)
			}

			if _, err := st.GetUserByTelegramID(ctx, 9999); !errors.Is(err, ErrNotFound) {
				t.Errorf("unknown tg id err = %v, want ErrNotFound", err)
			}

			if err := st.DeleteUser(ctx, u.ID); err != nil {
				t.Fatal(err)
			}
			if _, err := st.GetUser(ctx, u.ID); !errors.Is(err, ErrNotFound) {
				t.Errorf("get after delete = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestListUsersRoleFilter(t *testing.T) {
	t.Parallel()

	for name, st := range drivers(t) {
		st := st
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

			admin := newTestUser(t, 1, base)
			admin.Role = model.RoleAdmin
			editor := newTestUser(t, 2, base.Add(time.Minute))
			editor.Role = model.RoleEditor
			guest := newTestUser(t, 3, base.Add(2*time.Minute))

			for _, u := range []*model.User{admin, editor, guest} {
				if err := st.CreateUser(ctx, u); err != nil {
					t.Fatal(err)
				}
			}

			role := model.RoleAdmin
			list, err := st.ListUsers(ctx, UserFilter{Role: &role}, Page{Number: 1, Size: 10}, SortCreatedAsc)
			if err != nil {
				t.Fatal(err)
			}
			if list.TotalCount != 1 || list.Users[0].TelegramID != 1 {
				t.Errorf("admin filter: total=%d, want the single admin", list.TotalCount)
			}

			n, err := st.CountUsers(ctx, UserFilter{Role: &role})
			if err != nil {
				t.Fatal(err)
			}
			if n != 1 {
				t.Errorf("CountUsers(admin) = %d, want 1", n)
			}

			all, err := st.ListUsers(ctx, UserFilter{}, Page{Number: 1, Size: 10}, SortCreatedAsc)
			if err != nil {
				t.Fatal(err)
			}
			if all.TotalCount != 3 || all.Users[0].TelegramID != 1 {
				t.Errorf("asc sort: total=%d first=%d, want 3 users oldest first", all.TotalCount, all.Users[0].TelegramID)
			}
		})
	}
}

func TestOpenDriverSwitch(t *testing.T) {
	t.Parallel()

	mem, err := Open(Config{Driver: "memory"})
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	if _, ok := mem.(*Memory); !ok {
		t.Errorf("driver = %T, want *Memory", mem)
	}

	sq, err := Open(Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "x.db")})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer sq.Close()
	if _, ok := sq.(*SQLite); !ok {
		t.Errorf("driver = %T, want *SQLite", sq)
	}

	if _, err := Open(Config{Driver: "mongo"}); err == nil {
		t.Error("unknown driver accepted")
	}
}

func TestMemoryConcurrentCreateAndList(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	ctx := context.Background()
	created := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	wg.Add(2)

	// Writers mutate the insertion-order map; readers sort with it. Run
	// both sides at once so the race detector covers the overlap.
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			u, err := model.NewUser(int64(1000+i), "u", "", "", "", created)
			if err != nil {
				t.Errorf("NewUser: %v", err)
				return
			}
			_ = m.CreateUser(ctx, u)
			p, err := model.NewPost(uuid.New(), fmt.Sprintf("p%03d", i), "content", created)
			if err != nil {
				t.Errorf("NewPost: %v", err)
				return
			}
			_ = m.CreatePost(ctx, p)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			if _, err := m.ListPosts(ctx, PostFilter{}, Page{Number: 1, Size: 10}, SortCreatedAsc); err != nil {
				t.Errorf("ListPosts: %v", err)
				return
			}
			if _, err := m.ListUsers(ctx, UserFilter{}, Page{Number: 1, Size: 10}, SortCreatedAsc); err != nil {
				t.Errorf("ListUsers: %v", err)
				return
			}
		}
	}()

	wg.Wait()
}
