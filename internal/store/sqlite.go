package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/LigeronAhill/smmaster/internal/model"
)

//go:embed migrations.sql
var migrations string

// SQLite is the production driver. modernc.org/sqlite is CGO-free; a single
// writer connection with WAL keeps concurrent readers unblocked.
type SQLite struct {
	db *sql.DB
}

func OpenSQLite(path string, busyTimeout time.Duration) (*SQLite, error) {
	if busyTimeout <= 0 {
		busyTimeout = 5 * time.Second
	}

	dsn := "file:" + path + "?" + url.Values{
		"_pragma": []string{
			"journal_mode(WAL)",
			"synchronous(NORMAL)",
			"foreign_keys(ON)",
			"busy_timeout(" + strconv.FormatInt(busyTimeout.Milliseconds(), 10) + ")",
		},
	}.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

// ---- posts ----

const postColumns = "id, title, content, tg_photo_id, vk_photo_id, tg_video_id, vk_video_id, status, created_at, publish_at, author_id"

func (s *SQLite) CreatePost(ctx context.Context, p *model.Post) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO posts ("+postColumns+") VALUES (?,?,?,?,?,?,?,?,?,?,?)",
		p.ID.String(), p.Title, p.Content,
		p.TGPhotoID, p.VKPhotoID, p.TGVideoID, p.VKVideoID,
		int(p.Status), toMillis(p.CreatedAt), toMillis(p.PublishAt), p.AuthorID.String(),
	)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (s *SQLite) GetPost(ctx context.Context, id uuid.UUID) (*model.Post, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+postColumns+" FROM posts WHERE id = ?", id.String())
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select post: %w", err)
	}
	return p, nil
}

func (s *SQLite) UpdatePost(ctx context.Context, p *model.Post) (*model.Post, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE posts SET title=?, content=?, tg_photo_id=?, vk_photo_id=?,
		 tg_video_id=?, vk_video_id=?, status=?, publish_at=? WHERE id=?`,
		p.Title, p.Content, p.TGPhotoID, p.VKPhotoID,
		p.TGVideoID, p.VKVideoID, int(p.Status), toMillis(p.PublishAt), p.ID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.GetPost(ctx, p.ID)
}

func (s *SQLite) DeletePost(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM posts WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) ListPosts(ctx context.Context, f PostFilter, page Page, sort Sort) (PostList, error) {
	if err := page.Validate(); err != nil {
		return PostList{}, err
	}

	where, args := postWhere(f)

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM posts"+where, args...).Scan(&total); err != nil {
		return PostList{}, fmt.Errorf("count posts: %w", err)
	}

	order := " ORDER BY created_at DESC, id"
	if sort == SortCreatedAsc {
		order = " ORDER BY created_at ASC, id"
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+postColumns+" FROM posts"+where+order+" LIMIT ? OFFSET ?",
		append(args, page.Size, page.Offset())...)
	if err != nil {
		return PostList{}, fmt.Errorf("select posts: %w", err)
	}
	defer rows.Close()

	var posts []*model.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return PostList{}, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return PostList{}, fmt.Errorf("iterate posts: %w", err)
	}

	return PostList{
		Posts:      posts,
		TotalCount: total,
		Page:       page.Number,
		TotalPages: TotalPages(total, page.Size),
	}, nil
}

func (s *SQLite) ListDuePosts(ctx context.Context, now time.Time) ([]*model.Post, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+postColumns+" FROM posts WHERE status = ? AND publish_at > 0 AND publish_at <= ? ORDER BY publish_at ASC",
		int(model.StatusPending), toMillis(now))
	if err != nil {
		return nil, fmt.Errorf("select due posts: %w", err)
	}
	defer rows.Close()

	var posts []*model.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func postWhere(f PostFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.AuthorID != nil {
		conds = append(conds, "author_id = ?")
		args = append(args, f.AuthorID.String())
	}
	if f.Status != nil {
		conds = append(conds, "status = ?")
		args = append(args, int(*f.Status))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*model.Post, error) {
	var (
		p                    model.Post
		idRaw, authorRaw     string
		status               int
		createdMs, publishMs int64
	)
	err := row.Scan(&idRaw, &p.Title, &p.Content,
		&p.TGPhotoID, &p.VKPhotoID, &p.TGVideoID, &p.VKVideoID,
		&status, &createdMs, &publishMs, &authorRaw)
	if err != nil {
		return nil, err
	}
	if p.ID, err = uuid.Parse(idRaw); err != nil {
		return nil, fmt.Errorf("parse post id %q: %w", idRaw, err)
	}
	if p.AuthorID, err = uuid.Parse(authorRaw); err != nil {
		return nil, fmt.Errorf("parse author id %q: %w", authorRaw, err)
	}
	p.Status = model.Status(status)
	p.CreatedAt = fromMillis(createdMs)
	p.PublishAt = fromMillis(publishMs)
	return &p, nil
}

// ---- users ----

const userColumns = "id, telegram_id, first_name, last_name, username, language_code, role, created_at, updated_at, last_activity"

func (s *SQLite) CreateUser(ctx context.Context, u *model.User) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users ("+userColumns+") VALUES (?,?,?,?,?,?,?,?,?,?)",
		u.ID.String(), u.TelegramID, u.FirstName, u.LastName,
		u.Username, u.LanguageCode, int(u.Role),
		toMillis(u.CreatedAt), toMillis(u.UpdatedAt), toMillis(u.LastActivity),
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *SQLite) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ?", id.String())
	return s.userFromRow(row)
}

func (s *SQLite) GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE telegram_id = ?", telegramID)
	return s.userFromRow(row)
}

func (s *SQLite) userFromRow(row rowScanner) (*model.User, error) {
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	return u, nil
}

func (s *SQLite) UpdateUser(ctx context.Context, u *model.User) (*model.User, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET first_name=?, last_name=?, username=?, language_code=?,
		 role=?, updated_at=?, last_activity=? WHERE id=?`,
		u.FirstName, u.LastName, u.Username, u.LanguageCode,
		int(u.Role), toMillis(u.UpdatedAt), toMillis(u.LastActivity), u.ID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.GetUser(ctx, u.ID)
}

func (s *SQLite) DeleteUser(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) ListUsers(ctx context.Context, f UserFilter, page Page, sort Sort) (UserList, error) {
	if err := page.Validate(); err != nil {
		return UserList{}, err
	}

	where, args := userWhere(f)

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users"+where, args...).Scan(&total); err != nil {
		return UserList{}, fmt.Errorf("count users: %w", err)
	}

	order := " ORDER BY created_at DESC, id"
	if sort == SortCreatedAsc {
		order = " ORDER BY created_at ASC, id"
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users"+where+order+" LIMIT ? OFFSET ?",
		append(args, page.Size, page.Offset())...)
	if err != nil {
		return UserList{}, fmt.Errorf("select users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return UserList{}, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return UserList{}, fmt.Errorf("iterate users: %w", err)
	}

	return UserList{
		Users:      users,
		TotalCount: total,
		Page:       page.Number,
		TotalPages: TotalPages(total, page.Size),
	}, nil
}

func (s *SQLite) CountUsers(ctx context.Context, f UserFilter) (int, error) {
	where, args := userWhere(f)
	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users"+where, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return total, nil
}

func userWhere(f UserFilter) (string, []any) {
	if f.Role == nil {
		return "", nil
	}
	return " WHERE role = ?", []any{int(*f.Role)}
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u                               model.User
		idRaw                           string
		role                            int
		createdMs, updatedMs, lastActMs int64
	)
	err := row.Scan(&idRaw, &u.TelegramID, &u.FirstName, &u.LastName,
		&u.Username, &u.LanguageCode, &role,
		&createdMs, &updatedMs, &lastActMs)
	if err != nil {
		return nil, err
	}
	var perr error
	if u.ID, perr = uuid.Parse(idRaw); perr != nil {
		return nil, fmt.Errorf("parse user id %q: %w", idRaw, perr)
	}
	u.Role = model.Role(role)
	u.CreatedAt = fromMillis(createdMs)
	u.UpdatedAt = fromMillis(updatedMs)
	u.LastActivity = fromMillis(lastActMs)
	return &u, nil
}

// ---- time codec ----

// Timestamps are stored as unix milliseconds; zero means "unset".
// Millisecond integers sort correctly, unlike formatted strings with
// variable-width fractional seconds.

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
