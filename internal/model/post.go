package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	TitleMaxLen   = 255
	ContentMaxLen = 4096
)

// Status is the post lifecycle state.
//
// Draft -> Pending (publish date set) -> Published (delivered).
// Abandoned is a terminal dead-end kept for filtering; nothing in the
// current flow transitions into it.
type Status int

const (
	StatusDraft Status = iota
	StatusPending
	StatusPublished
	StatusAbandoned
)

func (s Status) String() string {
	switch s {
	case StatusDraft:
		return "draft"
	case StatusPending:
		return "pending"
	case StatusPublished:
		return "published"
	case StatusAbandoned:
		return "abandoned"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

func (s Status) Valid() bool {
	return s >= StatusDraft && s <= StatusAbandoned
}

func ParseStatus(raw string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "draft":
		return StatusDraft, nil
	case "pending":
		return StatusPending, nil
	case "published":
		return StatusPublished, nil
	case "abandoned":
		return StatusAbandoned, nil
	default:
		return 0, fmt.Errorf("unknown post status %q", raw)
	}
}

// Post is a unit of content destined for the Telegram channel and the VK
// group wall. Channel media references live side by side: Telegram file IDs
// and VK attachment refs ("photo-{owner}_{id}" / "video-{owner}_{id}").
type Post struct {
	ID        uuid.UUID
	Title     string
	Content   string
	TGPhotoID string
	VKPhotoID string
	TGVideoID string
	VKVideoID string
	Status    Status
	CreatedAt time.Time
	PublishAt time.Time // zero until a publish date is set
	AuthorID  uuid.UUID
}

// NewPost builds a Draft post with a fresh ID.
func NewPost(authorID uuid.UUID, title, content string, now time.Time) (*Post, error) {
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if err := ValidateTitle(title); err != nil {
		return nil, err
	}
	if err := ValidateContent(content); err != nil {
		return nil, err
	}
	if authorID == uuid.Nil {
		return nil, fmt.Errorf("post author id is empty")
	}
	return &Post{
		ID:        uuid.New(),
		Title:     title,
		Content:   content,
		Status:    StatusDraft,
		CreatedAt: now.UTC(),
		AuthorID:  authorID,
	}, nil
}

func ValidateTitle(title string) error {
	n := len([]rune(title))
	if n == 0 {
		return fmt.Errorf("title is empty")
	}
	if n > TitleMaxLen {
		return fmt.Errorf("title is longer than %d characters", TitleMaxLen)
	}
	return nil
}

func ValidateContent(content string) error {
	n := len([]rune(content))
	if n == 0 {
		return fmt.Errorf("content is empty")
	}
	if n > ContentMaxLen {
		return fmt.Errorf("content is longer than %d characters", ContentMaxLen)
	}
	return nil
}

// SetPublishDate schedules the post: it becomes Pending.
func (p *Post) SetPublishDate(t time.Time) {
	p.PublishAt = t.UTC()
	p.Status = StatusPending
}

// MarkPublished finalizes the post; PublishAt records the actual moment.
func (p *Post) MarkPublished(now time.Time) {
	p.Status = StatusPublished
	p.PublishAt = now.UTC()
}

// Due reports whether a pending post should be published at now.
func (p *Post) Due(now time.Time) bool {
	return p.Status == StatusPending && !p.PublishAt.IsZero() && !p.PublishAt.After(now)
}

func (p *Post) Clone() *Post {
	cp := *p
	return &cp
}
