package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	FirstNameMaxLen = 64
	LastNameMaxLen  = 64
)

var (
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]{5,32}$`)
	langCodeRe = regexp.MustCompile(`^[a-z]{2}$`)
)

// Role gates what a user may do through the bot.
//
// Guest can only request access, Editor manages their own posts, Admin
// additionally manages users. Unknown callers are treated as Guest.
type Role int

const (
	RoleGuest Role = iota
	RoleEditor
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleGuest:
		return "guest"
	case RoleEditor:
		return "editor"
	case RoleAdmin:
		return "admin"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

func (r Role) Valid() bool { return r >= RoleGuest && r <= RoleAdmin }

// CanEdit reports whether the role may create and manage posts.
func (r Role) CanEdit() bool { return r == RoleEditor || r == RoleAdmin }

func (r Role) IsAdmin() bool { return r == RoleAdmin }

func ParseRole(raw string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "guest":
		return RoleGuest, nil
	case "editor":
		return RoleEditor, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return 0, fmt.Errorf("unknown role %q", raw)
	}
}

// User mirrors the Telegram identity the bot sees, plus the assigned role.
// TelegramID is the unique key for lookups; ID is the storage key.
type User struct {
	ID           uuid.UUID
	TelegramID   int64
	FirstName    string
	LastName     string // optional
	Username     string // optional, Telegram handle without '@'
	LanguageCode string // optional, two-letter lowercase
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastActivity time.Time
}

// NewUser builds a Guest user from Telegram profile data.
func NewUser(telegramID int64, firstName, lastName, username, languageCode string, now time.Time) (*User, error) {
	u := &User{
		ID:           uuid.New(),
		TelegramID:   telegramID,
		FirstName:    strings.TrimSpace(firstName),
		LastName:     strings.TrimSpace(lastName),
		Username:     strings.TrimSpace(strings.TrimPrefix(username, "@")),
		LanguageCode: strings.TrimSpace(languageCode),
		Role:         RoleGuest,
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
		LastActivity: now.UTC(),
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

func (u *User) Validate() error {
	if u.TelegramID <= 0 {
		return fmt.Errorf("telegram id must be positive, got %d", u.TelegramID)
	}
	if n := len([]rune(u.FirstName)); n == 0 || n > FirstNameMaxLen {
		return fmt.Errorf("first name must be 1..%d characters", FirstNameMaxLen)
	}
	if n := len([]rune(u.LastName)); n > LastNameMaxLen {
		return fmt.Errorf("last name must be at most %d characters", LastNameMaxLen)
	}
	if u.Username != "" && !usernameRe.MatchString(u.Username) {
		return fmt.Errorf("username %q is not a valid telegram handle", u.Username)
	}
	if u.LanguageCode != "" && !langCodeRe.MatchString(u.LanguageCode) {
		return fmt.Errorf("language code %q is not a two-letter code", u.LanguageCode)
	}
	if !u.Role.Valid() {
		return fmt.Errorf("invalid role %d", int(u.Role))
	}
	return nil
}

// DisplayName is what the bot shows in user lists.
func (u *User) DisplayName() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	if u.LastName != "" {
		return u.FirstName + " " + u.LastName
	}
	return u.FirstName
}

func (u *User) Clone() *User {
	cp := *u
	return &cp
}
