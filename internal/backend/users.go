package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/LigeronAhill/smmaster/internal/model"
	"github.com/LigeronAhill/smmaster/internal/store"
	"github.com/LigeronAhill/smmaster/pkg/logx"
)

// Profile is the Telegram-side identity used for registration.
type Profile struct {
	TelegramID   int64
	FirstName    string
	LastName     string
	Username     string
	LanguageCode string
}

type Users struct {
	db  store.Store
	log logx.Logger

	Now func() time.Time
}

func NewUsers(db store.Store, log logx.Logger) *Users {
	return &Users{db: db, log: log.With(logx.String("comp", "backend.users")), Now: time.Now}
}

// Register is idempotent on telegram id. A returning user gets their profile
// fields refreshed and last activity bumped. The very first user ever to
// register is promoted to Admin so the system is never locked out.
func (s *Users) Register(ctx context.Context, p Profile) (*model.User, error) {
	now := s.Now()

	existing, err := s.db.GetUserByTelegramID(ctx, p.TelegramID)
	if err == nil {
		existing.FirstName = p.FirstName
		existing.LastName = p.LastName
		existing.Username = p.Username
		existing.LanguageCode = p.LanguageCode
		existing.UpdatedAt = now.UTC()
		existing.LastActivity = now.UTC()
		if verr := existing.Validate(); verr != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, verr)
		}
		upd, uerr := s.db.UpdateUser(ctx, existing)
		if uerr != nil {
			return nil, fmt.Errorf("refresh user: %w", uerr)
		}
		return upd, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	u, err := model.NewUser(p.TelegramID, p.FirstName, p.LastName, p.Username, p.LanguageCode, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	hasAdmin, err := s.HasAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if !hasAdmin {
		u.Role = model.RoleAdmin
	}

	if err := s.db.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("store user: %w", err)
	}

	s.log.Info("user registered",
		logx.Int64("telegram_id", u.TelegramID),
		logx.String("role", u.Role.String()))
	return u, nil
}

func (s *Users) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	u, err := s.db.GetUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *Users) GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	u, err := s.db.GetUserByTelegramID(ctx, telegramID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: telegram id %d", ErrNotFound, telegramID)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// List pages through users, optionally narrowed to one role.
func (s *Users) List(ctx context.Context, role *model.Role, page store.Page, sort store.Sort) (store.UserList, error) {
	list, err := s.db.ListUsers(ctx, store.UserFilter{Role: role}, page, sort)
	if errors.Is(err, store.ErrInvalidPage) {
		return store.UserList{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if err != nil {
		return store.UserList{}, fmt.Errorf("list users: %w", err)
	}
	return list, nil
}

func (s *Users) SetRole(ctx context.Context, telegramID int64, role model.Role) (*model.User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: role %d", ErrInvalidArgument, int(role))
	}
	u, err := s.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	u.Role = role
	u.UpdatedAt = s.Now().UTC()
	upd, err := s.db.UpdateUser(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	s.log.Info("user role changed",
		logx.Int64("telegram_id", telegramID),
		logx.String("role", role.String()))
	return upd, nil
}

func (s *Users) Delete(ctx context.Context, telegramID int64) error {
	u, err := s.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return err
	}
	if err := s.db.DeleteUser(ctx, u.ID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.log.Info("user deleted", logx.Int64("telegram_id", telegramID))
	return nil
}

// Touch bumps last activity; failures are not worth surfacing to handlers.
func (s *Users) Touch(ctx context.Context, telegramID int64) {
	u, err := s.db.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		return
	}
	u.LastActivity = s.Now().UTC()
	if _, err := s.db.UpdateUser(ctx, u); err != nil {
		s.log.Warn("touch failed", logx.Int64("telegram_id", telegramID), logx.Err(err))
	}
}

// HasAdmin reports whether at least one Admin exists.
func (s *Users) HasAdmin(ctx context.Context) (bool, error) {
	role := model.RoleAdmin
	n, err := s.db.CountUsers(ctx, store.UserFilter{Role: &role})
	if err != nil {
		return false, fmt.Errorf("count admins: %w", err)
	}
	return n > 0, nil
}
