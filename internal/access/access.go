// Package access resolves a Telegram caller to a role.
//
// The gate fails open to the lowest privilege: unknown callers and lookup
// errors both come back as Guest, so a storage hiccup can never grant
// anything, only deny.
package access

import (
	"context"
	"errors"

	"github.com/LigeronAhill/smmaster/internal/backend"
	"github.com/LigeronAhill/smmaster/internal/model"
	"github.com/LigeronAhill/smmaster/pkg/logx"
)

type Gate struct {
	users *backend.Users
	log   logx.Logger
}

func NewGate(users *backend.Users, log logx.Logger) *Gate {
	return &Gate{users: users, log: log.With(logx.String("comp", "access"))}
}

// Authorize returns the caller's role. Never fails.
func (g *Gate) Authorize(ctx context.Context, telegramID int64) model.Role {
	u, err := g.users.GetByTelegramID(ctx, telegramID)
	if err != nil {
		if !errors.Is(err, backend.ErrNotFound) {
			g.log.Warn("role lookup failed, treating caller as guest",
				logx.Int64("telegram_id", telegramID), logx.Err(err))
		}
		return model.RoleGuest
	}
	return u.Role
}
