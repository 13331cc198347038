package telegram

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v4"

	"github.com/LigeronAhill/smmaster/internal/model"
	"github.com/LigeronAhill/smmaster/internal/session"
	"github.com/LigeronAhill/smmaster/pkg/logx"
	"github.com/LigeronAhill/smmaster/pkg/tgui"
)

func (b *Bot) onCallback(c tele.Context) error {
	cb := c.Callback()
	if cb == nil {
		return nil
	}
	// telebot prefixes data of registered buttons with "\f"; ours is raw,
	// but strip defensively so both shapes route.
	data := strings.TrimPrefix(strings.TrimSpace(cb.Data), "\f")
	route, action, args := tgui.Parse(data)

	role := b.authorize(c)

	var err error
	switch route {
	case "cancel":
		b.sessions.Reset(c.Sender().ID)
		err = c.Send(msgCanceled, menuFor(role))
	case "user":
		err = b.onUserAction(c, role, action, args)
	case "users":
		err = b.onUsersPage(c, role, action, args)
	case "post":
		err = b.onPostAction(c, role, action, args)
	case "posts":
		err = b.onPostsPage(c, role, action, args)
	default:
		b.log.Warn("unknown callback", logx.String("data", data))
	}
	if err != nil {
		return err
	}
	return c.Respond(&tele.CallbackResponse{})
}

func (b *Bot) onUserAction(c tele.Context, role model.Role, action string, args []string) error {
	if !role.IsAdmin() {
		return c.Send(msgNoAccess)
	}
	if len(args) < 1 {
		return nil
	}
	tgID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return nil
	}
	ctx := context.Background()

	switch action {
	case "editor", "guest":
		newRole := model.RoleEditor
		if action == "guest" {
			newRole = model.RoleGuest
		}
		u, err := b.users.SetRole(ctx, tgID, newRole)
		if err != nil {
			b.log.Error("role change failed", logx.Int64("telegram_id", tgID), logx.Err(err))
			return c.Send("Не получилось изменить роль")
		}
		// Tell the user their keyboard changed.
		if _, serr := b.bot.Send(tele.ChatID(tgID),
			"Ваша роль: "+roleTitle(u.Role), menuFor(u.Role)); serr != nil {
			b.log.Warn("role notify failed", logx.Int64("telegram_id", tgID), logx.Err(serr))
		}
		return c.Edit(u.DisplayName() + " — " + roleTitle(u.Role))
	case "del":
		if err := b.users.Delete(ctx, tgID); err != nil {
			b.log.Error("user delete failed", logx.Int64("telegram_id", tgID), logx.Err(err))
			return c.Send("Не получилось удалить пользователя")
		}
		return c.Edit(msgUserDeleted)
	default:
		return nil
	}
}

func (b *Bot) onUsersPage(c tele.Context, role model.Role, action string, args []string) error {
	if !role.IsAdmin() {
		return c.Send(msgNoAccess)
	}
	if action != "page" || len(args) < 1 {
		return nil
	}
	page, err := strconv.Atoi(args[0])
	if err != nil || page < 1 {
		return nil
	}
	return b.listUsers(c, page)
}

func (b *Bot) onPostAction(c tele.Context, role model.Role, action string, args []string) error {
	if !role.CanEdit() {
		return c.Send(msgNoAccess)
	}
	if len(args) < 1 {
		return nil
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		return nil
	}
	ctx := context.Background()

	switch action {
	case "pub":
		if _, err := b.coordinator.PublishNow(ctx, id); err != nil {
			b.log.Error("publish failed", logx.String("post_id", id.String()), logx.Err(err))
			return c.Send("Не получилось опубликовать пост")
		}
		return c.Send(msgPublished, menuFor(role))
	case "plan":
		b.sessions.Do(c.Sender().ID, func(s *session.Session) {
			*s = session.Session{State: session.StateAwaitingPublishDate, PostID: id}
		})
		return c.Send(msgSendDate, cancelMarkup())
	case "del":
		if err := b.posts.Delete(ctx, id); err != nil {
			b.log.Error("post delete failed", logx.String("post_id", id.String()), logx.Err(err))
			return c.Send("Не получилось удалить пост")
		}
		if derr := c.Delete(); derr != nil {
			b.log.Warn("card delete failed", logx.Err(derr))
		}
		return c.Send(msgPostDeleted, menuFor(role))
	default:
		return nil
	}
}

func (b *Bot) onPostsPage(c tele.Context, role model.Role, action string, args []string) error {
	if !role.CanEdit() {
		return c.Send(msgNoAccess)
	}
	if action != "page" || len(args) < 3 {
		return nil
	}
	statusInt, err := strconv.Atoi(args[1])
	if err != nil {
		return nil
	}
	status := model.Status(statusInt)
	if !status.Valid() {
		return nil
	}
	page, err := strconv.Atoi(args[2])
	if err != nil || page < 1 {
		return nil
	}
	// The author arg keeps callbacks self-contained, but posts are always
	// listed for the caller; verify it matches to avoid leaking lists.
	me, err := b.users.GetByTelegramID(context.Background(), c.Sender().ID)
	if err != nil || me.ID.String() != args[0] {
		return c.Send(msgNoAccess)
	}
	return b.listOwnPosts(c, role, status, page)
}
