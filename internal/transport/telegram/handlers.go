package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v4"

	"github.com/LigeronAhill/smmaster/internal/backend"
	"github.com/LigeronAhill/smmaster/internal/model"
	"github.com/LigeronAhill/smmaster/internal/session"
	"github.com/LigeronAhill/smmaster/pkg/logx"
	"github.com/LigeronAhill/smmaster/pkg/tgui"
)

const publishDateLayout = "2006-01-02 15:04"

func (b *Bot) onStart(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	u, err := b.users.Register(context.Background(), backend.Profile{
		TelegramID:   sender.ID,
		FirstName:    sender.FirstName,
		LastName:     sender.LastName,
		Username:     sender.Username,
		LanguageCode: sender.LanguageCode,
	})
	if err != nil {
		b.log.Error("registration failed", logx.Int64("telegram_id", sender.ID), logx.Err(err))
		return c.Send("Не получилось зарегистрироваться, попробуйте позже")
	}

	greeting := fmt.Sprintf("Привет, %s!", u.FirstName)
	if u.Role.IsAdmin() {
		greeting += "\nВы администратор."
	}
	return c.Send(greeting, menuFor(u.Role))
}

func (b *Bot) onHelp(c tele.Context) error {
	role := b.authorize(c)
	lines := []string{
		"/start — регистрация и главное меню",
		"/cancel — отменить текущее действие",
	}
	if role.CanEdit() {
		lines = append(lines,
			btnNewPost+" — создать пост",
			btnDrafts+", "+btnPending+", "+btnPublished+" — ваши посты",
		)
	}
	if role.IsAdmin() {
		lines = append(lines, btnUsers+" — управление пользователями")
	}
	return c.Send(strings.Join(lines, "\n"), menuFor(role))
}

func (b *Bot) onCancel(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	role := b.authorize(c)
	b.sessions.Reset(sender.ID)
	return c.Send(msgCanceled, menuFor(role))
}

// authorize resolves the caller's role and bumps their activity marker.
func (b *Bot) authorize(c tele.Context) model.Role {
	sender := c.Sender()
	if sender == nil {
		return model.RoleGuest
	}
	role := b.gate.Authorize(context.Background(), sender.ID)
	b.users.Touch(context.Background(), sender.ID)
	return role
}

func (b *Bot) onText(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	role := b.authorize(c)

	// A live dialogue takes priority over menu labels.
	if b.sessions.Get(sender.ID).State != session.StateIdle {
		return b.onIntakeText(c, role)
	}

	switch strings.TrimSpace(c.Text()) {
	case btnNewPost:
		if !role.CanEdit() {
			return c.Send(msgNoAccess)
		}
		b.sessions.Do(sender.ID, func(s *session.Session) {
			*s = session.Session{State: session.StateAwaitingTitle}
		})
		return c.Send(msgSendTitle, cancelMarkup())
	case btnDrafts:
		return b.listOwnPosts(c, role, model.StatusDraft, 1)
	case btnPending:
		return b.listOwnPosts(c, role, model.StatusPending, 1)
	case btnPublished:
		return b.listOwnPosts(c, role, model.StatusPublished, 1)
	case btnUsers:
		if !role.IsAdmin() {
			return c.Send(msgNoAccess)
		}
		return b.listUsers(c, 1)
	case btnRequest:
		return b.onAccessRequest(c)
	default:
		return c.Send("Не понимаю. Нажмите /help", menuFor(role))
	}
}

// onIntakeText advances the dialogue on a plain text message.
func (b *Bot) onIntakeText(c tele.Context, role model.Role) error {
	if !role.CanEdit() {
		b.sessions.Reset(c.Sender().ID)
		return c.Send(msgNoAccess)
	}

	chatID := c.Sender().ID
	text := strings.TrimSpace(c.Text())

	var reply func() error
	b.sessions.Do(chatID, func(s *session.Session) {
		switch s.State {
		case session.StateAwaitingTitle:
			if err := model.ValidateTitle(text); err != nil {
				reply = func() error {
					return c.Send(fmt.Sprintf("Название не подходит (до %d символов). Попробуйте еще раз", model.TitleMaxLen))
				}
				return
			}
			s.Title = text
			s.State = session.StateAwaitingContent
			reply = func() error { return c.Send(msgSendContent, cancelMarkup()) }

		case session.StateAwaitingContent:
			if err := model.ValidateContent(text); err != nil {
				reply = func() error {
					return c.Send(fmt.Sprintf("Текст не подходит (до %d символов). Попробуйте еще раз", model.ContentMaxLen))
				}
				return
			}
			s.Content = text
			s.State = session.StateAwaitingMedia
			reply = func() error { return c.Send(msgSendMedia, cancelMarkup()) }

		case session.StateAwaitingMedia:
			// Text while waiting for media is not a transition.
			reply = func() error { return c.Send(msgSendMedia, cancelMarkup()) }

		case session.StateAwaitingPublishDate:
			when, err := time.ParseInLocation(publishDateLayout, text, b.cfg.DisplayLocation)
			if err != nil {
				reply = func() error { return c.Send(msgBadDate) }
				return
			}
			postID := s.PostID
			*s = session.Session{State: session.StateIdle}
			reply = func() error { return b.schedulePost(c, postID, when.UTC()) }
		}
	})

	if reply != nil {
		return reply()
	}
	return nil
}

// onSkip finishes the media step without attaching anything.
func (b *Bot) onSkip(c tele.Context) error {
	role := b.authorize(c)
	chatID := c.Sender().ID

	var create bool
	var title, content string
	b.sessions.Do(chatID, func(s *session.Session) {
		if s.State != session.StateAwaitingMedia {
			return
		}
		create = true
		title, content = s.Title, s.Content
		*s = session.Session{State: session.StateIdle}
	})
	if !create {
		return nil
	}
	return b.createPost(c, role, backend.PostDraft{
		AuthorTelegramID: chatID,
		Title:            title,
		Content:          content,
	})
}

// createPost stores the draft and shows the post card with actions.
func (b *Bot) createPost(c tele.Context, role model.Role, d backend.PostDraft) error {
	p, err := b.posts.Create(context.Background(), d)
	if err != nil {
		b.log.Error("post create failed", logx.Int64("author", d.AuthorTelegramID), logx.Err(err))
		return c.Send("Не получилось сохранить пост", menuFor(role))
	}
	if err := c.Send(msgPostCreated, menuFor(role)); err != nil {
		return err
	}
	return b.sendPostCard(c, p)
}

func (b *Bot) schedulePost(c tele.Context, postID uuid.UUID, at time.Time) error {
	role := b.gate.Authorize(context.Background(), c.Sender().ID)
	p, err := b.posts.SetPublishDate(context.Background(), postID, at)
	if err != nil {
		b.log.Error("schedule failed", logx.Err(err))
		return c.Send("Не получилось запланировать пост")
	}
	return c.Send(
		fmt.Sprintf("%s: %s", msgScheduled, b.fmtTime(p.PublishAt)),
		menuFor(role),
	)
}

func (b *Bot) onAccessRequest(c tele.Context) error {
	sender := c.Sender()

	// Make sure the requester exists so the admin buttons can act on them.
	u, err := b.users.Register(context.Background(), backend.Profile{
		TelegramID:   sender.ID,
		FirstName:    sender.FirstName,
		LastName:     sender.LastName,
		Username:     sender.Username,
		LanguageCode: sender.LanguageCode,
	})
	if err != nil {
		b.log.Error("access request registration failed", logx.Err(err))
		return c.Send("Не получилось отправить запрос")
	}
	if u.Role.CanEdit() {
		return c.Send("У вас уже есть доступ", menuFor(u.Role))
	}

	b.notifyAdmins(u)
	return c.Send(msgAccessPending)
}

// notifyAdmins sends each admin a card with grant/deny buttons.
func (b *Bot) notifyAdmins(requester *model.User) {
	ctx := context.Background()
	text := fmt.Sprintf("%s просит доступ", requester.DisplayName())
	markup := userActionMarkup(requester)

	role := model.RoleAdmin
	for page := 1; ; page++ {
		admins, err := b.users.List(ctx, &role, pageOf(page), sortOldestFirst())
		if err != nil {
			b.log.Error("admin lookup failed", logx.Err(err))
			return
		}
		for _, admin := range admins.Users {
			if _, err := b.bot.Send(tele.ChatID(admin.TelegramID), text, markup); err != nil {
				b.log.Warn("admin notify failed",
					logx.Int64("admin", admin.TelegramID), logx.Err(err))
			}
		}
		if !admins.HasNext() {
			return
		}
	}
}

func cancelMarkup() *tele.ReplyMarkup {
	return tgui.NewInline().Row(tgui.Btn("❌ Отмена", "cancel")).Markup()
}
