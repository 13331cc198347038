package telegram

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/LigeronAhill/smmaster/internal/model"
	"github.com/LigeronAhill/smmaster/internal/store"
	"github.com/LigeronAhill/smmaster/pkg/logx"
	"github.com/LigeronAhill/smmaster/pkg/tgui"
)

const listPageSize = 10

func pageOf(n int) store.Page     { return store.Page{Number: n, Size: listPageSize} }
func sortOldestFirst() store.Sort { return store.SortCreatedAsc }

func (b *Bot) fmtTime(t time.Time) string {
	return t.In(b.cfg.DisplayLocation).Format(publishDateLayout)
}

// postCaption renders the body shown both in lists and in the channel.
func postCaption(p *model.Post) string {
	return tgui.B(p.Title).String() + "\n\n" + tgui.Esc(p.Content).String()
}

func statusLine(b *Bot, p *model.Post) string {
	switch p.Status {
	case model.StatusPending:
		return "⌛ " + b.fmtTime(p.PublishAt)
	case model.StatusPublished:
		return "✔️ " + b.fmtTime(p.PublishAt)
	default:
		return "✍️ черновик"
	}
}

// postActionMarkup builds the per-post inline actions.
func postActionMarkup(p *model.Post) *tele.ReplyMarkup {
	id := p.ID.String()
	kb := tgui.NewInline()
	if p.Status != model.StatusPublished {
		kb.Row(
			tgui.Btn("🚀 Опубликовать", tgui.Data("post", "pub", id)),
			tgui.Btn("📅 Запланировать", tgui.Data("post", "plan", id)),
		)
	}
	kb.Row(tgui.Btn("🗑 Удалить", tgui.Data("post", "del", id)))
	return kb.Markup()
}

// sendPostCard shows one post with its media and action buttons.
func (b *Bot) sendPostCard(c tele.Context, p *model.Post) error {
	caption := postCaption(p) + "\n\n" + tgui.Esc(statusLine(b, p)).String()
	markup := postActionMarkup(p)

	switch {
	case p.TGPhotoID != "":
		photo := &tele.Photo{File: tele.File{FileID: p.TGPhotoID}, Caption: caption}
		return c.Send(photo, markup, tele.ModeHTML)
	case p.TGVideoID != "":
		video := &tele.Video{File: tele.File{FileID: p.TGVideoID}, Caption: caption}
		return c.Send(video, markup, tele.ModeHTML)
	default:
		return c.Send(caption, markup, tele.ModeHTML)
	}
}

// listOwnPosts pages through the caller's posts in one status.
func (b *Bot) listOwnPosts(c tele.Context, role model.Role, status model.Status, page int) error {
	if !role.CanEdit() {
		return c.Send(msgNoAccess)
	}
	ctx := context.Background()

	author, err := b.users.GetByTelegramID(ctx, c.Sender().ID)
	if err != nil {
		return c.Send("Сначала нажмите /start")
	}

	list, err := b.posts.List(ctx, author.ID, status, pageOf(page))
	if err != nil {
		b.log.Error("post list failed", logx.Err(err))
		return c.Send("Не получилось загрузить посты")
	}
	if list.TotalCount == 0 {
		return c.Send(msgNothingHere, menuFor(role))
	}

	for _, p := range list.Posts {
		if err := b.sendPostCard(c, p); err != nil {
			return err
		}
	}
	return b.sendPostsNav(c, author.ID.String(), status, list)
}

// sendPostsNav closes a page of posts with "more/all" plus paging buttons.
func (b *Bot) sendPostsNav(c tele.Context, authorID string, status model.Status, list store.PostList) error {
	dataFor := func(page int) string {
		return tgui.Data("posts", "page", authorID, strconv.Itoa(int(status)), strconv.Itoa(page))
	}
	nav := tgui.NavRow(list.Page, list.HasNext(), dataFor)

	text := "Это все"
	if list.HasNext() {
		text = "Это не все"
	}
	text += "\n" + tgui.PageLabel(list.Page, list.TotalPages, list.TotalCount)

	if len(nav) == 0 {
		return c.Send(text)
	}
	return c.Send(text, tgui.NewInline().Row(nav...).Markup())
}

// ---- users ----

func roleTitle(r model.Role) string {
	switch r {
	case model.RoleAdmin:
		return "админ"
	case model.RoleEditor:
		return "редактор"
	default:
		return "гость"
	}
}

func userActionMarkup(u *model.User) *tele.ReplyMarkup {
	tgID := strconv.FormatInt(u.TelegramID, 10)
	kb := tgui.NewInline()
	kb.Row(
		tgui.Btn("✏️ Редактор", tgui.Data("user", "editor", tgID)),
		tgui.Btn("👤 Гость", tgui.Data("user", "guest", tgID)),
	)
	kb.Row(tgui.Btn("🗑 Удалить", tgui.Data("user", "del", tgID)))
	return kb.Markup()
}

// listUsers pages through every registered user (admin only).
func (b *Bot) listUsers(c tele.Context, page int) error {
	list, err := b.users.List(context.Background(), nil, pageOf(page), sortOldestFirst())
	if err != nil {
		b.log.Error("user list failed", logx.Err(err))
		return c.Send("Не получилось загрузить пользователей")
	}
	if list.TotalCount == 0 {
		return c.Send(msgNothingHere)
	}

	for _, u := range list.Users {
		text := fmt.Sprintf("%s — %s", u.DisplayName(), roleTitle(u.Role))
		if err := c.Send(text, userActionMarkup(u)); err != nil {
			return err
		}
	}

	dataFor := func(p int) string { return tgui.Data("users", "page", strconv.Itoa(p)) }
	nav := tgui.NavRow(list.Page, list.HasNext(), dataFor)
	label := tgui.PageLabel(list.Page, list.TotalPages, list.TotalCount)
	if len(nav) == 0 {
		return c.Send(label)
	}
	return c.Send(label, tgui.NewInline().Row(nav...).Markup())
}
