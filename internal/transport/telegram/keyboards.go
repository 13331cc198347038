package telegram

import (
	tele "gopkg.in/telebot.v4"

	"github.com/LigeronAhill/smmaster/internal/model"
)

// Reply-keyboard labels double as text commands: pressing a button sends
// its label, and onText matches on it.
const (
	btnUsers     = "👨🏻‍💻 Пользователи"
	btnNewPost   = "➕ Новый пост"
	btnDrafts    = "✍️ Черновики"
	btnPending   = "⌛ В очереди"
	btnPublished = "✔️ Опубликованные"
	btnRequest   = "🙏 Запросить доступ"
)

const (
	msgNoAccess      = "У вас нет доступа"
	msgCanceled      = "Действие отменено"
	msgPostDeleted   = "Пост удален"
	msgUserDeleted   = "Пользователь удален"
	msgSendTitle     = "Пришлите название поста"
	msgSendContent   = "Пришлите текст поста"
	msgSendMedia     = "Пришлите фото или видео (или /skip, чтобы оставить пост без медиа)"
	msgSendDate      = "Пришлите дату публикации в формате 2006-01-02 15:04"
	msgBadDate       = "Не понимаю дату. Формат: 2006-01-02 15:04"
	msgPostCreated   = "Пост сохранен в черновики"
	msgPublished     = "Пост опубликован"
	msgScheduled     = "Пост запланирован"
	msgNothingHere   = "Здесь пока пусто"
	msgAccessPending = "Запрос отправлен. Ожидайте, пока администратор выдаст доступ"
)

// menuFor builds the reply keyboard for the caller's role.
func menuFor(role model.Role) *tele.ReplyMarkup {
	rm := &tele.ReplyMarkup{ResizeKeyboard: true}
	switch {
	case role.IsAdmin():
		rm.Reply(
			rm.Row(rm.Text(btnUsers), rm.Text(btnNewPost)),
			rm.Row(rm.Text(btnDrafts), rm.Text(btnPending), rm.Text(btnPublished)),
		)
	case role.CanEdit():
		rm.Reply(
			rm.Row(rm.Text(btnNewPost)),
			rm.Row(rm.Text(btnDrafts), rm.Text(btnPending), rm.Text(btnPublished)),
		)
	default:
		rm.Reply(rm.Row(rm.Text(btnRequest)))
	}
	return rm
}
