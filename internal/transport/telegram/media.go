package telegram

import (
	"context"
	"io"

	tele "gopkg.in/telebot.v4"

	"github.com/LigeronAhill/smmaster/internal/backend"
	"github.com/LigeronAhill/smmaster/internal/session"
	"github.com/LigeronAhill/smmaster/pkg/logx"
)

func (b *Bot) onPhoto(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.Photo == nil {
		return nil
	}
	return b.onMedia(c, msg.Photo.FileID, false)
}

func (b *Bot) onVideo(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.Video == nil {
		return nil
	}
	return b.onMedia(c, msg.Video.FileID, true)
}

// onMedia finishes the intake: store the Telegram file id, re-host the file
// on VK, and create the draft. A failed VK upload only costs the VK ref;
// the post is still created and delivered to VK as plain text later.
func (b *Bot) onMedia(c tele.Context, fileID string, isVideo bool) error {
	role := b.authorize(c)
	chatID := c.Sender().ID

	var proceed bool
	var title, content string
	b.sessions.Do(chatID, func(s *session.Session) {
		if s.State != session.StateAwaitingMedia {
			return
		}
		proceed = true
		title, content = s.Title, s.Content
		*s = session.Session{State: session.StateIdle}
	})
	if !proceed {
		// Media outside the dialogue is not a transition.
		return nil
	}
	if !role.CanEdit() {
		return c.Send(msgNoAccess)
	}

	draft := backend.PostDraft{
		AuthorTelegramID: chatID,
		Title:            title,
		Content:          content,
	}
	if isVideo {
		draft.TGVideoID = fileID
	} else {
		draft.TGPhotoID = fileID
	}

	vkRef, err := b.rehostOnVK(context.Background(), fileID, isVideo)
	if err != nil {
		b.log.Error("vk media upload failed",
			logx.Int64("author", chatID),
			logx.Bool("video", isVideo),
			logx.Err(err))
	} else if isVideo {
		draft.VKVideoID = vkRef
	} else {
		draft.VKPhotoID = vkRef
	}

	return b.createPost(c, role, draft)
}

// rehostOnVK downloads the Telegram file and uploads it to VK.
func (b *Bot) rehostOnVK(ctx context.Context, fileID string, isVideo bool) (string, error) {
	rc, err := b.bot.File(&tele.File{FileID: fileID})
	if err != nil {
		return "", err
	}
	defer func(rc io.ReadCloser) { _ = rc.Close() }(rc)

	if isVideo {
		return b.uploader.UploadVideo(ctx, rc, fileID+".mp4")
	}
	return b.uploader.UploadPhoto(ctx, rc, fileID+".jpg")
}
