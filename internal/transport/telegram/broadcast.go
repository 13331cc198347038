package telegram

import (
	"context"
	"fmt"

	tele "gopkg.in/telebot.v4"

	"github.com/LigeronAhill/smmaster/internal/model"
	"github.com/LigeronAhill/smmaster/pkg/logx"
)

// Broadcast delivers a post to the configured channel: photo first, then
// video, then plain text. It implements publish.Broadcaster.
func (b *Bot) Broadcast(ctx context.Context, p *model.Post) error {
	caption := postCaption(p)
	to := tele.ChatID(b.cfg.ChannelID)

	var err error
	switch {
	case p.TGPhotoID != "":
		photo := &tele.Photo{File: tele.File{FileID: p.TGPhotoID}, Caption: caption}
		_, err = b.bot.Send(to, photo, tele.ModeHTML)
	case p.TGVideoID != "":
		video := &tele.Video{File: tele.File{FileID: p.TGVideoID}, Caption: caption}
		_, err = b.bot.Send(to, video, tele.ModeHTML)
	default:
		_, err = b.bot.Send(to, caption, tele.ModeHTML)
	}
	if err != nil {
		return fmt.Errorf("send to channel %d: %w", b.cfg.ChannelID, err)
	}

	b.log.Info("post broadcast to channel",
		logx.String("post_id", p.ID.String()),
		logx.Int64("channel", b.cfg.ChannelID))
	return nil
}
