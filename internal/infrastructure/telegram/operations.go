package telegram

import (
	"context"
	"fmt"
	"strconv"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/iamwavecut/sellvibe/internal/db"
	"github.com/iamwavecut/sellvibe/internal/event"
	"github.com/iamwavecut/sellvibe/internal/i18n"
)

// Operations delivers advertisements to their external destinations: the
// moderation group, the publish channel and the author's private chat.
type Operations struct {
	bot  *api.BotAPI
	lang string
}

func NewOperations(bot *api.BotAPI, lang string) *Operations {
	return &Operations{bot: bot, lang: lang}
}

// SendReviewRequest posts the pending advertisement to the server's
// moderation group, annotated with approve/reject buttons keyed by ad id.
func (o *Operations) SendReviewRequest(ctx context.Context, server *db.Server, ad *db.Advertisement) error {
	caption := fmt.Sprintf("%s #%d\n\n%s", i18n.Get("New advertisement", o.lang), ad.ID, ad.Text)
	keyboard := api.NewInlineKeyboardMarkup(
		api.NewInlineKeyboardRow(
			api.NewInlineKeyboardButtonData(i18n.Get("✅ Approve", o.lang), event.DecisionCallback(event.DecisionApprove, ad.ID)),
			api.NewInlineKeyboardButtonData(i18n.Get("❌ Reject", o.lang), event.DecisionCallback(event.DecisionReject, ad.ID)),
		),
	)

	if ad.HasPhoto() {
		photo := api.NewPhoto(0, api.FileID(*ad.PhotoID))
		photo.ChatConfig = chatConfig(server.ModerationGroupID)
		photo.Caption = caption
		photo.ReplyMarkup = &keyboard
		if _, err := o.bot.Send(photo); err != nil {
			return fmt.Errorf("failed to send review request: %w", err)
		}
		return nil
	}

	msg := api.NewMessage(0, caption)
	msg.ChatConfig = chatConfig(server.ModerationGroupID)
	msg.ReplyMarkup = &keyboard
	if _, err := o.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send review request: %w", err)
	}
	return nil
}

// Publish sends the approved advertisement to the server's public channel.
func (o *Operations) Publish(ctx context.Context, server *db.Server, ad *db.Advertisement) error {
	if ad.HasPhoto() {
		photo := api.NewPhoto(0, api.FileID(*ad.PhotoID))
		photo.ChatConfig = chatConfig(server.ChannelID)
		photo.Caption = ad.Text
		if _, err := o.bot.Send(photo); err != nil {
			return fmt.Errorf("failed to publish advertisement: %w", err)
		}
		return nil
	}

	msg := api.NewMessage(0, ad.Text)
	msg.ChatConfig = chatConfig(server.ChannelID)
	if _, err := o.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to publish advertisement: %w", err)
	}
	return nil
}

// NotifyAuthor delivers a moderation outcome to the author's private chat.
func (o *Operations) NotifyAuthor(ctx context.Context, userID int64, text string) error {
	if _, err := o.bot.Send(api.NewMessage(userID, text)); err != nil {
		return fmt.Errorf("failed to notify author: %w", err)
	}
	return nil
}

// DeleteMessage removes a message, typically a resolved review request.
func (o *Operations) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if _, err := o.bot.Request(api.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

// chatConfig resolves a stored destination, which is either a numeric chat id
// or a public @username.
func chatConfig(dest string) api.ChatConfig {
	if id, err := strconv.ParseInt(dest, 10, 64); err == nil {
		return api.ChatConfig{ChatID: id}
	}
	return api.ChatConfig{ChannelUsername: dest}
}
