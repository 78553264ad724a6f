package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/iamwavecut/tool"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/sellvibe/internal/bot"
	"github.com/iamwavecut/sellvibe/internal/db"
	"github.com/iamwavecut/sellvibe/internal/i18n"
)

type adminStore interface {
	AddServer(ctx context.Context, server *db.Server) (int64, error)
	GetServers(ctx context.Context) ([]db.Server, error)
	SetUserRole(ctx context.Context, userID int64, role string) error
}

// Admin is the catalog-management boundary: add/list servers and promote
// users. Everything here is a one-shot write gated by IsAdmin; no session
// state is involved.
type Admin struct {
	s           bot.Service
	store       adminStore
	gate        adminGate
	panelLabels []string
}

func NewAdmin(s bot.Service, gate adminGate) *Admin {
	labels := make([]string, 0, len(i18n.GetLanguagesList()))
	for _, lang := range i18n.GetLanguagesList() {
		labels = append(labels, i18n.Get("🛠 Admin panel", lang))
	}
	return &Admin{
		s:           s,
		store:       s.GetDB(),
		gate:        gate,
		panelLabels: labels,
	}
}

func (a *Admin) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	if chat == nil || user == nil || !chat.IsPrivate() {
		return true, nil
	}
	msg := u.Message
	if msg == nil {
		return true, nil
	}
	lang := a.s.GetLanguage(user)

	if tool.In(msg.Text, a.panelLabels...) {
		if !a.gate.IsAdmin(ctx, user.ID) {
			return false, a.reply(chat.ID, i18n.Get("You do not have access to the admin panel", lang))
		}
		help := strings.Join([]string{
			i18n.Get("Usage: /addserver name | channel id | moderation group id", lang),
			i18n.Get("Usage: /promote user id", lang),
			"/servers",
		}, "\n")
		return false, a.reply(chat.ID, help)
	}

	if !msg.IsCommand() {
		return true, nil
	}

	switch msg.Command() {
	case "addserver":
		return false, a.handleAddServer(ctx, chat, user, lang, msg.CommandArguments())
	case "servers":
		return false, a.handleListServers(ctx, chat, user, lang)
	case "promote":
		return false, a.handlePromote(ctx, chat, user, lang, msg.CommandArguments())
	}
	return true, nil
}

func (a *Admin) handleAddServer(ctx context.Context, chat *api.Chat, user *api.User, lang string, args string) error {
	if !a.gate.IsAdmin(ctx, user.ID) {
		log.WithField("user_id", user.ID).Debug("addserver denied")
		return nil
	}
	parts := strings.Split(args, "|")
	if len(parts) != 3 {
		return a.reply(chat.ID, i18n.Get("Usage: /addserver name | channel id | moderation group id", lang))
	}
	server := &db.Server{
		Name:              strings.TrimSpace(parts[0]),
		ChannelID:         strings.TrimSpace(parts[1]),
		ModerationGroupID: strings.TrimSpace(parts[2]),
	}
	if server.Name == "" || server.ChannelID == "" || server.ModerationGroupID == "" {
		return a.reply(chat.ID, i18n.Get("Usage: /addserver name | channel id | moderation group id", lang))
	}
	if _, err := a.store.AddServer(ctx, server); err != nil {
		return errors.WithMessage(err, "add server")
	}
	return a.reply(chat.ID, i18n.Get("Server added", lang))
}

func (a *Admin) handleListServers(ctx context.Context, chat *api.Chat, user *api.User, lang string) error {
	if !a.gate.IsAdmin(ctx, user.ID) {
		log.WithField("user_id", user.ID).Debug("servers denied")
		return nil
	}
	servers, err := a.store.GetServers(ctx)
	if err != nil {
		return errors.WithMessage(err, "get servers")
	}
	if len(servers) == 0 {
		return a.reply(chat.ID, i18n.Get("No servers yet", lang))
	}
	var sb strings.Builder
	sb.WriteString(i18n.Get("Servers:", lang))
	sb.WriteString("\n")
	for _, server := range servers {
		sb.WriteString(fmt.Sprintf("%d. %s\n", server.ID, server.Name))
	}
	return a.reply(chat.ID, sb.String())
}

func (a *Admin) handlePromote(ctx context.Context, chat *api.Chat, user *api.User, lang string, args string) error {
	if !a.gate.IsAdmin(ctx, user.ID) {
		log.WithField("user_id", user.ID).Debug("promote denied")
		return nil
	}
	userID, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil {
		return a.reply(chat.ID, i18n.Get("Please send a numeric user id", lang))
	}
	if err := a.store.SetUserRole(ctx, userID, db.RoleAdmin); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return a.reply(chat.ID, i18n.Get("User not found", lang))
		}
		return errors.WithMessage(err, "set user role")
	}
	return a.reply(chat.ID, i18n.Get("User is now an administrator", lang))
}

func (a *Admin) reply(chatID int64, text string) error {
	_, err := a.s.GetBot().Send(api.NewMessage(chatID, text))
	return err
}
