package handlers

import (
	"context"
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/sellvibe/internal/bot"
	"github.com/iamwavecut/sellvibe/internal/catalog"
	"github.com/iamwavecut/sellvibe/internal/db"
	"github.com/iamwavecut/sellvibe/internal/event"
	"github.com/iamwavecut/sellvibe/internal/i18n"
	"github.com/iamwavecut/sellvibe/internal/observability"
	"github.com/iamwavecut/sellvibe/internal/session"
)

type composerStore interface {
	UpsertUser(ctx context.Context, user *db.User) error
	GetServer(ctx context.Context, serverID int64) (*db.Server, error)
	GetServers(ctx context.Context) ([]db.Server, error)
	CreateAdvertisement(ctx context.Context, ad *db.Advertisement) (int64, error)
}

type reviewDispatcher interface {
	SubmitForReview(ctx context.Context, ad *db.Advertisement) error
}

type adminGate interface {
	IsAdmin(ctx context.Context, userID int64) bool
}

// Composer drives the ad composition session: server selection with paging,
// text, the optional single photo, and the final hand-off to moderation.
type Composer struct {
	s          bot.Service
	store      composerStore
	sessions   *session.Manager
	dispatcher reviewDispatcher
	gate       adminGate
	parser     event.Parser
}

func NewComposer(s bot.Service, sessions *session.Manager, dispatcher reviewDispatcher, gate adminGate) *Composer {
	labels := make([]string, 0, len(i18n.GetLanguagesList()))
	for _, lang := range i18n.GetLanguagesList() {
		labels = append(labels, i18n.Get("📝 Create advertisement", lang))
	}
	return &Composer{
		s:          s,
		store:      s.GetDB(),
		sessions:   sessions,
		dispatcher: dispatcher,
		gate:       gate,
		parser:     event.Parser{ComposeLabels: labels},
	}
}

func (c *Composer) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	if chat == nil || user == nil || !chat.IsPrivate() {
		return true, nil
	}
	ev, ok := c.parser.FromUpdate(u)
	if !ok {
		return true, nil
	}
	lang := c.s.GetLanguage(user)

	switch e := ev.(type) {
	case event.Start:
		return false, c.handleStart(ctx, chat, user, lang)
	case event.StartCompose:
		return false, c.handleStartCompose(ctx, chat, user, lang)
	case event.PageRequested:
		return false, c.handlePageRequested(ctx, u, user, lang, e.Page)
	case event.ServerChosen:
		return false, c.handleServerChosen(ctx, u, chat, user, lang, e.ServerID)
	case event.TextReceived:
		return c.handleTextReceived(ctx, chat, user, lang, e.Text)
	case event.AddPhoto:
		return false, c.handleAddPhoto(ctx, u, user, lang)
	case event.SkipPhoto:
		return false, c.handleSkipPhoto(ctx, u, chat, user, lang)
	case event.PhotoReceived:
		return c.handlePhotoReceived(ctx, chat, user, lang, e.FileID)
	case event.Cancel:
		return false, c.handleCancel(ctx, u, user, lang)
	case event.Decision:
		// moderator verdicts belong to the moderation handler
		return true, nil
	}
	return true, nil
}

func (c *Composer) handleStart(ctx context.Context, chat *api.Chat, user *api.User, lang string) error {
	row := &db.User{ID: user.ID}
	if user.UserName != "" {
		username := user.UserName
		row.Username = &username
	}
	if name := strings.TrimSpace(user.FirstName + " " + user.LastName); name != "" {
		row.FullName = &name
	}
	if err := c.store.UpsertUser(ctx, row); err != nil {
		return errors.WithMessage(err, "upsert user")
	}

	c.sessions.End(user.ID)

	msg := api.NewMessage(chat.ID, i18n.Get("Welcome to SellVibe! Post your advertisement in a couple of taps — press the button below.", lang))
	menu := c.mainMenu(ctx, user.ID, lang)
	msg.ReplyMarkup = &menu
	_, err := c.s.GetBot().Send(msg)
	return err
}

func (c *Composer) handleStartCompose(ctx context.Context, chat *api.Chat, user *api.User, lang string) error {
	servers, err := c.store.GetServers(ctx)
	if err != nil {
		return errors.WithMessage(err, "get servers")
	}
	if len(servers) == 0 {
		_, err := c.s.GetBot().Send(api.NewMessage(chat.ID, i18n.Get("No servers yet", lang)))
		return err
	}

	sess := c.sessions.Begin(user.ID)
	page := catalog.Paginate(servers, sess.CatalogPage)

	msg := api.NewMessage(chat.ID, i18n.Get("Choose a server for your advertisement:", lang))
	markup := c.serversKeyboard(page, lang)
	msg.ReplyMarkup = &markup
	_, err = c.s.GetBot().Send(msg)
	return err
}

func (c *Composer) handlePageRequested(ctx context.Context, u *api.Update, user *api.User, lang string, pageIndex int) error {
	c.answerCallback(u, "")

	sess, ok := c.sessions.Get(user.ID)
	if !ok || sess.State != session.StateSelectingServer {
		return nil
	}

	servers, err := c.store.GetServers(ctx)
	if err != nil {
		return errors.WithMessage(err, "get servers")
	}
	page := catalog.Paginate(servers, pageIndex)
	sess.CatalogPage = page.Index
	c.sessions.Put(sess)

	cq := u.CallbackQuery
	if cq == nil || cq.Message == nil {
		return nil
	}
	edit := api.NewEditMessageTextAndMarkup(
		cq.Message.Chat.ID,
		cq.Message.MessageID,
		i18n.Get("Choose a server for your advertisement:", lang),
		c.serversKeyboard(page, lang),
	)
	_, err = c.s.GetBot().Send(edit)
	return err
}

func (c *Composer) handleServerChosen(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User, lang string, serverID int64) error {
	sess, ok := c.sessions.Get(user.ID)
	if !ok || sess.State != session.StateSelectingServer {
		c.answerCallback(u, "")
		return nil
	}

	if _, err := c.store.GetServer(ctx, serverID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			// deleted mid-flow: stay on the selection step
			c.answerCallback(u, i18n.Get("This server is no longer available, please start over", lang))
			return nil
		}
		return errors.WithMessage(err, "get server")
	}
	c.answerCallback(u, "")

	sess.ServerID = serverID
	sess.State = session.StateAwaitingText
	c.sessions.Put(sess)

	msg := api.NewMessage(chat.ID, i18n.Get("✍️ Send the advertisement text", lang))
	markup := c.cancelKeyboard(lang)
	msg.ReplyMarkup = &markup
	_, err := c.s.GetBot().Send(msg)
	return err
}

func (c *Composer) handleTextReceived(ctx context.Context, chat *api.Chat, user *api.User, lang string, text string) (bool, error) {
	sess, ok := c.sessions.Get(user.ID)
	if !ok {
		return true, nil
	}
	if sess.State != session.StateAwaitingText {
		return false, nil
	}
	if strings.TrimSpace(text) == "" {
		// reject without advancing; the user re-sends the text
		_, err := c.s.GetBot().Send(api.NewMessage(chat.ID, i18n.Get("The text cannot be empty, please send it again", lang)))
		return false, err
	}

	sess.DraftText = text
	sess.State = session.StateAwaitingPhotoDecision
	c.sessions.Put(sess)

	msg := api.NewMessage(chat.ID, i18n.Get("Would you like to attach a photo?", lang))
	markup := c.photoDecisionKeyboard(lang)
	msg.ReplyMarkup = &markup
	_, err := c.s.GetBot().Send(msg)
	return false, err
}

func (c *Composer) handleAddPhoto(ctx context.Context, u *api.Update, user *api.User, lang string) error {
	c.answerCallback(u, "")

	sess, ok := c.sessions.Get(user.ID)
	if !ok || sess.State != session.StateAwaitingPhotoDecision {
		return nil
	}
	sess.State = session.StateAwaitingPhoto
	c.sessions.Put(sess)

	cq := u.CallbackQuery
	if cq == nil || cq.Message == nil {
		return nil
	}
	edit := api.NewEditMessageText(cq.Message.Chat.ID, cq.Message.MessageID, i18n.Get("📸 Send a single photo for your advertisement", lang))
	_, err := c.s.GetBot().Send(edit)
	return err
}

func (c *Composer) handleSkipPhoto(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User, lang string) error {
	c.answerCallback(u, "")

	sess, ok := c.sessions.Get(user.ID)
	if !ok || sess.State != session.StateAwaitingPhotoDecision {
		return nil
	}
	return c.finalize(ctx, chat, user, lang, sess, nil)
}

func (c *Composer) handlePhotoReceived(ctx context.Context, chat *api.Chat, user *api.User, lang string, fileID string) (bool, error) {
	sess, ok := c.sessions.Get(user.ID)
	if !ok {
		return true, nil
	}
	if sess.State != session.StateAwaitingPhoto {
		return false, nil
	}
	return false, c.finalize(ctx, chat, user, lang, sess, &fileID)
}

func (c *Composer) handleCancel(ctx context.Context, u *api.Update, user *api.User, lang string) error {
	c.answerCallback(u, "")
	c.sessions.End(user.ID)

	cq := u.CallbackQuery
	if cq == nil || cq.Message == nil {
		return nil
	}
	edit := api.NewEditMessageText(cq.Message.Chat.ID, cq.Message.MessageID, i18n.Get("❌ Advertisement composition cancelled", lang))
	_, err := c.s.GetBot().Send(edit)
	return err
}

// finalize inserts the pending advertisement and hands it to moderation. The
// session survives a failed insert so the user can retry the draft.
func (c *Composer) finalize(ctx context.Context, chat *api.Chat, user *api.User, lang string, sess session.Session, photoID *string) error {
	if !sess.CanFinalize() {
		c.sessions.End(user.ID)
		_, err := c.s.GetBot().Send(api.NewMessage(chat.ID, i18n.Get("Something went wrong, please start over", lang)))
		return err
	}

	ad := &db.Advertisement{
		UserID:   user.ID,
		ServerID: sess.ServerID,
		Text:     sess.DraftText,
		PhotoID:  photoID,
	}
	if _, err := c.store.CreateAdvertisement(ctx, ad); err != nil {
		switch {
		case errors.Is(err, db.ErrUnknownServer):
			c.sessions.End(user.ID)
			_, err := c.s.GetBot().Send(api.NewMessage(chat.ID, i18n.Get("This server is no longer available, please start over", lang)))
			return err
		case errors.Is(err, db.ErrEmptyText):
			sess.State = session.StateAwaitingText
			c.sessions.Put(sess)
			_, err := c.s.GetBot().Send(api.NewMessage(chat.ID, i18n.Get("The text cannot be empty, please send it again", lang)))
			return err
		default:
			log.WithError(err).WithField("user_id", user.ID).Error("cant create advertisement")
			_, sendErr := c.s.GetBot().Send(api.NewMessage(chat.ID, i18n.Get("Could not save your advertisement, please try again", lang)))
			return sendErr
		}
	}

	c.sessions.End(user.ID)
	observability.RecordSubmission()

	if err := c.dispatcher.SubmitForReview(ctx, ad); err != nil {
		// the row is durably pending; moderators can pick it up once
		// delivery recovers
		log.WithError(err).WithField("ad_id", ad.ID).Error("cant deliver review request")
		observability.RecordDeliveryFailure("review")
	}

	msg := api.NewMessage(chat.ID, i18n.Get("✅ Your advertisement was sent to moderation!", lang))
	menu := c.mainMenu(ctx, user.ID, lang)
	msg.ReplyMarkup = &menu
	_, err := c.s.GetBot().Send(msg)
	return err
}

func (c *Composer) answerCallback(u *api.Update, text string) {
	if u == nil || u.CallbackQuery == nil {
		return
	}
	if _, err := c.s.GetBot().Request(api.NewCallback(u.CallbackQuery.ID, text)); err != nil {
		log.WithError(err).Debug("cant answer callback query")
	}
}

func (c *Composer) mainMenu(ctx context.Context, userID int64, lang string) api.ReplyKeyboardMarkup {
	rows := [][]api.KeyboardButton{
		api.NewKeyboardButtonRow(api.NewKeyboardButton(i18n.Get("📝 Create advertisement", lang))),
	}
	if c.gate.IsAdmin(ctx, userID) {
		rows = append(rows, api.NewKeyboardButtonRow(api.NewKeyboardButton(i18n.Get("🛠 Admin panel", lang))))
	}
	menu := api.NewReplyKeyboard(rows...)
	menu.ResizeKeyboard = true
	return menu
}

func (c *Composer) serversKeyboard(page catalog.Page, lang string) api.InlineKeyboardMarkup {
	rows := make([][]api.InlineKeyboardButton, 0, len(page.Servers)+2)
	for _, server := range page.Servers {
		rows = append(rows, api.NewInlineKeyboardRow(
			api.NewInlineKeyboardButtonData(server.Name, event.ServerCallback(server.ID)),
		))
	}

	nav := make([]api.InlineKeyboardButton, 0, 2)
	if page.HasPrev {
		nav = append(nav, api.NewInlineKeyboardButtonData(i18n.Get("◀️ Back", lang), event.PageCallback(page.Index-1)))
	}
	if page.HasNext {
		nav = append(nav, api.NewInlineKeyboardButtonData(i18n.Get("Forward ▶️", lang), event.PageCallback(page.Index+1)))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}

	rows = append(rows, api.NewInlineKeyboardRow(
		api.NewInlineKeyboardButtonData(i18n.Get("❌ Cancel", lang), event.CancelCallback()),
	))
	return api.NewInlineKeyboardMarkup(rows...)
}

func (c *Composer) photoDecisionKeyboard(lang string) api.InlineKeyboardMarkup {
	return api.NewInlineKeyboardMarkup(
		api.NewInlineKeyboardRow(api.NewInlineKeyboardButtonData(i18n.Get("📸 Attach photo", lang), event.AddPhotoCallback())),
		api.NewInlineKeyboardRow(api.NewInlineKeyboardButtonData(i18n.Get("🚀 Send without photo", lang), event.SkipPhotoCallback())),
		api.NewInlineKeyboardRow(api.NewInlineKeyboardButtonData(i18n.Get("❌ Cancel", lang), event.CancelCallback())),
	)
}

func (c *Composer) cancelKeyboard(lang string) api.InlineKeyboardMarkup {
	return api.NewInlineKeyboardMarkup(
		api.NewInlineKeyboardRow(api.NewInlineKeyboardButtonData(i18n.Get("❌ Cancel", lang), event.CancelCallback())),
	)
}
