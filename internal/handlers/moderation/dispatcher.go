package moderation

import (
	"context"
	"strconv"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/sellvibe/internal/bot"
	"github.com/iamwavecut/sellvibe/internal/db"
	"github.com/iamwavecut/sellvibe/internal/event"
	"github.com/iamwavecut/sellvibe/internal/i18n"
	"github.com/iamwavecut/sellvibe/internal/observability"
)

// Sender delivers review requests, publications and author notifications.
type Sender interface {
	SendReviewRequest(ctx context.Context, server *db.Server, ad *db.Advertisement) error
	Publish(ctx context.Context, server *db.Server, ad *db.Advertisement) error
	NotifyAuthor(ctx context.Context, userID int64, text string) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}

type dispatcherStore interface {
	GetServer(ctx context.Context, serverID int64) (*db.Server, error)
	GetAdvertisement(ctx context.Context, adID int64) (*db.Advertisement, error)
	ResolveAdvertisement(ctx context.Context, adID int64, status string, sideEffect func(ad *db.Advertisement) error) (*db.Advertisement, error)
}

// deliveryError marks a failure of the outbound publication itself, as
// opposed to a store failure during resolution.
type deliveryError struct {
	err error
}

func (e *deliveryError) Error() string { return e.err.Error() }
func (e *deliveryError) Unwrap() error { return e.err }

// Outcome tells the transport how to acknowledge an operator's decision.
type Outcome int

const (
	// OutcomeApplied means the transition and its side effects ran.
	OutcomeApplied Outcome = iota
	// OutcomeAlreadyHandled covers stale or duplicate decision events;
	// they are silent no-ops.
	OutcomeAlreadyHandled
	// OutcomeIgnored marks a decision from a chat that is not the
	// advertisement's moderation destination.
	OutcomeIgnored
)

// Dispatcher consumes pending advertisements and operator verdicts. A verdict
// is terminal: side effects run exactly once, guarded by the store's
// conditional transition.
type Dispatcher struct {
	s      bot.Service
	store  dispatcherStore
	sender Sender
	lang   string
	parser event.Parser
}

func NewDispatcher(s bot.Service, sender Sender, lang string) *Dispatcher {
	return &Dispatcher{
		s:      s,
		store:  s.GetDB(),
		sender: sender,
		lang:   lang,
	}
}

// SubmitForReview posts a freshly created pending advertisement to its
// server's moderation destination.
func (d *Dispatcher) SubmitForReview(ctx context.Context, ad *db.Advertisement) error {
	server, err := d.store.GetServer(ctx, ad.ServerID)
	if err != nil {
		return errors.WithMessage(err, "get server")
	}
	return d.sender.SendReviewRequest(ctx, server, ad)
}

func (d *Dispatcher) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	if u == nil || u.CallbackQuery == nil || chat == nil {
		return true, nil
	}
	ev, ok := d.parser.FromUpdate(u)
	if !ok {
		return true, nil
	}
	decision, ok := ev.(event.Decision)
	if !ok {
		return true, nil
	}

	outcome, err := d.Decide(ctx, decision.Kind, decision.AdID, chat.ID)
	if err != nil {
		d.answerCallback(u, i18n.Get("Could not publish, try again later", d.lang))
		return false, errors.WithMessage(err, "apply decision")
	}

	switch outcome {
	case OutcomeApplied:
		ack := i18n.Get("Advertisement approved and published", d.lang)
		if decision.Kind == event.DecisionReject {
			ack = i18n.Get("Advertisement rejected", d.lang)
		}
		d.answerCallback(u, ack)
		d.removeReviewMessage(ctx, u)
	case OutcomeAlreadyHandled:
		d.answerCallback(u, i18n.Get("Already handled", d.lang))
		d.removeReviewMessage(ctx, u)
	case OutcomeIgnored:
		d.answerCallback(u, "")
	}
	return false, nil
}

// Decide applies a moderator verdict. A fromChatID of 0 skips the
// moderation-destination check.
func (d *Dispatcher) Decide(ctx context.Context, kind event.DecisionKind, adID int64, fromChatID int64) (Outcome, error) {
	entry := log.WithField("ad_id", adID).WithField("decision", string(kind))

	ad, err := d.store.GetAdvertisement(ctx, adID)
	if errors.Is(err, db.ErrNotFound) {
		entry.Debug("decision for unknown advertisement")
		return OutcomeAlreadyHandled, nil
	}
	if err != nil {
		return OutcomeAlreadyHandled, errors.WithMessage(err, "get advertisement")
	}
	if ad.Status != db.AdStatusPending {
		entry.WithField("status", ad.Status).Debug("decision for resolved advertisement")
		return OutcomeAlreadyHandled, nil
	}

	server, err := d.store.GetServer(ctx, ad.ServerID)
	if err != nil {
		return OutcomeAlreadyHandled, errors.WithMessage(err, "get server")
	}
	if fromChatID != 0 && !matchesDestination(server.ModerationGroupID, fromChatID) {
		entry.WithField("chat_id", fromChatID).Warn("decision from unexpected chat")
		return OutcomeIgnored, nil
	}

	status := db.AdStatusApproved
	var sideEffect func(*db.Advertisement) error
	if kind == event.DecisionReject {
		status = db.AdStatusRejected
	} else {
		sideEffect = func(resolved *db.Advertisement) error {
			if err := d.sender.Publish(ctx, server, resolved); err != nil {
				return &deliveryError{err: err}
			}
			return nil
		}
	}

	resolved, err := d.store.ResolveAdvertisement(ctx, adID, status, sideEffect)
	if errors.Is(err, db.ErrNotFound) || errors.Is(err, db.ErrInvalidTransition) {
		// lost the race against a concurrent decision
		entry.Debug("advertisement resolved concurrently")
		return OutcomeAlreadyHandled, nil
	}
	if err != nil {
		var dErr *deliveryError
		if errors.As(err, &dErr) {
			observability.RecordDeliveryFailure("publish")
		}
		return OutcomeAlreadyHandled, err
	}

	observability.RecordDecision(resolved.Status)
	d.notifyAuthor(ctx, resolved, kind)
	return OutcomeApplied, nil
}

func (d *Dispatcher) notifyAuthor(ctx context.Context, ad *db.Advertisement, kind event.DecisionKind) {
	text := i18n.Get("✅ Your advertisement was approved and published!", d.lang)
	if kind == event.DecisionReject {
		text = i18n.Get("❌ Your advertisement was rejected by a moderator.", d.lang)
	}
	if err := d.sender.NotifyAuthor(ctx, ad.UserID, text); err != nil {
		log.WithError(err).WithField("ad_id", ad.ID).Error("cant notify author")
		observability.RecordDeliveryFailure("notify")
	}
}

func (d *Dispatcher) removeReviewMessage(ctx context.Context, u *api.Update) {
	cq := u.CallbackQuery
	if cq == nil || cq.Message == nil {
		return
	}
	if err := d.sender.DeleteMessage(ctx, cq.Message.Chat.ID, cq.Message.MessageID); err != nil {
		log.WithError(err).Debug("cant remove review message")
	}
}

func (d *Dispatcher) answerCallback(u *api.Update, text string) {
	if u == nil || u.CallbackQuery == nil {
		return
	}
	if _, err := d.s.GetBot().Request(api.NewCallback(u.CallbackQuery.ID, text)); err != nil {
		log.WithError(err).Debug("cant answer callback query")
	}
}

func matchesDestination(dest string, chatID int64) bool {
	id, err := strconv.ParseInt(dest, 10, 64)
	if err != nil {
		// username destinations cannot be checked against a numeric id
		return true
	}
	return id == chatID
}
