package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/iamwavecut/sellvibe/internal/bot"
	"github.com/iamwavecut/sellvibe/internal/db"
	"github.com/iamwavecut/sellvibe/internal/db/sqlite"
	"github.com/iamwavecut/sellvibe/internal/event"
	"github.com/iamwavecut/sellvibe/internal/session"
)

type botCall struct {
	method string
	params url.Values
}

// botRecorder fakes the transport API: every call is recorded and answered
// with an empty ok envelope.
type botRecorder struct {
	mu    sync.Mutex
	calls []botCall
}

func (r *botRecorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	_ = req.ParseForm()
	method := req.URL.Path[strings.LastIndex(req.URL.Path, "/")+1:]
	r.mu.Lock()
	r.calls = append(r.calls, botCall{method: method, params: req.Form})
	r.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
}

func (r *botRecorder) lastText() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.calls) - 1; i >= 0; i-- {
		if r.calls[i].method == "sendMessage" || r.calls[i].method == "editMessageText" {
			return r.calls[i].params.Get("text")
		}
	}
	return ""
}

type fakeReviewDispatcher struct {
	submitted []int64
}

func (f *fakeReviewDispatcher) SubmitForReview(ctx context.Context, ad *db.Advertisement) error {
	f.submitted = append(f.submitted, ad.ID)
	return nil
}

type fakeGate struct {
	admin bool
}

func (g fakeGate) IsAdmin(ctx context.Context, userID int64) bool { return g.admin }

type composerHarness struct {
	composer   *Composer
	sessions   *session.Manager
	client     db.Client
	dispatcher *fakeReviewDispatcher
	recorder   *botRecorder
	chat       *api.Chat
	user       *api.User
}

func newComposerHarness(t *testing.T) *composerHarness {
	t.Helper()

	recorder := &botRecorder{}
	srv := httptest.NewServer(recorder)
	t.Cleanup(srv.Close)

	botAPI, err := api.NewBotAPIWithAPIEndpoint("test-token", srv.URL+"/bot%s/%s")
	if err != nil {
		t.Fatalf("unexpected error creating bot api: %v", err)
	}

	client, err := sqlite.NewSQLiteClient(context.Background(), t.TempDir(), "test.db")
	if err != nil {
		t.Fatalf("unexpected error creating store: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	sessions := session.NewManager(time.Hour)
	dispatcher := &fakeReviewDispatcher{}
	composer := NewComposer(bot.NewService(botAPI, client), sessions, dispatcher, fakeGate{})

	return &composerHarness{
		composer:   composer,
		sessions:   sessions,
		client:     client,
		dispatcher: dispatcher,
		recorder:   recorder,
		chat:       &api.Chat{ID: 7, Type: "private"},
		user:       &api.User{ID: 7, FirstName: "Test", LanguageCode: "en"},
	}
}

func (h *composerHarness) addServer(t *testing.T, name string) int64 {
	t.Helper()
	id, err := h.client.AddServer(context.Background(), &db.Server{
		Name:              name,
		ChannelID:         "-100111",
		ModerationGroupID: "-100555",
	})
	if err != nil {
		t.Fatalf("unexpected error adding server: %v", err)
	}
	return id
}

func (h *composerHarness) handle(t *testing.T, u *api.Update) {
	t.Helper()
	if _, err := h.composer.Handle(context.Background(), u, h.chat, h.user); err != nil {
		t.Fatalf("unexpected handler error: %v", err)
	}
}

func (h *composerHarness) state(t *testing.T) session.State {
	t.Helper()
	sess, ok := h.sessions.Get(h.user.ID)
	if !ok {
		return session.StateIdle
	}
	return sess.State
}

func startUpdate() *api.Update {
	return &api.Update{Message: &api.Message{
		Text:     "/start",
		Entities: []api.MessageEntity{{Type: "bot_command", Offset: 0, Length: 6}},
	}}
}

func composeUpdate() *api.Update {
	return &api.Update{Message: &api.Message{Text: "📝 Create advertisement"}}
}

func textMessageUpdate(text string) *api.Update {
	return &api.Update{Message: &api.Message{Text: text}}
}

func photoMessageUpdate(fileID string) *api.Update {
	return &api.Update{Message: &api.Message{Photo: []api.PhotoSize{{FileID: fileID}}}}
}

func composerCallbackUpdate(data string) *api.Update {
	return &api.Update{CallbackQuery: &api.CallbackQuery{
		ID:      "cq",
		Data:    data,
		Message: &api.Message{MessageID: 5, Chat: api.Chat{ID: 7}},
	}}
}

func TestStartCreatesUserAndResetsSession(t *testing.T) {
	t.Parallel()
	h := newComposerHarness(t)
	h.addServer(t, "Main")

	h.handle(t, composeUpdate())
	if h.state(t) != session.StateSelectingServer {
		t.Fatalf("unexpected state: %v", h.state(t))
	}

	h.handle(t, startUpdate())
	if h.state(t) != session.StateIdle {
		t.Fatalf("start must reset the session, state: %v", h.state(t))
	}
	user, err := h.client.GetUser(context.Background(), h.user.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.FullName == nil || *user.FullName != "Test" {
		t.Fatalf("unexpected full name: %v", user.FullName)
	}
}

func TestComposeFlowWithoutPhoto(t *testing.T) {
	t.Parallel()
	h := newComposerHarness(t)
	serverID := h.addServer(t, "Main")
	ctx := context.Background()

	h.handle(t, composeUpdate())
	if h.state(t) != session.StateSelectingServer {
		t.Fatalf("unexpected state: %v", h.state(t))
	}

	h.handle(t, composerCallbackUpdate(event.ServerCallback(serverID)))
	if h.state(t) != session.StateAwaitingText {
		t.Fatalf("unexpected state: %v", h.state(t))
	}

	h.handle(t, textMessageUpdate("bike for sale"))
	if h.state(t) != session.StateAwaitingPhotoDecision {
		t.Fatalf("unexpected state: %v", h.state(t))
	}

	h.handle(t, composerCallbackUpdate(event.SkipPhotoCallback()))
	if h.state(t) != session.StateIdle {
		t.Fatalf("session must end after submission, state: %v", h.state(t))
	}
	if len(h.dispatcher.submitted) != 1 {
		t.Fatalf("unexpected review submissions: %v", h.dispatcher.submitted)
	}

	ad, err := h.client.GetAdvertisement(ctx, h.dispatcher.submitted[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ad.Text != "bike for sale" || ad.ServerID != serverID || ad.UserID != h.user.ID {
		t.Fatalf("unexpected advertisement: %#v", ad)
	}
	if ad.Status != db.AdStatusPending || ad.HasPhoto() {
		t.Fatalf("unexpected advertisement: %#v", ad)
	}
}

func TestComposeFlowWithPhoto(t *testing.T) {
	t.Parallel()
	h := newComposerHarness(t)
	serverID := h.addServer(t, "Main")

	h.handle(t, composeUpdate())
	h.handle(t, composerCallbackUpdate(event.ServerCallback(serverID)))
	h.handle(t, textMessageUpdate("lamp, barely used"))

	h.handle(t, composerCallbackUpdate(event.AddPhotoCallback()))
	if h.state(t) != session.StateAwaitingPhoto {
		t.Fatalf("unexpected state: %v", h.state(t))
	}

	h.handle(t, photoMessageUpdate("photo-1"))
	if h.state(t) != session.StateIdle {
		t.Fatalf("session must end after submission, state: %v", h.state(t))
	}
	if len(h.dispatcher.submitted) != 1 {
		t.Fatalf("unexpected review submissions: %v", h.dispatcher.submitted)
	}

	ad, err := h.client.GetAdvertisement(context.Background(), h.dispatcher.submitted[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ad.HasPhoto() || *ad.PhotoID != "photo-1" {
		t.Fatalf("unexpected photo: %#v", ad.PhotoID)
	}
}

func TestBlankTextDoesNotAdvance(t *testing.T) {
	t.Parallel()
	h := newComposerHarness(t)
	serverID := h.addServer(t, "Main")

	h.handle(t, composeUpdate())
	h.handle(t, composerCallbackUpdate(event.ServerCallback(serverID)))

	h.handle(t, textMessageUpdate("   \n\t "))
	if h.state(t) != session.StateAwaitingText {
		t.Fatalf("blank text must not advance, state: %v", h.state(t))
	}
	sess, _ := h.sessions.Get(h.user.ID)
	if sess.DraftText != "" {
		t.Fatalf("blank text must not be stored: %q", sess.DraftText)
	}
	if got := h.recorder.lastText(); got != "The text cannot be empty, please send it again" {
		t.Fatalf("unexpected re-prompt: %q", got)
	}

	// the draft recovers with a real text
	h.handle(t, textMessageUpdate("bike for sale"))
	if h.state(t) != session.StateAwaitingPhotoDecision {
		t.Fatalf("unexpected state: %v", h.state(t))
	}
}

func TestStaleServerKeepsSelectionStep(t *testing.T) {
	t.Parallel()
	h := newComposerHarness(t)
	serverID := h.addServer(t, "Main")

	h.handle(t, composeUpdate())
	h.handle(t, composerCallbackUpdate(event.ServerCallback(serverID+100)))
	if h.state(t) != session.StateSelectingServer {
		t.Fatalf("stale server pick must not advance, state: %v", h.state(t))
	}
	sess, _ := h.sessions.Get(h.user.ID)
	if sess.ServerID != 0 {
		t.Fatalf("stale server id must not be stored: %d", sess.ServerID)
	}
}

func TestOutOfOrderEventsDoNotAdvance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func(t *testing.T, h *composerHarness, serverID int64)
		u     func(serverID int64) *api.Update
		want  session.State
	}{
		{
			name:  "text while selecting server",
			setup: func(t *testing.T, h *composerHarness, serverID int64) { h.handle(t, composeUpdate()) },
			u:     func(int64) *api.Update { return textMessageUpdate("too early") },
			want:  session.StateSelectingServer,
		},
		{
			name: "photo while awaiting text",
			setup: func(t *testing.T, h *composerHarness, serverID int64) {
				h.handle(t, composeUpdate())
				h.handle(t, composerCallbackUpdate(event.ServerCallback(serverID)))
			},
			u:    func(int64) *api.Update { return photoMessageUpdate("photo-1") },
			want: session.StateAwaitingText,
		},
		{
			name: "skip photo while awaiting text",
			setup: func(t *testing.T, h *composerHarness, serverID int64) {
				h.handle(t, composeUpdate())
				h.handle(t, composerCallbackUpdate(event.ServerCallback(serverID)))
			},
			u:    func(int64) *api.Update { return composerCallbackUpdate(event.SkipPhotoCallback()) },
			want: session.StateAwaitingText,
		},
		{
			name: "server pick while awaiting photo",
			setup: func(t *testing.T, h *composerHarness, serverID int64) {
				h.handle(t, composeUpdate())
				h.handle(t, composerCallbackUpdate(event.ServerCallback(serverID)))
				h.handle(t, textMessageUpdate("bike for sale"))
				h.handle(t, composerCallbackUpdate(event.AddPhotoCallback()))
			},
			u:    func(serverID int64) *api.Update { return composerCallbackUpdate(event.ServerCallback(serverID)) },
			want: session.StateAwaitingPhoto,
		},
		{
			name: "add photo while awaiting photo",
			setup: func(t *testing.T, h *composerHarness, serverID int64) {
				h.handle(t, composeUpdate())
				h.handle(t, composerCallbackUpdate(event.ServerCallback(serverID)))
				h.handle(t, textMessageUpdate("bike for sale"))
				h.handle(t, composerCallbackUpdate(event.AddPhotoCallback()))
			},
			u:    func(int64) *api.Update { return composerCallbackUpdate(event.AddPhotoCallback()) },
			want: session.StateAwaitingPhoto,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newComposerHarness(t)
			serverID := h.addServer(t, "Main")
			tt.setup(t, h, serverID)

			h.handle(t, tt.u(serverID))
			if got := h.state(t); got != tt.want {
				t.Fatalf("unexpected state: got %v want %v", got, tt.want)
			}
			if len(h.dispatcher.submitted) != 0 {
				t.Fatalf("nothing must be submitted: %v", h.dispatcher.submitted)
			}
		})
	}
}

func TestCancelFromEachState(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func(t *testing.T, h *composerHarness, serverID int64)
	}{
		{
			name:  "selecting server",
			setup: func(t *testing.T, h *composerHarness, serverID int64) { h.handle(t, composeUpdate()) },
		},
		{
			name: "awaiting text",
			setup: func(t *testing.T, h *composerHarness, serverID int64) {
				h.handle(t, composeUpdate())
				h.handle(t, composerCallbackUpdate(event.ServerCallback(serverID)))
			},
		},
		{
			name: "awaiting photo decision",
			setup: func(t *testing.T, h *composerHarness, serverID int64) {
				h.handle(t, composeUpdate())
				h.handle(t, composerCallbackUpdate(event.ServerCallback(serverID)))
				h.handle(t, textMessageUpdate("bike for sale"))
			},
		},
		{
			name: "awaiting photo",
			setup: func(t *testing.T, h *composerHarness, serverID int64) {
				h.handle(t, composeUpdate())
				h.handle(t, composerCallbackUpdate(event.ServerCallback(serverID)))
				h.handle(t, textMessageUpdate("bike for sale"))
				h.handle(t, composerCallbackUpdate(event.AddPhotoCallback()))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newComposerHarness(t)
			serverID := h.addServer(t, "Main")
			tt.setup(t, h, serverID)

			h.handle(t, composerCallbackUpdate(event.CancelCallback()))
			if h.state(t) != session.StateIdle {
				t.Fatalf("cancel must discard the session, state: %v", h.state(t))
			}
			if len(h.dispatcher.submitted) != 0 {
				t.Fatalf("cancelled draft must not be submitted: %v", h.dispatcher.submitted)
			}
		})
	}
}

func TestStartComposeWithEmptyCatalog(t *testing.T) {
	t.Parallel()
	h := newComposerHarness(t)

	h.handle(t, composeUpdate())
	if h.state(t) != session.StateIdle {
		t.Fatalf("no session must start without servers, state: %v", h.state(t))
	}
	if got := h.recorder.lastText(); got != "No servers yet" {
		t.Fatalf("unexpected reply: %q", got)
	}
}

func TestGroupChatsAreIgnored(t *testing.T) {
	t.Parallel()
	h := newComposerHarness(t)
	h.addServer(t, "Main")
	h.chat = &api.Chat{ID: -100555, Type: "supergroup"}

	proceed, err := h.composer.Handle(context.Background(), composeUpdate(), h.chat, h.user)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !proceed {
		t.Fatalf("group updates must pass through the chain")
	}
	if h.sessions.Len() != 0 {
		t.Fatalf("no session must be created for group chats")
	}
}
