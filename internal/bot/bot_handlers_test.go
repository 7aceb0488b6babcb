package bot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/go-cmp/cmp"

	"notesbot/internal/config"
	"notesbot/internal/model"
	"notesbot/internal/pipeline"
	"notesbot/internal/storage"
)

// --- mocks ---

type sentMsg struct {
	ChatID int64
	Text   string
}

type mockAPI struct {
	mu   sync.Mutex
	sent []sentMsg
}

func (m *mockAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch msg := c.(type) {
	case tgbotapi.MessageConfig:
		m.sent = append(m.sent, sentMsg{ChatID: msg.ChatID, Text: msg.Text})
	case tgbotapi.EditMessageTextConfig:
		m.sent = append(m.sent, sentMsg{ChatID: msg.ChatID, Text: msg.Text})
	}
	return tgbotapi.Message{}, nil
}

func (m *mockAPI) GetUpdatesChan(_ tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(tgbotapi.UpdatesChannel)
}

func (m *mockAPI) StopReceivingUpdates() {}

func (m *mockAPI) lastText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return ""
	}
	return m.sent[len(m.sent)-1].Text
}

// stubRunner returns a canned result and records the processed subscription.
type stubRunner struct {
	res  pipeline.Result
	subs []model.Subscription
}

func (s *stubRunner) Run(_ context.Context, sub model.Subscription, _ time.Time) pipeline.Result {
	s.subs = append(s.subs, sub)
	return s.res
}

// --- helpers ---

func newTestBot(t *testing.T) (*Bot, *mockAPI, *storage.SQLite, *stubRunner) {
	t.Helper()
	store, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	api := &mockAPI{}
	runner := &stubRunner{}
	b := &Bot{
		api:      api,
		store:    store,
		runner:   runner,
		sessions: NewSessions(),
		cfg:      config.Default(),
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return b, api, store, runner
}

func textMsg(chatID int64, text string) *tgbotapi.Message {
	msg := &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: chatID},
		From: &tgbotapi.User{ID: chatID},
		Text: text,
	}
	if strings.HasPrefix(text, "/") {
		cmdLen := len(text)
		if i := strings.Index(text, " "); i >= 0 {
			cmdLen = i
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}}
	}
	return msg
}

func callback(chatID int64, data string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:      "cb1",
		Data:    data,
		From:    &tgbotapi.User{ID: chatID},
		Message: &tgbotapi.Message{MessageID: 5, Chat: &tgbotapi.Chat{ID: chatID}},
	}
}

func seedSub(t *testing.T, store *storage.SQLite, userID int64, platform model.Platform, ident string) *model.Subscription {
	t.Helper()
	sub := &model.Subscription{
		UserID:               userID,
		Platform:             platform,
		SourceIdentifier:     ident,
		DisplayName:          ident,
		IsActive:             true,
		FetchIntervalMinutes: 60,
	}
	if _, err := store.UpsertSubscription(context.Background(), sub); err != nil {
		t.Fatalf("seed subscription: %v", err)
	}
	return sub
}

func seedNote(t *testing.T, store *storage.SQLite, userID int64, sourceID, title string) *model.Note {
	t.Helper()
	n := &model.Note{
		UserID:   userID,
		Platform: model.PlatformRSS,
		Title:    title,
		Content:  "content of " + title,
		SourceID: sourceID,
	}
	if _, err := store.InsertNoteIfAbsent(context.Background(), n); err != nil {
		t.Fatalf("seed note: %v", err)
	}
	return n
}

func requireContains(t *testing.T, got, want string) {
	t.Helper()
	if !strings.Contains(got, want) {
		t.Errorf("reply missing %q, got:\n%s", want, got)
	}
}

// --- tests ---

func TestAddSourceFlow(t *testing.T) {
	ctx := context.Background()
	b, api, store, _ := newTestBot(t)

	// Picking a platform arms the identifier prompt.
	b.handleCallback(ctx, callback(100, "add:reddit"))
	requireContains(t, api.lastText(), "subreddit")
	if got := b.sessions.Get(100); got.Step != StepIdentifier || got.Platform != model.PlatformReddit {
		t.Fatalf("state = %+v", got)
	}

	// The next plain message is consumed as the identifier.
	b.handleMessage(ctx, textMsg(100, "r/golang"))
	requireContains(t, api.lastText(), "Following")
	requireContains(t, api.lastText(), "r/golang")
	if b.sessions.Get(100).Pending() {
		t.Error("state should be cleared after a successful add")
	}

	subs, err := store.ListSubscriptions(ctx, 100)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("want 1 subscription, got %d", len(subs))
	}
	if diff := cmp.Diff("golang", subs[0].SourceIdentifier); diff != "" {
		t.Errorf("identifier normalized (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(60, subs[0].FetchIntervalMinutes); diff != "" {
		t.Errorf("default interval (-want +got):\n%s", diff)
	}
}

func TestAddSourceFlowBadIdentifierKeepsState(t *testing.T) {
	ctx := context.Background()
	b, api, _, _ := newTestBot(t)

	b.handleCallback(ctx, callback(100, "add:rss"))
	b.handleMessage(ctx, textMsg(100, "not a url"))

	requireContains(t, api.lastText(), "full URL")
	if !b.sessions.Get(100).Pending() {
		t.Error("unusable input should keep the prompt armed")
	}

	// A valid answer then completes the flow.
	b.handleMessage(ctx, textMsg(100, "https://example.com/feed.xml"))
	requireContains(t, api.lastText(), "Following")
	if b.sessions.Get(100).Pending() {
		t.Error("state should be cleared after completion")
	}
}

func TestAddOneShotBadIdentifierArmsPrompt(t *testing.T) {
	ctx := context.Background()
	b, api, store, _ := newTestBot(t)

	// /add with a broken identifier re-prompts and must arm the slot,
	// so the follow-up message is consumed as the identifier.
	b.handleCommand(ctx, textMsg(100, "/add rss not a url"))
	requireContains(t, api.lastText(), "full URL")
	if got := b.sessions.Get(100); got.Step != StepIdentifier || got.Platform != model.PlatformRSS {
		t.Fatalf("state = %+v, want armed identifier prompt", got)
	}

	b.handleMessage(ctx, textMsg(100, "https://example.com/feed.xml"))
	requireContains(t, api.lastText(), "Following")
	if b.sessions.Get(100).Pending() {
		t.Error("state should be cleared after completion")
	}

	subs, err := store.ListSubscriptions(ctx, 100)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("want 1 subscription, got %d", len(subs))
	}
}

func TestAddExistingSourceReactivates(t *testing.T) {
	ctx := context.Background()
	b, api, store, _ := newTestBot(t)

	sub := seedSub(t, store, 100, model.PlatformReddit, "golang")
	if err := store.SetSubscriptionActive(ctx, sub.ID, false); err != nil {
		t.Fatalf("pause: %v", err)
	}

	b.handleCommand(ctx, textMsg(100, "/add reddit golang"))
	requireContains(t, api.lastText(), "already follow")

	got, err := store.GetSubscription(ctx, sub.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.IsActive {
		t.Error("re-adding should reactivate the paused subscription")
	}
}

func TestCancelClearsPendingPrompt(t *testing.T) {
	ctx := context.Background()
	b, api, _, _ := newTestBot(t)

	b.handleCallback(ctx, callback(100, "add:twitter"))
	if !b.sessions.Get(100).Pending() {
		t.Fatal("prompt should be armed")
	}

	b.handleMessage(ctx, textMsg(100, "/cancel"))
	requireContains(t, api.lastText(), "Cancelled")
	if b.sessions.Get(100).Pending() {
		t.Error("/cancel must clear the pending slot")
	}
}

func TestStartInterruptsPendingPrompt(t *testing.T) {
	ctx := context.Background()
	b, api, store, _ := newTestBot(t)

	b.handleCallback(ctx, callback(100, "add:twitter"))
	b.handleMessage(ctx, textMsg(100, "/start"))

	requireContains(t, api.lastText(), "Welcome")
	if b.sessions.Get(100).Pending() {
		t.Error("/start must clear the pending slot")
	}

	subs, _ := store.ListSubscriptions(ctx, 100)
	if len(subs) != 0 {
		t.Error("no subscription may be created from an interrupted flow")
	}
}

func TestSearchFlow(t *testing.T) {
	ctx := context.Background()
	b, api, store, _ := newTestBot(t)

	seedNote(t, store, 100, "rss:1", "Kubernetes 1.33 released")
	seedNote(t, store, 100, "rss:2", "Cooking pasta")

	b.handleCommand(ctx, textMsg(100, "/search"))
	requireContains(t, api.lastText(), "keyword")

	b.handleMessage(ctx, textMsg(100, "kubernetes"))
	reply := api.lastText()
	requireContains(t, reply, "Kubernetes 1.33 released")
	if strings.Contains(reply, "pasta") {
		t.Error("non-matching note leaked into search results")
	}
	if b.sessions.Get(100).Pending() {
		t.Error("state should be cleared after the search")
	}
}

func TestManualNoteFromPlainText(t *testing.T) {
	ctx := context.Background()
	b, api, store, _ := newTestBot(t)

	text := "Remember to review the storage layer proposal before Friday"
	b.handleMessage(ctx, textMsg(100, text))
	requireContains(t, api.lastText(), "Note saved")

	// Saving the same text twice is a no-op.
	b.handleMessage(ctx, textMsg(100, text))
	requireContains(t, api.lastText(), "already saved")

	count, err := store.CountNotes(ctx, 100, model.StatusNew)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if diff := cmp.Diff(1, count); diff != "" {
		t.Errorf("note count (-want +got):\n%s", diff)
	}
}

func TestShortTextGetsHint(t *testing.T) {
	ctx := context.Background()
	b, api, store, _ := newTestBot(t)

	b.handleMessage(ctx, textMsg(100, "short"))
	requireContains(t, api.lastText(), "/help")

	count, _ := store.CountNotes(ctx, 100, model.StatusNew)
	if count != 0 {
		t.Error("short text must not become a note")
	}
}

func TestForwardedMessageBecomesNote(t *testing.T) {
	ctx := context.Background()
	b, api, store, _ := newTestBot(t)

	msg := textMsg(100, "An interesting post about databases")
	msg.ForwardDate = int(time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC).Unix())
	msg.ForwardFromChat = &tgbotapi.Chat{ID: -100123, Title: "DB Channel", UserName: "dbchannel"}
	msg.ForwardFromMessageID = 77

	b.handleMessage(ctx, msg)
	requireContains(t, api.lastText(), "Forward saved")

	notes, err := store.ListNotes(ctx, 100, model.StatusNew, 1, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(notes) != 1 {
		t.Fatalf("want 1 note, got %d", len(notes))
	}
	got := notes[0]
	if diff := cmp.Diff("DB Channel", got.Author); diff != "" {
		t.Errorf("author (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("forward:-100123_77", got.SourceID); diff != "" {
		t.Errorf("source ID (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("https://t.me/dbchannel/77", got.URL); diff != "" {
		t.Errorf("url (-want +got):\n%s", diff)
	}
}

func TestHandleListPagination(t *testing.T) {
	ctx := context.Background()
	b, api, store, _ := newTestBot(t)

	for i := 1; i <= 12; i++ {
		seedNote(t, store, 100, fmt.Sprintf("rss:%d", i), fmt.Sprintf("Note %d", i))
	}

	b.handleCommand(ctx, textMsg(100, "/list"))
	reply := api.lastText()
	requireContains(t, reply, "Your notes (1-10 of 12)")
	requireContains(t, reply, "Note 12")

	// The pagination callback fetches page two.
	b.handleCallback(ctx, callback(100, "list:2"))
	reply = api.lastText()
	requireContains(t, reply, "(11-12 of 12)")
	requireContains(t, reply, "Note 1")
}

func TestHandleListEmpty(t *testing.T) {
	ctx := context.Background()
	b, api, _, _ := newTestBot(t)

	b.handleCommand(ctx, textMsg(100, "/list"))
	requireContains(t, api.lastText(), "no notes yet")
}

func TestHandleSources(t *testing.T) {
	ctx := context.Background()
	b, api, store, _ := newTestBot(t)

	seedSub(t, store, 100, model.PlatformReddit, "golang")
	paused := seedSub(t, store, 100, model.PlatformRSS, "https://example.com/feed")
	if err := store.SetSubscriptionActive(ctx, paused.ID, false); err != nil {
		t.Fatalf("pause: %v", err)
	}

	b.handleCommand(ctx, textMsg(100, "/sources"))
	reply := api.lastText()
	requireContains(t, reply, "golang")
	requireContains(t, reply, "[active]")
	requireContains(t, reply, "[paused]")
}

func TestHandleStats(t *testing.T) {
	ctx := context.Background()
	b, api, store, _ := newTestBot(t)

	seedNote(t, store, 100, "rss:1", "One")
	seedNote(t, store, 100, "rss:2", "Two")

	b.handleCommand(ctx, textMsg(100, "/stats"))
	reply := api.lastText()
	requireContains(t, reply, "2 note(s)")
	requireContains(t, reply, "RSS: 2")
}

func TestSettingsToggle(t *testing.T) {
	ctx := context.Background()
	b, api, store, _ := newTestBot(t)

	b.handleCommand(ctx, textMsg(100, "/settings"))
	requireContains(t, api.lastText(), "Notifications: on")

	b.handleCallback(ctx, callback(100, "settings:notify"))
	requireContains(t, api.lastText(), "Notifications: off")

	settings, err := store.GetOrCreateUserSettings(ctx, 100)
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if settings.Notifications {
		t.Error("toggle should persist")
	}
}

func TestHandleCheck(t *testing.T) {
	ctx := context.Background()
	b, api, store, runner := newTestBot(t)

	sub := seedSub(t, store, 100, model.PlatformReddit, "golang")
	runner.res = pipeline.Result{Inserted: 3}

	b.handleCheck(ctx, 100, "1")
	requireContains(t, api.lastText(), "3 new note(s)")

	if len(runner.subs) != 1 || runner.subs[0].ID != sub.ID {
		t.Errorf("runner saw %+v", runner.subs)
	}

	got, err := store.GetSubscription(ctx, sub.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.LastFetchedAt == nil {
		t.Error("manual check must advance the watermark")
	}
}

func TestHandleCheckHidesInternalErrors(t *testing.T) {
	ctx := context.Background()
	b, api, store, runner := newTestBot(t)

	seedSub(t, store, 100, model.PlatformReddit, "golang")
	runner.res = pipeline.Result{Err: fmt.Errorf("dial tcp 10.0.0.1: connection refused")}

	b.handleCheck(ctx, 100, "1")
	reply := api.lastText()
	requireContains(t, reply, "try again later")
	if strings.Contains(reply, "dial tcp") {
		t.Error("internal error details must not reach the user")
	}
}

func TestSubscriptionOwnershipChecks(t *testing.T) {
	ctx := context.Background()
	b, api, store, _ := newTestBot(t)

	seedSub(t, store, 200, model.PlatformReddit, "golang")

	for _, cmd := range []string{"/pause 1", "/resume 1", "/remove 1", "/check 1", "/filters 1", "/interval 1 30"} {
		b.handleCommand(ctx, textMsg(100, cmd))
		requireContains(t, api.lastText(), "not found")
	}
}

func TestPauseResumeRemove(t *testing.T) {
	ctx := context.Background()
	b, api, store, _ := newTestBot(t)

	sub := seedSub(t, store, 100, model.PlatformReddit, "golang")

	b.handleCommand(ctx, textMsg(100, "/pause 1"))
	requireContains(t, api.lastText(), "paused")
	got, _ := store.GetSubscription(ctx, sub.ID)
	if got.IsActive {
		t.Error("pause should deactivate")
	}

	b.handleCommand(ctx, textMsg(100, "/resume 1"))
	requireContains(t, api.lastText(), "resumed")
	got, _ = store.GetSubscription(ctx, sub.ID)
	if !got.IsActive {
		t.Error("resume should activate")
	}

	seedNote(t, store, 100, "reddit:t3_1", "Kept note")
	b.handleCommand(ctx, textMsg(100, "/remove 1"))
	requireContains(t, api.lastText(), "deleted")

	if _, err := store.GetSubscription(ctx, sub.ID); err == nil {
		t.Error("subscription should be gone")
	}
	count, _ := store.CountNotes(ctx, 100, model.StatusNew)
	if count != 1 {
		t.Error("collected notes must survive subscription removal")
	}
}

func TestFilterCommands(t *testing.T) {
	ctx := context.Background()
	b, api, store, _ := newTestBot(t)

	seedSub(t, store, 100, model.PlatformRSS, "https://example.com/feed")

	b.handleCommand(ctx, textMsg(100, "/include 1 kubernetes"))
	requireContains(t, api.lastText(), "Filter F1 added")

	b.handleCommand(ctx, textMsg(100, "/include_re 1 ("))
	requireContains(t, api.lastText(), "Invalid regex")

	b.handleCommand(ctx, textMsg(100, "/filters 1"))
	requireContains(t, api.lastText(), "kubernetes")

	b.handleCommand(ctx, textMsg(100, "/rmfilter 1"))
	requireContains(t, api.lastText(), "removed")

	filters, err := store.ListFilters(ctx, 1)
	if err != nil {
		t.Fatalf("list filters: %v", err)
	}
	if len(filters) != 0 {
		t.Errorf("filters = %+v", filters)
	}
}

func TestAccessDenied(t *testing.T) {
	ctx := context.Background()
	b, api, _, _ := newTestBot(t)
	b.cfg.AllowedUsers = []int64{42}

	update := tgbotapi.Update{Message: textMsg(100, "/start")}
	b.handleUpdate(ctx, update)
	requireContains(t, api.lastText(), "Access denied")
}
