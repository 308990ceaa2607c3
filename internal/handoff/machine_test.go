package handoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ashureev/line-handoff/internal/domain"
	"github.com/ashureev/line-handoff/internal/line"
	"github.com/ashureev/line-handoff/internal/store"
)

type fakeRepo struct {
	sessions  map[string]*domain.UserSession
	upsertErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{sessions: make(map[string]*domain.UserSession)}
}

func (f *fakeRepo) UpsertSession(_ context.Context, userID string) (*domain.UserSession, error) {
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	now := time.Now()
	if s, ok := f.sessions[userID]; ok {
		s.LastMessagedAt = now
		s.UpdatedAt = now
		return s, nil
	}
	s := &domain.UserSession{
		UserID:         userID,
		BotHandled:     true,
		LastMessagedAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	f.sessions[userID] = s
	return s, nil
}

func (f *fakeRepo) GetSession(_ context.Context, userID string) (*domain.UserSession, error) {
	return f.sessions[userID], nil
}

func (f *fakeRepo) SetBotHandled(_ context.Context, userID string, botHandled bool) error {
	s, ok := f.sessions[userID]
	if !ok {
		return store.ErrNotFound
	}
	s.BotHandled = botHandled
	return nil
}

func (f *fakeRepo) ListAgentHandled(_ context.Context) ([]*domain.UserSession, error) {
	var out []*domain.UserSession
	for _, s := range f.sessions {
		if !s.BotHandled {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeRepo) Ping(context.Context) error { return nil }
func (f *fakeRepo) Close() error               { return nil }

type fakeMessenger struct {
	loadingCalls int
	loadingErr   error
	profileCalls int
	profileErr   error
	replies      [][]line.Message
	replyErr     error
	pushes       map[string][][]line.Message
	pushErrFor   map[string]error
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{
		pushes:     make(map[string][][]line.Message),
		pushErrFor: make(map[string]error),
	}
}

func (f *fakeMessenger) GetProfile(_ context.Context, userID string) (*line.Profile, error) {
	f.profileCalls++
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	return &line.Profile{UserID: userID, DisplayName: "Somchai"}, nil
}

func (f *fakeMessenger) StartLoadingAnimation(context.Context, string) error {
	f.loadingCalls++
	return f.loadingErr
}

func (f *fakeMessenger) ReplyMessage(_ context.Context, _ string, messages []line.Message) error {
	if f.replyErr != nil {
		return f.replyErr
	}
	f.replies = append(f.replies, messages)
	return nil
}

func (f *fakeMessenger) PushMessage(_ context.Context, userID string, messages []line.Message) error {
	if err := f.pushErrFor[userID]; err != nil {
		return err
	}
	f.pushes[userID] = append(f.pushes[userID], messages)
	return nil
}

type fakeNotifier struct {
	texts []string
	err   error
}

func (f *fakeNotifier) Notify(_ context.Context, text string) error {
	if f.err != nil {
		return f.err
	}
	f.texts = append(f.texts, text)
	return nil
}

type fakeForwarder struct {
	calls int
	err   error
}

func (f *fakeForwarder) Forward(context.Context, []byte) error {
	f.calls++
	return f.err
}

type fixture struct {
	repo      *fakeRepo
	messenger *fakeMessenger
	notifier  *fakeNotifier
	forwarder *fakeForwarder
	machine   *Machine
}

func newFixture() *fixture {
	f := &fixture{
		repo:      newFakeRepo(),
		messenger: newFakeMessenger(),
		notifier:  &fakeNotifier{},
		forwarder: &fakeForwarder{},
	}
	f.machine = NewMachine(f.repo, f.messenger, f.notifier, f.forwarder, nil)
	return f
}

func textEvent(userID, text string) line.Event {
	return line.Event{
		Type:       line.EventTypeMessage,
		ReplyToken: "rt-" + userID,
		Source:     line.Source{Type: line.SourceTypeUser, UserID: userID},
		Message:    &line.MessageContent{Type: line.MessageTypeText, Text: text},
	}
}

func deliver(f *fixture, events ...line.Event) {
	f.machine.HandleDelivery(context.Background(), &line.WebhookBody{Events: events}, []byte(`{"events":[]}`))
}

func TestFollowSendsWelcomeWithMenu(t *testing.T) {
	f := newFixture()

	deliver(f, line.Event{
		Type:       line.EventTypeFollow,
		ReplyToken: "rt-1",
		Source:     line.Source{Type: line.SourceTypeUser, UserID: "U1"},
	})

	if f.messenger.loadingCalls != 1 {
		t.Errorf("Expected 1 loading-animation call, got %d", f.messenger.loadingCalls)
	}
	if f.messenger.profileCalls != 1 {
		t.Errorf("Expected 1 profile fetch, got %d", f.messenger.profileCalls)
	}
	if len(f.messenger.replies) != 1 {
		t.Fatalf("Expected 1 reply, got %d", len(f.messenger.replies))
	}

	welcome := f.messenger.replies[0][0]
	if welcome.QuickReply == nil || len(welcome.QuickReply.Items) != 2 {
		t.Fatalf("Expected quick-reply menu with exactly 2 items, got %+v", welcome.QuickReply)
	}
}

func TestGroupEventSkipsLoadingAnimation(t *testing.T) {
	f := newFixture()

	ev := textEvent("U1", "hello")
	ev.Source.Type = line.SourceTypeGroup
	deliver(f, ev)

	if f.messenger.loadingCalls != 0 {
		t.Errorf("Expected no loading animation for group source, got %d", f.messenger.loadingCalls)
	}
}

func TestLoadingFailureDoesNotBlockEvent(t *testing.T) {
	f := newFixture()
	f.messenger.loadingErr = errors.New("loading unavailable")

	deliver(f, textEvent("U1", "hello"))

	if f.forwarder.calls != 1 {
		t.Error("Event should still be forwarded when the loading animation fails")
	}
}

func TestFirstContactCreatesBotHandledSession(t *testing.T) {
	f := newFixture()

	deliver(f, textEvent("U1", "hello"))

	s := f.repo.sessions["U1"]
	if s == nil {
		t.Fatal("Expected session to be created on first inbound message")
	}
	if !s.BotHandled {
		t.Error("New session should start bot-handled")
	}
}

func TestHandoffPhraseSwitchesToAgent(t *testing.T) {
	f := newFixture()

	deliver(f, textEvent("U1", HandoffPhrase))

	if f.repo.sessions["U1"].BotHandled {
		t.Error("Expected session to be pinned to an agent")
	}
	if len(f.notifier.texts) != 1 {
		t.Fatalf("Expected exactly 1 agent notification, got %d", len(f.notifier.texts))
	}
	if len(f.messenger.replies) != 1 {
		t.Fatalf("Expected exactly 1 hand-off confirmation reply, got %d", len(f.messenger.replies))
	}
	if f.forwarder.calls != 0 {
		t.Error("Hand-off request must not also reach the NLU")
	}
}

func TestBotModeTextForwardedToNLU(t *testing.T) {
	f := newFixture()

	deliver(f, textEvent("U1", "what are your opening hours"))

	if f.forwarder.calls != 1 {
		t.Errorf("Expected 1 NLU forward, got %d", f.forwarder.calls)
	}
	if len(f.messenger.replies) != 0 {
		t.Error("Bot-mode text must not produce a direct reply; the NLU answers")
	}
}

func TestAgentModeDoneSwitchesToBot(t *testing.T) {
	f := newFixture()
	deliver(f, textEvent("U1", HandoffPhrase))
	f.messenger.replies = nil

	deliver(f, textEvent("U1", DoneText))

	if !f.repo.sessions["U1"].BotHandled {
		t.Error("Expected session back in bot mode after done")
	}
	if len(f.messenger.replies) != 1 {
		t.Fatalf("Expected exactly 1 closing reply, got %d", len(f.messenger.replies))
	}
	if f.messenger.replies[0][0].QuickReply == nil {
		t.Error("Closing reply should re-attach the quick-reply menu")
	}
}

func TestAgentModeOtherTextLeftForAgent(t *testing.T) {
	f := newFixture()
	deliver(f, textEvent("U1", HandoffPhrase))
	f.messenger.replies = nil
	f.forwarder.calls = 0

	deliver(f, textEvent("U1", "my order number is 12345"))

	if len(f.messenger.replies) != 0 {
		t.Error("Agent-mode text must not be answered automatically")
	}
	if f.forwarder.calls != 0 {
		t.Error("Agent-mode text must not reach the NLU")
	}
	if f.repo.sessions["U1"].BotHandled {
		t.Error("Session must stay pinned to the agent")
	}
}

func TestFailingEventDoesNotAbortBatch(t *testing.T) {
	f := newFixture()
	f.forwarder.err = errors.New("nlu unreachable")

	deliver(f,
		textEvent("U1", "question for the bot"),
		textEvent("U2", HandoffPhrase),
	)

	// First event fails at the NLU; the hand-off in the second must still run.
	if f.repo.sessions["U2"] == nil || f.repo.sessions["U2"].BotHandled {
		t.Error("Second event should be processed despite the first failing")
	}
	if len(f.notifier.texts) != 1 {
		t.Errorf("Expected the second event's notification, got %d", len(f.notifier.texts))
	}
}

func TestUnknownEventTypeSkipped(t *testing.T) {
	f := newFixture()

	deliver(f, line.Event{
		Type:   "unfollow",
		Source: line.Source{Type: line.SourceTypeUser, UserID: "U1"},
	})

	if f.forwarder.calls != 0 || len(f.messenger.replies) != 0 {
		t.Error("Unknown event types must not trigger any action")
	}
	if f.repo.sessions["U1"] != nil {
		t.Error("Unknown event types must not create sessions")
	}
}
