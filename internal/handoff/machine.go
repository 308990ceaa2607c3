// Package handoff implements the conversation hand-off state machine:
// the rules deciding when a user's session is bot-handled versus pinned to
// a human agent, driven by inbound webhook events and a time-based sweep.
package handoff

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ashureev/line-handoff/internal/line"
	"github.com/ashureev/line-handoff/internal/store"
)

const (
	// HandoffPhrase is the exact inbound text that requests a human agent.
	HandoffPhrase = "ติดต่อเจ้าหน้าที่"

	// DoneText is the agent-side signal that closes a hand-off.
	DoneText = "done"
)

// Messenger is the outbound messaging surface the machine needs.
type Messenger interface {
	GetProfile(ctx context.Context, userID string) (*line.Profile, error)
	StartLoadingAnimation(ctx context.Context, userID string) error
	ReplyMessage(ctx context.Context, replyToken string, messages []line.Message) error
	PushMessage(ctx context.Context, userID string, messages []line.Message) error
}

// Notifier alerts the human-agent channel.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Forwarder relays a webhook payload to the NLU collaborator.
type Forwarder interface {
	Forward(ctx context.Context, rawBody []byte) error
}

// Machine routes inbound events between automated handling and a human
// agent. All state lives in the session store; the machine itself is
// stateless and safe for concurrent deliveries.
type Machine struct {
	repo      store.Repository
	messenger Messenger
	notifier  Notifier
	forwarder Forwarder
	logger    *slog.Logger
}

// NewMachine wires the state machine to its collaborators.
func NewMachine(repo store.Repository, messenger Messenger, notifier Notifier, forwarder Forwarder, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		repo:      repo,
		messenger: messenger,
		notifier:  notifier,
		forwarder: forwarder,
		logger:    logger,
	}
}

// HandleDelivery processes one webhook delivery. Events run sequentially in
// array order; a failing event is logged and abandoned without stopping the
// rest of the batch, since each event is independent.
func (m *Machine) HandleDelivery(ctx context.Context, body *line.WebhookBody, rawBody []byte) {
	for i := range body.Events {
		ev := &body.Events[i]
		if err := m.handleEvent(ctx, ev, rawBody); err != nil {
			m.logger.Error("event processing failed",
				"event_type", ev.Type,
				"user_id", ev.Source.UserID,
				"error", err)
		}
	}
}

// handleEvent dispatches a single event through the transition table.
// At most one reply is issued per event.
func (m *Machine) handleEvent(ctx context.Context, ev *line.Event, rawBody []byte) error {
	// Typing indicator for one-on-one chats. Best-effort: it signals
	// "typing", not correctness, so a failure never blocks the event.
	if !ev.FromGroup() && ev.Source.UserID != "" {
		if err := m.messenger.StartLoadingAnimation(ctx, ev.Source.UserID); err != nil {
			m.logger.Warn("loading animation failed",
				"user_id", ev.Source.UserID,
				"error", err)
		}
	}

	switch {
	case ev.Type == line.EventTypeFollow:
		return m.handleFollow(ctx, ev)
	case ev.IsTextMessage():
		return m.handleText(ctx, ev, rawBody)
	default:
		m.logger.Debug("skipping event", "event_type", ev.Type)
		return nil
	}
}

// handleFollow greets a user who just added the account.
func (m *Machine) handleFollow(ctx context.Context, ev *line.Event) error {
	profile, err := m.messenger.GetProfile(ctx, ev.Source.UserID)
	if err != nil {
		return fmt.Errorf("fetch profile: %w", err)
	}

	welcome := line.WelcomeMessage(profile.DisplayName, HandoffPhrase)
	if err := m.messenger.ReplyMessage(ctx, ev.ReplyToken, []line.Message{welcome}); err != nil {
		return fmt.Errorf("send welcome: %w", err)
	}
	return nil
}

// handleText runs the BOT_MODE/AGENT_MODE text transitions. The branches
// are mutually exclusive so exactly one of them can reply.
func (m *Machine) handleText(ctx context.Context, ev *line.Event, rawBody []byte) error {
	userID := ev.Source.UserID

	session, err := m.repo.UpsertSession(ctx, userID)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	if session.BotHandled {
		if ev.Message.Text == HandoffPhrase {
			return m.switchToAgent(ctx, ev)
		}
		if err := m.forwarder.Forward(ctx, rawBody); err != nil {
			return fmt.Errorf("forward to nlu: %w", err)
		}
		return nil
	}

	// AGENT_MODE: only the closing signal acts; anything else is left for
	// the human agent to read.
	if ev.Message.Text == DoneText {
		return m.switchToBot(ctx, ev)
	}
	return nil
}

// switchToAgent pins the session to a human agent, alerts the agent
// channel and confirms the hand-off to the user.
func (m *Machine) switchToAgent(ctx context.Context, ev *line.Event) error {
	userID := ev.Source.UserID

	profile, err := m.messenger.GetProfile(ctx, userID)
	if err != nil {
		return fmt.Errorf("fetch profile: %w", err)
	}

	if err := m.repo.SetBotHandled(ctx, userID, false); err != nil {
		return fmt.Errorf("switch to agent mode: %w", err)
	}

	alert := fmt.Sprintf("พบการขอความช่วยเหลือจาก คุณ %s", profile.DisplayName)
	if err := m.notifier.Notify(ctx, alert); err != nil {
		return fmt.Errorf("notify agent channel: %w", err)
	}

	confirm := line.HandoffConfirmation()
	if err := m.messenger.ReplyMessage(ctx, ev.ReplyToken, []line.Message{confirm}); err != nil {
		return fmt.Errorf("send hand-off confirmation: %w", err)
	}

	m.logger.Info("session handed to agent", "user_id", userID)
	return nil
}

// switchToBot returns the session to automated handling after the agent
// signalled done. The flag update is idempotent, so a redelivered done
// races harmlessly to the same terminal state.
func (m *Machine) switchToBot(ctx context.Context, ev *line.Event) error {
	userID := ev.Source.UserID

	if err := m.repo.SetBotHandled(ctx, userID, true); err != nil {
		return fmt.Errorf("switch to bot mode: %w", err)
	}

	closing := line.ClosingMessage(HandoffPhrase)
	if err := m.messenger.ReplyMessage(ctx, ev.ReplyToken, []line.Message{closing}); err != nil {
		return fmt.Errorf("send closing message: %w", err)
	}

	m.logger.Info("session returned to bot", "user_id", userID)
	return nil
}
