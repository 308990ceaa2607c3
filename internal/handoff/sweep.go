package handoff

import (
	"context"
	"fmt"
	"time"

	"github.com/ashureev/line-handoff/internal/domain"
	"github.com/ashureev/line-handoff/internal/line"
	"github.com/ashureev/line-handoff/internal/shared"
)

// Sweep scans agent-handled sessions and returns to bot mode those idle for
// more than thresholdMinutes. Returns the number of sessions flipped.
//
// Idempotent by construction: a flipped session is bot-handled and drops
// out of the next listing, so a second sweep with no new activity is a
// no-op for it. A failure on one session is logged and the scan continues.
func (m *Machine) Sweep(ctx context.Context, thresholdMinutes int) (int, error) {
	sessions, err := m.repo.ListAgentHandled(ctx)
	if err != nil {
		return 0, fmt.Errorf("list agent-handled sessions: %w", err)
	}

	now := time.Now()
	flipped := 0
	for _, session := range sessions {
		idleMinutes := int(now.Sub(session.LastMessagedAt).Minutes())
		m.logger.Info("sweep evaluating session",
			"user_id", session.UserID,
			"idle_minutes", idleMinutes,
			"threshold_minutes", thresholdMinutes)

		if !session.IdleLongerThan(thresholdMinutes, now) {
			continue
		}

		if err := m.sweepSession(ctx, session); err != nil {
			m.logger.Error("sweep failed for session",
				"user_id", session.UserID,
				"error", err)
			continue
		}
		flipped++
	}

	if flipped > 0 {
		m.logger.Info("sweep completed", "flipped", flipped, "scanned", len(sessions))
	}
	return flipped, nil
}

// sweepSession applies the timeout transition to one session: flip to bot
// mode, then push the closing message.
func (m *Machine) sweepSession(ctx context.Context, session *domain.UserSession) error {
	// Retry the flip on SQLite lock contention; an inbound delivery for the
	// same user may hold the write lock briefly.
	err := shared.RetryOnConflict(3, 100*time.Millisecond, func() error {
		return m.repo.SetBotHandled(ctx, session.UserID, true)
	})
	if err != nil {
		return fmt.Errorf("switch to bot mode: %w", err)
	}

	if err := m.messenger.StartLoadingAnimation(ctx, session.UserID); err != nil {
		m.logger.Warn("loading animation failed",
			"user_id", session.UserID,
			"error", err)
	}

	closing := line.ClosingMessage(HandoffPhrase)
	if err := m.messenger.PushMessage(ctx, session.UserID, []line.Message{closing}); err != nil {
		return fmt.Errorf("push closing message: %w", err)
	}
	return nil
}
