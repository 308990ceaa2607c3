package handoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ashureev/line-handoff/internal/domain"
)

func agentSession(f *fixture, userID string, idle time.Duration) {
	now := time.Now()
	f.repo.sessions[userID] = &domain.UserSession{
		UserID:         userID,
		BotHandled:     false,
		LastMessagedAt: now.Add(-idle),
		CreatedAt:      now.Add(-idle),
		UpdatedAt:      now.Add(-idle),
	}
}

func TestSweepFlipsStaleSessions(t *testing.T) {
	f := newFixture()
	agentSession(f, "stale", 45*time.Minute)
	agentSession(f, "fresh", 5*time.Minute)

	flipped, err := f.machine.Sweep(context.Background(), 30)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if flipped != 1 {
		t.Errorf("Expected 1 flipped session, got %d", flipped)
	}
	if !f.repo.sessions["stale"].BotHandled {
		t.Error("Stale session should be back in bot mode")
	}
	if f.repo.sessions["fresh"].BotHandled {
		t.Error("Fresh session must stay agent-handled")
	}
	if len(f.messenger.pushes["stale"]) != 1 {
		t.Errorf("Expected 1 closing push to stale session, got %d", len(f.messenger.pushes["stale"]))
	}
	if len(f.messenger.pushes["fresh"]) != 0 {
		t.Error("Fresh session must not receive a push")
	}
}

func TestSweepIdempotent(t *testing.T) {
	f := newFixture()
	agentSession(f, "stale", 45*time.Minute)

	if _, err := f.machine.Sweep(context.Background(), 30); err != nil {
		t.Fatalf("First sweep failed: %v", err)
	}

	flipped, err := f.machine.Sweep(context.Background(), 30)
	if err != nil {
		t.Fatalf("Second sweep failed: %v", err)
	}
	if flipped != 0 {
		t.Errorf("Second sweep with no new activity should flip nothing, got %d", flipped)
	}
	if len(f.messenger.pushes["stale"]) != 1 {
		t.Errorf("Expected no further pushes on the second sweep, got %d", len(f.messenger.pushes["stale"]))
	}
}

func TestSweepAtThresholdBoundary(t *testing.T) {
	f := newFixture()
	// Exactly at the threshold is not over it.
	agentSession(f, "edge", 30*time.Minute)

	flipped, err := f.machine.Sweep(context.Background(), 30)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if flipped != 0 {
		t.Errorf("Session idle exactly threshold minutes must not flip, got %d", flipped)
	}
}

func TestSweepContinuesPastFailingSession(t *testing.T) {
	f := newFixture()
	agentSession(f, "broken", 60*time.Minute)
	agentSession(f, "ok", 60*time.Minute)
	f.messenger.pushErrFor["broken"] = errors.New("push rejected")

	flipped, err := f.machine.Sweep(context.Background(), 30)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if flipped != 1 {
		t.Errorf("Expected the healthy session to count, got %d", flipped)
	}
	if len(f.messenger.pushes["ok"]) != 1 {
		t.Error("Healthy session should still receive its closing push")
	}
}

func TestSweepLoadingFailureIgnored(t *testing.T) {
	f := newFixture()
	agentSession(f, "stale", 60*time.Minute)
	f.messenger.loadingErr = errors.New("loading unavailable")

	flipped, err := f.machine.Sweep(context.Background(), 30)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if flipped != 1 {
		t.Errorf("Loading-animation failure must not block the sweep, got %d flipped", flipped)
	}
}
