package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/sagaledger/internal/app"
	"github.com/iho/sagaledger/internal/domain"
	"github.com/iho/sagaledger/internal/infrastructure/config"
	"github.com/iho/sagaledger/internal/usecase"
)

// TestConfig returns a configuration suited to tests: short settle timeout
// and fast retries.
func TestConfig() *config.Config {
	return &config.Config{
		LogLevel:             "disabled",
		LogFormat:            "json",
		ConflictRetries:      0,
		RetryInitialInterval: time.Millisecond,
		RetryMaxInterval:     5 * time.Millisecond,
		RetryMaxElapsed:      time.Second,
		SettleTimeout:        2 * time.Second,
		MetricsEnabled:       true,
	}
}

// NewTestApp creates a wired ledger that is closed when the test ends.
func NewTestApp(t *testing.T, opts ...func(*app.Options)) *app.App {
	t.Helper()

	o := app.Options{
		Config: TestConfig(),
		Logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	a, err := app.New(o)
	if err != nil {
		t.Fatalf("failed to create ledger: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })

	return a
}

// Settle waits for the saga to finish processing, failing the test on timeout.
func Settle(t *testing.T, a *app.App) {
	t.Helper()

	if err := a.Settle(context.Background()); err != nil {
		t.Fatalf("ledger did not settle: %v", err)
	}
}

// OpenFundedAccount opens an account for owner and deposits amount when it is
// positive.
func OpenFundedAccount(t *testing.T, a *app.App, owner string, amount int64) domain.StreamID {
	t.Helper()

	ctx := context.Background()
	id, err := a.Accounts.OpenAccount(ctx, owner)
	if err != nil {
		t.Fatalf("failed to open account: %v", err)
	}

	if amount > 0 {
		if err := a.Accounts.DepositFunds(ctx, id, amount); err != nil {
			t.Fatalf("failed to deposit funds: %v", err)
		}
	}

	return id
}

// SeedStream creates a stream whose history is exactly payloads, appended in
// order, and returns its id.
func SeedStream(t *testing.T, store usecase.EventStore, kind domain.StreamKind, payloads ...domain.Payload) domain.StreamID {
	t.Helper()

	if len(payloads) == 0 {
		t.Fatalf("seed stream: at least one payload is required")
	}

	ctx := context.Background()
	id, err := store.CreateStream(ctx, kind, payloads[0])
	if err != nil {
		t.Fatalf("failed to create %s stream: %v", kind, err)
	}

	for i, payload := range payloads[1:] {
		if err := store.AppendEvent(ctx, kind, id, domain.Revision(i+2), payload); err != nil {
			t.Fatalf("failed to append %s to %s stream %d: %v", payload.EventType(), kind, id, err)
		}
	}

	return id
}
