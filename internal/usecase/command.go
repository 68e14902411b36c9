package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/iho/sagaledger/internal/domain"
)

// Command names, used in logs and metrics.
const (
	CommandOpenAccount           = "open_account"
	CommandDepositFunds          = "deposit_funds"
	CommandStartIncomingTransfer = "start_incoming_transfer"
	CommandStartOutgoingTransfer = "start_outgoing_transfer"
	CommandCompleteTransfer      = "complete_transfer"
	CommandInitiateTransfer      = "initiate_transfer"
	CommandConfirmTransfer       = "confirm_transfer"
	CommandCloseTransfer         = "close_transfer"
)

// Command outcomes
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// decideFunc inspects a stream's history and returns the event to append.
type decideFunc func(events []domain.Event) (domain.Payload, error)

// commandRunner implements the read-decide-append cycle shared by controllers.
type commandRunner struct {
	store    EventStore
	retrier  Retrier
	recorder CommandRecorder
	logger   zerolog.Logger
}

func newCommandRunner(store EventStore, retrier Retrier, recorder CommandRecorder, logger zerolog.Logger) commandRunner {
	if retrier == nil {
		retrier = noRetry{}
	}

	return commandRunner{
		store:    store,
		retrier:  retrier,
		recorder: recorder,
		logger:   logger,
	}
}

// create starts a new stream with payload as its first event.
func (r commandRunner) create(ctx context.Context, command string, kind domain.StreamKind, payload domain.Payload) (domain.StreamID, error) {
	r.logger.Debug().Str("command", command).Msg("handling command")

	id, err := r.store.CreateStream(ctx, kind, payload)
	r.finish(command, kind, id, err)

	return id, err
}

// execute loads the stream, lets decide validate against the projected state
// and appends the resulting event at the next revision. The whole cycle is
// repeated when the retrier considers the failure retryable.
func (r commandRunner) execute(ctx context.Context, command string, kind domain.StreamKind, id domain.StreamID, decide decideFunc) error {
	r.logger.Debug().
		Str("command", command).
		Int64("stream_id", int64(id)).
		Msg("handling command")

	err := r.retrier.Retry(ctx, func() error {
		events, err := r.store.GetEvents(ctx, kind, id)
		if err != nil {
			return err
		}

		payload, err := decide(events)
		if err != nil {
			return err
		}

		return r.store.AppendEvent(ctx, kind, id, nextRevision(events), payload)
	})
	r.finish(command, kind, id, err)

	return err
}

func (r commandRunner) finish(command string, kind domain.StreamKind, id domain.StreamID, err error) {
	result := outcome(err)
	if r.recorder != nil {
		r.recorder.RecordCommand(command, result)
	}

	if err != nil {
		r.logger.Debug().
			Err(err).
			Str("command", command).
			Str("kind", string(kind)).
			Int64("stream_id", int64(id)).
			Str("outcome", result).
			Msg("command failed")
	}
}

// nextRevision returns the revision a new event on the stream must carry.
func nextRevision(events []domain.Event) domain.Revision {
	if len(events) == 0 {
		return 1
	}
	return events[len(events)-1].Revision + 1
}

func outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return OutcomeConflict
	case domain.IsBusinessError(err):
		return OutcomeRejected
	default:
		return OutcomeError
	}
}

type noRetry struct{}

func (noRetry) Retry(_ context.Context, operation func() error) error {
	return operation()
}
