package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/iho/sagaledger/internal/domain"
)

// TransferController handles transfer commands.
type TransferController struct {
	store  EventStore
	runner commandRunner
}

// NewTransferController creates a new TransferController. retrier and
// recorder may be nil.
func NewTransferController(store EventStore, retrier Retrier, recorder CommandRecorder, logger zerolog.Logger) *TransferController {
	return &TransferController{
		store:  store,
		runner: newCommandRunner(store, retrier, recorder, logger),
	}
}

// InitiateTransfer starts a transfer of amount from source to destination and
// returns the transfer id. The accounts are not checked here; the saga does
// that when it records each leg.
func (c *TransferController) InitiateTransfer(ctx context.Context, sourceID, destinationID domain.StreamID, amount int64) (domain.StreamID, error) {
	if err := domain.ValidateTransfer(sourceID, destinationID, amount); err != nil {
		c.runner.finish(CommandInitiateTransfer, domain.StreamKindTransfer, 0, err)
		return 0, err
	}

	return c.runner.create(ctx, CommandInitiateTransfer, domain.StreamKindTransfer, domain.TransferInitiated{
		SourceID:      sourceID,
		DestinationID: destinationID,
		Amount:        amount,
	})
}

// ConfirmTransfer records that accountID has booked its leg of the transfer.
func (c *TransferController) ConfirmTransfer(ctx context.Context, transferID, accountID domain.StreamID) error {
	return c.runner.execute(ctx, CommandConfirmTransfer, domain.StreamKindTransfer, transferID,
		func(events []domain.Event) (domain.Payload, error) {
			state, err := transferStateIn(transferID, events, domain.TransferStatusInitiated)
			if err != nil {
				return nil, err
			}
			if _, ok := state.Party(accountID); !ok {
				return nil, fmt.Errorf("%w: account %d on transfer %d", domain.ErrUnknownParty, accountID, transferID)
			}
			return domain.TransferConfirmed{AccountID: accountID}, nil
		})
}

// CloseTransfer closes a transfer both parties have confirmed.
func (c *TransferController) CloseTransfer(ctx context.Context, transferID domain.StreamID) error {
	return c.runner.execute(ctx, CommandCloseTransfer, domain.StreamKindTransfer, transferID,
		func(events []domain.Event) (domain.Payload, error) {
			if _, err := transferStateIn(transferID, events, domain.TransferStatusConfirmed); err != nil {
				return nil, err
			}
			return domain.TransferClosed{}, nil
		})
}

// GetTransfer returns the current state of a transfer.
func (c *TransferController) GetTransfer(ctx context.Context, transferID domain.StreamID) (domain.TransferState, error) {
	events, err := c.store.GetEvents(ctx, domain.StreamKindTransfer, transferID)
	if err != nil {
		return domain.TransferState{}, err
	}
	return domain.ProjectTransfer(events)
}

func transferStateIn(transferID domain.StreamID, events []domain.Event, want domain.TransferStatus) (domain.TransferState, error) {
	state, err := domain.ProjectTransfer(events)
	if err != nil {
		return domain.TransferState{}, err
	}
	if state.Status != want {
		return domain.TransferState{}, fmt.Errorf("%w: transfer %d is %s, expected %s",
			domain.ErrInvalidTransferState, transferID, state.Status, want)
	}
	return state, nil
}
