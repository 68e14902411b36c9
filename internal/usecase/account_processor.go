package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/iho/sagaledger/internal/domain"
)

// AccountProcessorName identifies the account processor subscription.
const AccountProcessorName = "account_processor"

// AccountProcessor confirms a transfer as soon as an account has recorded its
// leg of it.
type AccountProcessor struct {
	transfers TransferCommands
	logger    zerolog.Logger
}

// NewAccountProcessor creates a new AccountProcessor.
func NewAccountProcessor(transfers TransferCommands, logger zerolog.Logger) *AccountProcessor {
	return &AccountProcessor{
		transfers: transfers,
		logger:    logger,
	}
}

// Name implements Processor.
func (p *AccountProcessor) Name() string {
	return AccountProcessorName
}

// Process implements Processor.
func (p *AccountProcessor) Process(ctx context.Context, event domain.Event) error {
	p.logger.Debug().
		Int64("stream_id", int64(event.StreamID)).
		Int64("revision", int64(event.Revision)).
		Str("event_type", string(event.Type())).
		Msg("processing event")

	switch payload := event.Payload.(type) {
	case domain.IncomingTransferStarted:
		return p.confirm(ctx, payload.TransferID, event.StreamID)
	case domain.OutgoingTransferStarted:
		return p.confirm(ctx, payload.TransferID, event.StreamID)
	case domain.AccountOpened, domain.FundsDeposited, domain.AccountTransferCompleted:
		return nil
	default:
		return fmt.Errorf("%s: %w: %q on %s", p.Name(), domain.ErrUnknownEventType, event.Type(), event.Stream())
	}
}

func (p *AccountProcessor) confirm(ctx context.Context, transferID, accountID domain.StreamID) error {
	if err := p.transfers.ConfirmTransfer(ctx, transferID, accountID); err != nil {
		return fmt.Errorf("confirm transfer %d for account %d: %w", transferID, accountID, err)
	}
	return nil
}
