package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/iho/sagaledger/internal/domain"
)

// TransferProcessorName identifies the transfer processor subscription.
const TransferProcessorName = "transfer_processor"

// TransferProcessor drives a transfer from initiation to completion on both
// accounts.
type TransferProcessor struct {
	accounts  AccountCommands
	transfers TransferCommands
	store     EventStore
	logger    zerolog.Logger
}

// NewTransferProcessor creates a new TransferProcessor.
func NewTransferProcessor(accounts AccountCommands, transfers TransferCommands, store EventStore, logger zerolog.Logger) *TransferProcessor {
	return &TransferProcessor{
		accounts:  accounts,
		transfers: transfers,
		store:     store,
		logger:    logger,
	}
}

// Name implements Processor.
func (p *TransferProcessor) Name() string {
	return TransferProcessorName
}

// Process implements Processor.
func (p *TransferProcessor) Process(ctx context.Context, event domain.Event) error {
	p.logger.Debug().
		Int64("stream_id", int64(event.StreamID)).
		Int64("revision", int64(event.Revision)).
		Str("event_type", string(event.Type())).
		Msg("processing event")

	switch payload := event.Payload.(type) {
	case domain.TransferInitiated:
		return p.startLegs(ctx, event.StreamID, payload)
	case domain.TransferConfirmed:
		return p.closeIfConfirmed(ctx, event.StreamID)
	case domain.TransferClosed:
		return p.completeLegs(ctx, event.StreamID)
	default:
		return fmt.Errorf("%s: %w: %q on %s", p.Name(), domain.ErrUnknownEventType, event.Type(), event.Stream())
	}
}

// startLegs fans the initiated transfer out to both accounts. The incoming leg
// goes first; if the outgoing leg is then rejected the transfer stays
// initiated, since no compensation is modeled.
func (p *TransferProcessor) startLegs(ctx context.Context, transferID domain.StreamID, payload domain.TransferInitiated) error {
	if err := p.accounts.StartIncomingTransfer(ctx, payload.DestinationID, transferID, payload.Amount); err != nil {
		return fmt.Errorf("transfer %d: start incoming leg on account %d: %w", transferID, payload.DestinationID, err)
	}

	if err := p.accounts.StartOutgoingTransfer(ctx, payload.SourceID, transferID, payload.Amount); err != nil {
		p.logger.Warn().
			Err(err).
			Int64("transfer_id", int64(transferID)).
			Msg("outgoing leg rejected after incoming leg was recorded, transfer left initiated")
		return fmt.Errorf("transfer %d: start outgoing leg on account %d: %w", transferID, payload.SourceID, err)
	}

	return nil
}

// closeIfConfirmed re-reads the transfer, since this event may be stale by the
// time it is delivered, and closes it once both parties have confirmed.
func (p *TransferProcessor) closeIfConfirmed(ctx context.Context, transferID domain.StreamID) error {
	state, err := p.transferState(ctx, transferID)
	if err != nil {
		return err
	}

	if state.Status != domain.TransferStatusConfirmed {
		return nil
	}

	if err := p.transfers.CloseTransfer(ctx, transferID); err != nil {
		return fmt.Errorf("close transfer %d: %w", transferID, err)
	}
	return nil
}

func (p *TransferProcessor) completeLegs(ctx context.Context, transferID domain.StreamID) error {
	state, err := p.transferState(ctx, transferID)
	if err != nil {
		return err
	}

	for _, party := range state.Parties {
		if err := p.accounts.CompleteTransfer(ctx, party.AccountID, transferID); err != nil {
			return fmt.Errorf("transfer %d: complete %s leg on account %d: %w", transferID, party.Role, party.AccountID, err)
		}
	}
	return nil
}

func (p *TransferProcessor) transferState(ctx context.Context, transferID domain.StreamID) (domain.TransferState, error) {
	events, err := p.store.GetEvents(ctx, domain.StreamKindTransfer, transferID)
	if err != nil {
		return domain.TransferState{}, err
	}
	return domain.ProjectTransfer(events)
}
