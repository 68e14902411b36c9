package usecase

import (
	"context"

	"github.com/iho/sagaledger/internal/domain"
)

// EventStore defines the read/write surface of the event store used by
// controllers and processors.
type EventStore interface {
	// CreateStream allocates a new stream and appends initial at revision 1.
	CreateStream(ctx context.Context, kind domain.StreamKind, initial domain.Payload) (domain.StreamID, error)
	// AppendEvent appends payload at expectedRevision, which must be exactly
	// one past the stream's latest revision.
	AppendEvent(ctx context.Context, kind domain.StreamKind, id domain.StreamID, expectedRevision domain.Revision, payload domain.Payload) error
	// GetEvents returns every event of the stream in append order.
	GetEvents(ctx context.Context, kind domain.StreamKind, id domain.StreamID) ([]domain.Event, error)
}

// AccountCommands is the part of the account controller the saga drives.
type AccountCommands interface {
	StartIncomingTransfer(ctx context.Context, accountID, transferID domain.StreamID, amount int64) error
	StartOutgoingTransfer(ctx context.Context, accountID, transferID domain.StreamID, amount int64) error
	CompleteTransfer(ctx context.Context, accountID, transferID domain.StreamID) error
}

// TransferCommands is the part of the transfer controller the saga drives.
type TransferCommands interface {
	ConfirmTransfer(ctx context.Context, transferID, accountID domain.StreamID) error
	CloseTransfer(ctx context.Context, transferID domain.StreamID) error
}

// Processor reacts to events appended to streams it is subscribed to.
type Processor interface {
	Name() string
	Process(ctx context.Context, event domain.Event) error
}

// Retrier re-runs an operation when it fails with a retryable error.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// CommandRecorder observes the outcome of controller commands.
type CommandRecorder interface {
	RecordCommand(command, outcome string)
}
