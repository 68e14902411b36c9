package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"go.uber.org/mock/gomock"

	"github.com/iho/sagaledger/internal/domain"
	"github.com/iho/sagaledger/internal/usecase"
	"github.com/iho/sagaledger/internal/usecase/mocks"
)

func accountEvent(id domain.StreamID, rev domain.Revision, payload domain.AccountPayload) domain.Event {
	return domain.Event{StreamID: id, Kind: domain.StreamKindAccount, Revision: rev, Payload: payload}
}

func TestAccountProcessor_ConfirmsStartedLegs(t *testing.T) {
	tests := []struct {
		name    string
		payload domain.AccountPayload
	}{
		{"incoming", domain.IncomingTransferStarted{TransferID: 3, Amount: 60}},
		{"outgoing", domain.OutgoingTransferStarted{TransferID: 3, Amount: 60}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			transfers := mocks.NewMockTransferCommands(ctrl)
			transfers.EXPECT().ConfirmTransfer(gomock.Any(), domain.StreamID(3), domain.StreamID(1)).Return(nil)

			p := usecase.NewAccountProcessor(transfers, zerolog.Nop())

			if err := p.Process(context.Background(), accountEvent(1, 2, tt.payload)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestAccountProcessor_IgnoresOtherEvents(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// No calls expected.
	transfers := mocks.NewMockTransferCommands(ctrl)
	p := usecase.NewAccountProcessor(transfers, zerolog.Nop())

	for _, payload := range []domain.AccountPayload{
		domain.AccountOpened{Owner: "alice"},
		domain.FundsDeposited{Amount: 10},
		domain.AccountTransferCompleted{TransferID: 3},
	} {
		if err := p.Process(context.Background(), accountEvent(1, 1, payload)); err != nil {
			t.Fatalf("unexpected error for %s: %v", payload.EventType(), err)
		}
	}
}

func TestAccountProcessor_RejectsUnknownEvents(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// No calls expected.
	transfers := mocks.NewMockTransferCommands(ctrl)
	p := usecase.NewAccountProcessor(transfers, zerolog.Nop())

	tests := []struct {
		name    string
		payload domain.Payload
	}{
		{"missing payload", nil},
		{"transfer payload", domain.TransferInitiated{SourceID: 1, DestinationID: 2, Amount: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt := domain.Event{StreamID: 1, Kind: domain.StreamKindAccount, Revision: 1, Payload: tt.payload}
			if err := p.Process(context.Background(), evt); !errors.Is(err, domain.ErrUnknownEventType) {
				t.Fatalf("expected ErrUnknownEventType, got %v", err)
			}
		})
	}
}

func TestAccountProcessor_PropagatesFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	transfers := mocks.NewMockTransferCommands(ctrl)
	transfers.EXPECT().ConfirmTransfer(gomock.Any(), domain.StreamID(3), domain.StreamID(1)).
		Return(domain.ErrInvalidTransferState)

	p := usecase.NewAccountProcessor(transfers, zerolog.Nop())

	err := p.Process(context.Background(), accountEvent(1, 2, domain.IncomingTransferStarted{TransferID: 3, Amount: 60}))
	if !errors.Is(err, domain.ErrInvalidTransferState) {
		t.Fatalf("expected ErrInvalidTransferState, got %v", err)
	}
}

func TestAccountProcessor_Name(t *testing.T) {
	p := usecase.NewAccountProcessor(nil, zerolog.Nop())
	if p.Name() != usecase.AccountProcessorName {
		t.Errorf("unexpected name %q", p.Name())
	}
}
