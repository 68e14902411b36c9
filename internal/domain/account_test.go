package domain

import (
	"errors"
	"reflect"
	"testing"
)

func accountEvents(payloads ...AccountPayload) []Event {
	events := make([]Event, 0, len(payloads))
	for i, p := range payloads {
		events = append(events, Event{
			StreamID: 1,
			Kind:     StreamKindAccount,
			Revision: Revision(i + 1),
			Payload:  p,
		})
	}
	return events
}

func TestProjectAccount(t *testing.T) {
	tests := []struct {
		name        string
		events      []Event
		wantStatus  AccountStatus
		wantFunds   int64
		wantPending []PendingTransfer
		expectError error
	}{
		{
			name:        "no history",
			events:      nil,
			wantStatus:  AccountStatusEmpty,
			wantPending: []PendingTransfer{},
		},
		{
			name:        "opened",
			events:      accountEvents(AccountOpened{Owner: "Test Owner"}),
			wantStatus:  AccountStatusOpen,
			wantPending: []PendingTransfer{},
		},
		{
			name: "deposits accumulate",
			events: accountEvents(
				AccountOpened{Owner: "Test Owner"},
				FundsDeposited{Amount: 100},
				FundsDeposited{Amount: 23},
			),
			wantStatus:  AccountStatusOpen,
			wantFunds:   123,
			wantPending: []PendingTransfer{},
		},
		{
			name: "outgoing transfer reserves funds",
			events: accountEvents(
				AccountOpened{Owner: "Test Owner"},
				FundsDeposited{Amount: 100},
				OutgoingTransferStarted{TransferID: 7, Amount: 60},
			),
			wantStatus: AccountStatusOpen,
			wantFunds:  40,
			wantPending: []PendingTransfer{
				{TransferID: 7, Amount: 60, Direction: DirectionOutgoing},
			},
		},
		{
			name: "incoming transfer does not credit until completed",
			events: accountEvents(
				AccountOpened{Owner: "Test Owner"},
				IncomingTransferStarted{TransferID: 7, Amount: 60},
			),
			wantStatus: AccountStatusOpen,
			wantFunds:  0,
			wantPending: []PendingTransfer{
				{TransferID: 7, Amount: 60, Direction: DirectionIncoming},
			},
		},
		{
			name: "completed incoming transfer credits funds",
			events: accountEvents(
				AccountOpened{Owner: "Test Owner"},
				IncomingTransferStarted{TransferID: 7, Amount: 60},
				AccountTransferCompleted{TransferID: 7},
			),
			wantStatus:  AccountStatusOpen,
			wantFunds:   60,
			wantPending: []PendingTransfer{},
		},
		{
			name: "completed outgoing transfer does not refund",
			events: accountEvents(
				AccountOpened{Owner: "Test Owner"},
				FundsDeposited{Amount: 100},
				OutgoingTransferStarted{TransferID: 7, Amount: 60},
				AccountTransferCompleted{TransferID: 7},
			),
			wantStatus:  AccountStatusOpen,
			wantFunds:   40,
			wantPending: []PendingTransfer{},
		},
		{
			name: "completion removes only the matching transfer",
			events: accountEvents(
				AccountOpened{Owner: "Test Owner"},
				FundsDeposited{Amount: 100},
				OutgoingTransferStarted{TransferID: 7, Amount: 10},
				IncomingTransferStarted{TransferID: 8, Amount: 5},
				AccountTransferCompleted{TransferID: 7},
			),
			wantStatus: AccountStatusOpen,
			wantFunds:  90,
			wantPending: []PendingTransfer{
				{TransferID: 8, Amount: 5, Direction: DirectionIncoming},
			},
		},
		{
			name: "completion of unknown transfer fails",
			events: accountEvents(
				AccountOpened{Owner: "Test Owner"},
				AccountTransferCompleted{TransferID: 99},
			),
			expectError: ErrUnexpectedTransfer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, err := ProjectAccount(tt.events)

			if tt.expectError != nil {
				if !errors.Is(err, tt.expectError) {
					t.Fatalf("expected %v, got %v", tt.expectError, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if state.Status != tt.wantStatus {
				t.Errorf("expected status %s, got %s", tt.wantStatus, state.Status)
			}
			if state.AvailableFunds != tt.wantFunds {
				t.Errorf("expected available funds %d, got %d", tt.wantFunds, state.AvailableFunds)
			}
			if !reflect.DeepEqual(state.PendingTransfers, tt.wantPending) {
				t.Errorf("expected pending %+v, got %+v", tt.wantPending, state.PendingTransfers)
			}
		})
	}
}

func TestProjectAccount_UnknownEventType(t *testing.T) {
	events := accountEvents(AccountOpened{Owner: "Test Owner"})
	events = append(events, Event{
		StreamID: 1,
		Kind:     StreamKindAccount,
		Revision: 2,
		Payload:  TransferClosed{},
	})

	if _, err := ProjectAccount(events); !errors.Is(err, ErrUnknownEventType) {
		t.Fatalf("expected ErrUnknownEventType, got %v", err)
	}
}

func TestProjectAccount_Deterministic(t *testing.T) {
	events := accountEvents(
		AccountOpened{Owner: "Test Owner"},
		FundsDeposited{Amount: 100},
		OutgoingTransferStarted{TransferID: 3, Amount: 30},
		IncomingTransferStarted{TransferID: 4, Amount: 5},
		AccountTransferCompleted{TransferID: 4},
	)

	first, err := ProjectAccount(events)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Every prefix must project the same way twice, and a later projection
	// must not disturb an earlier result.
	for i := range events {
		a, errA := ProjectAccount(events[:i+1])
		b, errB := ProjectAccount(events[:i+1])
		if errA != nil || errB != nil {
			t.Fatalf("unexpected errors: %v, %v", errA, errB)
		}
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("prefix %d projected differently: %+v vs %+v", i+1, a, b)
		}
	}

	second, err := ProjectAccount(events)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical projections, got %+v and %+v", first, second)
	}
}

func TestAccountState_ApplyDoesNotMutateReceiver(t *testing.T) {
	state, err := ProjectAccount(accountEvents(
		AccountOpened{Owner: "Test Owner"},
		IncomingTransferStarted{TransferID: 1, Amount: 10},
		IncomingTransferStarted{TransferID: 2, Amount: 20},
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	before := NewAccountState()
	before.Status = state.Status
	before.PendingTransfers = append(before.PendingTransfers, state.PendingTransfers...)

	_, err = state.Apply(Event{StreamID: 1, Kind: StreamKindAccount, Revision: 4, Payload: AccountTransferCompleted{TransferID: 1}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(state.PendingTransfers, before.PendingTransfers) {
		t.Fatalf("receiver was mutated: %+v", state.PendingTransfers)
	}
}

func TestAccountState_ValidateOutgoing(t *testing.T) {
	state := AccountState{Status: AccountStatusOpen, AvailableFunds: 50}

	if err := state.ValidateOutgoing(50); err != nil {
		t.Fatalf("expected exact balance to be allowed, got %v", err)
	}
	if err := state.ValidateOutgoing(51); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}
