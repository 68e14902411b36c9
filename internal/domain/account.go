package domain

import (
	"fmt"
	"slices"
)

// AccountStatus is the lifecycle status of an account.
type AccountStatus string

// Account statuses
const (
	AccountStatusEmpty  AccountStatus = "empty"
	AccountStatusOpen   AccountStatus = "open"
	AccountStatusClosed AccountStatus = "closed"
)

// TransferDirection tells whether funds leave or enter an account.
type TransferDirection string

// Transfer directions
const (
	DirectionIncoming TransferDirection = "incoming"
	DirectionOutgoing TransferDirection = "outgoing"
)

// PendingTransfer is a transfer leg the account has started but not completed.
type PendingTransfer struct {
	TransferID StreamID          `json:"transferId"`
	Amount     int64             `json:"amount"`
	Direction  TransferDirection `json:"direction"`
}

// AccountState is the state of an account derived from its event history.
type AccountState struct {
	Status           AccountStatus     `json:"status"`
	Owner            string            `json:"owner"`
	AvailableFunds   int64             `json:"availableFunds"`
	PendingTransfers []PendingTransfer `json:"pendingTransfers"`
}

// NewAccountState returns the state of an account with no history.
func NewAccountState() AccountState {
	return AccountState{
		Status:           AccountStatusEmpty,
		PendingTransfers: []PendingTransfer{},
	}
}

// ProjectAccount folds an account event history into its current state.
func ProjectAccount(events []Event) (AccountState, error) {
	state := NewAccountState()
	for _, evt := range events {
		next, err := state.Apply(evt)
		if err != nil {
			return AccountState{}, err
		}
		state = next
	}
	return state, nil
}

// Apply returns the state that results from applying evt. The receiver is
// left untouched.
func (s AccountState) Apply(evt Event) (AccountState, error) {
	next := s
	next.PendingTransfers = slices.Clone(s.PendingTransfers)
	if next.PendingTransfers == nil {
		next.PendingTransfers = []PendingTransfer{}
	}

	switch p := evt.Payload.(type) {
	case AccountOpened:
		next.Status = AccountStatusOpen
		next.Owner = p.Owner
	case FundsDeposited:
		next.AvailableFunds += p.Amount
	case IncomingTransferStarted:
		next.PendingTransfers = append(next.PendingTransfers, PendingTransfer{
			TransferID: p.TransferID,
			Amount:     p.Amount,
			Direction:  DirectionIncoming,
		})
	case OutgoingTransferStarted:
		next.PendingTransfers = append(next.PendingTransfers, PendingTransfer{
			TransferID: p.TransferID,
			Amount:     p.Amount,
			Direction:  DirectionOutgoing,
		})
		next.AvailableFunds -= p.Amount
	case AccountTransferCompleted:
		idx := next.pendingIndex(p.TransferID)
		if idx < 0 {
			return s, fmt.Errorf("%w: transfer %d on account %d", ErrUnexpectedTransfer, p.TransferID, evt.StreamID)
		}
		pending := next.PendingTransfers[idx]
		next.PendingTransfers = slices.Delete(next.PendingTransfers, idx, idx+1)
		if pending.Direction == DirectionIncoming {
			next.AvailableFunds += pending.Amount
		}
	default:
		return s, fmt.Errorf("%w: %s:%s", ErrUnknownEventType, StreamKindAccount, evt.Type())
	}

	return next, nil
}

// IsOpen reports whether the account accepts commands.
func (s AccountState) IsOpen() bool {
	return s.Status == AccountStatusOpen
}

// PendingTransfer returns the pending transfer with the given id.
func (s AccountState) PendingTransfer(transferID StreamID) (PendingTransfer, bool) {
	idx := s.pendingIndex(transferID)
	if idx < 0 {
		return PendingTransfer{}, false
	}
	return s.PendingTransfers[idx], true
}

// ValidateOutgoing checks that amount can be reserved for an outgoing transfer.
func (s AccountState) ValidateOutgoing(amount int64) error {
	if s.AvailableFunds < amount {
		return fmt.Errorf("%w: available %d, requested %d", ErrInsufficientFunds, s.AvailableFunds, amount)
	}
	return nil
}

func (s AccountState) pendingIndex(transferID StreamID) int {
	return slices.IndexFunc(s.PendingTransfers, func(pt PendingTransfer) bool {
		return pt.TransferID == transferID
	})
}
