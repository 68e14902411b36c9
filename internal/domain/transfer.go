package domain

import (
	"fmt"
	"slices"
)

// TransferStatus is the lifecycle status of a transfer.
type TransferStatus string

// Transfer statuses. A transfer only moves forward through them.
const (
	TransferStatusEmpty     TransferStatus = "empty"
	TransferStatusInitiated TransferStatus = "initiated"
	TransferStatusConfirmed TransferStatus = "confirmed"
	TransferStatusClosed    TransferStatus = "closed"
)

// PartyRole is the side an account plays in a transfer.
type PartyRole string

// Party roles
const (
	RoleSource      PartyRole = "source"
	RoleDestination PartyRole = "destination"
)

// TransferParty is one of the two accounts involved in a transfer.
type TransferParty struct {
	AccountID StreamID  `json:"accountId"`
	Role      PartyRole `json:"role"`
	Confirmed bool      `json:"confirmed"`
}

// TransferState is the state of a transfer derived from its event history.
type TransferState struct {
	Status  TransferStatus  `json:"status"`
	Amount  int64           `json:"amount"`
	Parties []TransferParty `json:"parties"`
}

// NewTransferState returns the state of a transfer with no history.
func NewTransferState() TransferState {
	return TransferState{
		Status:  TransferStatusEmpty,
		Parties: []TransferParty{},
	}
}

// ProjectTransfer folds a transfer event history into its current state.
func ProjectTransfer(events []Event) (TransferState, error) {
	state := NewTransferState()
	for _, evt := range events {
		next, err := state.Apply(evt)
		if err != nil {
			return TransferState{}, err
		}
		state = next
	}
	return state, nil
}

// Apply returns the state that results from applying evt. The receiver is
// left untouched.
func (s TransferState) Apply(evt Event) (TransferState, error) {
	next := s
	next.Parties = slices.Clone(s.Parties)
	if next.Parties == nil {
		next.Parties = []TransferParty{}
	}

	switch p := evt.Payload.(type) {
	case TransferInitiated:
		next.Status = TransferStatusInitiated
		next.Amount = p.Amount
		next.Parties = []TransferParty{
			{AccountID: p.SourceID, Role: RoleSource},
			{AccountID: p.DestinationID, Role: RoleDestination},
		}
	case TransferConfirmed:
		idx := next.partyIndex(p.AccountID)
		if idx < 0 {
			return s, fmt.Errorf("%w: account %d on transfer %d", ErrUnknownParty, p.AccountID, evt.StreamID)
		}
		next.Parties[idx].Confirmed = true
		if next.allConfirmed() {
			next.Status = TransferStatusConfirmed
		}
	case TransferClosed:
		next.Status = TransferStatusClosed
	default:
		return s, fmt.Errorf("%w: %s:%s", ErrUnknownEventType, StreamKindTransfer, evt.Type())
	}

	return next, nil
}

// Party returns the party entry for accountID.
func (s TransferState) Party(accountID StreamID) (TransferParty, bool) {
	idx := s.partyIndex(accountID)
	if idx < 0 {
		return TransferParty{}, false
	}
	return s.Parties[idx], true
}

// PartyByRole returns the party playing role.
func (s TransferState) PartyByRole(role PartyRole) (TransferParty, bool) {
	for _, p := range s.Parties {
		if p.Role == role {
			return p, true
		}
	}
	return TransferParty{}, false
}

func (s TransferState) partyIndex(accountID StreamID) int {
	return slices.IndexFunc(s.Parties, func(p TransferParty) bool {
		return p.AccountID == accountID
	})
}

func (s TransferState) allConfirmed() bool {
	if len(s.Parties) == 0 {
		return false
	}
	for _, p := range s.Parties {
		if !p.Confirmed {
			return false
		}
	}
	return true
}
