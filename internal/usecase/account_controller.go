package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/iho/sagaledger/internal/domain"
)

// AccountController handles account commands.
type AccountController struct {
	store  EventStore
	runner commandRunner
}

// NewAccountController creates a new AccountController. retrier and recorder
// may be nil.
func NewAccountController(store EventStore, retrier Retrier, recorder CommandRecorder, logger zerolog.Logger) *AccountController {
	return &AccountController{
		store:  store,
		runner: newCommandRunner(store, retrier, recorder, logger),
	}
}

// OpenAccount opens a new account and returns its id.
func (c *AccountController) OpenAccount(ctx context.Context, owner string) (domain.StreamID, error) {
	return c.runner.create(ctx, CommandOpenAccount, domain.StreamKindAccount, domain.AccountOpened{Owner: owner})
}

// DepositFunds adds amount to an open account.
func (c *AccountController) DepositFunds(ctx context.Context, accountID domain.StreamID, amount int64) error {
	return c.runner.execute(ctx, CommandDepositFunds, domain.StreamKindAccount, accountID,
		func(events []domain.Event) (domain.Payload, error) {
			if err := domain.ValidateAmount(amount); err != nil {
				return nil, err
			}
			if _, err := openAccountState(accountID, events); err != nil {
				return nil, err
			}
			return domain.FundsDeposited{Amount: amount}, nil
		})
}

// StartIncomingTransfer records the destination leg of a transfer. Incoming
// funds are not at risk, so no balance check applies.
func (c *AccountController) StartIncomingTransfer(ctx context.Context, accountID, transferID domain.StreamID, amount int64) error {
	return c.runner.execute(ctx, CommandStartIncomingTransfer, domain.StreamKindAccount, accountID,
		func(events []domain.Event) (domain.Payload, error) {
			if err := domain.ValidateAmount(amount); err != nil {
				return nil, err
			}
			if _, err := openAccountState(accountID, events); err != nil {
				return nil, err
			}
			return domain.IncomingTransferStarted{TransferID: transferID, Amount: amount}, nil
		})
}

// StartOutgoingTransfer records the source leg of a transfer, reserving amount
// from the available funds.
func (c *AccountController) StartOutgoingTransfer(ctx context.Context, accountID, transferID domain.StreamID, amount int64) error {
	return c.runner.execute(ctx, CommandStartOutgoingTransfer, domain.StreamKindAccount, accountID,
		func(events []domain.Event) (domain.Payload, error) {
			if err := domain.ValidateAmount(amount); err != nil {
				return nil, err
			}
			state, err := openAccountState(accountID, events)
			if err != nil {
				return nil, err
			}
			if err := state.ValidateOutgoing(amount); err != nil {
				return nil, fmt.Errorf("account %d: %w", accountID, err)
			}
			return domain.OutgoingTransferStarted{TransferID: transferID, Amount: amount}, nil
		})
}

// CompleteTransfer settles a pending transfer leg on the account.
func (c *AccountController) CompleteTransfer(ctx context.Context, accountID, transferID domain.StreamID) error {
	return c.runner.execute(ctx, CommandCompleteTransfer, domain.StreamKindAccount, accountID,
		func(events []domain.Event) (domain.Payload, error) {
			state, err := openAccountState(accountID, events)
			if err != nil {
				return nil, err
			}
			if _, ok := state.PendingTransfer(transferID); !ok {
				return nil, fmt.Errorf("%w: transfer %d on account %d", domain.ErrUnexpectedTransfer, transferID, accountID)
			}
			return domain.AccountTransferCompleted{TransferID: transferID}, nil
		})
}

// GetAccount returns the current state of an account.
func (c *AccountController) GetAccount(ctx context.Context, accountID domain.StreamID) (domain.AccountState, error) {
	events, err := c.store.GetEvents(ctx, domain.StreamKindAccount, accountID)
	if err != nil {
		return domain.AccountState{}, err
	}
	return domain.ProjectAccount(events)
}

func openAccountState(accountID domain.StreamID, events []domain.Event) (domain.AccountState, error) {
	state, err := domain.ProjectAccount(events)
	if err != nil {
		return domain.AccountState{}, err
	}
	if !state.IsOpen() {
		return domain.AccountState{}, fmt.Errorf("%w: account %d is %s", domain.ErrInvalidAccountState, accountID, state.Status)
	}
	return state, nil
}
