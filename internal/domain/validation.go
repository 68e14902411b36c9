package domain

import "fmt"

// ValidateAmount validates a deposit or transfer amount.
func ValidateAmount(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidAmount, amount)
	}

	return nil
}

// ValidateTransfer validates the parties and amount of a new transfer.
func ValidateTransfer(sourceID, destinationID StreamID, amount int64) error {
	if sourceID == destinationID {
		return ErrSameAccount
	}

	return ValidateAmount(amount)
}
