package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("user not found")
	ErrInvalidField        = errors.New("invalid field")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidPayload      = errors.New("invalid updates data")
	ErrInvalidSlot         = errors.New("invalid ad slot")
	ErrInvalidPrize        = errors.New("invalid prize")
	ErrInvalidReferral     = errors.New("invalid referral")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrDownstream          = errors.New("downstream failure")
)

func downstream(err error) error {
	return fmt.Errorf("%w: %w", ErrDownstream, err)
}
