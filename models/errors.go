package models

import (
	"errors"
	"fmt"
)

var (
	ErrSecurityNotFound    = errors.New("security not found")
	ErrAccountNotFound     = errors.New("account not found")
	ErrOrderNotFound       = errors.New("order not found")
	ErrInvalidOrder        = errors.New("invalid order")
	ErrUnknownFeeModel     = errors.New("unknown fee model")
	ErrSnapshotUnavailable = errors.New("portfolio snapshot unavailable")
)

func invalidOrder(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidOrder, reason)
}
