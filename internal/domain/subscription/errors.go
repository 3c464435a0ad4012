package subscription

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("subscription not found")
	ErrAlreadyExists      = errors.New("wallet already has a subscription")
	ErrNotPaused          = errors.New("subscription is not paused")
	ErrNotActive          = errors.New("subscription is not active")
	ErrInvalidAmount      = errors.New("invalid daily amount")
	ErrInvalidRule        = errors.New("invalid auto-increase rule")
	ErrBalanceUnavailable = errors.New("balance check unavailable")
)

// ShortfallError is returned by manual resume when the wallet cannot cover
// the daily amount. It carries the figures shown to the user.
type ShortfallError struct {
	Balance  int64
	Required int64
}

func (e *ShortfallError) Error() string {
	return fmt.Sprintf("insufficient balance: have %s, need %s",
		FormatAmount(e.Balance), FormatAmount(e.Required))
}
