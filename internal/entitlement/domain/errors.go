package domain

import "errors"

var (
	ErrInvalidAmount    = errors.New("grant amount must be positive")
	ErrEmptyMessageID   = errors.New("blocked message id is required")
	ErrInvalidDate      = errors.New("date must be YYYY-MM-DD")
	ErrEmptyPaymentID   = errors.New("payment id is required")
	ErrUnknownPolicy    = errors.New("unknown paywall policy")
	ErrUnknownGrantKind = errors.New("unknown grant kind")
)
