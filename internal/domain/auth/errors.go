package auth

import "errors"

var (
	ErrChallengeNotFound = errors.New("challenge not found or expired")
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrUserNotFound      = errors.New("user not found")
)
