package domain

import "errors"

var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrDisplayIDTaken      = errors.New("display id already connected")
	ErrNotRegistered       = errors.New("connection not registered")
	ErrNegotiationNotFound = errors.New("negotiation not found")
	ErrAlreadyAnswered     = errors.New("negotiation already answered")
	ErrInvalidMessage      = errors.New("invalid message")
	ErrSendFailed          = errors.New("transport send failed")

	ErrBrokerDisabled      = errors.New("sfu broker not configured")
	ErrInvalidTokenRequest = errors.New("room and username are required")
)
