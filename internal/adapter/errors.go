package adapter

import "errors"

var (
	ErrTransport      = errors.New("transport failure")
	ErrInvalidAddress = errors.New("invalid api address")
	ErrNoUserID       = errors.New("credentials carry no user id")
)
