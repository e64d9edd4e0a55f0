package service

import "errors"

var (
	ErrInvalidInput   = errors.New("missing or malformed room id or password")
	ErrTokenInvalid   = errors.New("invalid or expired room token")
	ErrInternalServer = errors.New("internal server error")
)
