package persistence

import "errors"

var (
	ErrTaskNotFound   = errors.New("persistence: task not found")
	ErrAgentNotFound  = errors.New("persistence: agent not found")
	ErrSecretNotFound = errors.New("persistence: secret not found")
)
