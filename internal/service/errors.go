package service

import "errors"

var (
	ErrValidation          = errors.New("validation error")
	ErrNotFound            = errors.New("task not found")
	ErrTimerAlreadyRunning = errors.New("timer already running")
	ErrTimerNotRunning     = errors.New("timer not running")
)
