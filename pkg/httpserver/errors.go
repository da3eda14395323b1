package httpserver

import "errors"

var (
	ErrStart          = errors.New("ops server: listen failed")
	ErrAlreadyRunning = errors.New("ops server: already running")
	ErrShutdown       = errors.New("ops server: graceful shutdown failed")
)
