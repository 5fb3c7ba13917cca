package server

import "github.com/pkg/errors"

// Common errors in the server package
var (
	// ErrNoTransport is returned when the server is used before Connect
	ErrNoTransport = errors.New("no transport specified")

	// ErrAlreadyConnected is returned when Connect is called twice
	ErrAlreadyConnected = errors.New("server already connected")
)
