package transport

import "errors"

var (
	ErrInvalidEndpoint = errors.New("transport: invalid endpoint")
	ErrEndpointBusy    = errors.New("transport: endpoint already bound by another producer")
	ErrBindFailed      = errors.New("transport: bind failed")
	ErrQueueFull       = errors.New("transport: send queue full, frame dropped")
	ErrClosed          = errors.New("transport: closed")
	ErrEmptyMessage    = errors.New("transport: empty message")
)
