package singleinstance

// This file defines the API for single-instance ownership and run-once
// delegation over a loopback TCP port.

import (
	"context"
)

// Server owns the TCP endpoint and answers run-once requests.
type Server interface {
	// Start binds the first port of the configured range and accepts client requests.
	Start(ctx context.Context) error
	// Port returns the bound TCP port, or 0 if not started.
	Port() int
	// Next returns the next accepted connection, ctx.Err(), or ErrServerClosed.
	Next(ctx context.Context) (Conn, error)
	// Close releases ownership and stops accepting clients.
	Close() error
}

// Conn represents one client connection and exposes request + response API.
type Conn interface {
	// Request returns the parsed client request.
	Request() Request
	// RespondSuccess sends success. For stdout mode, send text; for clipboard mode, send empty text.
	RespondSuccess(text string) error
	// RespondError sends an error with human-readable message.
	RespondError(msg string) error
	// Close closes the underlying connection.
	Close() error
}

// BusyMessage is the error a resident sends while a capture is active.
const BusyMessage = "Busy, please retry"

// ResidentError is a failure reported by the resident itself, as opposed to
// a transport failure while talking to it.
type ResidentError struct {
	Message string
}

func (e *ResidentError) Error() string { return e.Message }

// Request represents a single run-once client request.
type Request struct {
	OutputToStdout bool
}

// Client attempts to delegate run-once invocation to a resident server.
type Client interface {
	// TryRunOnce scans its port range, performs handshake, and delegates to resident.
	// If no resident is found, returns delegated=false, err=nil.
	TryRunOnce(ctx context.Context, outputToStdout bool) (delegated bool, text string, err error)
}

// NewServer returns a TCP server that binds r.Start.
func NewServer(r PortRange) Server { return newTcpServer(r) }

// NewClient returns a TCP client that scans r.
func NewClient(r PortRange) Client { return newTcpClient(r) }
