// Package notify delivers account emails. The Dispatcher is the only way the
// service talks to a mail transport, so tests swap it for a recorder.
package notify

import (
	"context"
	"errors"
)

// ErrDispatch wraps every transport failure.
var ErrDispatch = errors.New("notify: dispatch failed")

// Message is a rendered email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Dispatcher sends a rendered message. Implementations must be safe for
// concurrent use.
type Dispatcher interface {
	Send(ctx context.Context, msg Message) error
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, msg Message) error

func (f DispatcherFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }
