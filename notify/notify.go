// Package notify delivers alert messages to the desktop or the log without
// ever blocking the sampling loop.
package notify

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"emperror.dev/errors"
	"github.com/gen2brain/beeep"
)

// ErrQueueFull is returned by Async.Notify when the delivery queue is full.
// The message has been dropped.
var ErrQueueFull = errors.Sentinel("notification queue full")

// ErrClosed is returned by Async.Notify after Close.
var ErrClosed = errors.Sentinel("notifier closed")

// Notifier delivers one titled message.
type Notifier interface {
	Notify(ctx context.Context, title, message string) error
}

// Func adapts a plain function to the Notifier interface.
type Func func(ctx context.Context, title, message string) error

// Notify calls f.
func (f Func) Notify(ctx context.Context, title, message string) error {
	return f(ctx, title, message)
}

// Desktop raises a native desktop notification.
type Desktop struct {
	// AppIcon is an optional icon path passed to the platform notifier.
	AppIcon string
}

// Notify shows the message. ctx is ignored; the platform call is short.
func (d Desktop) Notify(_ context.Context, title, message string) error {
	if err := beeep.Notify(title, message, d.AppIcon); err != nil {
		return errors.Wrap(err, "desktop notification")
	}
	return nil
}

// Log writes every message as a structured warning.
type Log struct {
	Logger *slog.Logger
}

// Notify logs the message.
func (l Log) Notify(ctx context.Context, title, message string) error {
	logger := l.Logger
	if logger == nil {
		return nil
	}
	logger.WarnContext(ctx, "alert", "title", title, "message", message)
	return nil
}

// Multi fans a message out to every notifier and combines their errors.
type Multi []Notifier

// Notify delivers to all members, continuing past failures.
func (m Multi) Notify(ctx context.Context, title, message string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, title, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Combine(errs...)
}

type message struct {
	title string
	body  string
}

// Async hands messages to a background worker through a bounded queue.
// Notify never blocks: when the queue is full the message is dropped.
// Delivery failures are logged and discarded.
type Async struct {
	next   Notifier
	logger *slog.Logger
	queue  chan message

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewAsync starts a worker delivering to next. size is the queue capacity;
// values below one become one. If logger is nil, a no-op logger is used.
func NewAsync(next Notifier, size int, logger *slog.Logger) *Async {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if size < 1 {
		size = 1
	}
	a := &Async{
		next:   next,
		logger: logger,
		queue:  make(chan message, size),
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

// Notify enqueues the message without waiting for delivery.
func (a *Async) Notify(_ context.Context, title, body string) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	select {
	case a.queue <- message{title: title, body: body}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting messages and waits for queued ones to be delivered
// or for ctx to end.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Async) run() {
	defer close(a.done)
	for msg := range a.queue {
		if err := a.next.Notify(context.Background(), msg.title, msg.body); err != nil {
			a.logger.Warn("notification delivery failed", "title", msg.title, "error", err)
		}
	}
}

var (
	_ Notifier = Desktop{}
	_ Notifier = Log{}
	_ Notifier = Multi(nil)
	_ Notifier = (*Async)(nil)
)
