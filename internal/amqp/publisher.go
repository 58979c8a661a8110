package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

type reminderSink interface {
	PublishReminder(ctx context.Context, msg *ReminderMessage) error
	IsClosed() bool
	Close() error
}

// ReconnectingPublisher publishes reminders and redials the broker on the
// next publish after the connection drops.
type ReconnectingPublisher struct {
	mu      sync.Mutex
	connect func(ctx context.Context) (reminderSink, error)
	sink    reminderSink
}

// NewReconnectingPublisher connects with d. Later reconnects make a single
// attempt so a sweep is never held up by backoff.
func NewReconnectingPublisher(ctx context.Context, d *Dialer) (*ReconnectingPublisher, error) {
	client, err := d.Dial(ctx)
	if err != nil {
		return nil, err
	}
	redial := *d
	redial.MaxAttempts = 1
	p := &ReconnectingPublisher{
		connect: func(ctx context.Context) (reminderSink, error) {
			c, err := redial.Dial(ctx)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		sink: client,
	}
	return p, nil
}

// PublishReminder publishes msg, reconnecting first if needed. A connection
// error drops the current client so the following call redials.
func (p *ReconnectingPublisher) PublishReminder(ctx context.Context, msg *ReminderMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sink == nil || p.sink.IsClosed() {
		p.drop()
		sink, err := p.connect(ctx)
		if err != nil {
			return fmt.Errorf("reconnect to broker: %w", err)
		}
		slog.InfoContext(ctx, "AMQP connection re-established")
		p.sink = sink
	}

	err := p.sink.PublishReminder(ctx, msg)
	if err != nil && isConnectionError(err) {
		slog.WarnContext(ctx, "AMQP connection lost, will redial", "error", err)
		p.drop()
	}
	return err
}

func (p *ReconnectingPublisher) drop() {
	if p.sink != nil {
		p.sink.Close()
		p.sink = nil
	}
}

// Close closes the current connection, if any.
func (p *ReconnectingPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sink == nil {
		return nil
	}
	err := p.sink.Close()
	p.sink = nil
	return err
}
