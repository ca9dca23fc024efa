package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Dispatcher decouples notification latency from the worker. Notify never
// blocks: when the buffer is full the notice is dropped and logged.
type Dispatcher struct {
	notifier Notifier
	logger   zerolog.Logger
	timeout  time.Duration

	mu     sync.RWMutex
	closed bool
	ch     chan Notice
	done   chan struct{}
}

func NewDispatcher(notifier Notifier, logger zerolog.Logger, buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = 64
	}
	d := &Dispatcher{
		notifier: notifier,
		logger:   logger,
		timeout:  30 * time.Second,
		ch:       make(chan Notice, buffer),
		done:     make(chan struct{}),
	}
	go d.loop()
	return d
}

// Notify queues n for delivery and reports whether it was accepted.
func (d *Dispatcher) Notify(n Notice) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warn().Str("job_id", n.JobID).Msg("notify: dispatcher closed, notice dropped")
		return false
	}
	select {
	case d.ch <- n:
		return true
	default:
		d.logger.Warn().Str("job_id", n.JobID).Msg("notify: buffer full, notice dropped")
		return false
	}
}

// Close stops accepting notices and waits for queued ones to be delivered or
// for ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.ch)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for n := range d.ch {
		d.deliver(n)
	}
}

func (d *Dispatcher) deliver(n Notice) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().Interface("panic", r).Str("job_id", n.JobID).Msg("notify: notifier panicked")
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := d.notifier.JobCompleted(ctx, n); err != nil {
		d.logger.Warn().Err(err).Str("job_id", n.JobID).Msg("notify: delivery failed")
	}
}
