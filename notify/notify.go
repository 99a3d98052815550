// Package notify publishes plate events to external systems without ever
// delaying the frame loop.
package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	iface "EdgeLPR/interface"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultTimeout = 5 * time.Second

// Event is one decoded plate as published to sinks.
type Event struct {
	ID     string    `json:"id"`
	Source string    `json:"source"`
	Plate  string    `json:"plate"`
	Tokens []string  `json:"tokens"`
	Score  float32   `json:"score"`
	At     time.Time `json:"at"`
}

func NewEvent(source string, r iface.Report) Event {
	return Event{
		ID:     uuid.NewString(),
		Source: source,
		Plate:  r.Plate.String(),
		Tokens: append([]string(nil), r.Plate...),
		Score:  r.Score,
		At:     r.At,
	}
}

type Sink interface {
	Name() string
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Dispatcher is a pipeline Observer that queues plate-found reports and
// publishes them from one background goroutine. When the queue is full the
// event is dropped.
type Dispatcher struct {
	source  string
	sinks   []Sink
	events  chan Event
	timeout time.Duration
	logger  *zap.Logger
	dropped atomic.Uint64
	done    chan struct{}

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

func NewDispatcher(logger *zap.Logger, source string, queueSize int, timeout time.Duration, sinks ...Sink) *Dispatcher {
	if queueSize < 1 {
		queueSize = 1
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	d := &Dispatcher{
		source:  source,
		sinks:   sinks,
		events:  make(chan Event, queueSize),
		timeout: timeout,
		logger:  logger.Named("notify"),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) Observe(r iface.Report) {
	if !r.Found {
		return
	}
	ev := NewEvent(d.source, r)

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	select {
	case d.events <- ev:
	default:
		n := d.dropped.Add(1)
		d.logger.Warn("event queue full, dropping plate event", zap.String("plate", ev.Plate), zap.Uint64("dropped", n))
	}
}

// Dropped is how many events were discarded because the queue was full.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for ev := range d.events {
		for _, s := range d.sinks {
			d.publish(s, ev)
		}
	}
}

func (d *Dispatcher) publish(s Sink, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("sink panic recovered", zap.String("sink", s.Name()), zap.Any("panic", r))
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := s.Publish(ctx, ev); err != nil {
		d.logger.Warn("publish plate event", zap.String("sink", s.Name()), zap.String("id", ev.ID), zap.Error(err))
		return
	}
	d.logger.Debug("plate event published", zap.String("sink", s.Name()), zap.String("id", ev.ID), zap.String("plate", ev.Plate))
}

// Close publishes what is already queued, then closes every sink.
func (d *Dispatcher) Close() error {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.events)
		d.mu.Unlock()
	})
	<-d.done
	var errs []error
	for _, s := range d.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
