package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrTornister/Work-Flow-app/internal/ids"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull discards info and warning events when the buffer is full.
	// High severity events still wait up to HighSeverityWait.
	DropIfFull       bool
	HighSeverityWait time.Duration
}

const defaultHighSeverityWait = 100 * time.Millisecond

// Dispatcher forwards security events to a sink on its own goroutine, so a
// slow sink never sits on the login path. Events missing an ID, timestamp
// or severity get one at Emit time.
type Dispatcher struct {
	cfg   Config
	sink  Sink
	queue chan Event
	// stop wakes emitters waiting for room; quit ends the loop once no
	// Emit is in flight.
	stop chan struct{}
	quit chan struct{}
	wg   sync.WaitGroup

	// mu is held shared by Emit and exclusively by Close while it sets
	// closed, so every accepted event is queued before the loop drains.
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once

	emitted atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewDispatcher starts a dispatcher. A disabled config returns nil, and
// every method of a nil *Dispatcher is a no-op.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.HighSeverityWait <= 0 {
		cfg.HighSeverityWait = defaultHighSeverityWait
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:   cfg,
		sink:  sink,
		queue: make(chan Event, cfg.BufferSize),
		stop:  make(chan struct{}),
		quit:  make(chan struct{}),
	}
	d.wg.Add(1)
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer d.wg.Done()
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-d.quit:
			d.drain()
			return
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		default:
			return
		}
	}
}

// deliver hands ev to the sink. A panicking sink loses that event only.
func (d *Dispatcher) deliver(ev Event) {
	defer func() {
		if recover() != nil {
			d.failed.Add(1)
		}
	}()
	d.sink.Emit(context.Background(), ev)
}

// Emit queues event for delivery.
//
// Without DropIfFull it blocks until there is room, ctx ends or the
// dispatcher closes. With DropIfFull, a full buffer drops the event, except
// that high severity events wait up to HighSeverityWait first. Events
// emitted after Close are ignored.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	stamp(&event)

	select {
	case d.queue <- event:
		d.emitted.Add(1)
		return
	default:
	}

	if d.cfg.DropIfFull {
		if event.Severity != SeverityHigh {
			d.dropped.Add(1)
			return
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.HighSeverityWait)
		defer cancel()
	}

	select {
	case d.queue <- event:
		d.emitted.Add(1)
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.stop:
		d.dropped.Add(1)
	}
}

func stamp(ev *Event) {
	if ev.ID == "" {
		ev.ID = ids.New()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if ev.Severity == "" {
		ev.Severity = SeverityInfo
	}
}

// Close stops accepting events and waits until the buffered ones reach the
// sink. It is idempotent.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		close(d.stop)
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
		close(d.quit)
		d.wg.Wait()
	})
}

// Dropped counts events discarded for a full buffer, an ended context or a
// Close that interrupted the wait for room.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Emitted returns how many events were accepted for delivery.
func (d *Dispatcher) Emitted() uint64 {
	if d == nil {
		return 0
	}
	return d.emitted.Load()
}

// Failed counts events lost to a panicking sink.
func (d *Dispatcher) Failed() uint64 {
	if d == nil {
		return 0
	}
	return d.failed.Load()
}
