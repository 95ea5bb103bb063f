package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const defaultDeliveryTimeout = 2 * time.Second

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// DeliveryTimeout bounds a single Sink.Emit call. Network sinks such as
	// NATSSink observe it through their context. Defaults to 2s.
	DeliveryTimeout time.Duration
}

// Dispatcher relays engine events to a sink on its own goroutine so that
// Login, Refresh and the reset flows never wait on audit I/O.
type Dispatcher struct {
	sink       Sink
	queue      chan Event
	stop       chan struct{}
	dropIfFull bool
	timeout    time.Duration

	workers   sync.WaitGroup
	closing   atomic.Bool
	closeOnce sync.Once

	dropped   atomic.Uint64
	delivered atomic.Uint64
}

// NewDispatcher starts the delivery goroutine. A disabled config yields a nil
// *Dispatcher; all methods accept a nil receiver.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	size := max(cfg.BufferSize, 1)
	timeout := cfg.DeliveryTimeout
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}

	d := &Dispatcher{
		sink:       sink,
		queue:      make(chan Event, size),
		stop:       make(chan struct{}),
		dropIfFull: cfg.DropIfFull,
		timeout:    timeout,
	}
	d.workers.Add(1)
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer d.workers.Done()
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-d.stop:
			d.drain()
			return
		}
	}
}

// drain flushes whatever is still queued once Close has been called.
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

func (d *Dispatcher) deliver(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	d.sink.Emit(ctx, ev)
	d.delivered.Add(1)
}

// Emit enqueues ev. In drop mode a full queue increments Dropped and returns
// at once; in block mode Emit waits for room, for ctx, or for Close.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if d == nil || d.closing.Load() {
		return
	}

	if d.dropIfFull {
		select {
		case d.queue <- ev:
		case <-d.stop:
		default:
			d.dropped.Add(1)
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.queue <- ev:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.stop:
	}
}

// Close rejects further events, delivers the queued ones and waits for the
// delivery goroutine to exit. It is safe to call more than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closing.Store(true)
		close(d.stop)
		d.workers.Wait()
	})
}

// Dropped counts events that never reached the queue.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Delivered counts events handed to the sink.
func (d *Dispatcher) Delivered() uint64 {
	if d == nil {
		return 0
	}
	return d.delivered.Load()
}
