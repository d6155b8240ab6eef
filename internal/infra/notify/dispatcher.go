package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/labstack/gommon/log"

	"ecbackend/internal/domain/model"
	"ecbackend/internal/infra/logging"
	"ecbackend/internal/metrics"
)

const defaultPublishTimeout = 5 * time.Second

type DispatcherOptions struct {
	Workers        int
	QueueSize      int
	PublishTimeout time.Duration
	Logger         *log.Logger
	Metrics        *metrics.Metrics
}

// Dispatcher は上限付きキューとワーカーでイベントを送る。
// 積むだけで待たない。キューが満杯なら捨ててログに残す。
type Dispatcher struct {
	pub     Publisher
	queue   chan Event
	workers int
	timeout time.Duration
	logger  *log.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(pub Publisher, opts DispatcherOptions) *Dispatcher {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 1
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = defaultPublishTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard("notify")
	}
	return &Dispatcher{
		pub:     pub,
		queue:   make(chan Event, opts.QueueSize),
		workers: opts.Workers,
		timeout: opts.PublishTimeout,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		now:     time.Now,
	}
}

func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
}

// 受付を止めて、キューに残った分を送り切ってから閉じる
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	return d.pub.Close()
}

func (d *Dispatcher) NotifyOrderCreated(_ context.Context, order model.Order) {
	d.enqueue(newEvent(EventOrderCreated, order, d.now()))
}

func (d *Dispatcher) NotifyOrderShipped(_ context.Context, order model.Order, trackingNumber string) {
	ev := newEvent(EventOrderShipped, order, d.now())
	ev.TrackingNumber = trackingNumber
	d.enqueue(ev)
}

func (d *Dispatcher) NotifyOrderDelivered(_ context.Context, order model.Order) {
	d.enqueue(newEvent(EventOrderDelivered, order, d.now()))
}

func (d *Dispatcher) NotifyOrderCancelled(_ context.Context, order model.Order) {
	d.enqueue(newEvent(EventOrderCancelled, order, d.now()))
}

func (d *Dispatcher) enqueue(ev Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(ev, "closed")
		return
	}
	select {
	case d.queue <- ev:
	default:
		d.drop(ev, "queue full")
	}
}

func (d *Dispatcher) drop(ev Event, reason string) {
	d.metrics.Notification(ev.Type, "dropped")
	d.logger.Warnj(log.JSON{"event": "notification_dropped", "type": ev.Type,
		"order_number": ev.OrderNumber, "reason": reason})
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for ev := range d.queue {
		d.send(ev)
	}
}

func (d *Dispatcher) send(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	err := d.pub.Publish(ctx, ev)
	if err == nil {
		d.metrics.Notification(ev.Type, "sent")
		return
	}

	d.metrics.Notification(ev.Type, "failed")
	fields := log.JSON{"event": "notification_failed", "type": ev.Type,
		"order_number": ev.OrderNumber, "error": err.Error()}
	var te *TransientInfraError
	if errors.As(err, &te) {
		fields["op"] = te.Op
		d.logger.Warnj(fields)
		return
	}
	d.logger.Errorj(fields)
}
