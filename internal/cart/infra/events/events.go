// Package events publishes cart change notifications to a message broker.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dwikikusuma/fakenft-cart/internal/cart/domain"
)

const (
	TypeCartUpdated = "cart_updated"
	TypeLoading     = "cart_loading"
	TypeError       = "cart_error"
)

type Event struct {
	Type      string    `json:"type"`
	ItemCount int       `json:"item_count"`
	TotalCost string    `json:"total_cost"`
	Loading   bool      `json:"loading"`
	ErrorKind string    `json:"error_kind,omitempty"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

type Snapshotter interface {
	Snapshot() domain.Cart
	IsLoading() bool
}

const queueSize = 64

// Observer turns aggregator notifications into published events. Events are
// queued and published by a single goroutine, so a slow broker never holds up
// the aggregator. When the queue is full the event is dropped and logged.
type Observer struct {
	cart    Snapshotter
	pub     Publisher
	log     *slog.Logger
	timeout time.Duration
	now     func() time.Time

	mu     sync.Mutex
	queue  chan Event
	closed bool
	done   chan struct{}
}

func NewObserver(cart Snapshotter, pub Publisher, log *slog.Logger) *Observer {
	if log == nil {
		log = slog.Default()
	}
	o := &Observer{
		cart:    cart,
		pub:     pub,
		log:     log.With("component", "cart_events"),
		timeout: 3 * time.Second,
		now:     time.Now,
		queue:   make(chan Event, queueSize),
		done:    make(chan struct{}),
	}
	go o.drain()
	return o
}

// Close stops accepting events and waits until the queued ones are published.
func (o *Observer) Close() {
	o.mu.Lock()
	if !o.closed {
		o.closed = true
		close(o.queue)
	}
	o.mu.Unlock()
	<-o.done
}

func (o *Observer) OnContentsChanged() {
	cart := o.cart.Snapshot()
	o.publish(Event{
		Type:      TypeCartUpdated,
		ItemCount: cart.ItemCount,
		TotalCost: cart.TotalCost.String(),
		Loading:   o.cart.IsLoading(),
	})
}

func (o *Observer) OnLoadingStateChanged(isLoading bool) {
	cart := o.cart.Snapshot()
	o.publish(Event{
		Type:      TypeLoading,
		ItemCount: cart.ItemCount,
		TotalCost: cart.TotalCost.String(),
		Loading:   isLoading,
	})
}

func (o *Observer) OnError(err error) {
	cart := o.cart.Snapshot()
	o.publish(Event{
		Type:      TypeError,
		ItemCount: cart.ItemCount,
		TotalCost: cart.TotalCost.String(),
		ErrorKind: domain.KindOf(err).String(),
		Error:     err.Error(),
	})
}

func (o *Observer) publish(ev Event) {
	ev.At = o.now().UTC()

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	select {
	case o.queue <- ev:
	default:
		o.log.Warn("cart event queue full, dropping event", slog.String("type", ev.Type))
	}
}

func (o *Observer) drain() {
	defer close(o.done)
	for ev := range o.queue {
		ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
		if err := o.pub.Publish(ctx, ev); err != nil {
			o.log.Warn("publish cart event failed", slog.String("type", ev.Type), slog.Any("err", err))
		}
		cancel()
	}
}
