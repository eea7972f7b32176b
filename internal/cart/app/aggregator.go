package app

import (
	"context"
	"log/slog"
	"sync"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/dwikikusuma/fakenft-cart/internal/cart/domain"
)

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed     = errors.New("cart aggregator closed")
	// ErrSuperseded is returned by a load whose response was replaced by a newer load.
	ErrSuperseded = errors.New("cart load superseded by a newer request")
)

// Aggregator keeps the in-memory mirror of the remote cart and notifies
// subscribers whenever it changes.
type Aggregator struct {
	svc CartService
	log *slog.Logger

	// deliver serializes a state change together with its notifications.
	deliver sync.Mutex

	mu        sync.Mutex
	items     []domain.CartItem
	loadGen   uint64
	loading   int
	removing  map[string]struct{}
	observers subscribers
	closed    bool

	wg sync.WaitGroup
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLogger sets the logger used for load and removal diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(a *Aggregator) {
		if log != nil {
			a.log = log
		}
	}
}

// NewAggregator creates an empty, idle aggregator over svc.
func NewAggregator(svc CartService, opts ...Option) *Aggregator {
	a := &Aggregator{
		svc:      svc,
		log:      slog.Default(),
		removing: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.With("component", "cart_aggregator")
	return a
}

// Subscribe registers obs for every future notification. The returned func
// removes it again and is safe to call more than once.
func (a *Aggregator) Subscribe(obs Observer) (unsubscribe func()) {
	a.mu.Lock()
	id := a.observers.add(obs)
	a.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			a.observers.remove(id)
			a.mu.Unlock()
		})
	}
}

func (a *Aggregator) Items() []domain.CartItem {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.CartItem, len(a.items))
	copy(out, a.items)
	return out
}

func (a *Aggregator) TotalCost() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return domain.TotalCost(a.items)
}

func (a *Aggregator) ItemCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.items)
}

func (a *Aggregator) Snapshot() domain.Cart {
	a.mu.Lock()
	defer a.mu.Unlock()
	return domain.NewCart(a.items)
}

func (a *Aggregator) IsLoading() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loading > 0
}

// Lookup returns the current item with id, if any.
func (a *Aggregator) Lookup(id string) (domain.CartItem, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if i := indexOf(a.items, id); i >= 0 {
		return a.items[i], true
	}
	return domain.CartItem{}, false
}

// LoadItems replaces the list with the service's current contents. When a newer
// load was issued while this one was outstanding, the response is dropped and
// ErrSuperseded is returned.
func (a *Aggregator) LoadItems(ctx context.Context) error {
	a.deliver.Lock()
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		a.deliver.Unlock()
		return ErrClosed
	}
	a.loadGen++
	gen := a.loadGen
	a.loading++
	started := a.loading == 1
	obs := a.observers.snapshot()
	a.mu.Unlock()
	if started {
		for _, o := range obs {
			o.OnLoadingStateChanged(true)
		}
	}
	a.deliver.Unlock()

	items, err := a.svc.FetchCartItems(ctx)
	if err == nil {
		err = domain.ValidateItems(items)
	}
	if err != nil {
		err = classify("load", err)
	}

	a.deliver.Lock()
	defer a.deliver.Unlock()

	a.mu.Lock()
	a.loading--
	stopped := a.loading == 0
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	stale := gen != a.loadGen
	if err == nil && !stale {
		a.items = append([]domain.CartItem(nil), items...)
	}
	count := len(a.items)
	obs = a.observers.snapshot()
	a.mu.Unlock()

	if stopped {
		for _, o := range obs {
			o.OnLoadingStateChanged(false)
		}
	}

	switch {
	case stale:
		a.log.Debug("dropping stale cart load", slog.Uint64("gen", gen))
		return ErrSuperseded
	case err != nil:
		a.log.Warn("cart load failed", slog.Any("err", err))
		for _, o := range obs {
			o.OnError(err)
		}
		return err
	}

	a.log.Debug("cart loaded", slog.Int("items", count))
	for _, o := range obs {
		o.OnContentsChanged()
	}
	return nil
}

// Sort reorders the list in place. Unknown keys leave the list and observers untouched.
func (a *Aggregator) Sort(key domain.SortKey) {
	a.deliver.Lock()
	defer a.deliver.Unlock()

	a.mu.Lock()
	if a.closed || !domain.SortItems(a.items, key) {
		a.mu.Unlock()
		return
	}
	obs := a.observers.snapshot()
	a.mu.Unlock()

	for _, o := range obs {
		o.OnContentsChanged()
	}
}

// RemoveItem deletes item from the remote cart and then from the list. A call
// for an id whose removal is still outstanding returns nil without doing anything.
func (a *Aggregator) RemoveItem(ctx context.Context, item domain.CartItem) error {
	id := item.ID

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	if _, pending := a.removing[id]; pending {
		a.mu.Unlock()
		return nil
	}
	a.removing[id] = struct{}{}
	a.mu.Unlock()

	err := a.svc.RemoveItem(ctx, id)
	if err != nil {
		err = classify("remove", err)
	}

	a.deliver.Lock()
	defer a.deliver.Unlock()

	a.mu.Lock()
	delete(a.removing, id)
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	if err == nil {
		if i := indexOf(a.items, id); i >= 0 {
			a.items = append(a.items[:i:i], a.items[i+1:]...)
		}
	}
	obs := a.observers.snapshot()
	a.mu.Unlock()

	if err != nil {
		a.log.Warn("cart item removal failed", slog.String("id", id), slog.Any("err", err))
		for _, o := range obs {
			o.OnError(err)
		}
		return err
	}

	for _, o := range obs {
		o.OnContentsChanged()
	}
	return nil
}

// LoadItemsAsync runs LoadItems in the background; failures reach observers only.
func (a *Aggregator) LoadItemsAsync(ctx context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.LoadItems(ctx)
	}()
}

// RemoveItemAsync runs RemoveItem in the background.
func (a *Aggregator) RemoveItemAsync(ctx context.Context, item domain.CartItem) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.RemoveItem(ctx, item)
	}()
}

// Wait blocks until every async call has returned.
func (a *Aggregator) Wait() {
	a.wg.Wait()
}

// Close detaches the aggregator: outstanding completions are dropped without
// notifying and later calls fail with ErrClosed.
func (a *Aggregator) Close() {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
}

func indexOf(items []domain.CartItem, id string) int {
	for i, it := range items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func classify(op string, err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	kind := domain.KindUnknown
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		kind = domain.KindNetwork
	}
	return domain.NewError(op, kind, err)
}
