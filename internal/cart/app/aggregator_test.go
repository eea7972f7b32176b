package app

import (
	"context"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/dwikikusuma/fakenft-cart/internal/cart/domain"
)

type fakeService struct {
	mu      sync.Mutex
	items   []domain.CartItem
	fetchFn func(ctx context.Context) ([]domain.CartItem, error)
	err     error
	removed []string
	remove  func(ctx context.Context, id string) error
}

func (f *fakeService) FetchCartItems(ctx context.Context) ([]domain.CartItem, error) {
	if f.fetchFn != nil {
		return f.fetchFn(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.CartItem(nil), f.items...), nil
}

func (f *fakeService) RemoveItem(ctx context.Context, id string) error {
	if f.remove != nil {
		if err := f.remove(ctx, id); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, id)
	return nil
}

type recorder struct {
	mu       sync.Mutex
	changed  int
	loading  []bool
	errs     []error
	onChange func()
}

func (r *recorder) OnContentsChanged() {
	r.mu.Lock()
	r.changed++
	fn := r.onChange
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (r *recorder) OnLoadingStateChanged(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loading = append(r.loading, v)
}

func (r *recorder) OnError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.changed, len(r.errs)
}

func nft(id, name, price string, rating int) domain.CartItem {
	return domain.CartItem{ID: id, Name: name, Price: decimal.RequireFromString(price), Rating: rating}
}

func itemIDs(items []domain.CartItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func sameIDs(a []domain.CartItem, want ...string) bool {
	got := itemIDs(a)
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func loaded(t *testing.T, items ...domain.CartItem) (*Aggregator, *fakeService, *recorder) {
	t.Helper()
	svc := &fakeService{items: items}
	agg := NewAggregator(svc)
	rec := &recorder{}
	agg.Subscribe(rec)
	if err := agg.LoadItems(context.Background()); err != nil {
		t.Fatalf("LoadItems failed: %v", err)
	}
	return agg, svc, rec
}

func TestLoadItems(t *testing.T) {
	t.Run("totals after load", func(t *testing.T) {
		agg, _, rec := loaded(t, nft("1", "a", "2.0", 0), nft("2", "b", "3.5", 0))
		if !agg.TotalCost().Equal(decimal.RequireFromString("5.5")) {
			t.Fatalf("total: got %s", agg.TotalCost())
		}
		if agg.ItemCount() != 2 {
			t.Fatalf("count: got %d", agg.ItemCount())
		}
		changed, errs := rec.counts()
		if changed != 1 || errs != 0 {
			t.Fatalf("expected 1 change 0 errors, got %d/%d", changed, errs)
		}
		if len(rec.loading) != 2 || !rec.loading[0] || rec.loading[1] {
			t.Fatalf("expected loading [true false], got %v", rec.loading)
		}
		if agg.IsLoading() {
			t.Fatal("still loading")
		}
	})

	t.Run("empty cart", func(t *testing.T) {
		agg, _, _ := loaded(t)
		if !agg.TotalCost().IsZero() || agg.ItemCount() != 0 {
			t.Fatalf("got total=%s count=%d", agg.TotalCost(), agg.ItemCount())
		}
	})

	t.Run("failure keeps previous list", func(t *testing.T) {
		agg, svc, rec := loaded(t, nft("1", "a", "1", 0), nft("2", "b", "1", 0), nft("3", "c", "1", 0))
		svc.err = domain.NewError("fetch", domain.KindServer, errors.New("boom"))

		err := agg.LoadItems(context.Background())
		if domain.KindOf(err) != domain.KindServer {
			t.Fatalf("expected server error, got %v", err)
		}
		if agg.ItemCount() != 3 {
			t.Fatalf("count: got %d", agg.ItemCount())
		}
		changed, errs := rec.counts()
		if changed != 1 || errs != 1 {
			t.Fatalf("expected 1 change 1 error, got %d/%d", changed, errs)
		}
	})

	t.Run("unclassified failure gets unknown kind", func(t *testing.T) {
		svc := &fakeService{err: errors.New("socket closed")}
		agg := NewAggregator(svc)
		err := agg.LoadItems(context.Background())
		var de *domain.Error
		if !errors.As(err, &de) || de.Kind != domain.KindUnknown || de.Op != "load" {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("invalid payload rejected", func(t *testing.T) {
		agg, svc, rec := loaded(t, nft("1", "a", "1", 0))
		svc.items = []domain.CartItem{nft("2", "b", "1", 0), nft("2", "c", "1", 0)}

		err := agg.LoadItems(context.Background())
		if !errors.Is(err, domain.ErrDuplicateID) {
			t.Fatalf("expected duplicate id error, got %v", err)
		}
		if !sameIDs(agg.Items(), "1") {
			t.Fatalf("list changed: %v", itemIDs(agg.Items()))
		}
		if _, errs := rec.counts(); errs != 1 {
			t.Fatalf("expected 1 error, got %d", errs)
		}
	})

	t.Run("observer sees post-load state", func(t *testing.T) {
		svc := &fakeService{items: []domain.CartItem{nft("1", "a", "1", 0), nft("2", "b", "2", 0)}}
		agg := NewAggregator(svc)
		var seen int
		agg.Subscribe(ObserverFuncs{ContentsChanged: func() { seen = agg.ItemCount() }})
		if err := agg.LoadItems(context.Background()); err != nil {
			t.Fatal(err)
		}
		if seen != 2 {
			t.Fatalf("observer saw %d items", seen)
		}
	})
}

func TestLoadItems_StaleResponseDropped(t *testing.T) {
	first := make(chan struct{})
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex

	svc := &fakeService{}
	svc.fetchFn = func(ctx context.Context) ([]domain.CartItem, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			close(first)
			<-release
			return []domain.CartItem{nft("old", "old", "1", 0)}, nil
		}
		return []domain.CartItem{nft("new", "new", "1", 0)}, nil
	}
	agg := NewAggregator(svc)
	rec := &recorder{}
	agg.Subscribe(rec)

	errc := make(chan error, 1)
	go func() { errc <- agg.LoadItems(context.Background()) }()
	<-first

	if err := agg.LoadItems(context.Background()); err != nil {
		t.Fatalf("second load failed: %v", err)
	}
	close(release)

	if err := <-errc; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}
	if !sameIDs(agg.Items(), "new") {
		t.Fatalf("expected newest list, got %v", itemIDs(agg.Items()))
	}
	changed, errs := rec.counts()
	if changed != 1 || errs != 0 {
		t.Fatalf("expected 1 change 0 errors, got %d/%d", changed, errs)
	}
	if len(rec.loading) != 2 || !rec.loading[0] || rec.loading[1] {
		t.Fatalf("expected one loading burst, got %v", rec.loading)
	}
}

func TestSort(t *testing.T) {
	t.Run("by price twice is idempotent", func(t *testing.T) {
		agg, _, rec := loaded(t, nft("1", "a", "3", 0), nft("2", "b", "1", 0), nft("3", "c", "2", 0))
		agg.Sort(domain.ByPrice)
		if !sameIDs(agg.Items(), "2", "3", "1") {
			t.Fatalf("got %v", itemIDs(agg.Items()))
		}
		agg.Sort(domain.ByPrice)
		if !sameIDs(agg.Items(), "2", "3", "1") {
			t.Fatalf("second sort: got %v", itemIDs(agg.Items()))
		}
		if changed, _ := rec.counts(); changed != 3 {
			t.Fatalf("expected 3 changes, got %d", changed)
		}
	})

	t.Run("by name codepoint order", func(t *testing.T) {
		agg, _, _ := loaded(t, nft("1", "B", "1", 0), nft("2", "A", "1", 0), nft("3", "a", "1", 0))
		agg.Sort(domain.ByName)
		var got []string
		for _, it := range agg.Items() {
			got = append(got, it.Name)
		}
		if len(got) != 3 || got[0] != "A" || got[1] != "B" || got[2] != "a" {
			t.Fatalf("got %v", got)
		}
	})

	t.Run("by rating", func(t *testing.T) {
		agg, _, _ := loaded(t, nft("1", "a", "1", 1), nft("2", "b", "1", 4), nft("3", "c", "1", 1))
		agg.Sort(domain.ByRating)
		if !sameIDs(agg.Items(), "2", "1", "3") {
			t.Fatalf("got %v", itemIDs(agg.Items()))
		}
	})

	t.Run("unknown key does not notify", func(t *testing.T) {
		agg, _, rec := loaded(t, nft("1", "a", "1", 0))
		agg.Sort(domain.SortKey(0))
		if changed, _ := rec.counts(); changed != 1 {
			t.Fatalf("expected only the load notification, got %d", changed)
		}
	})
}

func TestRemoveItem(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		agg, svc, rec := loaded(t, nft("1", "a", "2", 0), nft("2", "b", "3.5", 0))
		if err := agg.RemoveItem(context.Background(), nft("1", "a", "2", 0)); err != nil {
			t.Fatal(err)
		}
		if !sameIDs(agg.Items(), "2") || agg.ItemCount() != 1 {
			t.Fatalf("got %v", itemIDs(agg.Items()))
		}
		if !agg.TotalCost().Equal(decimal.RequireFromString("3.5")) {
			t.Fatalf("total: got %s", agg.TotalCost())
		}
		if len(svc.removed) != 1 || svc.removed[0] != "1" {
			t.Fatalf("service saw %v", svc.removed)
		}
		if changed, _ := rec.counts(); changed != 2 {
			t.Fatalf("expected 2 changes, got %d", changed)
		}
	})

	t.Run("failure keeps list", func(t *testing.T) {
		agg, svc, rec := loaded(t, nft("1", "a", "2", 0))
		svc.remove = func(context.Context, string) error {
			return domain.NewError("remove", domain.KindNotFound, domain.ErrItemNotInCart)
		}
		err := agg.RemoveItem(context.Background(), nft("1", "a", "2", 0))
		if domain.KindOf(err) != domain.KindNotFound {
			t.Fatalf("expected not found, got %v", err)
		}
		if agg.ItemCount() != 1 {
			t.Fatalf("count: got %d", agg.ItemCount())
		}
		changed, errs := rec.counts()
		if changed != 1 || errs != 1 {
			t.Fatalf("expected 1 change 1 error, got %d/%d", changed, errs)
		}
	})

	t.Run("duplicate while pending is a no-op", func(t *testing.T) {
		agg, svc, rec := loaded(t, nft("1", "a", "2", 0), nft("2", "b", "1", 0))
		entered := make(chan struct{})
		release := make(chan struct{})
		svc.remove = func(ctx context.Context, id string) error {
			close(entered)
			<-release
			return nil
		}

		errc := make(chan error, 1)
		go func() { errc <- agg.RemoveItem(context.Background(), nft("1", "a", "2", 0)) }()
		<-entered

		if err := agg.RemoveItem(context.Background(), nft("1", "a", "2", 0)); err != nil {
			t.Fatalf("duplicate returned %v", err)
		}
		close(release)
		if err := <-errc; err != nil {
			t.Fatal(err)
		}

		if agg.ItemCount() != 1 || len(svc.removed) != 1 {
			t.Fatalf("count=%d removed=%v", agg.ItemCount(), svc.removed)
		}
		changed, errs := rec.counts()
		if changed != 2 || errs != 0 {
			t.Fatalf("expected 2 changes 0 errors, got %d/%d", changed, errs)
		}
	})
}

func TestSubscribe(t *testing.T) {
	svc := &fakeService{items: []domain.CartItem{nft("1", "a", "1", 0)}}
	agg := NewAggregator(svc)
	first, second := &recorder{}, &recorder{}
	agg.Subscribe(first)
	unsub := agg.Subscribe(second)

	if err := agg.LoadItems(context.Background()); err != nil {
		t.Fatal(err)
	}
	unsub()
	unsub()
	agg.Sort(domain.ByName)

	if c, _ := first.counts(); c != 2 {
		t.Fatalf("first observer: %d changes", c)
	}
	if c, _ := second.counts(); c != 1 {
		t.Fatalf("second observer: %d changes", c)
	}
}

func TestClose(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	svc := &fakeService{}
	svc.fetchFn = func(ctx context.Context) ([]domain.CartItem, error) {
		close(entered)
		<-release
		return []domain.CartItem{nft("1", "a", "1", 0)}, nil
	}
	agg := NewAggregator(svc)
	rec := &recorder{}
	agg.Subscribe(rec)

	agg.LoadItemsAsync(context.Background())
	<-entered
	agg.Close()
	close(release)
	agg.Wait()

	if agg.ItemCount() != 0 {
		t.Fatalf("closed aggregator applied a load")
	}
	if changed, errs := rec.counts(); changed != 0 || errs != 0 {
		t.Fatalf("closed aggregator notified: %d/%d", changed, errs)
	}
	if err := agg.LoadItems(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := agg.RemoveItem(context.Background(), nft("1", "a", "1", 0)); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
