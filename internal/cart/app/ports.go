package app

import (
	"context"

	"github.com/dwikikusuma/fakenft-cart/internal/cart/domain"
)

// CartService is the remote owner of the cart contents.
type CartService interface {
	FetchCartItems(ctx context.Context) ([]domain.CartItem, error)
	RemoveItem(ctx context.Context, id string) error
}

// Observer receives aggregator notifications. Callbacks are delivered one at a
// time and must not call the aggregator's mutating methods synchronously.
type Observer interface {
	OnContentsChanged()
	OnLoadingStateChanged(isLoading bool)
	OnError(err error)
}
