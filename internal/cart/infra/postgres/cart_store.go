package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/dwikikusuma/fakenft-cart/internal/cart/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS cart_items (
	order_id   TEXT        NOT NULL,
	nft_id     UUID        NOT NULL,
	name       TEXT        NOT NULL,
	image_url  TEXT        NOT NULL DEFAULT '',
	price      NUMERIC     NOT NULL CHECK (price >= 0),
	rating     INTEGER     NOT NULL DEFAULT 0,
	added_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (order_id, nft_id)
)`

// CartStore serves one order's cart out of the cart_items table.
type CartStore struct {
	db      *sql.DB
	orderID string
}

func NewCartStore(db *sql.DB, orderID string) *CartStore {
	return &CartStore{db: db, orderID: orderID}
}

func (s *CartStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return classify("schema", err)
	}
	return nil
}

func (s *CartStore) FetchCartItems(ctx context.Context) ([]domain.CartItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT nft_id, name, image_url, price, rating
		FROM cart_items
		WHERE order_id = $1
		ORDER BY added_at, nft_id`, s.orderID)
	if err != nil {
		return nil, classify("fetch", err)
	}
	defer rows.Close()

	var items []domain.CartItem
	for rows.Next() {
		var (
			id    uuid.UUID
			item  domain.CartItem
			price decimal.Decimal
		)
		if err := rows.Scan(&id, &item.Name, &item.ImageURL, &price, &item.Rating); err != nil {
			return nil, classify("fetch", err)
		}
		item.ID = id.String()
		item.Price = price
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("fetch", err)
	}
	return items, nil
}

func (s *CartStore) RemoveItem(ctx context.Context, id string) error {
	nftUUID, err := uuid.Parse(id)
	if err != nil {
		return domain.NewError("remove", domain.KindInvalid, err)
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE order_id = $1 AND nft_id = $2`, s.orderID, nftUUID)
	if err != nil {
		return classify("remove", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify("remove", err)
	}
	if n == 0 {
		return domain.NewError("remove", domain.KindNotFound, errors.Wrapf(domain.ErrItemNotInCart, "nft %s", id))
	}
	return nil
}

// AddItem inserts or refreshes an item; used to seed a cart.
func (s *CartStore) AddItem(ctx context.Context, item domain.CartItem) error {
	nftUUID, err := uuid.Parse(item.ID)
	if err != nil {
		return domain.NewError("add", domain.KindInvalid, err)
	}
	if item.Price.IsNegative() {
		return domain.NewError("add", domain.KindInvalid, domain.ErrNegativePrice)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cart_items (order_id, nft_id, name, image_url, price, rating)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (order_id, nft_id) DO UPDATE
		SET name = EXCLUDED.name,
		    image_url = EXCLUDED.image_url,
		    price = EXCLUDED.price,
		    rating = EXCLUDED.rating`,
		s.orderID, nftUUID, item.Name, item.ImageURL, item.Price, item.Rating)
	if err != nil {
		return classify("add", err)
	}
	return nil
}

func classify(op string, err error) error {
	var (
		connErr *pgconn.ConnectError
		pgErr   *pgconn.PgError
	)
	switch {
	case errors.As(err, &connErr),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return domain.NewError(op, domain.KindNetwork, err)
	case errors.As(err, &pgErr) && pgErr.Code == "23514":
		return domain.NewError(op, domain.KindInvalid, err)
	default:
		return domain.NewError(op, domain.KindServer, err)
	}
}
