// Package nftapi implements the cart service port against the FakeNFT REST API.
// The cart is stored there as an order holding a list of NFT ids; item details
// come from the NFT endpoint.
package nftapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/dwikikusuma/fakenft-cart/internal/cart/domain"
)

const tokenHeader = "X-Practicum-Mobile-Token"

type Config struct {
	BaseURL       string
	Token         string
	OrderID       string
	Timeout       time.Duration
	MaxConcurrent int
	HTTPClient    *http.Client
	Logger        *slog.Logger
}

type Client struct {
	base          *url.URL
	token         string
	orderID       string
	timeout       time.Duration
	maxConcurrent int
	http          *http.Client
	log           *slog.Logger
}

func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errors.Errorf("invalid nft api base url %q", cfg.BaseURL)
	}
	if cfg.OrderID == "" {
		cfg.OrderID = "1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 10
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		base:          base,
		token:         cfg.Token,
		orderID:       cfg.OrderID,
		timeout:       cfg.Timeout,
		maxConcurrent: cfg.MaxConcurrent,
		http:          cfg.HTTPClient,
		log:           cfg.Logger.With("component", "nftapi"),
	}, nil
}

type orderDTO struct {
	ID   string   `json:"id"`
	NFTs []string `json:"nfts"`
}

type nftDTO struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Images []string        `json:"images"`
	Rating int             `json:"rating"`
	Price  decimal.Decimal `json:"price"`
	Author string          `json:"author"`
}

func (n nftDTO) toDomain() domain.CartItem {
	item := domain.CartItem{
		ID:     n.ID,
		Name:   n.Name,
		Price:  n.Price,
		Rating: n.Rating,
	}
	if len(n.Images) > 0 {
		item.ImageURL = n.Images[0]
	}
	return item
}

func (c *Client) FetchCartItems(ctx context.Context) ([]domain.CartItem, error) {
	order, err := c.getOrder(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]domain.CartItem, len(order.NFTs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxConcurrent)

	for idx, id := range order.NFTs {
		g.Go(func() error {
			var dto nftDTO
			if err := c.do(ctx, "fetch", http.MethodGet, "/api/v1/nft/"+url.PathEscape(id), nil, &dto); err != nil {
				return err
			}
			items[idx] = dto.toDomain()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) RemoveItem(ctx context.Context, id string) error {
	order, err := c.getOrder(ctx)
	if err != nil {
		return err
	}

	remaining := make([]string, 0, len(order.NFTs))
	found := false
	for _, nftID := range order.NFTs {
		if nftID == id && !found {
			found = true
			continue
		}
		remaining = append(remaining, nftID)
	}
	if !found {
		return domain.NewError("remove", domain.KindNotFound, errors.Wrapf(domain.ErrItemNotInCart, "nft %s", id))
	}

	form := url.Values{}
	if len(remaining) == 0 {
		form.Set("nfts", "null")
	} else {
		form.Set("nfts", strings.Join(remaining, ","))
	}
	if err := c.do(ctx, "remove", http.MethodPut, c.orderPath(), form, nil); err != nil {
		return err
	}
	c.log.Debug("nft removed from order", slog.String("id", id), slog.Int("remaining", len(remaining)))
	return nil
}

func (c *Client) orderPath() string {
	return "/api/v1/orders/" + url.PathEscape(c.orderID)
}

func (c *Client) getOrder(ctx context.Context) (orderDTO, error) {
	var order orderDTO
	err := c.do(ctx, "order", http.MethodGet, c.orderPath(), nil, &order)
	return order, err
}

func (c *Client) do(ctx context.Context, op, method, path string, form url.Values, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return domain.NewError(op, domain.KindInvalid, err)
	}
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if c.token != "" {
		req.Header.Set(tokenHeader, c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.NewError(op, domain.KindNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Warn("nft api error",
			slog.String("op", op),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
		)
		return domain.NewError(op, domain.KindFromStatus(resp.StatusCode),
			errors.Errorf("%s %s: %d %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg))))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.NewError(op, domain.KindServer, errors.Wrap(err, "decode response"))
	}
	return nil
}
