// Package httpapi exposes the cart aggregator over HTTP and WebSocket.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dwikikusuma/fakenft-cart/internal/cart/domain"
)

// Cart is the part of the aggregator the handlers use.
type Cart interface {
	Snapshot() domain.Cart
	IsLoading() bool
	Lookup(id string) (domain.CartItem, bool)
	LoadItems(ctx context.Context) error
	Sort(key domain.SortKey)
	RemoveItem(ctx context.Context, item domain.CartItem) error
}

type Handler struct {
	cart    Cart
	hub     *Hub
	log     *slog.Logger
	timeout time.Duration
}

func NewHandler(cart Cart, hub *Hub, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		cart:    cart,
		hub:     hub,
		log:     log.With("component", "cart_http"),
		timeout: 15 * time.Second,
	}
}

func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/readyz", func(c *gin.Context) { c.Status(http.StatusOK) })

	v1 := r.Group("/api/v1/cart")
	v1.GET("", h.getCart)
	v1.POST("/reload", h.reload)
	v1.POST("/sort", h.sort)
	v1.DELETE("/items/:id", h.removeItem)
	if h.hub != nil {
		v1.GET("/ws", h.hub.Serve)
	}
}

type itemResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
	Price    string `json:"price"`
	Rating   int    `json:"rating"`
}

type cartResponse struct {
	Items      []itemResponse `json:"items"`
	TotalCost  string         `json:"total_cost"`
	TotalLabel string         `json:"total_label"`
	ItemCount  int            `json:"item_count"`
	Loading    bool           `json:"loading"`
}

func toResponse(cart domain.Cart, loading bool) cartResponse {
	items := make([]itemResponse, 0, len(cart.Items))
	for _, it := range cart.Items {
		items = append(items, itemResponse{
			ID:       it.ID,
			Name:     it.Name,
			ImageURL: it.ImageURL,
			Price:    it.Price.String(),
			Rating:   it.Rating,
		})
	}
	return cartResponse{
		Items:      items,
		TotalCost:  cart.TotalCost.String(),
		TotalLabel: cart.FormatTotal(),
		ItemCount:  cart.ItemCount,
		Loading:    loading,
	}
}

func (h *Handler) respond(c *gin.Context) {
	c.JSON(http.StatusOK, toResponse(h.cart.Snapshot(), h.cart.IsLoading()))
}

func (h *Handler) fail(c *gin.Context, err error) {
	status, code, msg := httpStatusFromError(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("cart request failed",
			slog.String("path", c.FullPath()),
			slog.Int("status", status),
			slog.Any("err", err),
		)
	}
	c.AbortWithStatusJSON(status, errorBody{Code: code, Message: msg})
}

func (h *Handler) getCart(c *gin.Context) {
	h.respond(c)
}

func (h *Handler) reload(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	if err := h.cart.LoadItems(ctx); err != nil {
		h.fail(c, err)
		return
	}
	h.respond(c)
}

func (h *Handler) sort(c *gin.Context) {
	key, err := domain.ParseSortKey(c.Query("by"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.cart.Sort(key)
	h.respond(c)
}

func (h *Handler) removeItem(c *gin.Context) {
	item, ok := h.cart.Lookup(c.Param("id"))
	if !ok {
		h.fail(c, domain.NewError("remove", domain.KindNotFound, domain.ErrItemNotInCart))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	if err := h.cart.RemoveItem(ctx, item); err != nil {
		h.fail(c, err)
		return
	}
	h.respond(c)
}
