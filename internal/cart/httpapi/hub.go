package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/dwikikusuma/fakenft-cart/internal/cart/domain"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	sendBuffer   = 16
)

type Snapshotter interface {
	Snapshot() domain.Cart
	IsLoading() bool
}

type wsMessage struct {
	Type    string        `json:"type"`
	Cart    *cartResponse `json:"cart,omitempty"`
	Loading *bool         `json:"loading,omitempty"`
	Error   *errorBody    `json:"error,omitempty"`
}

type wsClient struct {
	send chan []byte
}

// Hub pushes aggregator notifications to every connected WebSocket client.
// It is meant to be subscribed to the aggregator as an observer.
type Hub struct {
	cart     Snapshotter
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

func NewHub(cart Snapshotter, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		cart: cart,
		log:  log.With("component", "cart_ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*wsClient]struct{}),
	}
}

func (h *Hub) OnContentsChanged() {
	resp := toResponse(h.cart.Snapshot(), h.cart.IsLoading())
	h.broadcast(wsMessage{Type: "cart_updated", Cart: &resp})
}

func (h *Hub) OnLoadingStateChanged(isLoading bool) {
	h.broadcast(wsMessage{Type: "loading", Loading: &isLoading})
}

func (h *Hub) OnError(err error) {
	_, code, msg := httpStatusFromError(err)
	h.broadcast(wsMessage{Type: "error", Error: &errorBody{Code: code, Message: msg}})
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) broadcast(msg wsMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("ws marshal failed", slog.Any("err", err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for cl := range h.clients {
		select {
		case cl.send <- payload:
		default:
			h.log.Warn("dropping slow ws client")
			delete(h.clients, cl)
			close(cl.send)
		}
	}
}

// register adds a client whose queue already holds the current snapshot, so
// every later broadcast lands behind it.
func (h *Hub) register() (*wsClient, error) {
	cl := &wsClient{send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	resp := toResponse(h.cart.Snapshot(), h.cart.IsLoading())
	first, err := json.Marshal(wsMessage{Type: "cart_updated", Cart: &resp})
	if err != nil {
		return nil, err
	}
	cl.send <- first
	h.clients[cl] = struct{}{}
	return cl, nil
}

func (h *Hub) unregister(cl *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		close(cl.send)
	}
}

// Serve upgrades the request and streams cart updates until the client goes away.
func (h *Hub) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", slog.Any("err", err))
		return
	}

	cl, err := h.register()
	if err != nil {
		h.log.Error("ws snapshot failed", slog.Any("err", err))
		_ = conn.Close()
		return
	}
	go h.readLoop(conn, cl)
	h.writeLoop(conn, cl)
}

// readLoop only drains control frames; it unregisters the client once the peer closes.
func (h *Hub) readLoop(conn *websocket.Conn, cl *wsClient) {
	defer h.unregister(cl)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(conn *websocket.Conn, cl *wsClient) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case payload, ok := <-cl.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
