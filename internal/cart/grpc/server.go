package grpc

import (
	"context"

	"github.com/go-faster/errors"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dwikikusuma/fakenft-cart/internal/cart/app"
	"github.com/dwikikusuma/fakenft-cart/internal/cart/domain"
)

const ServiceName = "fakenft.cart.v1.CartAggregator"

type GetCartRequest struct{}

type ReloadRequest struct{}

type SortRequest struct {
	By string `json:"by"`
}

type RemoveItemRequest struct {
	ID string `json:"id"`
}

type CartItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
	Price    string `json:"price"`
	Rating   int    `json:"rating"`
}

type Cart struct {
	Items      []CartItem `json:"items"`
	TotalCost  string     `json:"total_cost"`
	TotalLabel string     `json:"total_label"`
	ItemCount  int        `json:"item_count"`
	Loading    bool       `json:"loading"`
}

type CartServer interface {
	GetCart(ctx context.Context, req *GetCartRequest) (*Cart, error)
	Reload(ctx context.Context, req *ReloadRequest) (*Cart, error)
	Sort(ctx context.Context, req *SortRequest) (*Cart, error)
	RemoveItem(ctx context.Context, req *RemoveItemRequest) (*Cart, error)
}

// unary builds a method handler that decodes Req and runs it through the interceptor chain.
func unary[Req any](method string, call func(CartServer, context.Context, *Req) (*Cart, error)) gogrpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor gogrpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CartServer), ctx, in)
		}
		info := &gogrpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(CartServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var ServiceDesc = gogrpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CartServer)(nil),
	Methods: []gogrpc.MethodDesc{
		{MethodName: "GetCart", Handler: unary("GetCart", CartServer.GetCart)},
		{MethodName: "Reload", Handler: unary("Reload", CartServer.Reload)},
		{MethodName: "Sort", Handler: unary("Sort", CartServer.Sort)},
		{MethodName: "RemoveItem", Handler: unary("RemoveItem", CartServer.RemoveItem)},
	},
	Streams:  []gogrpc.StreamDesc{},
	Metadata: "fakenft/cart/v1/cart",
}

func RegisterCartServer(s gogrpc.ServiceRegistrar, srv CartServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type Aggregator interface {
	Snapshot() domain.Cart
	IsLoading() bool
	Lookup(id string) (domain.CartItem, bool)
	LoadItems(ctx context.Context) error
	Sort(key domain.SortKey)
	RemoveItem(ctx context.Context, item domain.CartItem) error
}

type Server struct {
	agg Aggregator
}

func NewServer(agg Aggregator) *Server {
	return &Server{agg: agg}
}

func (s *Server) GetCart(ctx context.Context, _ *GetCartRequest) (*Cart, error) {
	return s.current(), nil
}

func (s *Server) Reload(ctx context.Context, _ *ReloadRequest) (*Cart, error) {
	if err := s.agg.LoadItems(ctx); err != nil {
		return nil, toStatus(err, "error reloading cart")
	}
	return s.current(), nil
}

func (s *Server) Sort(ctx context.Context, req *SortRequest) (*Cart, error) {
	key, err := domain.ParseSortKey(req.By)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid sort key: %v", err)
	}
	s.agg.Sort(key)
	return s.current(), nil
}

func (s *Server) RemoveItem(ctx context.Context, req *RemoveItemRequest) (*Cart, error) {
	item, ok := s.agg.Lookup(req.ID)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "item %s not in cart", req.ID)
	}
	if err := s.agg.RemoveItem(ctx, item); err != nil {
		return nil, toStatus(err, "error removing item from cart")
	}
	return s.current(), nil
}

func (s *Server) current() *Cart {
	return toProto(s.agg.Snapshot(), s.agg.IsLoading())
}

func toStatus(err error, msg string) error {
	switch {
	case errors.Is(err, app.ErrSuperseded):
		return status.Errorf(codes.Aborted, "%s: %v", msg, err)
	case errors.Is(err, app.ErrClosed):
		return status.Errorf(codes.Unavailable, "%s: %v", msg, err)
	}
	switch domain.KindOf(err) {
	case domain.KindInvalid:
		return status.Errorf(codes.InvalidArgument, "%s: %v", msg, err)
	case domain.KindNotFound:
		return status.Errorf(codes.NotFound, "%s: %v", msg, err)
	case domain.KindNetwork, domain.KindServer:
		return status.Errorf(codes.Unavailable, "%s: %v", msg, err)
	default:
		return status.Errorf(codes.Internal, "%s: %v", msg, err)
	}
}

func toProto(cart domain.Cart, loading bool) *Cart {
	items := make([]CartItem, 0, len(cart.Items))
	for _, it := range cart.Items {
		items = append(items, CartItem{
			ID:       it.ID,
			Name:     it.Name,
			ImageURL: it.ImageURL,
			Price:    it.Price.String(),
			Rating:   it.Rating,
		})
	}
	return &Cart{
		Items:      items,
		TotalCost:  cart.TotalCost.String(),
		TotalLabel: cart.FormatTotal(),
		ItemCount:  cart.ItemCount,
		Loading:    loading,
	}
}
