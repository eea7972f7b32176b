package grpc

import (
	"context"

	gogrpc "google.golang.org/grpc"
)

// Client calls the cart service over a connection; every call uses the JSON codec.
type Client struct {
	cc gogrpc.ClientConnInterface
}

func NewClient(cc gogrpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in any, opts ...gogrpc.CallOption) (*Cart, error) {
	out := new(Cart)
	opts = append([]gogrpc.CallOption{gogrpc.CallContentSubtype(codecName)}, opts...)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetCart(ctx context.Context, opts ...gogrpc.CallOption) (*Cart, error) {
	return c.invoke(ctx, "GetCart", &GetCartRequest{}, opts...)
}

func (c *Client) Reload(ctx context.Context, opts ...gogrpc.CallOption) (*Cart, error) {
	return c.invoke(ctx, "Reload", &ReloadRequest{}, opts...)
}

func (c *Client) Sort(ctx context.Context, by string, opts ...gogrpc.CallOption) (*Cart, error) {
	return c.invoke(ctx, "Sort", &SortRequest{By: by}, opts...)
}

func (c *Client) RemoveItem(ctx context.Context, id string, opts ...gogrpc.CallOption) (*Cart, error) {
	return c.invoke(ctx, "RemoveItem", &RemoveItemRequest{ID: id}, opts...)
}
