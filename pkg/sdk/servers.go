package sdk

import (
	"context"
	"fmt"
	"net/url"
)

func (c *Client) CreateServer(ctx context.Context, req CreateServerRequest) (*CreateServerResponse, error) {
	var result CreateServerResponse
	if err := c.post(ctx, "/servers/create", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) StartServer(ctx context.Context, id string) error {
	return c.post(ctx, fmt.Sprintf("/servers/%s/start", url.PathEscape(id)), nil, nil)
}

func (c *Client) StopServer(ctx context.Context, id string) error {
	return c.post(ctx, fmt.Sprintf("/servers/%s/stop", url.PathEscape(id)), nil, nil)
}

func (c *Client) DeleteServer(ctx context.Context, id string) error {
	return c.delete(ctx, fmt.Sprintf("/servers/%s", url.PathEscape(id)))
}
