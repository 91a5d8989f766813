package daemon

import (
	"context"
	"encoding/json"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/alucardeht/typegate/pkg/protocol"
)

// Client talks to a running daemon over its unix socket.
type Client struct {
	conn *jsonrpc2.Conn
}

type clientHandler struct{}

func (clientHandler) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
}

func Dial(ctx context.Context, socketPath string) (*Client, error) {
	conn, err := NewSocketConnector(socketPath).Connect()
	if err != nil {
		return nil, err
	}

	stream := jsonrpc2.NewBufferedStream(conn, jsonrpc2.PlainObjectCodec{})
	return &Client{conn: jsonrpc2.NewConn(ctx, stream, clientHandler{})}, nil
}

func (c *Client) Health(ctx context.Context) (*protocol.HealthResult, error) {
	var result protocol.HealthResult
	if err := c.conn.Call(ctx, protocol.MethodHealth, struct{}{}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) PutSpec(ctx context.Context, name, source, description string) (*protocol.SpecPutResult, error) {
	var result protocol.SpecPutResult
	params := protocol.SpecPutParams{Name: name, Source: source, Description: description}
	if err := c.conn.Call(ctx, protocol.MethodSpecPut, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) GetSpec(ctx context.Context, name string) (*protocol.SpecInfo, error) {
	var result protocol.SpecInfo
	if err := c.conn.Call(ctx, protocol.MethodSpecGet, protocol.SpecGetParams{Name: name}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ListSpecs(ctx context.Context) (*protocol.SpecListResult, error) {
	var result protocol.SpecListResult
	if err := c.conn.Call(ctx, protocol.MethodSpecList, struct{}{}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) DeleteSpec(ctx context.Context, name string) (*protocol.SpecDeleteResult, error) {
	var result protocol.SpecDeleteResult
	if err := c.conn.Call(ctx, protocol.MethodSpecDelete, protocol.SpecDeleteParams{Name: name}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CheckValue checks an inline JSON value against a stored spec (by
// name) or an inline expression (by source).
func (c *Client) CheckValue(ctx context.Context, name, source string, value json.RawMessage, options map[string]string) (*protocol.CheckResult, error) {
	var result protocol.CheckResult
	params := protocol.CheckValueParams{Name: name, Source: source, Value: value, Options: options}
	if err := c.conn.Call(ctx, protocol.MethodCheckValue, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) CheckFile(ctx context.Context, path, name string) (*protocol.CheckResult, error) {
	var result protocol.CheckResult
	params := protocol.CheckFileParams{Path: path, Name: name}
	if err := c.conn.Call(ctx, protocol.MethodCheckFile, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) RecentViolations(ctx context.Context, name string, limit int) (*protocol.ViolationsRecentResult, error) {
	var result protocol.ViolationsRecentResult
	params := protocol.ViolationsRecentParams{Name: name, Limit: limit}
	if err := c.conn.Call(ctx, protocol.MethodViolationsRecent, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
