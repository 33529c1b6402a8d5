// Package rpcsdk implements trezor.SDK against a device bridge
// process speaking JSON-RPC 2.0.
package rpcsdk

import (
	"context"
	"fmt"
	"time"

	"github.com/btccom/hwsigner/trezor"
	"github.com/pkg/errors"
	"github.com/ybbus/jsonrpc"
)

// BridgeError is a JSON-RPC error returned by the bridge.
type BridgeError struct {
	Method  string
	Code    int
	Message string
}

func (e *BridgeError) Error() string {
	return fmt.Sprintf("bridge error on %s (code %d): %s", e.Method, e.Code, e.Message)
}

type caller interface {
	Call(method string, params ...interface{}) (*jsonrpc.RPCResponse, error)
}

// Client drives a device through the bridge listening on Endpoint.
type Client struct {
	Endpoint string

	rpc caller
}

var _ trezor.SDK = (*Client)(nil)

// NewClient returns a client of the bridge at endpoint.
func NewClient(endpoint string) *Client {
	return &Client{
		Endpoint: endpoint,
		rpc:      jsonrpc.NewRPCClient(endpoint),
	}
}

type featuresResponse struct {
	Success bool `json:"success"`
	Payload struct {
		trezor.Features
		Error string `json:"error,omitempty"`
		Code  string `json:"code,omitempty"`
	} `json:"payload"`
}

// GetFeatures implements trezor.SDK.
func (c *Client) GetFeatures(ctx context.Context) (*trezor.Features, error) {
	resp := &featuresResponse{}
	if err := c.call(ctx, resp, trezor.MethodGetFeatures); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, errors.Errorf("device refused to report its features: %s", resp.Payload.Error)
	}

	features := resp.Payload.Features
	return &features, nil
}

// GetPublicKey implements trezor.SDK.
func (c *Client) GetPublicKey(ctx context.Context, req *trezor.PublicKeyRequest) (*trezor.PublicKeyResponse, error) {
	resp := &trezor.PublicKeyResponse{}
	if err := c.call(ctx, resp, trezor.MethodGetPublicKey, req); err != nil {
		return nil, err
	}
	return resp, nil
}

// SignTransaction implements trezor.SDK.
func (c *Client) SignTransaction(ctx context.Context, req *trezor.SigningRequest) (*trezor.SigningResponse, error) {
	resp := &trezor.SigningResponse{}
	if err := c.call(ctx, resp, trezor.MethodSignTransaction, req); err != nil {
		return nil, err
	}
	return resp, nil
}

// call runs method on the bridge and decodes its result into out.
// ctx is only checked before the request is sent: once the bridge
// holds the request the device may be prompting the user, so the
// call waits for its answer and the session stays busy meanwhile.
func (c *Client) call(ctx context.Context, out interface{}, method string, params ...interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.rpc.Call(method, params...)
	if ctx.Err() != nil {
		log.Debugf("%s outlived its context, answered after %v", method, time.Since(start))
	} else {
		log.Tracef("%s answered in %v", method, time.Since(start))
	}

	if err != nil {
		return errors.Wrapf(err, "%s call to %s failed", method, c.Endpoint)
	}
	if resp == nil {
		return errors.Errorf("%s call returned no response", method)
	}
	if resp.Error != nil {
		return &BridgeError{
			Method:  method,
			Code:    resp.Error.Code,
			Message: resp.Error.Message,
		}
	}
	if err := resp.GetObject(out); err != nil {
		return errors.Wrapf(err, "cannot decode %s result", method)
	}
	return nil
}
