// Package client is a minimal JSON-RPC 2.0 client over HTTP POST.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	rpctypes "github.com/neonotify/neonotify/rpc/jsonrpc/types"
)

// Client sends JSON-RPC requests to a single remote endpoint.
//
// Client is safe for concurrent use by multiple goroutines.
type Client struct {
	address string
	client  *http.Client

	mtx       sync.Mutex
	nextReqID int
}

// New returns a client for remote, which must be an http or https URL.
func New(remote string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(remote)
	if err != nil {
		return nil, fmt.Errorf("invalid remote %q: %w", remote, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid remote %q: unsupported scheme %q", remote, u.Scheme)
	}
	return &Client{
		address: u.String(),
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Call invokes method with positional params and decodes the result into
// result, which may be nil.
func (c *Client) Call(ctx context.Context, method string, result interface{}, params ...interface{}) error {
	id := c.nextRequestID()

	request, err := rpctypes.ParamsToRequest(id, method, params...)
	if err != nil {
		return fmt.Errorf("failed to encode params: %w", err)
	}
	requestBytes, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.address, bytes.NewReader(requestBytes))
	if err != nil {
		return fmt.Errorf("request setup failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post failed: %w", err)
	}
	defer resp.Body.Close()

	responseBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK && len(responseBytes) == 0 {
		return fmt.Errorf("server responded with status %s", resp.Status)
	}

	return unmarshalResponseBytes(responseBytes, id, result)
}

func (c *Client) nextRequestID() rpctypes.JSONRPCIntID {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.nextReqID++
	return rpctypes.JSONRPCIntID(c.nextReqID)
}
