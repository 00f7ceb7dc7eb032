package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"github.com/MrCodeEU/LiveCheck/internal/liveness"
)

// Client talks to a running daemon over its unix socket
type Client struct {
	conn      net.Conn
	enc       *json.Encoder
	dec       *json.Decoder
	sessionID string
}

// Dial connects to the daemon socket
func Dial(ctx context.Context, socketPath string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon at %s: %w", socketPath, err)
	}
	return NewClient(conn), nil
}

// NewClient wraps an established connection
func NewClient(conn net.Conn) *Client {
	return &Client{
		conn: conn,
		enc:  json.NewEncoder(conn),
		dec:  json.NewDecoder(conn),
	}
}

// Close closes the connection; the daemon discards the session
func (c *Client) Close() error {
	return c.conn.Close()
}

// SessionID returns the ID of the session started on this connection
func (c *Client) SessionID() string {
	return c.sessionID
}

// Start opens a session for subject
func (c *Client) Start(subject string) (liveness.Status, error) {
	resp, err := c.Do(Request{Type: RequestStart, Subject: subject})
	if err != nil {
		return liveness.Status{}, err
	}
	c.sessionID = resp.SessionID
	return status(resp), nil
}

// Frame submits one frame
func (c *Client) Frame(req Request) (liveness.Status, error) {
	req.Type = RequestFrame
	resp, err := c.Do(req)
	return status(resp), err
}

// Cancel ends the session
func (c *Client) Cancel() (liveness.Status, error) {
	resp, err := c.Do(Request{Type: RequestCancel})
	return status(resp), err
}

// Do sends a request and waits for its response. A response carrying an
// error message is returned along with that error.
func (c *Client) Do(req Request) (*Response, error) {
	if err := c.enc.Encode(req); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	var resp Response
	if err := c.dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.Error != "" {
		return &resp, errors.New(resp.Error)
	}
	return &resp, nil
}

func status(resp *Response) liveness.Status {
	if resp == nil || resp.Status == nil {
		return liveness.Status{}
	}
	return *resp.Status
}
