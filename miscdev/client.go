package miscdev

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"
)

// Client is a connection to a published interface. Requests are issued
// one at a time.
type Client struct {
	nc     net.Conn
	framer *framer

	mu     sync.Mutex
	nextID uint32
}

// Dial connects to the interface socket at path.
func Dial(ctx context.Context, path string) (*Client, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", path, err)
	}
	return &Client{nc: nc, framer: newFramer(nc)}, nil
}

// Close closes the connection. Sessions still open are released by the
// server.
func (c *Client) Close() error {
	return c.nc.Close()
}

// Open opens a session and returns its identifier.
func (c *Client) Open(ctx context.Context) (string, error) {
	resp, err := c.Do(ctx, &Request{Op: OpOpen})
	if err != nil {
		return "", err
	}
	if err := resp.Err(); err != nil {
		return "", err
	}
	return resp.Session, nil
}

// Release closes session.
func (c *Client) Release(ctx context.Context, session string) error {
	resp, err := c.Do(ctx, &Request{Op: OpClose, Session: session})
	if err != nil {
		return err
	}
	return resp.Err()
}

// Ioctl sends a numeric command on session.
func (c *Client) Ioctl(ctx context.Context, session string, cmd uint32, arg int64) (*Response, error) {
	return c.Do(ctx, &Request{Op: OpIoctl, Session: session, Cmd: cmd, Arg: arg})
}

// Command sends a named command on session.
func (c *Client) Command(ctx context.Context, session, kind, operand string) (*Response, error) {
	return c.Do(ctx, &Request{Op: OpCommand, Session: session, Kind: kind, Operand: operand})
}

// Do sends req and waits for its response. The request ID is assigned by
// the client. Transport failures are returned as errors; command failures
// are reported in the response status.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	req.ID = c.nextID

	data, err := EncodeRequest(req)
	if err != nil {
		return nil, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		c.nc.SetDeadline(deadline)
		defer c.nc.SetDeadline(time.Time{})
	}
	stop := context.AfterFunc(ctx, func() {
		c.nc.SetDeadline(time.Now())
	})
	defer stop()

	if err := c.framer.writeFrame(data); err != nil {
		return nil, ctxErr(ctx, err)
	}
	out, err := c.framer.readFrame()
	if err != nil {
		return nil, ctxErr(ctx, err)
	}
	resp, err := DecodeResponse(out)
	if err != nil {
		return nil, err
	}
	if resp.ID != req.ID {
		return nil, fmt.Errorf("response id %d, want %d", resp.ID, req.ID)
	}
	return resp, nil
}

// ctxErr prefers the context error when ctx ended the I/O.
func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
