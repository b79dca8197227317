// internal/pvclient/client.go
package pvclient

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/tamzrod/tc-ioc/internal/server"
)

// ErrMonitorEnded is returned by Monitor when the server closes the stream.
var ErrMonitorEnded = errors.New("pvclient: monitor ended")

// RemoteError is a request the server answered with ok=false.
type RemoteError struct {
	Op  string
	PV  string
	Msg string
}

func (e *RemoteError) Error() string {
	if e.PV == "" {
		return fmt.Sprintf("pvclient: %s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("pvclient: %s %s: %s", e.Op, e.PV, e.Msg)
}

// Value is one PV reading.
type Value struct {
	PV    string
	Value float64
	TS    time.Time
}

// Config for a Client.
type Config struct {
	Endpoint string
	Timeout  time.Duration
}

// Client talks to the PV server.
// Requests are stateless: one request = one connection. Monitor holds its connection.
type Client struct {
	endpoint string
	timeout  time.Duration
	seq      atomic.Uint64
}

func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("pvclient: endpoint required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Client{endpoint: cfg.Endpoint, timeout: cfg.Timeout}, nil
}

// Get reads the current value of a PV.
func (c *Client) Get(ctx context.Context, name string) (Value, error) {
	resp, err := c.roundTrip(ctx, server.Request{Op: server.OpGet, PV: name})
	if err != nil {
		return Value{}, err
	}
	return toValue(resp)
}

// Put writes v and returns the committed value.
func (c *Client) Put(ctx context.Context, name string, v float64) (Value, error) {
	resp, err := c.roundTrip(ctx, server.Request{Op: server.OpPut, PV: name, Value: &v})
	if err != nil {
		return Value{}, err
	}
	return toValue(resp)
}

// List returns every PV name served.
func (c *Client) List(ctx context.Context) ([]string, error) {
	resp, err := c.roundTrip(ctx, server.Request{Op: server.OpList})
	if err != nil {
		return nil, err
	}
	return resp.Names, nil
}

// Info returns the description of a PV.
func (c *Client) Info(ctx context.Context, name string) (server.Info, error) {
	resp, err := c.roundTrip(ctx, server.Request{Op: server.OpInfo, PV: name})
	if err != nil {
		return server.Info{}, err
	}
	if resp.Info == nil {
		return server.Info{}, fmt.Errorf("pvclient: info %s: empty response", name)
	}
	return *resp.Info, nil
}

// Monitor calls fn with the current value and every update until ctx is done,
// fn returns an error, or the server closes the stream.
func (c *Client) Monitor(ctx context.Context, name string, fn func(Value) error) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	req := server.Request{ID: c.nextID(), Op: server.OpMonitor, PV: name}
	_ = conn.SetWriteDeadline(time.Now().Add(c.timeout))
	if err := writeRequest(conn, req); err != nil {
		return fmt.Errorf("pvclient: monitor %s: write: %w", name, err)
	}
	_ = conn.SetWriteDeadline(time.Time{})

	r := bufio.NewReader(conn)
	for {
		resp, err := readResponse(r)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %v", ErrMonitorEnded, err)
		}
		if !resp.OK {
			return &RemoteError{Op: server.OpMonitor, PV: name, Msg: resp.Error}
		}
		v, err := toValue(resp)
		if err != nil {
			return err
		}
		if err := fn(v); err != nil {
			return err
		}
	}
}

// ---- transport ----

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: c.timeout}
	conn, err := d.DialContext(ctx, "tcp", c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("pvclient: dial: %w", err)
	}
	return conn, nil
}

func (c *Client) roundTrip(ctx context.Context, req server.Request) (server.Response, error) {
	req.ID = c.nextID()

	conn, err := c.dial(ctx)
	if err != nil {
		return server.Response{}, err
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	if err := writeRequest(conn, req); err != nil {
		return server.Response{}, fmt.Errorf("pvclient: %s: write: %w", req.Op, err)
	}

	resp, err := readResponse(bufio.NewReader(conn))
	if err != nil {
		return server.Response{}, fmt.Errorf("pvclient: %s: read: %w", req.Op, err)
	}
	if resp.ID != req.ID {
		return server.Response{}, fmt.Errorf("pvclient: %s: response id %q, want %q", req.Op, resp.ID, req.ID)
	}
	if !resp.OK {
		return server.Response{}, &RemoteError{Op: req.Op, PV: req.PV, Msg: resp.Error}
	}
	return resp, nil
}

func (c *Client) nextID() string {
	return strconv.FormatUint(c.seq.Add(1), 10)
}

func writeRequest(conn net.Conn, req server.Request) error {
	b, err := json.Marshal(req)
	if err != nil {
		return err
	}
	_, err = conn.Write(append(b, '\n'))
	return err
}

func readResponse(r *bufio.Reader) (server.Response, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return server.Response{}, err
	}
	var resp server.Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return server.Response{}, fmt.Errorf("pvclient: malformed response: %w", err)
	}
	return resp, nil
}

func toValue(resp server.Response) (Value, error) {
	if resp.Value == nil {
		return Value{}, fmt.Errorf("pvclient: %s: response without value", resp.PV)
	}
	v := Value{PV: resp.PV, Value: *resp.Value}
	if resp.TS != nil {
		v.TS = *resp.TS
	}
	return v, nil
}
