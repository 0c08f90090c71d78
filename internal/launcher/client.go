package launcher

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"gramfuzz/internal/engine"
	"gramfuzz/internal/frame"
)

// Client is the worker side of the broker connection.
type Client struct {
	id       string
	interval time.Duration

	mu        sync.Mutex
	conn      net.Conn
	lastStats time.Time
}

var _ engine.EventManager = (*Client)(nil)

// Dial connects a worker to the broker at addr. Every event the worker
// fires is stamped with clientID.
func Dial(ctx context.Context, addr, clientID string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial broker %s: %w", addr, err)
	}
	return &Client{id: clientID, interval: engine.DefaultStatsInterval, conn: conn}, nil
}

// ID returns the client id events are stamped with.
func (c *Client) ID() string { return c.id }

func (c *Client) Fire(ctx context.Context, ev engine.Event) error {
	ev.ClientID = c.id
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return net.ErrClosed
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(5 * time.Second)
	}
	_ = c.conn.SetWriteDeadline(deadline)
	if err := frame.Write(c.conn, ev); err != nil {
		return fmt.Errorf("send %s event: %w", ev.Kind, err)
	}
	return nil
}

func (c *Client) Process(ctx context.Context, state *engine.State) error {
	c.mu.Lock()
	due := time.Since(c.lastStats) >= c.interval
	if due {
		c.lastStats = time.Now()
	}
	c.mu.Unlock()
	if !due {
		return nil
	}
	return c.Fire(ctx, engine.NewEvent(engine.EventStats, state))
}

// OnShutdown closes the connection; later events fail with net.ErrClosed.
func (c *Client) OnShutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
