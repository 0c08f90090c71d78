package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"gramfuzz/internal/engine"
	"gramfuzz/internal/frame"
	"gramfuzz/internal/trace"
)

// DefaultBrokerPort is the local port workers report to.
const DefaultBrokerPort = 1337

// maxEventSize bounds one event frame; objectives carry their input.
const maxEventSize = engine.MaxInputLen + 4096

// Broker collects events from worker connections and hands them, one at a
// time, to a single handler.
type Broker struct {
	ln     net.Listener
	handle func(engine.Event)
	tracer trace.Tracer

	mu     sync.Mutex // serialises handle
	connMu sync.Mutex
	conns  map[net.Conn]struct{}
	wg     sync.WaitGroup
}

// Listen opens the broker socket on addr.
func Listen(addr string, handle func(engine.Event), tracer trace.Tracer) (*Broker, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("broker listen %s: %w", addr, err)
	}
	if tracer == nil {
		tracer = trace.Nop
	}
	return &Broker{
		ln:     ln,
		handle: handle,
		tracer: tracer,
		conns:  make(map[net.Conn]struct{}),
	}, nil
}

// Addr is the address workers dial.
func (b *Broker) Addr() string { return b.ln.Addr().String() }

// Deliver passes ev to the handler as if a worker had sent it.
func (b *Broker) Deliver(ev engine.Event) {
	if b.handle == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handle(ev)
}

// Serve accepts workers until ctx is done or the broker is closed.
func (b *Broker) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = b.Close() })
	defer stop()

	for {
		conn, err := b.ln.Accept()
		if err != nil {
			b.wg.Wait()
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("broker accept: %w", err)
		}
		b.track(conn, true)
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			defer b.track(conn, false)
			b.readLoop(conn)
		}()
	}
}

func (b *Broker) readLoop(conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	trace.Point(b.tracer, trace.ScopeLauncher, "broker_connect", remote)
	for {
		var ev engine.Event
		if err := frame.Read(conn, &ev, maxEventSize); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) && !errors.Is(err, os.ErrDeadlineExceeded) {
				trace.Errorf(b.tracer, trace.ScopeLauncher, "broker_read", "%s: %v", remote, err)
			}
			return
		}
		b.Deliver(ev)
	}
}

func (b *Broker) track(conn net.Conn, add bool) {
	b.connMu.Lock()
	defer b.connMu.Unlock()
	if add {
		b.conns[conn] = struct{}{}
	} else {
		delete(b.conns, conn)
	}
}

// drainTimeout is how long open connections may still deliver after Close.
const drainTimeout = time.Second

// Close stops accepting. Open connections keep delivering what is already
// buffered and are dropped after drainTimeout.
func (b *Broker) Close() error {
	err := b.ln.Close()
	deadline := time.Now().Add(drainTimeout)
	b.connMu.Lock()
	for conn := range b.conns {
		_ = conn.SetReadDeadline(deadline)
	}
	b.connMu.Unlock()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
