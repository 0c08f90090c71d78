package trace

import (
	"strconv"
	"sync"
	"time"
)

// Heartbeat emits a liveness event every interval until stopped.
type Heartbeat struct {
	stop chan struct{}
	once sync.Once
	done chan struct{}
}

// StartHeartbeat beats on behalf of actor. It returns nil when tracing is
// off or interval is not positive; Stop on nil is fine.
func StartHeartbeat(t Tracer, interval time.Duration, actor string) *Heartbeat {
	if t == nil || !t.Enabled() || interval <= 0 {
		return nil
	}
	h := &Heartbeat{stop: make(chan struct{}), done: make(chan struct{})}
	go func() {
		defer close(h.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for n := 1; ; n++ {
			select {
			case now := <-ticker.C:
				t.Emit(&Event{
					Time:   now,
					Actor:  actor,
					Kind:   KindHeartbeat,
					Scope:  ScopeWorker,
					Name:   "heartbeat",
					Detail: "#" + strconv.Itoa(n),
				})
			case <-h.stop:
				return
			}
		}
	}()
	return h
}

// Stop ends the heartbeat and waits for the goroutine.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.once.Do(func() { close(h.stop) })
	<-h.done
}
