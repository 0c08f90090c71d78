package trace

import (
	"errors"
	"io"
	"sync"
)

// stamp fills the fields every sink owns.
func stamp(ev *Event, actor string, seq *uint64) {
	*seq++
	ev.Seq = *seq
	if ev.Actor == "" {
		ev.Actor = actor
	}
}

// StreamTracer formats events into a writer. Writers with a Flush method
// are flushed on Flush, after error points and after heartbeats, so a
// worker killed mid-run still leaves its last failure on disk.
type StreamTracer struct {
	mu     sync.Mutex
	w      io.Writer
	level  Level
	format Format
	actor  string
	seq    uint64
}

// NewStreamTracer writes events passing level to w.
func NewStreamTracer(w io.Writer, level Level, format Format, actor string) *StreamTracer {
	return &StreamTracer{w: w, level: level, format: format, actor: actor}
}

func (t *StreamTracer) Emit(ev *Event) {
	if !t.level.allows(ev) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	stamp(ev, t.actor, &t.seq)
	// Ошибки записи трассы не должны останавливать фаззинг.
	_, _ = t.w.Write(FormatEvent(ev, t.format))
	if ev.Error || ev.Kind == KindHeartbeat {
		_ = t.flushLocked()
	}
}

func (t *StreamTracer) flushLocked() error {
	if f, ok := t.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

func (t *StreamTracer) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.flushLocked()
}

// Close flushes, then closes the writer when it is an io.Closer.
func (t *StreamTracer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	err := t.flushLocked()
	if c, ok := t.w.(io.Closer); ok {
		err = errors.Join(err, c.Close())
	}
	return err
}

func (t *StreamTracer) Level() Level  { return t.level }
func (t *StreamTracer) Enabled() bool { return t.level > LevelOff }

// RingTracer keeps the most recent events in memory.
type RingTracer struct {
	mu     sync.Mutex
	events []Event
	next   int
	filled bool
	level  Level
	actor  string
	seq    uint64
}

// NewRingTracer keeps up to capacity events; capacity <= 0 means
// DefaultRingSize.
func NewRingTracer(capacity int, level Level, actor string) *RingTracer {
	if capacity <= 0 {
		capacity = DefaultRingSize
	}
	return &RingTracer{events: make([]Event, capacity), level: level, actor: actor}
}

func (t *RingTracer) Emit(ev *Event) {
	if !t.level.allows(ev) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	stamp(ev, t.actor, &t.seq)
	t.events[t.next] = *ev
	t.next++
	if t.next == len(t.events) {
		t.next, t.filled = 0, true
	}
}

// Snapshot returns the kept events, oldest first.
func (t *RingTracer) Snapshot() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.filled {
		return append([]Event(nil), t.events[:t.next]...)
	}
	out := make([]Event, 0, len(t.events))
	out = append(out, t.events[t.next:]...)
	return append(out, t.events[:t.next]...)
}

func (t *RingTracer) Flush() error  { return nil }
func (t *RingTracer) Close() error  { return nil }
func (t *RingTracer) Level() Level  { return t.level }
func (t *RingTracer) Enabled() bool { return t.level > LevelOff }

// fanOut is a stream tracer backed by a ring.
type fanOut struct {
	stream *StreamTracer
	ring   *RingTracer
}

func (f fanOut) Emit(ev *Event) {
	cp := *ev
	f.stream.Emit(ev)
	f.ring.Emit(&cp)
}

func (f fanOut) Flush() error  { return f.stream.Flush() }
func (f fanOut) Close() error  { return f.stream.Close() }
func (f fanOut) Level() Level  { return f.stream.level }
func (f fanOut) Enabled() bool { return f.stream.Enabled() }

// DumpRecent writes the ring of t, if it keeps one, to w. It reports
// whether anything was written.
func DumpRecent(t Tracer, w io.Writer, format Format) (bool, error) {
	var ring *RingTracer
	switch x := t.(type) {
	case *RingTracer:
		ring = x
	case fanOut:
		ring = x.ring
	default:
		return false, nil
	}
	events := ring.Snapshot()
	for i := range events {
		if _, err := w.Write(FormatEvent(&events[i], format)); err != nil {
			return true, err
		}
	}
	return len(events) > 0, nil
}
