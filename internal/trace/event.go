package trace

import "time"

// Kind is the type of a trace event.
type Kind uint8

const (
	KindSpanBegin Kind = iota + 1
	KindSpanEnd
	KindPoint
	KindHeartbeat
)

var kindNames = [...]string{"unknown", "begin", "end", "point", "heartbeat"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return kindNames[0]
}

// Scope is the granularity of an event; lower values are coarser.
type Scope uint8

const (
	ScopeLauncher Scope = iota + 1 // broker and worker supervision
	ScopeWorker                    // one fuzzing client
	ScopeStage                     // one stage cycle
	ScopeCall                      // one call into the grammar runtime
)

var scopeNames = [...]string{"unknown", "launcher", "worker", "stage", "call"}

func (s Scope) String() string {
	if int(s) < len(scopeNames) {
		return scopeNames[s]
	}
	return scopeNames[0]
}

// Event is one trace record.
type Event struct {
	Time     time.Time
	Seq      uint64 // per tracer
	Actor    string // e.g. "supervisor", "worker-3"
	Kind     Kind
	Scope    Scope
	SpanID   uint64 // 0 for points and heartbeats
	ParentID uint64
	Name     string
	Detail   string
	Dur      time.Duration // span end only
	Error    bool
	Extra    map[string]string
}
