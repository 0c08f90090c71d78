package trace

import (
	"fmt"
	"slices"
	"strings"
)

// Level controls verbosity. Each level admits one more Scope than the one
// below it.
type Level uint8

const (
	LevelOff Level = iota
	LevelError
	LevelPhase  // ScopeLauncher, ScopeWorker
	LevelDetail // + ScopeStage
	LevelDebug  // + ScopeCall
)

var levelNames = []string{"off", "error", "phase", "detail", "debug"}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "unknown"
}

// ParseLevel reads a --trace-level value; empty means off.
func ParseLevel(s string) (Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return LevelOff, nil
	}
	if i := slices.Index(levelNames, s); i >= 0 {
		return Level(i), nil
	}
	return LevelOff, fmt.Errorf("invalid trace level: %q (expected: %s)", s, strings.Join(levelNames, "|"))
}

// maxScope is the finest scope l admits.
func (l Level) maxScope() Scope {
	switch l {
	case LevelPhase:
		return ScopeWorker
	case LevelDetail:
		return ScopeStage
	case LevelDebug:
		return ScopeCall
	default:
		return 0
	}
}

// ShouldEmit reports whether spans and points of scope pass l.
func (l Level) ShouldEmit(scope Scope) bool {
	return scope != 0 && scope <= l.maxScope()
}

// allows adds heartbeats and error points, which pass every level above
// off.
func (l Level) allows(ev *Event) bool {
	if l == LevelOff {
		return false
	}
	return ev.Kind == KindHeartbeat || ev.Error || l.ShouldEmit(ev.Scope)
}
