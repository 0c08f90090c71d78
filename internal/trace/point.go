package trace

import (
	"fmt"
	"time"
)

// Point emits an instant event.
func Point(t Tracer, scope Scope, name, detail string) {
	if t == nil || !t.Enabled() {
		return
	}
	t.Emit(&Event{Time: time.Now(), Kind: KindPoint, Scope: scope, Name: name, Detail: detail})
}

// Pointf is Point with a formatted detail.
func Pointf(t Tracer, scope Scope, name, format string, args ...any) {
	if t == nil || !t.Enabled() {
		return
	}
	Point(t, scope, name, fmt.Sprintf(format, args...))
}

// Errorf emits an error point; it passes every level above off.
func Errorf(t Tracer, scope Scope, name, format string, args ...any) {
	if t == nil || !t.Enabled() {
		return
	}
	t.Emit(&Event{
		Time:   time.Now(),
		Kind:   KindPoint,
		Scope:  scope,
		Name:   name,
		Detail: fmt.Sprintf(format, args...),
		Error:  true,
	})
}
