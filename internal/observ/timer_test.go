package observ

import (
	"strings"
	"testing"
	"time"
)

func TestReportAggregatesByName(t *testing.T) {
	tm := NewTimer()
	for range 3 {
		tm.End(tm.Begin("generate"), "")
	}
	tm.End(tm.Begin("parse"), "count=1")

	report := tm.Report()
	if len(report.Ops) != 2 {
		t.Fatalf("len(Ops) = %d, want 2", len(report.Ops))
	}
	if report.Ops[0].Name != "generate" || report.Ops[0].Count != 3 {
		t.Errorf("Ops[0] = %+v, want generate x3", report.Ops[0])
	}
	if report.Ops[1].Name != "parse" || report.Ops[1].Count != 1 {
		t.Errorf("Ops[1] = %+v, want parse x1", report.Ops[1])
	}
}

func TestEndIgnoresBadIndex(t *testing.T) {
	tm := NewTimer()
	tm.End(5, "")
	tm.calls = append(tm.calls, Call{Name: "x", Start: time.Now()})
	tm.End(-1, "")
	if !strings.Contains(tm.Summary(), "x") {
		t.Errorf("summary should list x:\n%s", tm.Summary())
	}
}
