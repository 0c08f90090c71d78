package frame

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type message struct {
	Op   string   `msgpack:"op"`
	Args [][]byte `msgpack:"args"`
}

func TestStreamOfFrames(t *testing.T) {
	var buf bytes.Buffer
	want := []message{
		{Op: "call", Args: [][]byte{[]byte("42")}},
		{Op: "exit"},
	}
	for _, m := range want {
		if err := Write(&buf, m); err != nil {
			t.Fatal(err)
		}
	}
	var got []message
	for {
		var m message
		err := Read(&buf, &m, 0)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, m)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("frames (-want +got):\n%s", diff)
	}
}

func TestReadLimits(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, message{Op: "a long operation name"}); err != nil {
		t.Fatal(err)
	}
	full := buf.Bytes()

	var m message
	if err := Read(bytes.NewReader(full), &m, 4); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("oversized frame: %v", err)
	}
	if err := Read(bytes.NewReader(full[:len(full)-1]), &m, 0); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("truncated frame: %v", err)
	}
}

func TestReadSkipsOversizedBody(t *testing.T) {
	var buf bytes.Buffer
	big := message{Op: "call", Args: [][]byte{bytes.Repeat([]byte("x"), 256)}}
	next := message{Op: "exit"}
	for _, m := range []message{big, next} {
		if err := Write(&buf, m); err != nil {
			t.Fatal(err)
		}
	}

	var m message
	if err := Read(&buf, &m, 64); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("oversized frame: %v", err)
	}
	var got message
	if err := Read(&buf, &got, 64); err != nil {
		t.Fatalf("frame after an oversized one: %v", err)
	}
	if diff := cmp.Diff(next, got); diff != "" {
		t.Fatalf("frame after an oversized one (-want +got):\n%s", diff)
	}
}

func TestReadOversizedTruncatedBody(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, message{Op: "a long operation name"}); err != nil {
		t.Fatal(err)
	}
	full := buf.Bytes()
	var m message
	err := Read(bytes.NewReader(full[:len(full)-1]), &m, 4)
	if !errors.Is(err, ErrTooLarge) || !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("truncated oversized frame: %v", err)
	}
	if errors.Is(err, io.EOF) {
		t.Fatalf("truncated oversized frame reads as a clean end: %v", err)
	}
}
