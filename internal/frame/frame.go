// Package frame reads and writes length-prefixed msgpack messages: a 4-byte
// big-endian body length followed by the body.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"fortio.org/safecast"
	"github.com/vmihailenco/msgpack/v5"
)

// DefaultMaxSize bounds a body unless the reader asks otherwise.
const DefaultMaxSize = 64 << 20

// ErrTooLarge is returned for a body above the reader's limit.
var ErrTooLarge = errors.New("frame too large")

// Write encodes v and writes one frame.
func Write(w io.Writer, v any) error {
	body, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	n, err := safecast.Conv[uint32](len(body))
	if err != nil {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, len(body))
	}
	buf := make([]byte, 4, 4+len(body))
	binary.BigEndian.PutUint32(buf, n)
	_, err = w.Write(append(buf, body...))
	return err
}

// Read reads one frame of at most maxSize bytes into v. A clean end of
// stream before the header is io.EOF. An oversized body is consumed and
// reported as ErrTooLarge, so the following frame can still be read.
func Read(r io.Reader, v any, maxSize int) error {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	var head [4]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(head[:])
	if uint64(n) > uint64(maxSize) {
		// The body is skipped so the stream stays aligned on the next header.
		if _, err := io.CopyN(io.Discard, r, int64(n)); err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return fmt.Errorf("%w: %d bytes: %w", ErrTooLarge, n, err)
		}
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	if err := msgpack.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	return nil
}
