package engine

import (
	"crypto/sha256"
	"encoding/hex"
)

// Input is a candidate byte sequence. Inputs handed to an executor or a
// feedback are never modified; mutators work on their own clone.
type Input []byte

// Clone returns an independent copy of in.
func (in Input) Clone() Input {
	if in == nil {
		return nil
	}
	out := make(Input, len(in))
	copy(out, in)
	return out
}

// Name is the content-derived file name used by on-disk corpora.
func (in Input) Name() string {
	sum := sha256.Sum256(in)
	return hex.EncodeToString(sum[:8])
}
