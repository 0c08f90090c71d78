package engine

import (
	"math/rand/v2"
	"time"
)

// Rand is the random source every stage and mutator draws from.
type Rand interface {
	// Below returns a value in [0, n); 0 when n <= 0.
	Below(n int) int
	// Between returns a value in [lo, hi], both inclusive; lo when hi < lo.
	Between(lo, hi int) int
	Uint64() uint64
}

// StdRand is a PCG-backed Rand whose state can be snapshotted, so a restarted
// worker continues the schedule it crashed in.
type StdRand struct {
	src *rand.PCG
	r   *rand.Rand
}

// NewStdRand seeds a StdRand.
func NewStdRand(seed uint64) *StdRand {
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	return &StdRand{src: src, r: rand.New(src)}
}

// NewStdRandFromTime seeds a StdRand from the wall clock.
func NewStdRandFromTime() *StdRand {
	return NewStdRand(uint64(time.Now().UnixNano()))
}

func (s *StdRand) Below(n int) int {
	if n <= 0 {
		return 0
	}
	return s.r.IntN(n)
}

func (s *StdRand) Between(lo, hi int) int {
	if hi < lo {
		return lo
	}
	return lo + s.r.IntN(hi-lo+1)
}

func (s *StdRand) Uint64() uint64 { return s.r.Uint64() }

// MarshalBinary returns the generator state.
func (s *StdRand) MarshalBinary() ([]byte, error) { return s.src.MarshalBinary() }

// UnmarshalBinary restores the generator state.
func (s *StdRand) UnmarshalBinary(data []byte) error { return s.src.UnmarshalBinary(data) }
