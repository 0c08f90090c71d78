package engine

import "encoding/binary"

// MaxInputLen bounds inputs grown by the havoc operators.
const MaxInputLen = 1 << 20

var (
	interesting8  = []int8{-128, -1, 0, 1, 16, 32, 64, 100, 127}
	interesting16 = []int16{-32768, -129, 128, 255, 256, 512, 1000, 1024, 4096, 32767}
	interesting32 = []int32{-2147483648, -100663046, -32769, 32768, 65535, 65536, 100663045, 2147483647}
)

type havocOp struct {
	name string
	fn   func(r Rand, in *Input) MutationResult
}

var havocOps = []havocOp{
	{"bit-flip", bitFlip},
	{"byte-flip", byteFlip},
	{"byte-inc", byteInc},
	{"byte-dec", byteDec},
	{"byte-neg", byteNeg},
	{"byte-rand", byteRand},
	{"byte-interesting", byteInteresting},
	{"word-interesting", wordInteresting},
	{"dword-interesting", dwordInteresting},
	{"bytes-delete", bytesDelete},
	{"bytes-expand", bytesExpand},
	{"byte-insert", byteInsert},
	{"bytes-set", bytesSet},
	{"bytes-copy", bytesCopy},
	{"bytes-swap", bytesSwap},
	{"digit-tweak", digitTweak},
}

// HavocMutator applies a random stack of byte-level operators: between 2 and
// 2^maxStackPow of them per call.
type HavocMutator struct {
	maxStackPow int
}

// NewHavocMutator returns a havoc mutator. maxStackPow below 1 is raised to 1.
func NewHavocMutator(maxStackPow int) *HavocMutator {
	return &HavocMutator{maxStackPow: max(maxStackPow, 1)}
}

func (h *HavocMutator) Name() string { return "HavocMutator" }

// Mutate reports Skipped when none of the stacked operators could apply.
func (h *HavocMutator) Mutate(state *State, input *Input) (MutationResult, error) {
	r := state.Rand()
	stack := 1 << (1 + r.Below(h.maxStackPow))
	result := Skipped
	for range stack {
		op := havocOps[r.Below(len(havocOps))]
		if op.fn(r, input) == Mutated {
			result = Mutated
		}
	}
	return result, nil
}

func (h *HavocMutator) PostExec(*State, *CorpusID) error { return nil }

func bitFlip(r Rand, in *Input) MutationResult {
	if len(*in) == 0 {
		return Skipped
	}
	(*in)[r.Below(len(*in))] ^= 1 << r.Below(8)
	return Mutated
}

func byteFlip(r Rand, in *Input) MutationResult {
	if len(*in) == 0 {
		return Skipped
	}
	(*in)[r.Below(len(*in))] ^= 0xff
	return Mutated
}

func byteInc(r Rand, in *Input) MutationResult {
	if len(*in) == 0 {
		return Skipped
	}
	(*in)[r.Below(len(*in))]++
	return Mutated
}

func byteDec(r Rand, in *Input) MutationResult {
	if len(*in) == 0 {
		return Skipped
	}
	(*in)[r.Below(len(*in))]--
	return Mutated
}

func byteNeg(r Rand, in *Input) MutationResult {
	if len(*in) == 0 {
		return Skipped
	}
	i := r.Below(len(*in))
	(*in)[i] = -(*in)[i]
	return Mutated
}

func byteRand(r Rand, in *Input) MutationResult {
	if len(*in) == 0 {
		return Skipped
	}
	i := r.Below(len(*in))
	// Always change the byte.
	(*in)[i] ^= byte(1 + r.Below(255))
	return Mutated
}

func byteInteresting(r Rand, in *Input) MutationResult {
	if len(*in) == 0 {
		return Skipped
	}
	(*in)[r.Below(len(*in))] = byte(interesting8[r.Below(len(interesting8))])
	return Mutated
}

func wordInteresting(r Rand, in *Input) MutationResult {
	if len(*in) < 2 {
		return Skipped
	}
	i := r.Below(len(*in) - 1)
	v := uint16(interesting16[r.Below(len(interesting16))])
	if r.Below(2) == 0 {
		binary.LittleEndian.PutUint16((*in)[i:], v)
	} else {
		binary.BigEndian.PutUint16((*in)[i:], v)
	}
	return Mutated
}

func dwordInteresting(r Rand, in *Input) MutationResult {
	if len(*in) < 4 {
		return Skipped
	}
	i := r.Below(len(*in) - 3)
	v := uint32(interesting32[r.Below(len(interesting32))])
	if r.Below(2) == 0 {
		binary.LittleEndian.PutUint32((*in)[i:], v)
	} else {
		binary.BigEndian.PutUint32((*in)[i:], v)
	}
	return Mutated
}

func bytesDelete(r Rand, in *Input) MutationResult {
	n := len(*in)
	if n <= 1 {
		return Skipped
	}
	off := r.Below(n)
	size := 1 + r.Below(n-off)
	*in = append((*in)[:off], (*in)[off+size:]...)
	return Mutated
}

func bytesExpand(r Rand, in *Input) MutationResult {
	n := len(*in)
	if n == 0 || n >= MaxInputLen {
		return Skipped
	}
	off := r.Below(n)
	size := 1 + r.Below(min(n-off, MaxInputLen-n))
	chunk := append(Input(nil), (*in)[off:off+size]...)
	*in = insertAt(*in, off, chunk)
	return Mutated
}

func byteInsert(r Rand, in *Input) MutationResult {
	if len(*in) >= MaxInputLen {
		return Skipped
	}
	off := r.Below(len(*in) + 1)
	*in = insertAt(*in, off, Input{byte(r.Below(256))})
	return Mutated
}

func bytesSet(r Rand, in *Input) MutationResult {
	n := len(*in)
	if n == 0 {
		return Skipped
	}
	off := r.Below(n)
	size := 1 + r.Below(min(n-off, 16))
	v := byte(r.Below(256))
	for i := off; i < off+size; i++ {
		(*in)[i] = v
	}
	return Mutated
}

func bytesCopy(r Rand, in *Input) MutationResult {
	n := len(*in)
	if n <= 1 {
		return Skipped
	}
	from := r.Below(n)
	to := r.Below(n)
	size := 1 + r.Below(n-max(from, to))
	copy((*in)[to:to+size], (*in)[from:from+size])
	return Mutated
}

func bytesSwap(r Rand, in *Input) MutationResult {
	n := len(*in)
	if n <= 1 {
		return Skipped
	}
	a, b := r.Below(n), r.Below(n)
	if a == b {
		return Skipped
	}
	(*in)[a], (*in)[b] = (*in)[b], (*in)[a]
	return Mutated
}

// digitTweak nudges an ASCII digit up or down by one, keeping it a digit.
func digitTweak(r Rand, in *Input) MutationResult {
	var digits []int
	for i, c := range *in {
		if c >= '0' && c <= '9' {
			digits = append(digits, i)
		}
	}
	if len(digits) == 0 {
		return Skipped
	}
	i := digits[r.Below(len(digits))]
	c := (*in)[i]
	switch {
	case c == '9':
		c = '8'
	case c == '0':
		c = '1'
	case r.Below(2) == 0:
		c++
	default:
		c--
	}
	(*in)[i] = c
	return Mutated
}

func insertAt(in Input, off int, chunk Input) Input {
	out := make(Input, 0, len(in)+len(chunk))
	out = append(out, in[:off]...)
	out = append(out, chunk...)
	return append(out, in[off:]...)
}
