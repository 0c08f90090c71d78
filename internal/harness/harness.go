// Package harness holds the hand-written target the example campaigns fuzz:
// a decimal even-number checker.
package harness

import (
	"encoding/hex"
	"errors"
	"io"
	"math/big"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"gramfuzz/internal/engine"
)

// Coverage map layout of the differential harness.
const (
	covEntry = iota
	covUTF8
	covNotUTF8
	covText
	covNumber
	covNotNumber
	covParsed
	covEven
	covOdd

	CoverageSize
)

// Names of the observers the differential harness writes.
const (
	CoverageName = "coverage"
	ResultName   = "is_divisible_by_2_harness"
)

// ErrViolentCrash is the panic value of a violent crash.
var ErrViolentCrash = errors.New("violent crash")

// Policy configures the harness.
type Policy struct {
	// ViolentCrash panics instead of reporting ExitCrash for malformed
	// inputs, so the worker dies and is restarted.
	ViolentCrash bool
	// Normalize applies Unicode NFKC before parsing.
	Normalize bool
	// Dump, when set, receives a hexdump of every input.
	Dump io.Writer
}

func (p Policy) prepare(in []byte) []byte {
	if p.Dump != nil {
		_, _ = io.WriteString(p.Dump, hex.Dump(in))
	}
	if p.Normalize {
		return norm.NFKC.Bytes(in)
	}
	return in
}

func (p Policy) crash() engine.ExitKind {
	if p.ViolentCrash {
		panic(ErrViolentCrash)
	}
	return engine.ExitCrash
}

// MaxNumberBits bounds the numbers the harness accepts to an unsigned
// 128-bit value; longer digit strings are malformed.
const MaxNumberBits = 128

// ParseNumber parses an optional '+' followed by ASCII digits into a value
// of at most MaxNumberBits bits.
func ParseNumber(s string) (*big.Int, bool) {
	digits := s
	if len(digits) > 0 && digits[0] == '+' {
		digits = digits[1:]
	}
	if digits == "" {
		return nil, false
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return nil, false
		}
	}
	n, ok := new(big.Int).SetString(digits, 10)
	if !ok || n.BitLen() > MaxNumberBits {
		return nil, false
	}
	return n, true
}

// Checker returns the target of the mutator and stage campaigns: even
// numbers pass, odd numbers crash, anything else is malformed.
func Checker(p Policy) engine.HarnessFunc {
	return func(in engine.Input) engine.ExitKind {
		data := p.prepare(in)
		if !utf8.Valid(data) {
			return p.crash()
		}
		n, ok := ParseNumber(string(data))
		if !ok {
			return p.crash()
		}
		if n.Bit(0) == 0 {
			return engine.ExitOk
		}
		return engine.ExitCrash
	}
}

// Differential is the native side of the differential campaign. It never
// crashes; it records its decision in Result and the path taken in Coverage.
type Differential struct {
	Coverage *engine.MapObserver
	Result   *engine.Slot[bool]
	policy   Policy
}

// NewDifferential builds the harness and its observers.
func NewDifferential(p Policy) *Differential {
	return &Differential{
		Coverage: engine.NewMapObserver(CoverageName, CoverageSize),
		Result:   engine.NewSlot[bool](ResultName),
		policy:   p,
	}
}

// Run is the engine.HarnessFunc of the differential campaign.
func (d *Differential) Run(in engine.Input) engine.ExitKind {
	d.Coverage.Hit(covEntry)
	data := d.policy.prepare(in)
	if !utf8.Valid(data) {
		d.Coverage.Hit(covNotUTF8)
		d.Result.Set(false)
		return engine.ExitOk
	}
	d.Coverage.Hit(covUTF8)
	d.Coverage.Hit(covText)

	n, ok := ParseNumber(string(data))
	if !ok {
		d.Coverage.Hit(covNotNumber)
		d.Result.Set(false)
		return engine.ExitOk
	}
	d.Coverage.Hit(covNumber)
	d.Coverage.Hit(covParsed)

	even := n.Bit(0) == 0
	if even {
		d.Coverage.Hit(covEven)
	} else {
		d.Coverage.Hit(covOdd)
	}
	d.Result.Set(even)
	return engine.ExitOk
}
