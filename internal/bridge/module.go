package bridge

import (
	"errors"
	"fmt"

	"fortio.org/safecast"
)

// Capability names a unit must define.
const (
	CapSetup      = "setup"
	CapNextInput  = "next_input"
	CapParseInput = "parse_input"
)

// Module is the capability set of a grammar interface unit.
type Module interface {
	// Setup loads the grammar and returns the session later calls take.
	Setup(grammarPath string, kwargs map[string]string) (any, error)
	NextInput(session any) ([]byte, error)
	// ParseInput returns the number of distinct parses of input.
	ParseInput(session any, input []byte) (uint32, error)
}

type boundModule struct {
	setup Func
	next  Func
	parse Func
}

// Bind resolves the three capabilities in ns. The first missing one is
// reported as ErrMissingCapability.
func Bind(ns Namespace) (Module, error) {
	var m boundModule
	for _, c := range []struct {
		name string
		dst  *Func
	}{
		{CapSetup, &m.setup},
		{CapNextInput, &m.next},
		{CapParseInput, &m.parse},
	} {
		fn, err := ns.Lookup(c.name)
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrMissingCapability, c.name)
		}
		if err != nil {
			return nil, fmt.Errorf("lookup %s: %w", c.name, err)
		}
		*c.dst = fn
	}
	return &m, nil
}

func (m *boundModule) Setup(grammarPath string, kwargs map[string]string) (any, error) {
	if kwargs == nil {
		kwargs = map[string]string{}
	}
	return m.setup.Call(grammarPath, kwargs)
}

func (m *boundModule) NextInput(session any) ([]byte, error) {
	v, err := m.next.Call(session)
	if err != nil {
		return nil, err
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("%s returned %T, want bytes", CapNextInput, v)
	}
	return b, nil
}

func (m *boundModule) ParseInput(session any, input []byte) (uint32, error) {
	v, err := m.parse.Call(session, input)
	if err != nil {
		return 0, err
	}
	return toCount(v)
}

func toCount(v any) (uint32, error) {
	switch n := v.(type) {
	case uint32:
		return n, nil
	case int:
		return convCount(n)
	case int64:
		return convCount(n)
	case uint64:
		return convCount(n)
	case uint8, uint16, int8, int16, int32:
		return toCount(toInt64(n))
	default:
		return 0, fmt.Errorf("%s returned %T, want an unsigned integer", CapParseInput, v)
	}
}

func convCount[T int | int64 | uint64](n T) (uint32, error) {
	c, err := safecast.Conv[uint32](n)
	if err != nil {
		return 0, fmt.Errorf("%s returned %d: %w", CapParseInput, n, err)
	}
	return c, nil
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	}
	return 0
}
