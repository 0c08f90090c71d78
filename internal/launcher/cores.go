package launcher

import (
	"fmt"
	"runtime"
	"slices"
	"strconv"
	"strings"
)

// MaxCore is the highest core index ParseCores accepts.
const MaxCore = 4095

// Cores is a sorted set of CPU indices, one worker each.
type Cores []int

// ParseCores accepts "all" or a comma-separated list of indices and
// inclusive ranges, e.g. "0,2-4".
func ParseCores(spec string) (Cores, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" || strings.EqualFold(spec, "all") {
		n := runtime.NumCPU()
		out := make(Cores, n)
		for i := range n {
			out[i] = i
		}
		return out, nil
	}

	var out Cores
	for part := range strings.SplitSeq(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("cores %q: empty entry", spec)
		}
		lo, hi, isRange := strings.Cut(part, "-")
		first, err := parseCore(lo)
		if err != nil {
			return nil, fmt.Errorf("cores %q: %w", spec, err)
		}
		last := first
		if isRange {
			if last, err = parseCore(hi); err != nil {
				return nil, fmt.Errorf("cores %q: %w", spec, err)
			}
			if last < first {
				return nil, fmt.Errorf("cores %q: range %s is reversed", spec, part)
			}
		}
		for c := first; c <= last; c++ {
			out = append(out, c)
		}
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

func parseCore(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid core index %q", s)
	}
	if n > MaxCore {
		return 0, fmt.Errorf("core index %d above %d", n, MaxCore)
	}
	return n, nil
}

func (c Cores) String() string {
	parts := make([]string, len(c))
	for i, n := range c {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}
