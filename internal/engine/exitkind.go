package engine

// ExitKind is the outcome of one target execution.
type ExitKind uint8

const (
	ExitOk      ExitKind = iota // target returned normally
	ExitCrash                   // target crashed
	ExitTimeout                 // target hung
	ExitDiff                    // differential executors disagreed on exit kind
)

// String returns the string representation of ExitKind.
func (k ExitKind) String() string {
	switch k {
	case ExitOk:
		return "ok"
	case ExitCrash:
		return "crash"
	case ExitTimeout:
		return "timeout"
	case ExitDiff:
		return "diff"
	default:
		return "unknown"
	}
}
