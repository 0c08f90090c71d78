package engine

// DefaultRetryCap is the number of restarts a stage gets on one testcase.
const DefaultRetryCap = 3

// RetryState is the per-stage restart bookkeeping. It lives in State and is
// part of the persisted snapshot, so it survives the worker restarts it counts.
type RetryState struct {
	// TriesLeft is nil while no attempt is in flight.
	TriesLeft *int
	// Skipped holds the testcases this stage gave up on.
	Skipped map[CorpusID]struct{}
}

// ShouldRestart records one more attempt of the stage called name on the
// current testcase and reports whether the stage may run. Every attempt
// without an intervening ClearProgress consumes one try; once cap tries have
// been spent on restarts the testcase is skipped for this stage for good.
func ShouldRestart(state *State, name string, cap int) (bool, error) {
	id, ok := state.CurrentCorpusID()
	if !ok {
		return false, IllegalState("stage %q has no current testcase", name)
	}
	rs := state.retry(name)

	tries := cap + 1
	if rs.TriesLeft != nil {
		tries = *rs.TriesLeft
	}
	if tries == 0 {
		return false, IllegalState("stage %q retried after its tries were exhausted", name)
	}
	tries--
	rs.TriesLeft = &tries

	if tries == 0 {
		rs.Skipped[id] = struct{}{}
		return false, nil
	}
	if _, skipped := rs.Skipped[id]; skipped {
		return false, nil
	}
	return true, nil
}

// ClearProgress marks the in-flight attempt of the stage as finished.
func ClearProgress(state *State, name string) error {
	rs, ok := state.retries[name]
	if !ok {
		return IllegalState("stage %q cleared progress it never started", name)
	}
	rs.TriesLeft = nil
	return nil
}
