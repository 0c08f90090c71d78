// Package engine is the host fuzzing engine the grammar bridge plugs into:
// inputs, observers, executors, feedbacks, corpora, durable state, mutators,
// stages and the fuzzer loop that ties them together.
//
// Execution is strictly sequential inside one worker. An executor writes its
// observers during RunTarget and feedbacks read them immediately afterwards;
// nothing here is safe for concurrent use across candidates.
package engine
