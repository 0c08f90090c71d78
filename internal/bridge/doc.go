// Package bridge loads a grammar interface unit into an embedded dynamic
// runtime and exposes its generate/parse protocol to the fuzzing engine.
//
// The runtime admits one native thread at a time. Every entry into it, from
// any Bridge in the process, goes through a single package-level lock.
package bridge
