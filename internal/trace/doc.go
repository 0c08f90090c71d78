// Package trace is the logging and tracing subsystem of gramfuzz.
//
// Every process of a campaign (the supervisor and each worker) owns one
// Tracer labelled with its actor name. Launcher, worker, stage and grammar
// runtime call spans flow through it. A worker stuck inside the grammar
// runtime keeps emitting heartbeats while its call span never ends.
//
// # Usage
//
//	gramfuzz fuzz --trace=trace.ndjson --trace-level=detail
//
// The supervisor writes trace.ndjson and worker N trace.worker-N.ndjson.
//
// # Sinks
//
//   - Nop: used when tracing is off
//   - StreamTracer: buffered writes to a file or stderr
//   - RingTracer: the last N events, dumped by DumpRecent when a worker
//     dies for a restart
//   - a fan-out of both for --trace-mode=both
//
// # Levels
//
//   - LevelError: error points only
//   - LevelPhase: launcher and worker lifecycle
//   - LevelDetail: adds stage cycles
//   - LevelDebug: adds every grammar runtime call
//
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopeStage, "post-mutational", parent)
//	defer span.End("")
package trace
