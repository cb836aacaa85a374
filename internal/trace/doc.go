// Package trace provides structured tracing for the tessera decoder.
//
// Tracing follows a batch of sentences through decoding: one span per batch,
// one per sentence and, at higher verbosity, one per beam expansion. It is
// the place to look when a sentence is slow or a batch appears stuck.
//
// # Usage
//
//	tessera decode --trace=- --trace-level=beam input.txt
//
// # Tracers
//
//   - Nop: zero-overhead tracer used when tracing is off
//   - StreamTracer: writes every event immediately (file or stderr)
//   - RingTracer: keeps the last N events for dumping after a failure
//   - MultiTracer: fans out to several tracers
//
// # Levels
//
//   - LevelOff: no tracing
//   - LevelError: ring mode only, sentence events dumped when a command fails
//   - LevelSentence: batch and sentence boundaries
//   - LevelBeam: per-beam expansion
//   - LevelDebug: everything, including hypothesis dumps
//
// # Context propagation
//
//	ctx = trace.WithTracer(ctx, tracer)
//	ctx, batch := trace.Start(ctx, trace.ScopeBatch, "batch")
//	defer batch.End("")
//	// every sentence decoded with ctx nests under batch
//	ctx, sent := trace.Start(ctx, trace.ScopeSentence, "decode")
package trace
