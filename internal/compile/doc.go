// Package compile turns style sources into CSS artifacts.
//
// Unit wraps one compiler invocation and never fails with a panic or an
// error: every outcome is a Result. ProjectCompiler fans a file list out over
// a bounded goroutine pool, writes outputs next to (or away from) their
// sources, and isolates per-file failures so one broken file never stops
// a batch.
package compile
