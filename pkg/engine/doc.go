// Package engine fires due triggers.
//
// This package includes:
//   - Engine: polls the store, claims due triggers and runs their work functions
//   - Hub: non-blocking fan-out of scheduler events
//   - Metrics: Prometheus collectors for fires and trigger states
//
// Each claimed fire runs on its own goroutine, bounded by the configured
// concurrency. A trigger is never fired twice at once: the claim is a
// compare-and-set in the store, so several engines may share one database.
package engine
