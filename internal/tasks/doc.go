// Package tasks reconciles stored track pairs against the catalog with real-time progress reporting.
//
// # Per-pair State Machine
//
// [Reconciler] evaluates each pair independently, in this order:
//
//  1. In the playlist, or either side already unavailable: skip without catalog calls
//  2. Look up the Brazilian track; no match marks it unavailable and stops
//  3. Look up the original track; no match marks it unavailable and stops
//  4. Add both track URIs to the playlist in one call and mark the pair as added
//
// The outcome is written back with [repositories.PairStore.ReplaceAt] before the next pair,
// so an interrupted batch never loses earlier results. A catalog error is not a miss: the
// working copy is discarded, the stored row is left as it was and the batch continues.
//
// [ModeCheck] stops after step 3, and a dry run performs lookups without adding or persisting.
// Catalog calls are spaced by a rate.Limiter built from the configured lookup delay.
//
// # Batch Orchestration
//
// [PlaylistEngine.Run] loads the store, processes every pair in stored order and returns a
// [RunSummary]. Cancellation is honored between pairs.
//
// # Progress Reporting
//
// Runs use non-blocking channels for progress updates. The [ProgressUpdate] struct contains
// phase, step counters, a message and, for finished pairs, the [PairResult].
//
// # Lookup Recording
//
// The optional [LookupRecorder] interface receives every catalog search of a run
// (repositories.LookupLog when the SQLite store is in use). Recording errors are logged and ignored.
package tasks
