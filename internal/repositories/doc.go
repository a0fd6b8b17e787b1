// Package repositories implements the durable record store for track pairs.
//
// Every backend implements [PairStore], a location-bound contract of five operations:
// initialize, load everything, append one pair, replace the pair at a position, and
// rewrite the whole store. Callers never see the on-disk format.
//
// Key Implementations:
//   - [CSVStore] : a flat UTF-8 CSV file with a mandatory nine-column header
//   - [SQLiteStore] : a track_pairs table ordered by position, created by the embedded migrations
//   - [LookupLog] : an append-only record of catalog calls, kept next to the SQLite store
//
// Both stores serialize the tri-state availability columns the same way: empty (or NULL) is
// unknown, "True"/"False" (or 1/0) are the known states.
package repositories
