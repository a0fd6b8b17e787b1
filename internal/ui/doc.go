// package ui contains the lipgloss palette used by the CLI and an interactive
// bubbletea front end for browsing track pairs and running playlist builds and checks.
//
// The TUI follows the Elm architecture: a [Model] receives [Msg] values from
// commands that load the record store and stream [tasks.ProgressUpdate] values
// from the reconciliation engine.
package ui
