package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/forro/internal/models"
	"github.com/desertthunder/forro/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var _ tea.Msg = Msg{}

const (
	MsgPairsLoaded MsgKind = iota
	MsgProgressUpdate
	MsgRunComplete
)

type pairsLoaded struct {
	pairs []models.TrackPair
	err   error
}

type runComplete struct {
	summary *tasks.RunSummary
	err     error
}

// pairsLoadedMsg is the constructor for [MsgPairsLoaded]
func pairsLoadedMsg(pairs []models.TrackPair, err error) Msg {
	return Msg{kind: MsgPairsLoaded, data: pairsLoaded{pairs, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// runCompleteMsg is the constructor for [MsgRunComplete]
func runCompleteMsg(summary *tasks.RunSummary, err error) Msg {
	return Msg{kind: MsgRunComplete, data: runComplete{summary, err}}
}
