package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/forro/internal/models"
)

var _ list.Item = pairItem{}

// pairItem wraps [models.TrackPair] to implement [list.Item].
type pairItem struct {
	index int
	pair  models.TrackPair
}

func (i pairItem) FilterValue() string { return i.pair.String() }
func (i pairItem) Title() string {
	return fmt.Sprintf("%d. %s - %s", i.index+1, i.pair.BrazilianArtist, i.pair.BrazilianTrack)
}
func (i pairItem) Description() string {
	desc := fmt.Sprintf("cover of %s - %s • %s", i.pair.OriginalArtist, i.pair.OriginalTrack, i.pair.Status())
	if i.pair.Source != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.pair.Source)
	}
	return desc
}

func pairItems(pairs []models.TrackPair) []list.Item {
	items := make([]list.Item, len(pairs))
	for i, p := range pairs {
		items[i] = pairItem{index: i, pair: p}
	}
	return items
}
