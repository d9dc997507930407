package pipeline

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"chosenoffset.com/fieldrender/internal/tile"
)

// PairAssets is a decoded tileset pair as the world knows it.
type PairAssets struct {
	ID                string
	Primary           tile.IndexedImage
	Secondary         tile.IndexedImage
	PrimaryPalettes   []tile.Palette
	SecondaryPalettes []tile.Palette
	Animations        []tile.Animation
}

// Snapshot is the set of tileset pairs visible around the player and the
// GPU slot each one is bound to.
type Snapshot struct {
	Pairs []PairAssets
	Slots map[string]int
}

// UploadSnapshot uploads every pair of s that has a slot, with its combined
// palettes. Pairs without a slot are skipped.
func (p *Pipeline) UploadSnapshot(s Snapshot) error {
	pairs := append([]PairAssets(nil), s.Pairs...)
	sort.SliceStable(pairs, func(i, j int) bool {
		return slotOf(s, pairs[i].ID) < slotOf(s, pairs[j].ID)
	})
	for _, pa := range pairs {
		slot, ok := s.Slots[pa.ID]
		if !ok {
			log().WithField("pair", pa.ID).Debug("Pair has no GPU slot, skipping")
			continue
		}
		if slot < 0 || slot >= tile.MaxPairs {
			return fmt.Errorf("%w: slot %d for %s", ErrInvalidPair, slot, pa.ID)
		}
		err := p.UploadTilesets(slot, TilesetPair{
			Primary:    pa.Primary,
			Secondary:  pa.Secondary,
			Animations: pa.Animations,
		})
		if err != nil {
			return fmt.Errorf("failed to upload tilesets of %s: %w", pa.ID, err)
		}
		if err := p.UploadPalettes(slot, tile.CombinePalettes(pa.PrimaryPalettes, pa.SecondaryPalettes)); err != nil {
			return fmt.Errorf("failed to upload palettes of %s: %w", pa.ID, err)
		}
		log().WithFields(logrus.Fields{
			"pair": pa.ID,
			"slot": slot,
		}).Info("Tileset pair uploaded")
	}
	return nil
}

func slotOf(s Snapshot, id string) int {
	if slot, ok := s.Slots[id]; ok {
		return slot
	}
	return tile.MaxPairs
}
