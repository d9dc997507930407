package pipeline

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/zyedidia/generic/mapset"

	"chosenoffset.com/fieldrender/internal/tile"
)

// Cycle value before the first update; no real cycle matches it.
const initialCycle = -999

type animationState struct {
	anim       tile.Animation
	lastCycles []int // one per destination
}

type pairAnimations struct {
	buffers [2]tile.IndexedImage // CPU mirrors, indexed by tile.Kind
	ready   bool
	states  []*animationState
	dirty   mapset.Set[tile.Kind]
}

// AnimationManager patches animated tile regions into CPU mirrors of the
// tileset textures and re-uploads the tilesets an update touched.
type AnimationManager struct {
	textures *TextureManager
	pairs    [tile.MaxPairs]pairAnimations
}

// NewAnimationManager returns a manager that uploads through textures.
func NewAnimationManager(textures *TextureManager) *AnimationManager {
	m := &AnimationManager{textures: textures}
	for i := range m.pairs {
		m.pairs[i].dirty = mapset.New[tile.Kind]()
	}
	return m
}

// SetTilesetBuffers hands the manager copies of a pair's tileset pixels.
func (m *AnimationManager) SetTilesetBuffers(pair int, primary, secondary tile.IndexedImage) error {
	if pair < 0 || pair >= tile.MaxPairs {
		return fmt.Errorf("%w: %d", ErrInvalidPair, pair)
	}
	p := &m.pairs[pair]
	p.buffers[tile.Primary] = primary.Clone()
	p.buffers[tile.Secondary] = secondary.Clone()
	p.ready = true
	p.dirty = mapset.New[tile.Kind]()
	return nil
}

// RegisterAnimations replaces a pair's animations. Definitions that fail
// validation are skipped with a warning.
func (m *AnimationManager) RegisterAnimations(pair int, anims []tile.Animation) error {
	if pair < 0 || pair >= tile.MaxPairs {
		return fmt.Errorf("%w: %d", ErrInvalidPair, pair)
	}
	p := &m.pairs[pair]
	p.states = p.states[:0]
	for _, a := range anims {
		if err := a.Validate(); err != nil {
			log().WithError(err).WithField("pair", pair).Warn("Skipping animation")
			continue
		}
		st := &animationState{anim: a, lastCycles: make([]int, len(a.Destinations))}
		for i := range st.lastCycles {
			st.lastCycles[i] = initialCycle
		}
		p.states = append(p.states, st)
	}
	log().WithFields(logrus.Fields{
		"pair":       pair,
		"animations": len(p.states),
	}).Debug("Animations registered")
	return nil
}

// Update advances every animation to gameFrame and uploads dirty tilesets.
// It reports whether any tileset content changed.
func (m *AnimationManager) Update(gameFrame int) bool {
	changed := false
	for pair := range m.pairs {
		p := &m.pairs[pair]
		if !p.ready || len(p.states) == 0 {
			continue
		}
		for _, st := range p.states {
			m.advance(pair, p, st, gameFrame)
		}
		if p.dirty.Size() == 0 {
			continue
		}
		p.dirty.Each(func(kind tile.Kind) {
			buf := p.buffers[kind]
			if err := m.textures.UploadTileset(pair, kind, buf.Pix, buf.Width, buf.Height); err != nil {
				log().WithError(err).WithField("pair", pair).Warn("Animated tileset upload failed")
			}
		})
		p.dirty = mapset.New[tile.Kind]()
		changed = true
	}
	return changed
}

func (m *AnimationManager) advance(pair int, p *pairAnimations, st *animationState, gameFrame int) {
	a := &st.anim
	base := floorDiv(gameFrame, a.Interval)
	for i, dest := range a.Destinations {
		cycle := base + dest.Phase
		if cycle == st.lastCycles[i] {
			continue
		}
		st.lastCycles[i] = cycle

		frame := a.FrameAt(cycle)
		if frame < 0 || frame >= len(a.Frames) || a.Frames[frame] == nil {
			log().WithFields(logrus.Fields{
				"pair":      pair,
				"animation": a.ID,
				"frame":     frame,
			}).Warn("Animation frame missing")
			continue
		}
		destID := dest.DestStart
		if a.Tileset == tile.Secondary {
			destID -= tile.SecondaryOffset
		}
		if destID < 0 || destID+a.TilesWide()*a.TilesHigh() > p.buffers[a.Tileset].TileCount() {
			log().WithFields(logrus.Fields{
				"pair":      pair,
				"animation": a.ID,
				"destStart": dest.DestStart,
			}).Warn("Animation destination out of range")
			continue
		}
		patchFrame(&p.buffers[a.Tileset], a, a.Frames[frame], destID)
		p.dirty.Put(a.Tileset)
	}
}

// patchFrame copies the frame tile by tile into consecutive tile ids
// starting at destID.
func patchFrame(dst *tile.IndexedImage, a *tile.Animation, frame []byte, destID int) {
	tilesPerRow := dst.Width / tile.Size
	if tilesPerRow == 0 {
		return
	}
	wide, high := a.TilesWide(), a.TilesHigh()
	for ty := 0; ty < high; ty++ {
		for tx := 0; tx < wide; tx++ {
			id := destID + ty*wide + tx
			dx := (id % tilesPerRow) * tile.Size
			dy := (id / tilesPerRow) * tile.Size
			if dy >= dst.Height {
				return
			}
			tile.CopyTile(dst.Pix, dx, dy, dst.Width, frame, tx*tile.Size, ty*tile.Size, a.Width)
		}
	}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// AnimatedTileIDs returns the combined-numbering tile ids animations of a
// pair write to.
func (m *AnimationManager) AnimatedTileIDs(pair int) mapset.Set[int] {
	ids := mapset.New[int]()
	if pair < 0 || pair >= tile.MaxPairs {
		return ids
	}
	for _, st := range m.pairs[pair].states {
		n := st.anim.TilesWide() * st.anim.TilesHigh()
		for _, d := range st.anim.Destinations {
			for i := 0; i < n; i++ {
				ids.Put(d.DestStart + i)
			}
		}
	}
	return ids
}

// HasAnimations reports whether any pair has registered animations.
func (m *AnimationManager) HasAnimations() bool {
	for i := range m.pairs {
		if len(m.pairs[i].states) > 0 {
			return true
		}
	}
	return false
}

// AnimationCount is the number of registered animations over all pairs.
func (m *AnimationManager) AnimationCount() int {
	n := 0
	for i := range m.pairs {
		n += len(m.pairs[i].states)
	}
	return n
}

// DestinationCount is the number of patched destinations over all pairs.
func (m *AnimationManager) DestinationCount() int {
	n := 0
	for i := range m.pairs {
		for _, st := range m.pairs[i].states {
			n += len(st.anim.Destinations)
		}
	}
	return n
}

// TilesetBuffer returns the CPU mirror of a pair's tileset.
func (m *AnimationManager) TilesetBuffer(pair int, kind tile.Kind) (tile.IndexedImage, bool) {
	if pair < 0 || pair >= tile.MaxPairs || !m.pairs[pair].ready {
		return tile.IndexedImage{}, false
	}
	return m.pairs[pair].buffers[kind], true
}

// Clear drops every animation and buffer.
func (m *AnimationManager) Clear() {
	for i := range m.pairs {
		m.pairs[i] = pairAnimations{dirty: mapset.New[tile.Kind]()}
	}
}
