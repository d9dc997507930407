package tile

import "fmt"

// AnimationDestination is where one copy of an animation is patched.
type AnimationDestination struct {
	// DestStart is the first tile id written, in combined numbering: secondary
	// animations start at SecondaryOffset or above.
	DestStart int `json:"destStart"`
	Phase     int `json:"phase,omitempty"`
}

// Animation is a tileset region that cycles through pre-decoded frames.
type Animation struct {
	ID           string                 `json:"id"`
	Tileset      Kind                   `json:"-"`
	Frames       [][]byte               `json:"-"` // indexed pixels, Width x Height each
	Width        int                    `json:"width"`
	Height       int                    `json:"height"`
	Sequence     []int                  `json:"sequence"`
	Interval     int                    `json:"interval"`
	AltSequence  []int                  `json:"altSequence,omitempty"`
	AltThreshold *int                   `json:"altSequenceThreshold,omitempty"`
	Destinations []AnimationDestination `json:"destinations"`
}

// TilesWide is the frame width in tiles.
func (a *Animation) TilesWide() int { return a.Width / Size }

// TilesHigh is the frame height in tiles.
func (a *Animation) TilesHigh() int { return a.Height / Size }

// SequenceFor returns the frame order to use at an effective cycle.
func (a *Animation) SequenceFor(cycle int) []int {
	if len(a.AltSequence) > 0 && a.AltThreshold != nil && cycle >= *a.AltThreshold {
		return a.AltSequence
	}
	return a.Sequence
}

// FrameAt returns the frame index shown at an effective cycle.
func (a *Animation) FrameAt(cycle int) int {
	seq := a.SequenceFor(cycle)
	if len(seq) == 0 {
		return 0
	}
	i := cycle % len(seq)
	if i < 0 {
		i += len(seq)
	}
	return seq[i]
}

// Validate reports definitions that can never be patched.
func (a *Animation) Validate() error {
	switch {
	case a.Interval <= 0:
		return fmt.Errorf("animation %s: interval must be positive, got %d", a.ID, a.Interval)
	case len(a.Sequence) == 0:
		return fmt.Errorf("animation %s: empty sequence", a.ID)
	case a.Width < Size || a.Height < Size:
		return fmt.Errorf("animation %s: frame %dx%d smaller than one tile", a.ID, a.Width, a.Height)
	case len(a.Frames) == 0:
		return fmt.Errorf("animation %s: no frames", a.ID)
	}
	return nil
}
