package assets

import (
	"encoding/json"
	"fmt"
	"strings"

	"chosenoffset.com/fieldrender/internal/tile"
)

// AnimationDef is one entry of a tileset's animations.json.
type AnimationDef struct {
	ID           string                      `json:"id"`
	Tileset      string                      `json:"tileset"` // "primary" or "secondary"
	Frames       []string                    `json:"frames"`  // PNG paths relative to the tileset dir
	Sequence     []int                       `json:"sequence,omitempty"`
	Interval     int                         `json:"interval"`
	AltSequence  []int                       `json:"altSequence,omitempty"`
	AltThreshold *int                        `json:"altSequenceThreshold,omitempty"`
	Destinations []tile.AnimationDestination `json:"destinations"`
}

type animationFile struct {
	Animations []AnimationDef `json:"animations"`
}

// ParseAnimationDefs decodes an animations.json document.
func ParseAnimationDefs(data []byte) ([]AnimationDef, error) {
	var f animationFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse animations: %w", err)
	}
	for i := range f.Animations {
		d := &f.Animations[i]
		if len(d.Frames) == 0 {
			return nil, fmt.Errorf("animation %s has no frames", d.ID)
		}
		if _, err := parseKind(d.Tileset); err != nil {
			return nil, fmt.Errorf("animation %s: %w", d.ID, err)
		}
		if len(d.Sequence) == 0 {
			d.Sequence = make([]int, len(d.Frames))
			for j := range d.Sequence {
				d.Sequence[j] = j
			}
		}
	}
	return f.Animations, nil
}

// MarshalAnimationDefs encodes defs as an animations.json document.
func MarshalAnimationDefs(defs []AnimationDef) ([]byte, error) {
	return json.MarshalIndent(animationFile{Animations: defs}, "", "  ")
}

func parseKind(s string) (tile.Kind, error) {
	switch strings.ToLower(s) {
	case "", "primary":
		return tile.Primary, nil
	case "secondary":
		return tile.Secondary, nil
	default:
		return tile.Primary, fmt.Errorf("unknown tileset kind %q", s)
	}
}

// buildAnimation turns a definition and its decoded frames into an
// animation. All frames must share the first frame's size.
func buildAnimation(d AnimationDef, frames []tile.IndexedImage) (tile.Animation, error) {
	kind, err := parseKind(d.Tileset)
	if err != nil {
		return tile.Animation{}, err
	}
	a := tile.Animation{
		ID:           d.ID,
		Tileset:      kind,
		Sequence:     d.Sequence,
		Interval:     d.Interval,
		AltSequence:  d.AltSequence,
		AltThreshold: d.AltThreshold,
		Destinations: d.Destinations,
	}
	for i, f := range frames {
		if i == 0 {
			a.Width, a.Height = f.Width, f.Height
		} else if f.Width != a.Width || f.Height != a.Height {
			return tile.Animation{}, fmt.Errorf("animation %s: frame %d is %dx%d, want %dx%d",
				d.ID, i, f.Width, f.Height, a.Width, a.Height)
		}
		a.Frames = append(a.Frames, f.Pix)
	}
	return a, a.Validate()
}
