package game

import "chosenoffset.com/fieldrender/internal/tile"

// Direction is a walking direction.
type Direction int

const (
	DirNone Direction = iota
	DirNorth
	DirSouth
	DirWest
	DirEast
)

// Delta returns the tile step of a direction.
func (d Direction) Delta() (dx, dy int) {
	switch d {
	case DirNorth:
		return 0, -1
	case DirSouth:
		return 0, 1
	case DirWest:
		return -1, 0
	case DirEast:
		return 1, 0
	}
	return 0, 0
}

func (d Direction) String() string {
	switch d {
	case DirNorth:
		return "north"
	case DirSouth:
		return "south"
	case DirWest:
		return "west"
	case DirEast:
		return "east"
	default:
		return ""
	}
}

// Player is the walking sprite the passes are split around.
type Player struct {
	TileX, TileY int
	Elevation    int
	Facing       Direction
	// Moving is the direction of the step in progress, DirNone when idle.
	Moving   Direction
	Progress int // pixels walked into the current step
	Speed    int // pixels per tick
}

// PixelPos returns the top-left world pixel of the player's metatile.
func (p *Player) PixelPos() (x, y float64) {
	dx, dy := p.Moving.Delta()
	x = float64(p.TileX*tile.MetatileSize + dx*p.Progress)
	y = float64(p.TileY*tile.MetatileSize + dy*p.Progress)
	return x, y
}

// Message represents an on-screen message that fades over time.
type Message struct {
	Text     string
	TimeLeft float64 // Seconds remaining
}
