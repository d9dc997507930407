// Package tile holds the tile-grid data model shared by the asset decoders,
// the world collaborators and the render pipeline.
package tile

// Geometry of the indexed tile format.
const (
	// Size is the edge length of a hardware tile in pixels.
	Size = 8
	// MetatileSize is the edge length of a metatile in pixels (2x2 tiles).
	MetatileSize = 16
	// TilesPerMetatile is the number of tiles in one metatile (two layers of four).
	TilesPerMetatile = 8
	// TilesPerLayer is the number of tiles one metatile layer contributes.
	TilesPerLayer = 4
	// TilesPerRow is the tile-grid width of a standard 128px tileset image.
	TilesPerRow = 16
	// SecondaryOffset is where secondary tileset ids start in the combined numbering.
	SecondaryOffset = 512
	// MaxPairs is the number of tileset pairs the GPU can hold at once.
	MaxPairs = 3
)

// LayerType controls which passes receive a metatile's upper layer.
type LayerType int

const (
	// LayerNormal puts the upper layer in the elevation-split passes.
	LayerNormal LayerType = 0
	// LayerCovered draws both layers behind everything.
	LayerCovered LayerType = 1
	// LayerSplit is routed like LayerNormal.
	LayerSplit LayerType = 2
)

func (l LayerType) String() string {
	switch l {
	case LayerNormal:
		return "normal"
	case LayerCovered:
		return "covered"
	case LayerSplit:
		return "split"
	default:
		return "unknown"
	}
}

// Kind identifies one tileset of a pair.
type Kind int

const (
	Primary Kind = iota
	Secondary
)

func (k Kind) String() string {
	if k == Secondary {
		return "secondary"
	}
	return "primary"
}

// Tile is one 8x8 entry of a metatile.
type Tile struct {
	ID      int // 0-1023, ids >= SecondaryOffset address the secondary tileset
	XFlip   bool
	YFlip   bool
	Palette int // 0-15
}

// Split returns which tileset the tile lives in and its id inside that tileset.
func (t Tile) Split() (Kind, int) {
	if t.ID >= SecondaryOffset {
		return Secondary, t.ID - SecondaryOffset
	}
	return Primary, t.ID
}

// Metatile is a 16x16 block: Tiles[0:4] is layer 0, Tiles[4:8] is layer 1.
type Metatile struct {
	ID    int
	Tiles [TilesPerMetatile]Tile
}

// Layer returns the four tiles of layer 0 or 1 in row-major order.
func (m *Metatile) Layer(layer int) []Tile {
	start := layer * TilesPerLayer
	return m.Tiles[start : start+TilesPerLayer]
}

// Attributes are the per-metatile behavior bits.
type Attributes struct {
	Behavior  int
	LayerType LayerType
}

// MapTile is one cell of a map layout.
type MapTile struct {
	MetatileID int
	Collision  int
	Elevation  int
}

// Passable reports whether the collision bits allow walking.
func (m MapTile) Passable() bool {
	return m.Collision == 0
}

// ResolvedTile is everything the renderer needs about one world cell.
type ResolvedTile struct {
	Metatile   Metatile
	Attributes *Attributes // nil when the tileset has no attribute entry
	MapTile    MapTile
	Pair       int
}

// LayerType returns the cell's layer type, defaulting to LayerCovered.
func (r *ResolvedTile) LayerType() LayerType {
	if r.Attributes == nil {
		return LayerCovered
	}
	return r.Attributes.LayerType
}

// ResolverFunc resolves the cell at a world tile coordinate. ok is false for
// cells outside every loaded map.
type ResolverFunc func(worldX, worldY int) (tile ResolvedTile, ok bool)

// ElevationFilterFunc decides whether a cell's upper layer belongs to a pass.
type ElevationFilterFunc func(m MapTile, worldX, worldY int) bool

// VerticalObjectFunc reports cells (trees, poles) that always draw above the player.
type VerticalObjectFunc func(worldX, worldY int) bool

// GridSize returns the tile-grid dimensions of a tileset image.
func GridSize(pixelWidth, pixelHeight int) (cols, rows int) {
	return pixelWidth / Size, pixelHeight / Size
}
