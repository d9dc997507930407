// Package assets decodes tilesets, palettes, map layouts and tile animations
// from an asset tree and keeps decoded results in a bounded cache.
package assets

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/sirupsen/logrus"

	"chosenoffset.com/fieldrender/internal/tile"
)

// File layout inside the asset tree.
const (
	ManifestFile       = "world.json"
	TilesetDir         = "tilesets"
	MapDir             = "maps"
	TilesetImageFile   = "tiles.png"
	MetatilesFile      = "metatiles.bin"
	AttributesFile     = "metatile_attributes.bin"
	PaletteDir         = "palettes"
	AnimationsFile     = "animations.json"
	MapHeaderFile      = "map.json"
	MapLayoutFile      = "map.bin"
	defaultCacheBytes  = 64 << 20
	cacheCounterFactor = 10
)

// Tileset is a decoded tileset directory.
type Tileset struct {
	Name       string
	Image      tile.IndexedImage
	Metatiles  []tile.Metatile
	Attributes []tile.Attributes
	Palettes   []tile.Palette
	Animations []tile.Animation
}

// Bytes estimates the decoded size of the tileset.
func (t *Tileset) Bytes() int64 {
	n := int64(len(t.Image.Pix))
	n += int64(len(t.Metatiles)) * int64(tile.TilesPerMetatile*8)
	n += int64(len(t.Attributes)) * 16
	n += int64(len(t.Palettes)) * tile.ColorsPerPalette * 4
	for _, a := range t.Animations {
		for _, f := range a.Frames {
			n += int64(len(f))
		}
	}
	return n
}

// MapLayout is a decoded map directory.
type MapLayout struct {
	Name             string         `json:"name"`
	Width            int            `json:"width"`
	Height           int            `json:"height"`
	PrimaryTileset   string         `json:"primaryTileset"`
	SecondaryTileset string         `json:"secondaryTileset"`
	OffsetX          int            `json:"offsetX"`
	OffsetY          int            `json:"offsetY"`
	Border           []int          `json:"border,omitempty"`
	Cells            []tile.MapTile `json:"-"`
}

// Manifest lists the maps of a world and where the player starts.
type Manifest struct {
	Maps  []string `json:"maps"`
	Start struct {
		X         int `json:"x"`
		Y         int `json:"y"`
		Elevation int `json:"elevation"`
	} `json:"start"`
}

// Validate checks the header fields. Cells are checked when decoded.
func (m *MapLayout) Validate() error {
	if m.Width <= 0 || m.Height <= 0 {
		return fmt.Errorf("invalid map dimensions: %dx%d", m.Width, m.Height)
	}
	if m.PrimaryTileset == "" {
		return fmt.Errorf("primaryTileset is required")
	}
	if m.SecondaryTileset == "" {
		return fmt.Errorf("secondaryTileset is required")
	}
	if n := len(m.Border); n != 0 && n != 4 {
		return fmt.Errorf("border holds %d metatiles, expected a 2x2 block", n)
	}
	return nil
}

// Validate checks that the manifest names at least one map and a legal
// starting elevation.
func (m *Manifest) Validate() error {
	if len(m.Maps) == 0 {
		return fmt.Errorf("world manifest lists no maps")
	}
	for i, name := range m.Maps {
		if name == "" {
			return fmt.Errorf("map %d has no name", i)
		}
	}
	if m.Start.Elevation < 0 || m.Start.Elevation > 15 {
		return fmt.Errorf("start elevation %d out of range 0-15", m.Start.Elevation)
	}
	return nil
}

// Loader reads assets from a file system. Decoded tilesets and maps are
// cached by name; the cache is bounded by decoded bytes.
type Loader struct {
	fsys  fs.FS
	cache *ristretto.Cache[string, any]
	log   *logrus.Entry
}

// NewLoader creates a loader over fsys with a cache of at most maxBytes.
func NewLoader(fsys fs.FS, maxBytes int64, logger *logrus.Logger) (*Loader, error) {
	if maxBytes <= 0 {
		maxBytes = defaultCacheBytes
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	entry := logger.WithField("component", "assets")
	cache, err := ristretto.NewCache(&ristretto.Config[string, any]{
		NumCounters:        cacheCounterFactor * 1024,
		MaxCost:            maxBytes,
		BufferItems:        64,
		Metrics:            true,
		IgnoreInternalCost: true,
		OnEvict: func(item *ristretto.Item[any]) {
			entry.WithField("cost", item.Cost).Debug("Asset evicted from cache")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create asset cache: %w", err)
	}
	return &Loader{fsys: fsys, cache: cache, log: entry}, nil
}

// Close releases the cache.
func (l *Loader) Close() {
	l.cache.Close()
}

// CacheStats are hit/miss counters of the asset cache.
type CacheStats struct {
	Hits     uint64
	Misses   uint64
	MaxBytes int64
}

// Stats returns cache counters.
func (l *Loader) Stats() CacheStats {
	return CacheStats{
		Hits:     l.cache.Metrics.Hits(),
		Misses:   l.cache.Metrics.Misses(),
		MaxBytes: l.cache.MaxCost(),
	}
}

func tilesetKey(name string) string { return "tileset:" + name }
func mapKey(name string) string     { return "map:" + name }

// Evict drops a cached tileset and map of the given name.
func (l *Loader) Evict(name string) {
	l.cache.Del(tilesetKey(name))
	l.cache.Del(mapKey(name))
	l.cache.Wait()
}

func (l *Loader) store(key string, v any, cost int64) {
	if cost <= 0 {
		cost = 1
	}
	if !l.cache.Set(key, v, cost) {
		l.log.WithField("key", key).Debug("Asset cache rejected entry")
	}
	l.cache.Wait()
}

// Manifest reads world.json.
func (l *Loader) Manifest() (*Manifest, error) {
	data, err := fs.ReadFile(l.fsys, ManifestFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read world manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse world manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid world manifest: %w", err)
	}
	return &m, nil
}

// Tileset loads and decodes a tileset directory.
func (l *Loader) Tileset(name string) (*Tileset, error) {
	if v, ok := l.cache.Get(tilesetKey(name)); ok {
		if ts, ok := v.(*Tileset); ok {
			return ts, nil
		}
	}
	dir := path.Join(TilesetDir, name)
	ts := &Tileset{Name: name}

	f, err := l.fsys.Open(path.Join(dir, TilesetImageFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open tileset %s image: %w", name, err)
	}
	ts.Image, err = DecodeIndexedPNG(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("tileset %s: %w", name, err)
	}

	data, err := fs.ReadFile(l.fsys, path.Join(dir, MetatilesFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read tileset %s metatiles: %w", name, err)
	}
	if ts.Metatiles, err = DecodeMetatiles(data); err != nil {
		return nil, fmt.Errorf("tileset %s: %w", name, err)
	}

	data, err = fs.ReadFile(l.fsys, path.Join(dir, AttributesFile))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		l.log.WithField("tileset", name).Warn("Tileset has no metatile attributes")
	case err != nil:
		return nil, fmt.Errorf("failed to read tileset %s attributes: %w", name, err)
	default:
		if ts.Attributes, err = DecodeAttributes(data); err != nil {
			return nil, fmt.Errorf("tileset %s: %w", name, err)
		}
	}

	if ts.Palettes, err = l.loadPalettes(dir); err != nil {
		return nil, fmt.Errorf("tileset %s: %w", name, err)
	}
	if ts.Animations, err = l.loadAnimations(dir); err != nil {
		return nil, fmt.Errorf("tileset %s: %w", name, err)
	}

	l.store(tilesetKey(name), ts, ts.Bytes())
	l.log.WithFields(logrus.Fields{
		"tileset":    name,
		"size":       fmt.Sprintf("%dx%d", ts.Image.Width, ts.Image.Height),
		"metatiles":  len(ts.Metatiles),
		"animations": len(ts.Animations),
	}).Debug("Tileset loaded")
	return ts, nil
}

// loadPalettes reads palettes/00.pal through 15.pal. Missing files become
// black palettes.
func (l *Loader) loadPalettes(dir string) ([]tile.Palette, error) {
	out := make([]tile.Palette, tile.PaletteCount)
	for i := range out {
		name := path.Join(dir, PaletteDir, fmt.Sprintf("%02d.pal", i))
		f, err := l.fsys.Open(name)
		if errors.Is(err, fs.ErrNotExist) {
			out[i] = tile.BlackPalette()
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to open palette %s: %w", name, err)
		}
		out[i], err = ParsePalette(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("palette %s: %w", name, err)
		}
	}
	return out, nil
}

// loadAnimations decodes animations.json and its frames. A broken animation
// is skipped with a warning.
func (l *Loader) loadAnimations(dir string) ([]tile.Animation, error) {
	data, err := fs.ReadFile(l.fsys, path.Join(dir, AnimationsFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read animations: %w", err)
	}
	defs, err := ParseAnimationDefs(data)
	if err != nil {
		return nil, err
	}
	var out []tile.Animation
	for _, d := range defs {
		a, err := l.loadAnimation(dir, d)
		if err != nil {
			l.log.WithError(err).WithField("animation", d.ID).Warn("Skipping animation")
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (l *Loader) loadAnimation(dir string, d AnimationDef) (tile.Animation, error) {
	frames := make([]tile.IndexedImage, 0, len(d.Frames))
	for _, p := range d.Frames {
		f, err := l.fsys.Open(path.Join(dir, p))
		if err != nil {
			return tile.Animation{}, fmt.Errorf("failed to open frame %s: %w", p, err)
		}
		im, err := DecodeIndexedPNG(f)
		f.Close()
		if err != nil {
			return tile.Animation{}, fmt.Errorf("frame %s: %w", p, err)
		}
		frames = append(frames, im)
	}
	return buildAnimation(d, frames)
}

// Map loads a map header and layout.
func (l *Loader) Map(name string) (*MapLayout, error) {
	if v, ok := l.cache.Get(mapKey(name)); ok {
		if m, ok := v.(*MapLayout); ok {
			return m, nil
		}
	}
	dir := path.Join(MapDir, name)
	data, err := fs.ReadFile(l.fsys, path.Join(dir, MapHeaderFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read map %s header: %w", name, err)
	}
	m := &MapLayout{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to parse map %s header: %w", name, err)
	}
	if m.Name == "" {
		m.Name = name
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid map %s header: %w", name, err)
	}
	data, err = fs.ReadFile(l.fsys, path.Join(dir, MapLayoutFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read map %s layout: %w", name, err)
	}
	if m.Cells, err = DecodeMapLayout(data, m.Width, m.Height); err != nil {
		return nil, fmt.Errorf("map %s: %w", name, err)
	}
	l.store(mapKey(name), m, int64(len(m.Cells))*24)
	l.log.WithFields(logrus.Fields{
		"map":  name,
		"size": fmt.Sprintf("%dx%d", m.Width, m.Height),
	}).Debug("Map loaded")
	return m, nil
}
