package game

import (
	"fmt"
	"io/fs"

	"github.com/sirupsen/logrus"

	"chosenoffset.com/fieldrender/internal/assets"
	"chosenoffset.com/fieldrender/internal/render"
	"chosenoffset.com/fieldrender/internal/render/pipeline"
	"chosenoffset.com/fieldrender/internal/world"
)

// ManagerOptions configure resource loading.
type ManagerOptions struct {
	CacheMaxBytes       int64
	EnableDirtyTracking bool
	Logger              *logrus.Logger
}

// Manager owns the long-lived resources of a session: the asset loader, the
// world built from it and the pipeline rendering it.
type Manager struct {
	Device   render.Device
	Loader   *assets.Loader
	World    *world.World
	Manifest *assets.Manifest
	Pipeline *pipeline.Pipeline

	needsUpload bool
	log         *logrus.Entry
}

// NewManager loads the world from fsys and prepares a pipeline on dev.
func NewManager(dev render.Device, fsys fs.FS, opts ManagerOptions) (*Manager, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	loader, err := assets.NewLoader(fsys, opts.CacheMaxBytes, logger)
	if err != nil {
		return nil, err
	}
	manifest, err := loader.Manifest()
	if err != nil {
		loader.Close()
		return nil, err
	}
	w, err := world.Load(loader, manifest, logger)
	if err != nil {
		loader.Close()
		return nil, err
	}
	p, err := pipeline.New(dev, pipeline.Options{EnableDirtyTracking: opts.EnableDirtyTracking})
	if err != nil {
		loader.Close()
		return nil, fmt.Errorf("failed to create pipeline on %s device: %w", dev.Name(), err)
	}
	p.SetTileResolver(w.Resolve)
	p.SetVerticalObjectChecker(w.IsVerticalObject)

	m := &Manager{
		Device:      dev,
		Loader:      loader,
		World:       w,
		Manifest:    manifest,
		Pipeline:    p,
		needsUpload: true,
		log:         logger.WithField("component", "game"),
	}
	p.SetContextHandlers(m.onContextLost, m.onContextRestored)
	if err := m.Sync(); err != nil {
		m.Dispose()
		return nil, err
	}
	return m, nil
}

func (m *Manager) onContextLost() {
	m.log.Warn("Render context lost")
}

// Restored contexts come back without tilesets or animations.
func (m *Manager) onContextRestored() {
	m.log.Info("Render context restored, re-uploading tilesets")
	m.needsUpload = true
}

// Sync uploads the world's tileset pairs when they are missing on the device.
func (m *Manager) Sync() error {
	if !m.needsUpload || m.Device.ContextLost() {
		return nil
	}
	if err := m.Pipeline.UploadSnapshot(m.World.Snapshot()); err != nil {
		return fmt.Errorf("failed to upload world tilesets: %w", err)
	}
	m.needsUpload = false
	return nil
}

// Dispose releases the pipeline and the asset cache.
func (m *Manager) Dispose() {
	m.Pipeline.Dispose()
	m.Loader.Close()
}
