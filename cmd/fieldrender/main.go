package main

import (
	"errors"
	"flag"
	"fmt"
	"image/png"
	"io"
	"os"

	"github.com/gookit/color"
	"github.com/sirupsen/logrus"

	"chosenoffset.com/fieldrender/internal/config"
	"chosenoffset.com/fieldrender/internal/game"
	"chosenoffset.com/fieldrender/internal/logging"
	"chosenoffset.com/fieldrender/internal/render"
	ebitenrender "chosenoffset.com/fieldrender/internal/render/ebiten"
	"chosenoffset.com/fieldrender/internal/render/pipeline"
	"chosenoffset.com/fieldrender/internal/render/soft"
	"chosenoffset.com/fieldrender/internal/tile"
)

func main() {
	configPath := flag.String("config", "fieldrender.yaml", "path to the config file")
	snapshot := flag.String("snapshot", "", "render one frame with the software device into this PNG and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()
	pipeline.SetLogger(logger)

	if *snapshot != "" {
		err = runSnapshot(cfg, logger, *snapshot)
	} else {
		err = run(cfg, logger)
	}
	if err != nil {
		logger.WithError(err).Error("fieldrender failed")
		closer.Close()
		os.Exit(1)
	}
}

func managerOptions(cfg *config.Config, logger *logrus.Logger) game.ManagerOptions {
	return game.ManagerOptions{
		CacheMaxBytes:       cfg.Assets.CacheMaxBytes,
		EnableDirtyTracking: cfg.Render.EnableDirtyTracking,
		Logger:              logger,
	}
}

func gameOptions(cfg *config.Config, offscreen bool) game.Options {
	return game.Options{
		ViewTilesWide: cfg.Render.ViewTilesWide,
		ViewTilesHigh: cfg.Render.ViewTilesHigh,
		OverscanTiles: cfg.Render.OverscanTiles,
		Offscreen:     offscreen,
	}
}

// pickDevice prefers the GPU device and falls back to the software one.
func pickDevice(cfg *config.Config, logger *logrus.Logger) (render.Device, bool) {
	if !cfg.Render.ForceSoftware {
		dev, err := ebitenrender.NewDevice()
		if err == nil {
			return dev, false
		}
		logger.WithError(err).Warn("GPU device unavailable, falling back to software rendering")
	}
	return soft.NewDevice(), true
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	dev, software := pickDevice(cfg, logger)
	defer func() { dev.Dispose() }()

	logger.WithFields(logrus.Fields{"device": dev.Name(), "assets": cfg.Assets.Dir}).Info("Loading world")
	m, err := game.NewManager(dev, os.DirFS(cfg.Assets.Dir), managerOptions(cfg, logger))
	if err != nil && !software {
		// The GPU device may fail on first use rather than on creation.
		logger.WithError(err).Warn("GPU pipeline failed, retrying with software rendering")
		dev.Dispose()
		dev, software = soft.NewDevice(), true
		m, err = game.NewManager(dev, os.DirFS(cfg.Assets.Dir), managerOptions(cfg, logger))
	}
	if err != nil {
		return err
	}
	defer m.Dispose()

	g := game.NewGame(m, ebitenrender.NewInputManager(), gameOptions(cfg, software))

	engine := ebitenrender.NewEngine()
	engine.SetWindowSize(cfg.WindowSize(tile.MetatileSize))
	engine.SetWindowTitle(fmt.Sprintf("fieldrender (%s)", dev.Name()))
	engine.SetWindowResizable(true)

	logger.Info("Starting render loop")
	if err := engine.RunGame(g); err != nil && !errors.Is(err, game.ErrQuit) {
		return err
	}
	printSummary(os.Stdout, m.Pipeline.Stats(), g.GameFrame)
	return nil
}

func runSnapshot(cfg *config.Config, logger *logrus.Logger, path string) error {
	dev := soft.NewDevice()
	defer dev.Dispose()

	m, err := game.NewManager(dev, os.DirFS(cfg.Assets.Dir), managerOptions(cfg, logger))
	if err != nil {
		return err
	}
	defer m.Dispose()

	g := game.NewGame(m, noInput{}, gameOptions(cfg, false))
	screen := soft.NewSurface(g.ScreenWidth, g.ScreenHeight)
	g.Draw(screen)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	defer f.Close()
	if err := png.Encode(f, screen.RGBA()); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	printSummary(os.Stdout, m.Pipeline.Stats(), g.GameFrame)
	color.Green.Printf("Snapshot written to %s\n", path)
	return nil
}

func printSummary(w io.Writer, s pipeline.Stats, frames int) {
	label := color.Style{color.FgCyan, color.OpBold}
	value := color.Style{color.FgWhite}
	row := func(name string, v any) {
		fmt.Fprintf(w, "%s %s\n", label.Sprint(fmt.Sprintf("%-12s", name)), value.Sprint(v))
	}
	fmt.Fprintln(w, color.Bold.Sprint("fieldrender session"))
	row("device", s.Device)
	row("state", s.State)
	row("last path", s.LastPath)
	row("frames", frames)
	row("version", s.TilesetVersion)
	row("instances", fmt.Sprintf("%d/%d/%d", s.Passes.Background, s.Passes.TopBelow, s.Passes.TopAbove))
	row("draw calls", s.DeviceStats.DrawCalls)
	row("uploads", s.DeviceStats.TextureUploads)
}

type noInput struct{}

func (noInput) IsKeyPressed(render.Key) bool     { return false }
func (noInput) IsKeyJustPressed(render.Key) bool { return false }
