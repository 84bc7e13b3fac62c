// glbview - an animated glTF character viewer.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/AllenDang/cimgui-go/imgui"
	"go.uber.org/zap"

	"github.com/Faultbox/glbview/internal/assets"
	"github.com/Faultbox/glbview/internal/config"
	"github.com/Faultbox/glbview/internal/engine/debug"
	"github.com/Faultbox/glbview/internal/engine/renderer"
	"github.com/Faultbox/glbview/internal/engine/ui"
	"github.com/Faultbox/glbview/internal/logger"
	"github.com/Faultbox/glbview/internal/viewer"
)

func main() {
	// SDL and GL calls must stay on the main thread.
	runtime.LockOSThread()

	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== glbview starting ===")
	if f := cfg.File(); f != "" {
		logger.Info("config loaded", zap.String("file", f))
	} else {
		logger.Info("no config file found, using defaults")
	}
	logger.Sugar.Debugf("Config: %+v", cfg)

	if err := run(cfg); err != nil {
		logger.Error("viewer failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}

	logger.Info("=== glbview shutdown complete ===")
}

func run(cfg *config.Config) error {
	host, err := ui.NewHost(cfg.Window)
	if err != nil {
		return fmt.Errorf("create window: %w", err)
	}

	rend, err := renderer.New(renderer.DefaultConfig(host.Size()))
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}
	defer rend.Close()

	v, err := viewer.New(cfg, rend)
	if err != nil {
		return fmt.Errorf("create viewer: %w", err)
	}
	defer v.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app := newApp(ctx, cfg, host, rend, v)
	host.OnResize(v.Resize)

	if cfg.Asset.Path != "" {
		v.Load(ctx, cfg.Asset.Path)
	} else {
		logger.Warn("no model configured, use Open model to pick one")
	}

	host.Run(app.frame)
	return nil
}

// App ties the window, the renderer and the viewer together on the frame
// thread.
type App struct {
	ctx  context.Context
	cfg  *config.Config
	host *ui.Host
	rend *renderer.Renderer
	v    *viewer.State

	clock    *viewer.Clock
	shots    *debug.ScreenshotCapture
	lastSeen *assets.Model
	title    string

	// Paths chosen in the file dialog, drained at the start of each frame.
	picked chan string

	panel panelState
}

func newApp(ctx context.Context, cfg *config.Config, host *ui.Host, rend *renderer.Renderer, v *viewer.State) *App {
	return &App{
		ctx:    ctx,
		cfg:    cfg,
		host:   host,
		rend:   rend,
		v:      v,
		clock:  viewer.NewClock(),
		shots:  debug.NewScreenshotCapture(cfg.Screenshots.Dir, "glbview"),
		picked: make(chan string, 1),
		title:  cfg.Window.Title,
	}
}

func (app *App) frame() {
	// Capture at the start of the frame so the previous frame's image is read.
	if app.panel.screenshotRequested {
		app.panel.screenshotRequested = false
		app.captureScreenshot()
	}

	select {
	case path := <-app.picked:
		app.v.Load(app.ctx, path)
	default:
	}

	if ui.IsKeyPressed(imgui.KeyF12) {
		app.panel.screenshotRequested = true
	}

	delta, nowMs := app.clock.Tick()
	app.rend.SetPixelRatio(app.host.PixelRatio())
	app.v.Tick(delta, nowMs)
	app.releaseReplaced()
	app.updateTitle()

	pointer := app.host.DrawScene(app.rend.ColorTexture())
	if pointer.DX != 0 || pointer.DY != 0 {
		app.v.Orbit(pointer.DX, pointer.DY)
	}
	if pointer.Wheel != 0 {
		app.v.Zoom(pointer.Wheel)
	}

	app.renderPanel()
	app.renderNotification()
}

// releaseReplaced frees GPU copies of a model once a new one is installed.
func (app *App) releaseReplaced() {
	m := app.v.Model()
	if m == app.lastSeen {
		return
	}
	if app.lastSeen != nil {
		app.rend.Release(app.v.Scene)
	}
	app.lastSeen = m
}

func (app *App) updateTitle() {
	title := app.cfg.Window.Title
	if m := app.v.Model(); m != nil && m.Name != "" {
		title = m.Name + " - " + title
	}
	if title != app.title {
		app.title = title
		app.host.SetWindowTitle(title)
	}
}

func (app *App) captureScreenshot() {
	pixels, w, h := app.rend.ReadPixels()
	path, err := app.shots.CaptureFromPixels(pixels, w, h)
	if err != nil {
		logger.Error("screenshot failed", zap.Error(err))
		app.panel.notify(fmt.Sprintf("Screenshot failed: %v", err))
		return
	}
	app.panel.notify("Saved: " + path)
}
