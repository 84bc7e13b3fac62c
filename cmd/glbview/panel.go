package main

import (
	"fmt"
	"time"

	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/sqweek/dialog"
	"go.uber.org/zap"

	"github.com/Faultbox/glbview/internal/logger"
	"github.com/Faultbox/glbview/internal/viewer"
)

const (
	panelWidth   = 260
	panelHeight  = 340
	panelMargin  = 10
	notifyPeriod = 2 * time.Second
)

// panelState is the UI-only state of the controls window.
type panelState struct {
	speed      float32
	showBounds bool

	screenshotRequested bool
	notifyMsg           string
	notifyAt            time.Time
}

func (p *panelState) notify(msg string) {
	p.notifyMsg = msg
	p.notifyAt = time.Now()
}

// renderPanel draws the Controls window in the top-right corner.
func (app *App) renderPanel() {
	vp := imgui.MainViewport()
	workPos, workSize := vp.WorkPos(), vp.WorkSize()
	imgui.SetNextWindowPos(imgui.NewVec2(workPos.X+workSize.X-panelWidth-panelMargin, workPos.Y+panelMargin))
	imgui.SetNextWindowSize(imgui.NewVec2(panelWidth, panelHeight))
	imgui.SetNextWindowBgAlpha(0.9)

	flags := imgui.WindowFlagsNoResize | imgui.WindowFlagsNoMove | imgui.WindowFlagsNoCollapse |
		imgui.WindowFlagsNoSavedSettings
	if imgui.BeginV("Controls", nil, flags) {
		if imgui.ButtonV("Open model...", imgui.NewVec2(-1, 0)) {
			app.openFileDialog()
		}
		imgui.Separator()

		if app.v.PanelEnabled() {
			app.renderAnimationControls()
		} else {
			imgui.TextDisabled("No animations")
		}

		imgui.Separator()
		if imgui.Checkbox("Show bounds", &app.panel.showBounds) {
			app.v.SetShowBounds(app.panel.showBounds)
		}
		imgui.SameLine()
		if imgui.Button("Screenshot") {
			app.panel.screenshotRequested = true
		}

		imgui.Spacing()
		app.renderStatus()
	}
	imgui.End()
}

func (app *App) renderAnimationControls() {
	half := (imgui.ContentRegionAvail().X - imgui.CurrentStyle().ItemSpacing().X) / 2
	imgui.BeginDisabledV(!app.v.IsPaused())
	if imgui.ButtonV("Play", imgui.NewVec2(half, 0)) {
		app.v.Play()
	}
	imgui.EndDisabled()
	imgui.SameLine()
	imgui.BeginDisabledV(app.v.IsPaused())
	if imgui.ButtonV("Pause", imgui.NewVec2(half, 0)) {
		app.v.Pause()
	}
	imgui.EndDisabled()

	imgui.Text("Speed:")
	imgui.SetNextItemWidth(-1)
	app.panel.speed = app.v.Control.Speed
	p := app.cfg.Panel
	if imgui.SliderFloatV("##Speed", &app.panel.speed, p.SpeedMin, p.SpeedMax, "%.1fx", imgui.SliderFlagsNone) {
		app.v.SetSpeed(app.panel.speed)
	}

	imgui.Text("Animation:")
	if imgui.BeginChildStrV("AnimationList", imgui.NewVec2(0, 140), imgui.ChildFlagsBorders, 0) {
		for i, name := range app.v.AnimationNames() {
			label := fmt.Sprintf("%d: %s", i, name)
			if imgui.SelectableBoolV(label, i == app.v.Control.Animation, 0, imgui.NewVec2(0, 0)) {
				app.v.SelectAnimation(i)
			}
		}
	}
	imgui.EndChild()
}

func (app *App) renderStatus() {
	status := app.v.Status()
	if app.v.Lifecycle() == viewer.LoadFailed {
		imgui.TextColored(imgui.NewVec4(0.9, 0.3, 0.3, 1), status)
		return
	}
	imgui.TextDisabled(status)
}

// renderNotification shows the last screenshot message for a short while.
func (app *App) renderNotification() {
	if app.panel.notifyMsg == "" {
		return
	}
	if time.Since(app.panel.notifyAt) >= notifyPeriod {
		app.panel.notifyMsg = ""
		return
	}

	workPos := imgui.MainViewport().WorkPos()
	flags := imgui.WindowFlagsNoTitleBar | imgui.WindowFlagsNoResize |
		imgui.WindowFlagsNoMove | imgui.WindowFlagsNoScrollbar |
		imgui.WindowFlagsAlwaysAutoResize | imgui.WindowFlagsNoFocusOnAppearing
	imgui.SetNextWindowPos(imgui.NewVec2(workPos.X+panelMargin, workPos.Y+panelMargin))
	imgui.SetNextWindowBgAlpha(0.85)
	if imgui.BeginV("##Notify", nil, flags) {
		imgui.Text(app.panel.notifyMsg)
	}
	imgui.End()
}

// openFileDialog shows the native file picker without blocking the frame
// loop. The chosen path is loaded on the frame thread.
func (app *App) openFileDialog() {
	go func() {
		filename, err := dialog.File().
			Filter("glTF Models", "glb", "gltf").
			Filter("All Files", "*").
			Title("Open Model").
			Load()
		if err != nil {
			if err != dialog.ErrCancelled {
				logger.Error("file dialog failed", zap.Error(err))
			}
			return
		}

		select {
		case app.picked <- filename:
		default:
			logger.Warn("model pick already pending, ignoring", zap.String("path", filename))
		}
	}()
}
