// Package viewer wires the scene, camera, lights, animation mixer and asset
// loader together and drives them once per frame.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/glbview/internal/assets"
	"github.com/Faultbox/glbview/internal/config"
	"github.com/Faultbox/glbview/internal/engine/animation"
	"github.com/Faultbox/glbview/internal/engine/camera"
	"github.com/Faultbox/glbview/internal/engine/lighting"
	"github.com/Faultbox/glbview/internal/engine/scene"
	"github.com/Faultbox/glbview/internal/logger"
)

// ErrNoSurface is returned by New when there is nothing to render into.
var ErrNoSurface = errors.New("viewer: no render surface")

// Surface is where frames go. The GL renderer implements it.
type Surface interface {
	SetSize(width, height int)
	Render(s *scene.Scene, cam *camera.PerspectiveCamera)
}

// Lifecycle is the load state of the viewer.
type Lifecycle int

const (
	Unloaded Lifecycle = iota
	Loading
	Loaded
	LoadFailed
)

func (l Lifecycle) String() string {
	switch l {
	case Unloaded:
		return "unloaded"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case LoadFailed:
		return "load failed"
	default:
		return fmt.Sprintf("Lifecycle(%d)", int(l))
	}
}

// Control is what the debug panel edits.
type Control struct {
	Speed     float32
	Animation int
}

// State holds everything the load handler and the frame tick share.
type State struct {
	cfg     *config.Config
	surface Surface
	loader  *assets.Loader

	Scene       *scene.Scene
	Camera      *camera.PerspectiveCamera
	Controls    *camera.OrbitControls
	Ambient     *lighting.AmbientLight
	Directional *lighting.DirectionalLight
	Ground      *scene.Node

	lifecycle Lifecycle
	loadErr   error
	loadID    uint64
	path      string
	cancel    context.CancelFunc

	model     *assets.Model
	clips     []*animation.Clip
	mixer     *animation.Mixer
	morphMesh *scene.Mesh

	Control      Control
	panelEnabled bool

	width, height int
}

// New builds the scene around surface. A nil surface is reported and
// nothing is built.
func New(cfg *config.Config, surface Surface) (*State, error) {
	if surface == nil {
		logger.Error("no render surface, viewer not started")
		return nil, ErrNoSurface
	}

	sc := cfg.Scene
	s := &State{
		cfg:     cfg,
		surface: surface,
		loader:  assets.NewLoader(assets.NewFetcher(cfg.Asset.FetchTimeout)),
		Scene:   scene.New(),
		Control: Control{Speed: 1, Animation: 0},
		width:   cfg.Window.Width,
		height:  cfg.Window.Height,
	}

	if bg, err := config.ParseColor(sc.ClearColor); err == nil {
		s.Scene.Background = bg
	} else {
		logger.Warn("invalid clear color, using white", zap.String("color", sc.ClearColor), zap.Error(err))
	}

	s.Camera = camera.NewPerspectiveCamera(sc.FOV, 1, sc.Near, sc.Far)
	s.Camera.SetAspect(s.width, s.height)
	s.Camera.Position = mgl32.Vec3{0, 5, 0}

	white := mgl32.Vec3{1, 1, 1}
	s.Ambient = lighting.NewAmbientLight(white, sc.AmbientIntensity)
	s.Directional = lighting.NewDirectionalLight(white, sc.DirectionalIntensity, mgl32.Vec3(sc.DirectionalPosition))
	s.Directional.CastShadow = true
	s.Directional.Shadow = lighting.ShadowCamera{
		Left: sc.Shadow.Left, Right: sc.Shadow.Right,
		Top: sc.Shadow.Top, Bottom: sc.Shadow.Bottom,
		Near: sc.Shadow.Near, Far: sc.Shadow.Far,
		MapSize: sc.Shadow.MapSize,
	}
	s.Scene.Ambient = s.Ambient
	s.Scene.Directional = s.Directional

	g := sc.Ground
	s.Ground = scene.NewGround(g.Width, g.Depth, g.Y, g.ShadowOpacity)
	s.Scene.Add(s.Ground)

	s.Controls = camera.NewOrbitControls(s.Camera)
	s.Controls.EnableDamping = cfg.Camera.EnableDamping
	s.Controls.DampingFactor = cfg.Camera.DampingFactor
	s.Controls.RotateSpeed = cfg.Camera.RotateSpeed
	s.Controls.ZoomSpeed = cfg.Camera.ZoomSpeed

	surface.SetSize(s.width, s.height)
	return s, nil
}

// Lifecycle returns the current load state.
func (s *State) Lifecycle() Lifecycle {
	return s.lifecycle
}

// LoadError returns the error of the last failed load.
func (s *State) LoadError() error {
	return s.loadErr
}

// Path returns the asset path of the current or last load.
func (s *State) Path() string {
	return s.path
}

// Model returns the loaded model, or nil.
func (s *State) Model() *assets.Model {
	return s.model
}

// Mixer returns the animation mixer, or nil before a model with clips loads.
func (s *State) Mixer() *animation.Mixer {
	return s.mixer
}

// MorphMesh returns the mesh whose first influence oscillates, or nil.
func (s *State) MorphMesh() *scene.Mesh {
	return s.morphMesh
}

// PanelEnabled reports whether the animation panel should be shown.
func (s *State) PanelEnabled() bool {
	return s.panelEnabled
}

// Size returns the last accepted viewport size.
func (s *State) Size() (int, int) {
	return s.width, s.height
}

// Load starts loading path in the background. A load already in flight is
// cancelled and its result ignored.
func (s *State) Load(ctx context.Context, path string) {
	if s.cancel != nil {
		s.cancel()
	}
	ctx, s.cancel = context.WithCancel(ctx)

	s.path = path
	s.lifecycle = Loading
	s.loadErr = nil
	s.loadID = s.loader.Load(ctx, path)
	logger.Info("loading model", zap.String("path", path), zap.Uint64("request", s.loadID))
}

// poll hands a finished load to OnLoaded or OnLoadFailed.
func (s *State) poll() {
	for {
		r, ok := s.loader.Poll()
		if !ok {
			return
		}
		if r.ID != s.loadID {
			logger.Debug("dropping stale load result", zap.String("path", r.Path), zap.Uint64("request", r.ID))
			continue
		}
		if s.cancel != nil {
			s.cancel()
			s.cancel = nil
		}
		if r.Err != nil {
			s.OnLoadFailed(r.Err)
		} else {
			s.OnLoaded(r.Model)
		}
	}
}

// OnLoaded installs m as the current model.
func (s *State) OnLoaded(m *assets.Model) {
	s.unload()

	root := m.Root
	s.Scene.Add(root)
	root.Traverse(func(n *scene.Node) {
		if n.Mesh != nil {
			n.CastShadow = true
		}
	})

	// Every morph mesh is logged; the last one in traversal order oscillates.
	for _, mesh := range m.Meshes() {
		if mesh.HasMorphTargets() {
			s.morphMesh = mesh
			logger.Info("morph targets", zap.String("mesh", mesh.Name), zap.Any("dictionary", mesh.MorphTargetDictionary))
		}
	}

	box := scene.BoxFromObject(root)
	center := box.Center()
	size := box.Size()
	if !box.IsEmpty() {
		root.Translation[1] -= box.Min.Y()
		s.Scene.Bounds = box.Translate(mgl32.Vec3{0, -box.Min.Y(), 0})
	}

	s.Camera.Position = mgl32.Vec3{
		center.X() + size.X()*1.5,
		center.Y() + size.Y()*1.5,
		center.Z() + size.Z()*1.5,
	}
	s.Controls.SetTarget(center)

	s.model = m
	s.clips = m.Clips
	s.Control = Control{Speed: 1, Animation: 0}
	if len(s.clips) > 0 {
		s.mixer = animation.NewMixer(root)
		s.mixer.ClipAction(s.clips[0]).SetTimeScale(1).Play()
	}

	for i, c := range s.clips {
		logger.Info(fmt.Sprintf("Animation %d: %s", i, c.DisplayName(i)))
	}

	s.lifecycle = Loaded
	s.panelEnabled = len(s.clips) > 0
	if !s.panelEnabled {
		logger.Warn("model has no animations", zap.String("model", m.Name))
	}
}

// OnLoadFailed records err and leaves the scene empty.
func (s *State) OnLoadFailed(err error) {
	s.unload()
	s.lifecycle = LoadFailed
	s.loadErr = err
	logger.Error("failed to load model", zap.String("path", s.path), zap.Error(err))
}

// unload removes the current model from the scene.
func (s *State) unload() {
	if s.mixer != nil {
		s.mixer.StopAllAction()
	}
	if s.model != nil {
		s.Scene.Remove(s.model.Root)
	}
	s.model = nil
	s.clips = nil
	s.mixer = nil
	s.morphMesh = nil
	s.panelEnabled = false
	s.Scene.Bounds = scene.EmptyBox()
}

// Status is the one-line summary shown under the panel.
func (s *State) Status() string {
	switch s.lifecycle {
	case Loading:
		return "Loading " + s.path + "..."
	case LoadFailed:
		return "Failed to load " + s.path + ": " + s.loadErr.Error()
	case Loaded:
		return fmt.Sprintf("%s: %d animation(s)", s.model.Name, len(s.clips))
	default:
		return "No model"
	}
}

// AnimationNames returns the panel labels for every clip.
func (s *State) AnimationNames() []string {
	names := make([]string, len(s.clips))
	for i, c := range s.clips {
		names[i] = c.DisplayName(i)
	}
	return names
}

// currentAction returns the action for the selected clip, or nil when the
// panel has nothing to act on.
func (s *State) currentAction() *animation.Action {
	if s.lifecycle != Loaded || s.mixer == nil {
		return nil
	}
	i := s.Control.Animation
	if i < 0 || i >= len(s.clips) {
		return nil
	}
	return s.mixer.ClipAction(s.clips[i])
}

// Play unpauses and starts the selected clip.
func (s *State) Play() {
	if a := s.currentAction(); a != nil {
		a.SetPaused(false).Play()
	}
}

// Pause freezes the selected clip in place.
func (s *State) Pause() {
	if a := s.currentAction(); a != nil {
		a.SetPaused(true)
	}
}

// IsPaused reports whether the selected clip is paused.
func (s *State) IsPaused() bool {
	if a := s.currentAction(); a != nil {
		return a.IsPaused()
	}
	return false
}

// SetSpeed clamps v to the panel range and applies it to the selected clip.
func (s *State) SetSpeed(v float32) {
	if s.currentAction() == nil {
		return
	}
	p := s.cfg.Panel
	v = max(p.SpeedMin, min(p.SpeedMax, v))
	s.Control.Speed = v
	s.currentAction().SetTimeScale(v)
}

// SelectAnimation stops everything and plays clip i from the start at the
// current speed.
func (s *State) SelectAnimation(i int) {
	if s.lifecycle != Loaded || s.mixer == nil || i < 0 || i >= len(s.clips) {
		return
	}
	s.Control.Animation = i
	s.mixer.StopAllAction()
	s.mixer.ClipAction(s.clips[i]).Reset().Play().SetTimeScale(s.Control.Speed)
}

// SetShowBounds toggles the bounding box wireframe.
func (s *State) SetShowBounds(show bool) {
	s.Scene.ShowBounds = show
}

// Resize follows the viewport. Non-positive sizes are ignored.
func (s *State) Resize(width, height int) {
	if !s.Camera.SetAspect(width, height) {
		return
	}
	s.width, s.height = width, height
	s.surface.SetSize(width, height)
}

// Orbit feeds a pointer drag in pixels to the orbit controls.
func (s *State) Orbit(dx, dy float32) {
	s.Controls.Rotate(dx, dy, float32(s.height))
}

// Zoom feeds a wheel step to the orbit controls.
func (s *State) Zoom(wheel float32) {
	s.Controls.Dolly(wheel)
}

// MorphInfluence is the oscillating weight applied to the first morph target
// at wall-clock time nowMs. It always lies in [0, 1].
func MorphInfluence(nowMs float64) float32 {
	return float32(math.Sin(nowMs*0.001)*0.5 + 0.5)
}

// Tick advances one frame: it picks up finished loads, advances animation
// by delta seconds, updates the controls and renders.
func (s *State) Tick(delta float32, nowMs float64) {
	s.poll()

	if s.mixer != nil {
		s.mixer.Update(delta)
	}
	if s.morphMesh != nil && len(s.morphMesh.MorphTargetInfluences) > 0 {
		s.morphMesh.MorphTargetInfluences[0] = MorphInfluence(nowMs)
	}
	s.Controls.Update()
	s.surface.Render(s.Scene, s.Camera)
}

// Close cancels a load in flight.
func (s *State) Close() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
