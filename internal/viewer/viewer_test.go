package viewer

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/Faultbox/glbview/internal/assets"
	"github.com/Faultbox/glbview/internal/config"
	"github.com/Faultbox/glbview/internal/engine/animation"
	"github.com/Faultbox/glbview/internal/engine/camera"
	"github.com/Faultbox/glbview/internal/engine/scene"
)

const eps = 1e-4

func near(a, b float32) bool {
	return math.Abs(float64(a-b)) < eps
}

type fakeSurface struct {
	width, height int
	renders       int
	scene         *scene.Scene
}

func (f *fakeSurface) SetSize(w, h int) {
	f.width, f.height = w, h
}

func (f *fakeSurface) Render(s *scene.Scene, _ *camera.PerspectiveCamera) {
	f.renders++
	f.scene = s
}

func newState(t *testing.T) (*State, *fakeSurface) {
	t.Helper()
	surf := &fakeSurface{}
	s, err := New(config.Default(), surf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Close)
	return s, surf
}

var cubeIndices = []uint32{
	0, 1, 2, 0, 2, 3,
	4, 6, 5, 4, 7, 6,
	0, 4, 5, 0, 5, 1,
	3, 2, 6, 3, 6, 7,
}

func cubePositions() [][3]float32 {
	return [][3]float32{
		{-1, -2, -1}, {1, -2, -1}, {1, 2, -1}, {-1, 2, -1},
		{-1, -2, 1}, {1, -2, 1}, {1, 2, 1}, {-1, 2, 1},
	}
}

// testModel returns a cube spanning y in [1, 5] with one morph target and
// two clips sliding a "Hips" node.
func testModel(clips int, morph bool) *assets.Model {
	root := scene.NewNode("model")

	body := scene.NewNode("Body")
	body.Translation = mgl32.Vec3{0, 3, 0}
	mesh := &scene.Mesh{
		Name: "Cube",
		Primitives: []*scene.Primitive{{
			Positions: cubePositions(),
			Indices:   cubeIndices,
			Material:  scene.DefaultMaterial(),
		}},
	}
	if morph {
		mesh.Primitives[0].Targets = []scene.MorphTarget{{Positions: make([][3]float32, 8)}}
		mesh.MorphTargetDictionary = map[string]int{"Smile": 0}
		mesh.MorphTargetInfluences = []float32{0}
	}
	body.Mesh = mesh
	root.Add(body)

	hips := scene.NewNode("Hips")
	root.Add(hips)

	m := &assets.Model{Name: "test", Root: root}
	for i := 0; i < clips; i++ {
		m.Clips = append(m.Clips, animation.NewClip("", []*animation.Track{{
			Node:   hips,
			Path:   animation.PathTranslation,
			Times:  []float32{0, 2},
			Values: []float32{0, 0, 0, float32(i + 1), 0, 0},
		}}))
	}
	return m
}

func TestNewWithoutSurface(t *testing.T) {
	s, err := New(config.Default(), nil)
	if !errors.Is(err, ErrNoSurface) {
		t.Fatalf("err = %v, want ErrNoSurface", err)
	}
	if s != nil {
		t.Error("no state should be built without a surface")
	}
}

func TestNewBuildsScene(t *testing.T) {
	s, surf := newState(t)
	cfg := config.Default()

	if s.Lifecycle() != Unloaded {
		t.Errorf("lifecycle = %v, want unloaded", s.Lifecycle())
	}
	if s.Camera.Position != (mgl32.Vec3{0, 5, 0}) {
		t.Errorf("camera position = %v", s.Camera.Position)
	}
	if s.Camera.FOV != 75 || s.Camera.Near != 0.01 || s.Camera.Far != 1000 {
		t.Errorf("camera = fov %g near %g far %g", s.Camera.FOV, s.Camera.Near, s.Camera.Far)
	}
	if want := float32(cfg.Window.Width) / float32(cfg.Window.Height); !near(s.Camera.Aspect, want) {
		t.Errorf("aspect = %f, want %f", s.Camera.Aspect, want)
	}
	if surf.width != cfg.Window.Width || surf.height != cfg.Window.Height {
		t.Errorf("surface = %dx%d", surf.width, surf.height)
	}
	if !s.Directional.CastShadow || s.Directional.Shadow.MapSize != 1024 {
		t.Error("directional light should cast 1024px shadows")
	}
	if s.Scene.Background != [3]float32{1, 1, 1} {
		t.Errorf("background = %v, want white", s.Scene.Background)
	}
	if len(s.Scene.Nodes()) != 1 || s.Scene.Nodes()[0] != s.Ground {
		t.Error("scene should hold only the ground")
	}
	if s.Ground.Translation.Y() != -1 {
		t.Errorf("ground y = %f, want -1", s.Ground.Translation.Y())
	}
	if s.PanelEnabled() {
		t.Error("panel should wait for a model")
	}
}

func TestResize(t *testing.T) {
	s, surf := newState(t)

	tests := []struct {
		name   string
		w, h   int
		wantW  int
		wantH  int
		aspect float32
	}{
		{"landscape", 800, 600, 800, 600, 800.0 / 600},
		{"same again", 800, 600, 800, 600, 800.0 / 600},
		{"portrait", 300, 900, 300, 900, 300.0 / 900},
		{"zero width ignored", 0, 500, 300, 900, 300.0 / 900},
		{"negative ignored", -1, -1, 300, 900, 300.0 / 900},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.Resize(tt.w, tt.h)
			if surf.width != tt.wantW || surf.height != tt.wantH {
				t.Errorf("surface = %dx%d, want %dx%d", surf.width, surf.height, tt.wantW, tt.wantH)
			}
			if !near(s.Camera.Aspect, tt.aspect) {
				t.Errorf("aspect = %f, want %f", s.Camera.Aspect, tt.aspect)
			}
		})
	}
}

func TestOnLoadedRestsModelOnGround(t *testing.T) {
	s, _ := newState(t)
	m := testModel(2, true)
	s.OnLoaded(m)

	if s.Lifecycle() != Loaded {
		t.Fatalf("lifecycle = %v", s.Lifecycle())
	}
	box := scene.BoxFromObject(m.Root)
	if !near(box.Min.Y(), 0) {
		t.Errorf("lowest point y = %f, want 0", box.Min.Y())
	}
	if !near(s.Scene.Bounds.Min.Y(), 0) || !near(s.Scene.Bounds.Max.Y(), 4) {
		t.Errorf("bounds = %v", s.Scene.Bounds)
	}

	// The camera frames the box as measured before the shift.
	if !s.Camera.Position.ApproxFuncEqual(mgl32.Vec3{3, 9, 3}, near) {
		t.Errorf("camera = %v, want (3, 9, 3)", s.Camera.Position)
	}
	if !s.Controls.Target.ApproxFuncEqual(mgl32.Vec3{0, 3, 0}, near) {
		t.Errorf("orbit target = %v", s.Controls.Target)
	}

	m.Root.Traverse(func(n *scene.Node) {
		if n.Mesh != nil && !n.CastShadow {
			t.Errorf("mesh node %s does not cast shadow", n.Name)
		}
	})
	if s.MorphMesh() == nil {
		t.Error("morph mesh not captured")
	}
}

func TestOnLoadedPlaysFirstClip(t *testing.T) {
	s, _ := newState(t)
	m := testModel(2, false)
	s.OnLoaded(m)

	active := s.Mixer().ActiveActions()
	if len(active) != 1 || active[0].Clip() != m.Clips[0] {
		t.Fatalf("active actions = %d, want clip 0 only", len(active))
	}
	if active[0].TimeScale() != 1 {
		t.Errorf("time scale = %f", active[0].TimeScale())
	}
	if !s.PanelEnabled() {
		t.Error("panel should be enabled")
	}
	if names := s.AnimationNames(); len(names) != 2 || names[1] != "Animation_1" {
		t.Errorf("names = %v", names)
	}
}

func TestNoClipsDisablesPanel(t *testing.T) {
	s, _ := newState(t)
	s.OnLoaded(testModel(0, false))

	if s.Lifecycle() != Loaded {
		t.Errorf("lifecycle = %v", s.Lifecycle())
	}
	if s.PanelEnabled() || s.Mixer() != nil {
		t.Error("no clips means no panel and no mixer")
	}
	s.Play()
	s.Tick(0.1, 0)
}

func TestSelectAnimationLeavesOneAction(t *testing.T) {
	s, _ := newState(t)
	m := testModel(3, false)
	s.OnLoaded(m)
	s.SetSpeed(1.5)
	s.Tick(0.5, 0)

	s.SelectAnimation(2)

	active := s.Mixer().ActiveActions()
	if len(active) != 1 {
		t.Fatalf("active actions = %d, want 1", len(active))
	}
	a := active[0]
	if a.Clip() != m.Clips[2] {
		t.Error("active action is not bound to clip 2")
	}
	if a.TimeScale() != 1.5 {
		t.Errorf("time scale = %f, want 1.5", a.TimeScale())
	}
	if a.Time() != 0 {
		t.Errorf("time = %f, want a fresh start", a.Time())
	}
	if s.Control.Animation != 2 {
		t.Errorf("control animation = %d", s.Control.Animation)
	}

	s.SelectAnimation(7)
	if s.Control.Animation != 2 {
		t.Error("out of range selection should be ignored")
	}
}

func TestPauseThenPlayKeepsTime(t *testing.T) {
	s, _ := newState(t)
	s.OnLoaded(testModel(1, false))
	a := s.Mixer().ActiveActions()[0]

	s.Tick(0.5, 0)
	s.Pause()
	if !s.IsPaused() {
		t.Fatal("not paused")
	}
	s.Tick(0.5, 0)
	if !near(a.Time(), 0.5) {
		t.Errorf("time while paused = %f, want 0.5", a.Time())
	}

	s.Play()
	if !near(a.Time(), 0.5) {
		t.Errorf("time after play = %f, want 0.5", a.Time())
	}
	s.Tick(0.25, 0)
	if !near(a.Time(), 0.75) {
		t.Errorf("time after resume = %f, want 0.75", a.Time())
	}
}

func TestSetSpeedClamps(t *testing.T) {
	s, _ := newState(t)
	s.OnLoaded(testModel(1, false))

	tests := []struct {
		in, want float32
	}{
		{0.5, 0.5},
		{5, 2},
		{0, 0.1},
		{-1, 0.1},
	}
	for _, tt := range tests {
		s.SetSpeed(tt.in)
		if s.Control.Speed != tt.want {
			t.Errorf("SetSpeed(%g): speed = %g, want %g", tt.in, s.Control.Speed, tt.want)
		}
		if got := s.Mixer().ActiveActions()[0].TimeScale(); got != tt.want {
			t.Errorf("SetSpeed(%g): time scale = %g", tt.in, got)
		}
	}
}

func TestPanelIsNoOpBeforeLoad(t *testing.T) {
	s, _ := newState(t)

	s.Play()
	s.Pause()
	s.SetSpeed(1.7)
	s.SelectAnimation(1)

	if s.Control != (Control{Speed: 1, Animation: 0}) {
		t.Errorf("control = %+v, want untouched", s.Control)
	}
	if s.IsPaused() {
		t.Error("nothing to pause")
	}
}

func TestMorphInfluenceRange(t *testing.T) {
	for ms := -1e7; ms <= 1e7; ms += 1234.5 {
		v := MorphInfluence(ms)
		if v < 0 || v > 1 {
			t.Fatalf("MorphInfluence(%f) = %f", ms, v)
		}
	}
	if !near(MorphInfluence(0), 0.5) {
		t.Errorf("MorphInfluence(0) = %f", MorphInfluence(0))
	}
}

func TestTickDrivesMorph(t *testing.T) {
	s, surf := newState(t)
	m := testModel(1, true)
	s.OnLoaded(m)

	now := 1570.0
	s.Tick(0.016, now)
	got := s.MorphMesh().MorphTargetInfluences[0]
	if !near(got, MorphInfluence(now)) {
		t.Errorf("influence = %f, want %f", got, MorphInfluence(now))
	}
	if surf.renders != 1 || surf.scene != s.Scene {
		t.Error("tick should render the scene once")
	}
}

func TestMorphMeshIsLastInTraversal(t *testing.T) {
	s, _ := newState(t)
	m := testModel(1, true)
	head := m.Meshes()[0]
	head.Name = "Head"

	body := scene.NewNode("Torso")
	body.Mesh = &scene.Mesh{
		Name: "Body",
		Primitives: []*scene.Primitive{{
			Positions: cubePositions(),
			Indices:   cubeIndices,
			Targets:   []scene.MorphTarget{{Positions: make([][3]float32, 8)}},
		}},
		MorphTargetDictionary: map[string]int{"Breathe": 0},
		MorphTargetInfluences: []float32{1},
	}
	m.Root.Add(body)
	s.OnLoaded(m)

	if got := s.MorphMesh(); got != body.Mesh {
		t.Fatalf("morph mesh = %v, want the last one in traversal (Body)", got)
	}

	head.MorphTargetInfluences[0] = 0.75
	now := 1570.796
	s.Tick(0, now)
	if got := body.Mesh.MorphTargetInfluences[0]; !near(got, MorphInfluence(now)) {
		t.Errorf("Body influence = %f, want %f", got, MorphInfluence(now))
	}
	if head.MorphTargetInfluences[0] != 0.75 {
		t.Errorf("Head influence changed to %f", head.MorphTargetInfluences[0])
	}
}

func TestTickLeavesMeshWithoutDictionary(t *testing.T) {
	s, _ := newState(t)
	m := testModel(1, false)
	mesh := m.Meshes()[0]
	mesh.MorphTargetInfluences = []float32{0.25}
	s.OnLoaded(m)

	s.Tick(0.016, 1570)
	if s.MorphMesh() != nil {
		t.Fatal("mesh without named targets should not be captured")
	}
	if mesh.MorphTargetInfluences[0] != 0.25 {
		t.Errorf("influence changed to %f", mesh.MorphTargetInfluences[0])
	}
}

func TestReloadReplacesModel(t *testing.T) {
	s, _ := newState(t)
	first := testModel(1, true)
	s.OnLoaded(first)
	second := testModel(2, false)
	s.OnLoaded(second)

	for _, n := range s.Scene.Nodes() {
		if n == first.Root {
			t.Fatal("first model still in scene")
		}
	}
	if s.MorphMesh() != nil {
		t.Error("morph mesh from the first model kept")
	}
	if len(s.AnimationNames()) != 2 {
		t.Errorf("clips = %d, want 2", len(s.AnimationNames()))
	}
}

func writeGLB(t *testing.T) string {
	t.Helper()
	doc := gltf.NewDocument()
	pos := modeler.WritePosition(doc, cubePositions())
	idx := modeler.WriteIndices(doc, cubeIndices)
	doc.Meshes = append(doc.Meshes, &gltf.Mesh{
		Name: "Cube",
		Primitives: []*gltf.Primitive{{
			Attributes: gltf.PrimitiveAttributes{gltf.POSITION: pos},
			Indices:    gltf.Index(idx),
		}},
	})
	doc.Nodes = append(doc.Nodes, &gltf.Node{Name: "Body", Mesh: gltf.Index(0), Translation: [3]float64{0, 3, 0}})
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)

	path := filepath.Join(t.TempDir(), "cube.glb")
	if err := gltf.SaveBinary(doc, path); err != nil {
		t.Fatalf("SaveBinary: %v", err)
	}
	return path
}

// waitLoad ticks until the load in flight settles.
func waitLoad(t *testing.T, s *State) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for s.Lifecycle() == Loading {
		if time.Now().After(deadline) {
			t.Fatal("load did not finish")
		}
		s.Tick(0, 0)
		time.Sleep(5 * time.Millisecond)
	}
}

func TestLoadFromFile(t *testing.T) {
	s, _ := newState(t)
	s.Load(context.Background(), writeGLB(t))
	if s.Lifecycle() != Loading {
		t.Fatalf("lifecycle = %v, want loading", s.Lifecycle())
	}
	waitLoad(t, s)

	if s.Lifecycle() != Loaded {
		t.Fatalf("lifecycle = %v: %v", s.Lifecycle(), s.LoadError())
	}
	box := scene.BoxFromObject(s.Model().Root)
	if !near(box.Min.Y(), 0) {
		t.Errorf("lowest point y = %f, want 0", box.Min.Y())
	}
	if s.PanelEnabled() {
		t.Error("a model without clips should not enable the panel")
	}
}

func TestLoadFailure(t *testing.T) {
	s, _ := newState(t)
	s.Load(context.Background(), filepath.Join(t.TempDir(), "missing.glb"))
	waitLoad(t, s)

	if s.Lifecycle() != LoadFailed {
		t.Fatalf("lifecycle = %v, want load failed", s.Lifecycle())
	}
	if s.LoadError() == nil {
		t.Error("missing load error")
	}
	if !strings.HasPrefix(s.Status(), "Failed to load") {
		t.Errorf("status = %q", s.Status())
	}
	if len(s.Scene.Nodes()) != 1 {
		t.Error("scene should only hold the ground")
	}

	// Panel actions stay inert.
	s.SelectAnimation(0)
	s.Play()
}

func TestClock(t *testing.T) {
	base := time.Unix(100, 0)
	times := []time.Time{base, base.Add(16 * time.Millisecond), base.Add(10 * time.Millisecond)}
	i := 0
	c := NewClockFunc(func() time.Time {
		now := times[i]
		i++
		return now
	})

	d, ms := c.Tick()
	if d != 0 || ms != 100000 {
		t.Errorf("first tick = %f, %f", d, ms)
	}
	if d, _ = c.Tick(); !near(d, 0.016) {
		t.Errorf("delta = %f, want 0.016", d)
	}
	if d, _ = c.Tick(); d != 0 {
		t.Errorf("backwards delta = %f, want 0", d)
	}
}
