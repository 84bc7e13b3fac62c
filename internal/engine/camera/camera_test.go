package camera

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

const eps = 1e-4

func near(a, b float32) bool {
	return mgl32.Abs(a-b) < eps
}

func TestSetAspect(t *testing.T) {
	c := NewPerspectiveCamera(75, 1, 0.01, 1000)

	tests := []struct {
		w, h int
		ok   bool
		want float32
	}{
		{1280, 720, true, 1280.0 / 720.0},
		{800, 800, true, 1},
		{0, 600, false, 1},
		{800, -1, false, 1},
	}
	for _, tt := range tests {
		c.Aspect = 1
		if got := c.SetAspect(tt.w, tt.h); got != tt.ok {
			t.Errorf("SetAspect(%d, %d) = %v, want %v", tt.w, tt.h, got, tt.ok)
		}
		if !near(c.Aspect, tt.want) {
			t.Errorf("SetAspect(%d, %d) aspect = %f, want %f", tt.w, tt.h, c.Aspect, tt.want)
		}
	}
}

func TestViewMatrixLooksAtTarget(t *testing.T) {
	c := NewPerspectiveCamera(75, 1, 0.01, 1000)
	c.Position = mgl32.Vec3{0, 5, 10}
	c.LookAt(mgl32.Vec3{0, 5, 0})

	p := mgl32.TransformCoordinate(c.Target, c.ViewMatrix())
	if !near(p.X(), 0) || !near(p.Y(), 0) || p.Z() >= 0 {
		t.Errorf("target in view space = %v, want on -Z axis", p)
	}
}

func TestProjectionKeepsNearPlaneInClip(t *testing.T) {
	c := NewPerspectiveCamera(75, 16.0/9.0, 0.01, 1000)
	c.Position = mgl32.Vec3{0, 0, 0}
	c.LookAt(mgl32.Vec3{0, 0, -1})

	p := mgl32.TransformCoordinate(mgl32.Vec3{0, 0, -10}, c.ViewProjection())
	if p.Z() <= -1 || p.Z() >= 1 {
		t.Errorf("point in front of camera projects outside depth range: %v", p)
	}
}

func newControls(pos mgl32.Vec3) *OrbitControls {
	c := NewPerspectiveCamera(75, 1, 0.01, 1000)
	c.Position = pos
	return NewOrbitControls(c)
}

func TestOrbitKeepsDistance(t *testing.T) {
	o := newControls(mgl32.Vec3{0, 0, 10})
	o.Rotate(100, 0, 600)
	o.Update()

	if d := o.Camera.Position.Len(); !near(d, 10) {
		t.Errorf("orbit changed distance to %f", d)
	}
	if o.Camera.Position.X() >= 0 {
		t.Errorf("dragging right should swing the camera toward -X, got %v", o.Camera.Position)
	}
	if o.Camera.Target != o.Target {
		t.Error("camera should look at the orbit target")
	}
}

func TestOrbitWithoutDampingStops(t *testing.T) {
	o := newControls(mgl32.Vec3{0, 0, 10})
	o.Rotate(50, 0, 600)
	if !o.Update() {
		t.Fatal("first update should move the camera")
	}
	if o.Update() {
		t.Error("without damping the second update should not move the camera")
	}
}

func TestOrbitDampingDecays(t *testing.T) {
	o := newControls(mgl32.Vec3{0, 0, 10})
	o.EnableDamping = true
	o.DampingFactor = 0.05

	o.RotateLeft(1)
	o.Update()
	first := o.Spherical().Theta
	if !near(first, -0.05) {
		t.Fatalf("first damped step theta = %f, want -0.05", first)
	}

	o.Update()
	second := o.Spherical().Theta - first
	if !near(second, -0.05*0.95) {
		t.Errorf("second damped step = %f, want %f", second, -0.05*0.95)
	}

	for i := 0; i < 500; i++ {
		o.Update()
	}
	if o.Update() {
		t.Error("damped motion should settle")
	}
}

func TestPolarClamp(t *testing.T) {
	o := newControls(mgl32.Vec3{0, 0, 10})
	o.RotateUp(10)
	o.Update()

	phi := o.Spherical().Phi
	if phi <= 0 || phi >= math.Pi {
		t.Errorf("phi = %f escaped (0, pi)", phi)
	}
	for i, v := range o.Camera.ViewMatrix() {
		if v != v {
			t.Fatalf("view matrix element %d is NaN at the pole", i)
		}
	}
}

func TestDolly(t *testing.T) {
	o := newControls(mgl32.Vec3{0, 0, 10})
	o.Dolly(1)
	o.Update()
	if d := o.Spherical().Radius; d >= 10 {
		t.Errorf("dolly in should shrink radius, got %f", d)
	}

	o.Dolly(-1)
	o.Update()
	if d := o.Spherical().Radius; mgl32.Abs(d-10) >= 1e-3 {
		t.Errorf("dolly out should undo dolly in, got %f", d)
	}

	o.MinDistance = 5
	o.Dolly(100)
	o.Update()
	if d := o.Spherical().Radius; !near(d, 5) {
		t.Errorf("radius should clamp to MinDistance, got %f", d)
	}
}

func TestSetTargetSyncs(t *testing.T) {
	o := newControls(mgl32.Vec3{3, 4, 0})
	o.SetTarget(mgl32.Vec3{3, 0, 0})

	s := o.Spherical()
	if !near(s.Radius, 4) || mgl32.Abs(s.Phi) >= 1e-3 {
		t.Errorf("spherical after SetTarget = %+v", s)
	}
	if o.Camera.Target != (mgl32.Vec3{3, 0, 0}) {
		t.Error("SetTarget should aim the camera")
	}
}
