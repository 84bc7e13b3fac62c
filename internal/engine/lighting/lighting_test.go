package lighting

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func near(a, b float32) bool {
	return mgl32.Abs(a-b) < 1e-4
}

func TestDirection(t *testing.T) {
	l := NewDirectionalLight(mgl32.Vec3{1, 1, 1}, 0.5, mgl32.Vec3{0, 10, 5})
	d := l.Direction()

	if !near(d.Len(), 1) {
		t.Errorf("direction should be normalized, length %f", d.Len())
	}
	if d.Y() <= 0 || d.Z() <= 0 {
		t.Errorf("direction should point up and toward +Z, got %v", d)
	}
}

func TestDirectionDegenerate(t *testing.T) {
	l := NewDirectionalLight(mgl32.Vec3{1, 1, 1}, 1, mgl32.Vec3{})
	if d := l.Direction(); d != (mgl32.Vec3{0, 1, 0}) {
		t.Errorf("coincident position and target should fall back to +Y, got %v", d)
	}
}

func TestShadowMatrixCentersTarget(t *testing.T) {
	l := NewDirectionalLight(mgl32.Vec3{1, 1, 1}, 0.5, mgl32.Vec3{0, 10, 5})
	l.Shadow = ShadowCamera{Left: -10, Right: 10, Top: 10, Bottom: -10, Near: 0.1, Far: 50, MapSize: 1024}

	p := mgl32.TransformCoordinate(l.Target, l.ShadowMatrix())
	if !near(p.X(), 0) || !near(p.Y(), 0) {
		t.Errorf("target should project to the shadow map center, got %v", p)
	}
	if p.Z() <= -1 || p.Z() >= 1 {
		t.Errorf("target depth should lie inside the clip range, got %f", p.Z())
	}
}

func TestShadowMatrixVerticalLight(t *testing.T) {
	l := NewDirectionalLight(mgl32.Vec3{1, 1, 1}, 1, mgl32.Vec3{0, 20, 0})
	m := l.ShadowMatrix()
	for i, v := range m {
		if v != v {
			t.Fatalf("matrix element %d is NaN for a straight-down light", i)
		}
	}
}

func TestRadiance(t *testing.T) {
	a := NewAmbientLight(mgl32.Vec3{1, 1, 1}, 0.5)
	if got := a.Radiance(); got != (mgl32.Vec3{0.5, 0.5, 0.5}) {
		t.Errorf("ambient radiance = %v", got)
	}
	d := NewDirectionalLight(mgl32.Vec3{1, 0, 0}, 0.5, mgl32.Vec3{0, 1, 0})
	if got := d.Radiance(); got != (mgl32.Vec3{0.5, 0, 0}) {
		t.Errorf("directional radiance = %v", got)
	}
}
