package camera

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// polarEpsilon keeps the camera off the poles where LookAt degenerates.
const polarEpsilon = 1e-6

// Spherical is a position relative to the orbit target.
// Theta is the azimuth around +Y measured from +Z, Phi the polar angle from +Y.
type Spherical struct {
	Radius float32
	Theta  float32
	Phi    float32
}

// OrbitControls rotates and dollies a camera around a target point.
// Input accumulates into deltas that Update applies once per frame.
type OrbitControls struct {
	Camera *PerspectiveCamera
	Target mgl32.Vec3

	EnableDamping bool
	DampingFactor float32
	RotateSpeed   float32
	ZoomSpeed     float32

	MinDistance   float32
	MaxDistance   float32
	MinPolarAngle float32
	MaxPolarAngle float32

	spherical Spherical
	delta     Spherical // Radius unused
	scale     float32
}

// NewOrbitControls creates controls for cam orbiting the origin.
func NewOrbitControls(cam *PerspectiveCamera) *OrbitControls {
	o := &OrbitControls{
		Camera:        cam,
		DampingFactor: 0.05,
		RotateSpeed:   1,
		ZoomSpeed:     1,
		MinDistance:   0,
		MaxDistance:   float32(math.Inf(1)),
		MinPolarAngle: 0,
		MaxPolarAngle: math.Pi,
		scale:         1,
	}
	o.Sync()
	return o
}

// SetTarget moves the orbit center and points the camera at it.
func (o *OrbitControls) SetTarget(t mgl32.Vec3) {
	o.Target = t
	o.Camera.LookAt(t)
	o.Sync()
}

// Sync re-derives the spherical state from the camera position.
// Call it after moving the camera directly.
func (o *OrbitControls) Sync() {
	o.spherical = toSpherical(o.Camera.Position.Sub(o.Target))
}

// Spherical returns the camera position relative to Target as of the last Update or Sync.
func (o *OrbitControls) Spherical() Spherical {
	return o.spherical
}

// Rotate accumulates a pointer drag of dx, dy pixels on a viewport of the given height.
// A drag across the full height turns the camera once around.
func (o *OrbitControls) Rotate(dx, dy, viewportHeight float32) {
	if viewportHeight <= 0 {
		return
	}
	k := 2 * math.Pi * o.RotateSpeed / viewportHeight
	o.RotateLeft(k * dx)
	o.RotateUp(k * dy)
}

// RotateLeft adds an azimuth delta in radians.
func (o *OrbitControls) RotateLeft(angle float32) {
	o.delta.Theta -= angle
}

// RotateUp adds a polar delta in radians.
func (o *OrbitControls) RotateUp(angle float32) {
	o.delta.Phi -= angle
}

// Dolly accumulates a wheel step. Positive delta moves toward the target.
func (o *OrbitControls) Dolly(delta float32) {
	if delta == 0 {
		return
	}
	step := float32(math.Pow(0.95, float64(o.ZoomSpeed*abs32(delta))))
	if delta > 0 {
		o.scale *= step
	} else {
		o.scale /= step
	}
}

// Update applies pending input and reports whether the camera moved.
// With damping the rotation deltas decay by 1-DampingFactor each call
// so the orbit keeps gliding after input stops.
func (o *OrbitControls) Update() bool {
	before := o.Camera.Position
	s := toSpherical(o.Camera.Position.Sub(o.Target))

	if o.EnableDamping {
		s.Theta += o.delta.Theta * o.DampingFactor
		s.Phi += o.delta.Phi * o.DampingFactor
	} else {
		s.Theta += o.delta.Theta
		s.Phi += o.delta.Phi
	}

	s.Phi = clamp(s.Phi, o.MinPolarAngle, o.MaxPolarAngle)
	s.Phi = clamp(s.Phi, polarEpsilon, math.Pi-polarEpsilon)

	s.Radius = clamp(s.Radius*o.scale, o.MinDistance, o.MaxDistance)

	o.Camera.Position = o.Target.Add(fromSpherical(s))
	o.Camera.LookAt(o.Target)
	o.spherical = s

	if o.EnableDamping {
		o.delta.Theta *= 1 - o.DampingFactor
		o.delta.Phi *= 1 - o.DampingFactor
	} else {
		o.delta = Spherical{}
	}
	o.scale = 1

	return o.Camera.Position.Sub(before).LenSqr() > polarEpsilon
}

func toSpherical(v mgl32.Vec3) Spherical {
	r := v.Len()
	if r == 0 {
		return Spherical{}
	}
	return Spherical{
		Radius: r,
		Theta:  float32(math.Atan2(float64(v.X()), float64(v.Z()))),
		Phi:    float32(math.Acos(float64(clamp(v.Y()/r, -1, 1)))),
	}
}

func fromSpherical(s Spherical) mgl32.Vec3 {
	sinPhi := float32(math.Sin(float64(s.Phi)))
	return mgl32.Vec3{
		s.Radius * sinPhi * float32(math.Sin(float64(s.Theta))),
		s.Radius * float32(math.Cos(float64(s.Phi))),
		s.Radius * sinPhi * float32(math.Cos(float64(s.Theta))),
	}
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
