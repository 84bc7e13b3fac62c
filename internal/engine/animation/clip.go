// Package animation plays keyframed clips on scene nodes: clips hold tracks,
// actions hold per-clip playback state, and the mixer advances and blends them.
package animation

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/glbview/internal/engine/scene"
)

// Path is the node property a track animates.
type Path int

const (
	PathTranslation Path = iota
	PathRotation
	PathScale
	PathWeights
)

func (p Path) String() string {
	switch p {
	case PathTranslation:
		return "translation"
	case PathRotation:
		return "rotation"
	case PathScale:
		return "scale"
	case PathWeights:
		return "weights"
	}
	return fmt.Sprintf("Path(%d)", int(p))
}

// Interpolation selects how values between keyframes are computed.
type Interpolation int

const (
	InterpolationLinear Interpolation = iota
	InterpolationStep
	// InterpolationCubicSpline stores in-tangent, value, out-tangent per key.
	// Sampling uses the value keys with linear blending.
	InterpolationCubicSpline
)

// Track is one animated property of one node.
type Track struct {
	Node          *scene.Node
	Path          Path
	Interpolation Interpolation

	// Times are keyframe timestamps in seconds, ascending.
	Times []float32
	// Values are flattened keyframe values. Cubic spline tracks hold three
	// entries (in-tangent, value, out-tangent) per key.
	Values []float32
}

// Stride returns how many floats make up one keyframe value.
func (t *Track) Stride() int {
	if len(t.Times) == 0 {
		return 0
	}
	n := len(t.Values) / len(t.Times)
	if t.Interpolation == InterpolationCubicSpline {
		n /= 3
	}
	return n
}

// Validate checks that values line up with times.
func (t *Track) Validate() error {
	if t.Node == nil {
		return fmt.Errorf("%s track has no target node", t.Path)
	}
	if len(t.Times) == 0 {
		return fmt.Errorf("%s track on %q has no keyframes", t.Path, t.Node.Name)
	}
	per := len(t.Times)
	if t.Interpolation == InterpolationCubicSpline {
		per *= 3
	}
	if len(t.Values)%per != 0 {
		return fmt.Errorf("%s track on %q: %d values for %d keys", t.Path, t.Node.Name, len(t.Values), len(t.Times))
	}
	want := map[Path]int{PathTranslation: 3, PathRotation: 4, PathScale: 3}
	if n, ok := want[t.Path]; ok && t.Stride() != n {
		return fmt.Errorf("%s track on %q: stride %d, want %d", t.Path, t.Node.Name, t.Stride(), n)
	}
	return nil
}

// value returns the keyframe value at index i.
func (t *Track) value(i, stride int) []float32 {
	if t.Interpolation == InterpolationCubicSpline {
		off := (i*3 + 1) * stride
		return t.Values[off : off+stride]
	}
	return t.Values[i*stride : (i+1)*stride]
}

// Sample writes the track value at time at into out, which must have Stride() length.
// Times before the first key clamp to it, times after the last clamp to the last.
func (t *Track) Sample(at float32, out []float32) {
	stride := t.Stride()
	n := len(t.Times)
	if n == 0 || stride == 0 {
		return
	}

	if at <= t.Times[0] || n == 1 {
		copy(out, t.value(0, stride))
		return
	}
	if at >= t.Times[n-1] {
		copy(out, t.value(n-1, stride))
		return
	}

	// First key strictly after at.
	next := sort.Search(n, func(i int) bool { return t.Times[i] > at })
	prev := next - 1

	a := t.value(prev, stride)
	if t.Interpolation == InterpolationStep {
		copy(out, a)
		return
	}
	b := t.value(next, stride)

	span := t.Times[next] - t.Times[prev]
	f := float32(0)
	if span > 0 {
		f = (at - t.Times[prev]) / span
	}

	if t.Path == PathRotation {
		q := slerp(quat(a), quat(b), f)
		out[0], out[1], out[2], out[3] = q.V[0], q.V[1], q.V[2], q.W
		return
	}
	for i := 0; i < stride; i++ {
		out[i] = a[i] + (b[i]-a[i])*f
	}
}

// quat reads an x, y, z, w quaternion.
func quat(v []float32) mgl32.Quat {
	return mgl32.Quat{W: v[3], V: mgl32.Vec3{v[0], v[1], v[2]}}.Normalize()
}

// slerp interpolates along the shorter arc.
func slerp(a, b mgl32.Quat, f float32) mgl32.Quat {
	if a.Dot(b) < 0 {
		b = b.Scale(-1)
	}
	return mgl32.QuatSlerp(a, b, f)
}

// Clip is a named set of tracks played together.
type Clip struct {
	Name     string
	Duration float32
	Tracks   []*Track
}

// NewClip builds a clip whose duration is the last keyframe time over all tracks.
func NewClip(name string, tracks []*Track) *Clip {
	c := &Clip{Name: name, Tracks: tracks}
	for _, t := range tracks {
		if n := len(t.Times); n > 0 && t.Times[n-1] > c.Duration {
			c.Duration = t.Times[n-1]
		}
	}
	return c
}

// DisplayName returns the clip name or Animation_<index> when it has none.
func (c *Clip) DisplayName(index int) string {
	if c.Name != "" {
		return c.Name
	}
	return fmt.Sprintf("Animation_%d", index)
}
