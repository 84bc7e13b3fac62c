package animation

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/glbview/internal/engine/scene"
)

// Mixer advances active actions and writes their blended result onto nodes.
// It is not safe for concurrent use; drive it from the frame loop.
type Mixer struct {
	root *scene.Node

	actions  map[*Clip]*Action
	active   []*Action
	bindings map[bindingKey]*binding

	time float32
}

// NewMixer creates a mixer for the hierarchy under root.
func NewMixer(root *scene.Node) *Mixer {
	return &Mixer{
		root:     root,
		actions:  make(map[*Clip]*Action),
		bindings: make(map[bindingKey]*binding),
	}
}

// Time returns the total scaled time the mixer has been updated by.
func (m *Mixer) Time() float32 {
	return m.time
}

// ClipAction returns the action for clip, creating it on first use.
// Repeated calls return the same action.
func (m *Mixer) ClipAction(c *Clip) *Action {
	if a, ok := m.actions[c]; ok {
		return a
	}
	a := newAction(m, c)
	m.actions[c] = a
	return a
}

// ExistingAction returns the action for clip or nil if none was created.
func (m *Mixer) ExistingAction(c *Clip) *Action {
	return m.actions[c]
}

// ActiveActions returns the actions currently bound to the mixer.
func (m *Mixer) ActiveActions() []*Action {
	out := make([]*Action, len(m.active))
	copy(out, m.active)
	return out
}

// StopAllAction stops every active action.
func (m *Mixer) StopAllAction() *Mixer {
	for len(m.active) > 0 {
		m.active[len(m.active)-1].Stop()
	}
	return m
}

// Update advances every active action by delta seconds and applies the
// blended values. Paused actions keep contributing their frozen pose.
func (m *Mixer) Update(delta float32) {
	m.time += delta

	for _, a := range m.active {
		a.advance(delta)
	}

	for _, b := range m.bindings {
		b.weight = 0
	}
	for _, a := range m.active {
		if a.weight <= 0 {
			continue
		}
		for i, t := range a.clip.Tracks {
			b := a.bindings[i]
			if b == nil {
				continue
			}
			t.Sample(a.time, b.sample)
			b.accumulate(b.sample, a.weight)
		}
	}
	for _, b := range m.bindings {
		if b.users > 0 && b.weight > 0 {
			b.apply()
		}
	}
}

func (m *Mixer) isActive(a *Action) bool {
	for _, x := range m.active {
		if x == a {
			return true
		}
	}
	return false
}

func (m *Mixer) activate(a *Action) {
	if m.isActive(a) {
		return
	}
	if a.bindings == nil {
		a.bindings = make([]*binding, len(a.clip.Tracks))
		for i, t := range a.clip.Tracks {
			a.bindings[i] = m.binding(t)
		}
	}
	for _, b := range a.bindings {
		if b != nil {
			b.users++
		}
	}
	m.active = append(m.active, a)
}

func (m *Mixer) deactivate(a *Action) {
	for i, x := range m.active {
		if x != a {
			continue
		}
		m.active = append(m.active[:i], m.active[i+1:]...)
		for _, b := range a.bindings {
			if b == nil {
				continue
			}
			b.users--
			if b.users == 0 {
				b.restore()
			}
		}
		return
	}
}

// binding returns the shared property binding for a track, or nil when the
// track cannot drive anything.
func (m *Mixer) binding(t *Track) *binding {
	if t.Node == nil || t.Stride() == 0 {
		return nil
	}
	if t.Path == PathWeights && t.Node.Mesh == nil {
		return nil
	}
	key := bindingKey{node: t.Node, path: t.Path}
	if b, ok := m.bindings[key]; ok {
		return b
	}
	b := newBinding(t.Node, t.Path, t.Stride())
	m.bindings[key] = b
	return b
}

type bindingKey struct {
	node *scene.Node
	path Path
}

// binding accumulates weighted samples for one node property.
type binding struct {
	node *scene.Node
	path Path

	rest   []float32 // value before any action touched it
	acc    []float32
	sample []float32
	weight float32
	users  int
}

func newBinding(n *scene.Node, p Path, stride int) *binding {
	b := &binding{
		node:   n,
		path:   p,
		acc:    make([]float32, stride),
		sample: make([]float32, stride),
	}
	b.rest = b.read(stride)
	return b
}

// read copies the node's current property value.
func (b *binding) read(stride int) []float32 {
	out := make([]float32, stride)
	n := b.node
	switch b.path {
	case PathTranslation:
		copy(out, n.Translation[:])
	case PathScale:
		copy(out, n.Scale[:])
	case PathRotation:
		out[0], out[1], out[2], out[3] = n.Rotation.V[0], n.Rotation.V[1], n.Rotation.V[2], n.Rotation.W
	case PathWeights:
		copy(out, n.Mesh.MorphTargetInfluences)
	}
	return out
}

func (b *binding) accumulate(v []float32, w float32) {
	if b.weight == 0 {
		copy(b.acc, v)
		b.weight = w
		return
	}
	b.weight += w
	b.mix(v, w/b.weight)
}

// mix moves acc toward v by f.
func (b *binding) mix(v []float32, f float32) {
	if b.path == PathRotation {
		q := slerp(quat(b.acc), quat(v), f)
		b.acc[0], b.acc[1], b.acc[2], b.acc[3] = q.V[0], q.V[1], q.V[2], q.W
		return
	}
	for i := range b.acc {
		b.acc[i] += (v[i] - b.acc[i]) * f
	}
}

// apply writes the accumulated value, filling any missing weight with the rest pose.
func (b *binding) apply() {
	if b.weight < 1 {
		b.mix(b.rest, 1-b.weight)
	}
	b.write(b.acc)
}

func (b *binding) restore() {
	b.write(b.rest)
}

func (b *binding) write(v []float32) {
	n := b.node
	switch b.path {
	case PathTranslation:
		n.Translation = mgl32.Vec3{v[0], v[1], v[2]}
	case PathScale:
		n.Scale = mgl32.Vec3{v[0], v[1], v[2]}
	case PathRotation:
		n.Rotation = mgl32.Quat{W: v[3], V: mgl32.Vec3{v[0], v[1], v[2]}}.Normalize()
	case PathWeights:
		copy(n.Mesh.MorphTargetInfluences, v)
	}
}
