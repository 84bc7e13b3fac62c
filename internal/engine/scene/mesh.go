package scene

import (
	"image"

	"github.com/go-gl/mathgl/mgl32"
)

// Material describes how a primitive is shaded.
type Material struct {
	Name        string
	BaseColor   [4]float32
	Texture     *image.RGBA // base color map, nil when untextured
	DoubleSided bool

	// ShadowOnly materials draw nothing but received shadow, scaled by Opacity.
	ShadowOnly bool
	Opacity    float32
}

// DefaultMaterial returns an opaque white material.
func DefaultMaterial() *Material {
	return &Material{BaseColor: [4]float32{1, 1, 1, 1}, Opacity: 1}
}

// MorphTarget holds per-vertex deltas for one blend shape.
type MorphTarget struct {
	Positions [][3]float32
	Normals   [][3]float32
}

// Primitive is one draw call worth of geometry.
type Primitive struct {
	Positions [][3]float32
	Normals   [][3]float32
	UVs       [][2]float32
	Indices   []uint32

	// Skinning attributes, empty for rigid geometry.
	Joints  [][4]uint16
	Weights [][4]float32

	Targets  []MorphTarget
	Material *Material
}

// VertexCount returns the number of vertices in the primitive.
func (p *Primitive) VertexCount() int {
	return len(p.Positions)
}

// Skinned reports whether the primitive carries joint weights.
func (p *Primitive) Skinned() bool {
	return len(p.Joints) == len(p.Positions) && len(p.Weights) == len(p.Positions) && len(p.Positions) > 0
}

// Mesh groups primitives that share morph weights and a skin.
type Mesh struct {
	Name       string
	Primitives []*Primitive

	// MorphTargetDictionary maps blend shape names to target indices.
	MorphTargetDictionary map[string]int
	MorphTargetInfluences []float32

	Skin *Skin
}

// HasMorphTargets reports whether the mesh has named blend shapes.
func (m *Mesh) HasMorphTargets() bool {
	return len(m.MorphTargetDictionary) > 0
}

// MorphTargetCount returns the largest target count over all primitives.
func (m *Mesh) MorphTargetCount() int {
	n := 0
	for _, p := range m.Primitives {
		if len(p.Targets) > n {
			n = len(p.Targets)
		}
	}
	return n
}

// MorphedPosition returns vertex i of p in mesh space with the current
// morph influences applied.
func (m *Mesh) MorphedPosition(p *Primitive, i int) mgl32.Vec3 {
	v := mgl32.Vec3(p.Positions[i])
	for t, w := range m.MorphTargetInfluences {
		if w == 0 || t >= len(p.Targets) || i >= len(p.Targets[t].Positions) {
			continue
		}
		v = v.Add(mgl32.Vec3(p.Targets[t].Positions[i]).Mul(w))
	}
	return v
}

// WorldPosition returns vertex i of p in world space. bones are the world-space
// bone matrices from Skin.BoneMatrices and are ignored for rigid primitives.
func (m *Mesh) WorldPosition(p *Primitive, i int, meshWorld mgl32.Mat4, bones []mgl32.Mat4) mgl32.Vec3 {
	v := m.MorphedPosition(p, i)
	if bones == nil || !p.Skinned() {
		return mgl32.TransformCoordinate(v, meshWorld)
	}

	v4 := v.Vec4(1)
	var out mgl32.Vec4
	var total float32
	for k := 0; k < 4; k++ {
		w := p.Weights[i][k]
		j := int(p.Joints[i][k])
		if w == 0 || j >= len(bones) {
			continue
		}
		out = out.Add(bones[j].Mul4x1(v4).Mul(w))
		total += w
	}
	if total == 0 {
		return mgl32.TransformCoordinate(v, meshWorld)
	}
	return out.Vec3().Mul(1 / total)
}

// Skin binds a mesh to a joint hierarchy.
type Skin struct {
	Name                string
	Joints              []*Node
	InverseBindMatrices []mgl32.Mat4
}

// BoneMatrices returns jointWorld * inverseBind for every joint. It reads
// MatrixWorld, so the hierarchy must be updated first.
func (s *Skin) BoneMatrices() []mgl32.Mat4 {
	out := make([]mgl32.Mat4, len(s.Joints))
	for i, j := range s.Joints {
		ibm := mgl32.Ident4()
		if i < len(s.InverseBindMatrices) {
			ibm = s.InverseBindMatrices[i]
		}
		out[i] = j.MatrixWorld.Mul4(ibm)
	}
	return out
}

// JointMatrices returns the bone matrices expressed relative to the mesh node,
// ready for a shader that also applies the mesh's model matrix.
func (s *Skin) JointMatrices(meshWorld mgl32.Mat4) []mgl32.Mat4 {
	inv := meshWorld.Inv()
	bones := s.BoneMatrices()
	for i := range bones {
		bones[i] = inv.Mul4(bones[i])
	}
	return bones
}

// VertexNormals returns the primitive's normals, or smooth normals averaged
// from its faces when the source data had none.
func (p *Primitive) VertexNormals() [][3]float32 {
	if len(p.Normals) == len(p.Positions) {
		return p.Normals
	}

	acc := make([]mgl32.Vec3, len(p.Positions))
	for i := 0; i+2 < len(p.Indices); i += 3 {
		a, b, c := p.Indices[i], p.Indices[i+1], p.Indices[i+2]
		if int(a) >= len(acc) || int(b) >= len(acc) || int(c) >= len(acc) {
			continue
		}
		pa, pb, pc := mgl32.Vec3(p.Positions[a]), mgl32.Vec3(p.Positions[b]), mgl32.Vec3(p.Positions[c])
		face := pb.Sub(pa).Cross(pc.Sub(pa))
		acc[a] = acc[a].Add(face)
		acc[b] = acc[b].Add(face)
		acc[c] = acc[c].Add(face)
	}

	out := make([][3]float32, len(acc))
	for i, n := range acc {
		if n.Len() > 0 {
			n = n.Normalize()
		} else {
			n = mgl32.Vec3{0, 1, 0}
		}
		out[i] = n
	}
	return out
}
