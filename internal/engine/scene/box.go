package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Box3 is an axis-aligned bounding box.
type Box3 struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// EmptyBox returns a box that contains nothing; expanding it by a point
// yields a zero-size box at that point.
func EmptyBox() Box3 {
	inf := float32(math.Inf(1))
	return Box3{
		Min: mgl32.Vec3{inf, inf, inf},
		Max: mgl32.Vec3{-inf, -inf, -inf},
	}
}

// IsEmpty reports whether the box contains no points.
func (b Box3) IsEmpty() bool {
	return b.Max.X() < b.Min.X() || b.Max.Y() < b.Min.Y() || b.Max.Z() < b.Min.Z()
}

// ExpandByPoint grows the box to include p.
func (b *Box3) ExpandByPoint(p mgl32.Vec3) {
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] {
			b.Min[i] = p[i]
		}
		if p[i] > b.Max[i] {
			b.Max[i] = p[i]
		}
	}
}

// Union returns the smallest box containing both b and o.
func (b Box3) Union(o Box3) Box3 {
	if o.IsEmpty() {
		return b
	}
	b.ExpandByPoint(o.Min)
	b.ExpandByPoint(o.Max)
	return b
}

// Center returns the box midpoint. An empty box has a zero center.
func (b Box3) Center() mgl32.Vec3 {
	if b.IsEmpty() {
		return mgl32.Vec3{}
	}
	return b.Min.Add(b.Max).Mul(0.5)
}

// Size returns the box extent per axis. An empty box has zero size.
func (b Box3) Size() mgl32.Vec3 {
	if b.IsEmpty() {
		return mgl32.Vec3{}
	}
	return b.Max.Sub(b.Min)
}

// Translate returns the box moved by d.
func (b Box3) Translate(d mgl32.Vec3) Box3 {
	if b.IsEmpty() {
		return b
	}
	return Box3{Min: b.Min.Add(d), Max: b.Max.Add(d)}
}

// BoxFromObject computes the world-space box of every mesh vertex under root,
// in its current pose with morph targets and skinning applied.
func BoxFromObject(root *Node) Box3 {
	root.UpdateMatrixWorld()

	box := EmptyBox()
	root.Traverse(func(n *Node) {
		if n.Mesh == nil {
			return
		}
		var bones []mgl32.Mat4
		if n.Mesh.Skin != nil {
			bones = n.Mesh.Skin.BoneMatrices()
		}
		for _, p := range n.Mesh.Primitives {
			for i := range p.Positions {
				box.ExpandByPoint(n.Mesh.WorldPosition(p, i, n.MatrixWorld, bones))
			}
		}
	})
	return box
}
