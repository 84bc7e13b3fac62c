// Package scene provides the scene graph the viewer renders: nodes with TRS
// transforms, meshes with morph targets and skins, and bounding boxes.
package scene

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Node is a transform in the scene hierarchy. A node may carry a mesh.
type Node struct {
	Name string

	Translation mgl32.Vec3
	Rotation    mgl32.Quat
	Scale       mgl32.Vec3

	Parent   *Node
	Children []*Node

	Mesh *Mesh

	CastShadow    bool
	ReceiveShadow bool

	// MatrixWorld is refreshed by UpdateMatrixWorld.
	MatrixWorld mgl32.Mat4
}

// NewNode creates a node with an identity transform.
func NewNode(name string) *Node {
	return &Node{
		Name:        name,
		Rotation:    mgl32.QuatIdent(),
		Scale:       mgl32.Vec3{1, 1, 1},
		MatrixWorld: mgl32.Ident4(),
	}
}

// Add attaches child to n, detaching it from any previous parent.
func (n *Node) Add(child *Node) {
	if child.Parent != nil {
		child.Parent.Remove(child)
	}
	child.Parent = n
	n.Children = append(n.Children, child)
}

// Remove detaches child from n. It reports whether child was attached.
func (n *Node) Remove(child *Node) bool {
	for i, c := range n.Children {
		if c == child {
			n.Children = append(n.Children[:i], n.Children[i+1:]...)
			child.Parent = nil
			return true
		}
	}
	return false
}

// LocalMatrix returns T * R * S.
func (n *Node) LocalMatrix() mgl32.Mat4 {
	t := mgl32.Translate3D(n.Translation.X(), n.Translation.Y(), n.Translation.Z())
	r := n.Rotation.Normalize().Mat4()
	s := mgl32.Scale3D(n.Scale.X(), n.Scale.Y(), n.Scale.Z())
	return t.Mul4(r).Mul4(s)
}

// WorldMatrix walks the parent chain and returns the node's world transform.
// It does not touch MatrixWorld.
func (n *Node) WorldMatrix() mgl32.Mat4 {
	m := n.LocalMatrix()
	for p := n.Parent; p != nil; p = p.Parent {
		m = p.LocalMatrix().Mul4(m)
	}
	return m
}

// UpdateMatrixWorld recomputes MatrixWorld for n and its whole subtree.
func (n *Node) UpdateMatrixWorld() {
	parent := mgl32.Ident4()
	if n.Parent != nil {
		parent = n.Parent.WorldMatrix()
	}
	n.updateWorld(parent)
}

func (n *Node) updateWorld(parent mgl32.Mat4) {
	n.MatrixWorld = parent.Mul4(n.LocalMatrix())
	for _, c := range n.Children {
		c.updateWorld(n.MatrixWorld)
	}
}

// Traverse calls fn for n and every descendant, depth first.
func (n *Node) Traverse(fn func(*Node)) {
	fn(n)
	for _, c := range n.Children {
		c.Traverse(fn)
	}
}

// Find returns the first node in the subtree with the given name.
func (n *Node) Find(name string) *Node {
	var found *Node
	n.Traverse(func(c *Node) {
		if found == nil && c.Name == name {
			found = c
		}
	})
	return found
}
