package scene

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/glbview/internal/engine/lighting"
)

// Scene is the root of everything the renderer draws in one frame.
type Scene struct {
	Background [3]float32

	Ambient     *lighting.AmbientLight
	Directional *lighting.DirectionalLight

	// ShowBounds draws Bounds as a wireframe when set.
	ShowBounds bool
	Bounds     Box3

	nodes []*Node
}

// New creates an empty scene with a white background and no lights.
func New() *Scene {
	return &Scene{
		Background: [3]float32{1, 1, 1},
		Bounds:     EmptyBox(),
	}
}

// Add appends a top-level node. Adding a node twice is a no-op.
func (s *Scene) Add(n *Node) {
	for _, existing := range s.nodes {
		if existing == n {
			return
		}
	}
	if n.Parent != nil {
		n.Parent.Remove(n)
	}
	s.nodes = append(s.nodes, n)
}

// Remove detaches a top-level node. It reports whether n was in the scene.
func (s *Scene) Remove(n *Node) bool {
	for i, existing := range s.nodes {
		if existing == n {
			s.nodes = append(s.nodes[:i], s.nodes[i+1:]...)
			return true
		}
	}
	return false
}

// Nodes returns the top-level nodes.
func (s *Scene) Nodes() []*Node {
	return s.nodes
}

// Traverse visits every node in the scene.
func (s *Scene) Traverse(fn func(*Node)) {
	for _, n := range s.nodes {
		n.Traverse(fn)
	}
}

// UpdateMatrixWorld refreshes MatrixWorld on every node.
func (s *Scene) UpdateMatrixWorld() {
	for _, n := range s.nodes {
		n.updateWorld(mgl32.Ident4())
	}
}

// NewGround builds a shadow-catching plane of width x depth lying in the XZ
// plane at height y. It only shows shadow, scaled by opacity.
func NewGround(width, depth, y, opacity float32) *Node {
	hw, hd := width/2, depth/2

	// Built in the XY plane and tipped onto XZ, so depth runs along -Z.
	prim := &Primitive{
		Positions: [][3]float32{
			{-hw, hd, 0}, {hw, hd, 0},
			{-hw, -hd, 0}, {hw, -hd, 0},
		},
		Normals: [][3]float32{
			{0, 0, 1}, {0, 0, 1},
			{0, 0, 1}, {0, 0, 1},
		},
		UVs:     [][2]float32{{0, 1}, {1, 1}, {0, 0}, {1, 0}},
		Indices: []uint32{0, 2, 1, 2, 3, 1},
		Material: &Material{
			Name:       "ground",
			BaseColor:  [4]float32{0, 0, 0, 1},
			ShadowOnly: true,
			Opacity:    opacity,
		},
	}

	n := NewNode("ground")
	n.Mesh = &Mesh{Name: "ground", Primitives: []*Primitive{prim}}
	n.Rotation = mgl32.QuatRotate(-mgl32.DegToRad(90), mgl32.Vec3{1, 0, 0})
	n.Translation = mgl32.Vec3{0, y, 0}
	n.ReceiveShadow = true
	return n
}
