package scene

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

const eps = 1e-4

// near compares with an absolute tolerance; mgl32's threshold helpers turn
// relative and much stricter when one side is zero.
func near(a, b float32) bool {
	return mgl32.Abs(a-b) < eps
}

func vecNear(a, b mgl32.Vec3) bool {
	return a.ApproxFuncEqual(b, near)
}

// cubeNode returns a node holding an axis-aligned cube spanning [min, max].
func cubeNode(name string, min, max [3]float32) *Node {
	var pos [][3]float32
	for _, x := range []float32{min[0], max[0]} {
		for _, y := range []float32{min[1], max[1]} {
			for _, z := range []float32{min[2], max[2]} {
				pos = append(pos, [3]float32{x, y, z})
			}
		}
	}
	n := NewNode(name)
	n.Mesh = &Mesh{Name: name, Primitives: []*Primitive{{Positions: pos}}}
	return n
}

func TestNodeHierarchy(t *testing.T) {
	root := NewNode("root")
	child := NewNode("child")
	root.Add(child)

	if child.Parent != root || len(root.Children) != 1 {
		t.Fatal("Add should link parent and child")
	}

	other := NewNode("other")
	other.Add(child)
	if len(root.Children) != 0 || child.Parent != other {
		t.Error("re-adding should detach from the previous parent")
	}

	if root.Remove(child) {
		t.Error("Remove should report false for a non-child")
	}
	if got := other.Find("child"); got != child {
		t.Error("Find should locate the child by name")
	}
}

func TestWorldMatrix(t *testing.T) {
	root := NewNode("root")
	root.Translation = mgl32.Vec3{0, 2, 0}
	root.Scale = mgl32.Vec3{2, 2, 2}

	child := NewNode("child")
	child.Translation = mgl32.Vec3{1, 0, 0}
	root.Add(child)

	got := mgl32.TransformCoordinate(mgl32.Vec3{}, child.WorldMatrix())
	if !vecNear(got, mgl32.Vec3{2, 2, 0}) {
		t.Errorf("child origin in world = %v, want (2, 2, 0)", got)
	}

	root.UpdateMatrixWorld()
	if !child.MatrixWorld.ApproxFuncEqual(child.WorldMatrix(), near) {
		t.Error("UpdateMatrixWorld should agree with WorldMatrix")
	}
}

func TestTraverseVisitsAll(t *testing.T) {
	root := NewNode("root")
	a := NewNode("a")
	b := NewNode("b")
	root.Add(a)
	a.Add(b)

	var names []string
	root.Traverse(func(n *Node) { names = append(names, n.Name) })
	if len(names) != 3 || names[0] != "root" || names[2] != "b" {
		t.Errorf("unexpected traversal order %v", names)
	}
}

func TestBoxFromObject(t *testing.T) {
	root := NewNode("root")
	root.Translation = mgl32.Vec3{0, 5, 0}
	root.Add(cubeNode("body", [3]float32{-1, -2, -3}, [3]float32{1, 2, 3}))

	box := BoxFromObject(root)
	if box.IsEmpty() {
		t.Fatal("box should not be empty")
	}
	if !vecNear(box.Min, mgl32.Vec3{-1, 3, -3}) || !vecNear(box.Max, mgl32.Vec3{1, 7, 3}) {
		t.Errorf("box = %v..%v", box.Min, box.Max)
	}
	if !vecNear(box.Center(), mgl32.Vec3{0, 5, 0}) {
		t.Errorf("center = %v", box.Center())
	}
	if !vecNear(box.Size(), mgl32.Vec3{2, 4, 6}) {
		t.Errorf("size = %v", box.Size())
	}
}

func TestBoxIncludesMorphInfluence(t *testing.T) {
	n := cubeNode("face", [3]float32{0, 0, 0}, [3]float32{1, 1, 1})
	prim := n.Mesh.Primitives[0]
	deltas := make([][3]float32, len(prim.Positions))
	deltas[len(deltas)-1] = [3]float32{0, 4, 0}
	prim.Targets = []MorphTarget{{Positions: deltas}}
	n.Mesh.MorphTargetInfluences = []float32{0.5}

	box := BoxFromObject(n)
	if !near(box.Max.Y(), 3) {
		t.Errorf("max y = %f, want 3 with half-weighted target", box.Max.Y())
	}
}

func TestBoxFollowsSkin(t *testing.T) {
	root := NewNode("root")
	joint := NewNode("joint")
	joint.Translation = mgl32.Vec3{0, 10, 0}
	root.Add(joint)

	mesh := cubeNode("skinned", [3]float32{-1, -1, -1}, [3]float32{1, 1, 1})
	prim := mesh.Mesh.Primitives[0]
	for range prim.Positions {
		prim.Joints = append(prim.Joints, [4]uint16{0, 0, 0, 0})
		prim.Weights = append(prim.Weights, [4]float32{1, 0, 0, 0})
	}
	mesh.Mesh.Skin = &Skin{Joints: []*Node{joint}, InverseBindMatrices: []mgl32.Mat4{mgl32.Ident4()}}
	root.Add(mesh)

	box := BoxFromObject(root)
	if !vecNear(box.Center(), mgl32.Vec3{0, 10, 0}) {
		t.Errorf("skinned box center = %v, want joint position", box.Center())
	}
}

func TestEmptyBox(t *testing.T) {
	b := EmptyBox()
	if !b.IsEmpty() {
		t.Error("EmptyBox should be empty")
	}
	if b.Center() != (mgl32.Vec3{}) || b.Size() != (mgl32.Vec3{}) {
		t.Error("empty box should report zero center and size")
	}

	b.ExpandByPoint(mgl32.Vec3{1, 2, 3})
	if b.IsEmpty() || b.Size() != (mgl32.Vec3{}) {
		t.Error("single point box should be non-empty with zero size")
	}

	u := b.Union(Box3{Min: mgl32.Vec3{-1, -1, -1}, Max: mgl32.Vec3{0, 0, 0}})
	if !vecNear(u.Min, mgl32.Vec3{-1, -1, -1}) || !vecNear(u.Max, mgl32.Vec3{1, 2, 3}) {
		t.Errorf("union = %v..%v", u.Min, u.Max)
	}
}

func TestGroundLiesFlat(t *testing.T) {
	g := NewGround(10, 20, -1, 0.5)
	box := BoxFromObject(g)

	if !vecNear(box.Size(), mgl32.Vec3{10, 0, 20}) {
		t.Errorf("ground size = %v, want 10 x 0 x 20", box.Size())
	}
	if !near(box.Min.Y(), -1) {
		t.Errorf("ground height = %f, want -1", box.Min.Y())
	}
	if !g.ReceiveShadow || g.CastShadow {
		t.Error("ground should receive but not cast shadow")
	}
	mat := g.Mesh.Primitives[0].Material
	if !mat.ShadowOnly || mat.Opacity != 0.5 {
		t.Errorf("ground material = %+v", mat)
	}

	// Face normal must point up after the tilt.
	n := mgl32.TransformNormal(mgl32.Vec3(g.Mesh.Primitives[0].Normals[0]), g.WorldMatrix()).Normalize()
	if !vecNear(n, mgl32.Vec3{0, 1, 0}) {
		t.Errorf("ground normal = %v, want +Y", n)
	}
}

func TestSceneAddRemove(t *testing.T) {
	s := New()
	n := NewNode("model")
	s.Add(n)
	s.Add(n)
	if len(s.Nodes()) != 1 {
		t.Errorf("expected 1 node, got %d", len(s.Nodes()))
	}
	if !s.Remove(n) || len(s.Nodes()) != 0 {
		t.Error("Remove should detach the node")
	}
}

func TestVertexNormals(t *testing.T) {
	p := &Primitive{
		Positions: [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 0, -1}},
		Indices:   []uint32{0, 1, 2},
	}
	for i, n := range p.VertexNormals() {
		if !vecNear(mgl32.Vec3(n), mgl32.Vec3{0, 1, 0}) {
			t.Errorf("normal %d = %v, want +Y", i, n)
		}
	}

	p.Normals = [][3]float32{{1, 0, 0}, {1, 0, 0}, {1, 0, 0}}
	if got := p.VertexNormals(); &got[0] != &p.Normals[0] {
		t.Error("existing normals should be returned as is")
	}
}
