// Package debug provides debug visualization utilities.
package debug

import (
	"github.com/Faultbox/glbview/internal/engine/scene"
)

// BBoxWireframeVertexCount is the number of vertices for a bbox wireframe (12 edges × 2).
const BBoxWireframeVertexCount = 24

// boxEdges lists the corner pairs of the 12 box edges. Corner i has
// x = max when bit 0 is set, y = max for bit 1, z = max for bit 2.
var boxEdges = [12][2]int{
	// bottom
	{0, 1}, {1, 5}, {5, 4}, {4, 0},
	// top
	{2, 3}, {3, 7}, {7, 6}, {6, 2},
	// vertical
	{0, 2}, {1, 3}, {5, 7}, {4, 6},
}

// GenerateBBoxWireframeVertices creates line vertices for a wireframe bounding box.
// Returns 24 vertices (12 edges × 2 endpoints), format: [x, y, z] per vertex.
func GenerateBBoxWireframeVertices(minX, minY, minZ, maxX, maxY, maxZ float32) []float32 {
	corner := func(i int) (float32, float32, float32) {
		x, y, z := minX, minY, minZ
		if i&1 != 0 {
			x = maxX
		}
		if i&2 != 0 {
			y = maxY
		}
		if i&4 != 0 {
			z = maxZ
		}
		return x, y, z
	}

	out := make([]float32, 0, BBoxWireframeVertexCount*3)
	for _, e := range boxEdges {
		for _, c := range e {
			x, y, z := corner(c)
			out = append(out, x, y, z)
		}
	}
	return out
}

// FromBox returns the wireframe of box grown by padding on every side.
// An empty box yields nil.
func FromBox(box scene.Box3, padding float32) []float32 {
	if box.IsEmpty() {
		return nil
	}
	return GenerateBBoxWireframeVertices(
		box.Min.X()-padding, box.Min.Y()-padding, box.Min.Z()-padding,
		box.Max.X()+padding, box.Max.Y()+padding, box.Max.Z()+padding,
	)
}
