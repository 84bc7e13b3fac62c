package renderer

import (
	"image"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/Faultbox/glbview/internal/engine/scene"
)

// Vertex attribute locations shared with mesh.vert.
const (
	attribPosition     = 0
	attribNormal       = 1
	attribTexCoord     = 2
	attribJoints       = 3
	attribWeights      = 4
	attribMorphPos0    = 5
	attribMorphNormal0 = 9
)

// Limits of the mesh shader.
const (
	MaxJoints       = 128
	MaxMorphTargets = 4
)

// gpuPrimitive holds the GL objects for one scene.Primitive.
type gpuPrimitive struct {
	vao        uint32
	buffers    []uint32
	indexCount int32
	targets    int
}

func uploadPrimitive(p *scene.Primitive) *gpuPrimitive {
	g := &gpuPrimitive{}
	gl.GenVertexArrays(1, &g.vao)
	gl.BindVertexArray(g.vao)

	g.vec3Attrib(attribPosition, p.Positions)
	g.vec3Attrib(attribNormal, p.VertexNormals())

	if len(p.UVs) == len(p.Positions) {
		g.buffer(gl.ARRAY_BUFFER, len(p.UVs)*8, unsafe.Pointer(&p.UVs[0]))
		gl.VertexAttribPointerWithOffset(attribTexCoord, 2, gl.FLOAT, false, 0, 0)
		gl.EnableVertexAttribArray(attribTexCoord)
	} else {
		gl.VertexAttrib2f(attribTexCoord, 0, 0)
	}

	if p.Skinned() {
		g.buffer(gl.ARRAY_BUFFER, len(p.Joints)*8, unsafe.Pointer(&p.Joints[0]))
		gl.VertexAttribIPointer(attribJoints, 4, gl.UNSIGNED_SHORT, 0, nil)
		gl.EnableVertexAttribArray(attribJoints)

		g.buffer(gl.ARRAY_BUFFER, len(p.Weights)*16, unsafe.Pointer(&p.Weights[0]))
		gl.VertexAttribPointerWithOffset(attribWeights, 4, gl.FLOAT, false, 0, 0)
		gl.EnableVertexAttribArray(attribWeights)
	}

	g.targets = min(len(p.Targets), MaxMorphTargets)
	for t := 0; t < g.targets; t++ {
		mt := p.Targets[t]
		if len(mt.Positions) == len(p.Positions) {
			g.vec3Attrib(uint32(attribMorphPos0+t), mt.Positions)
		}
		if len(mt.Normals) == len(p.Positions) {
			g.vec3Attrib(uint32(attribMorphNormal0+t), mt.Normals)
		}
	}

	g.buffer(gl.ELEMENT_ARRAY_BUFFER, len(p.Indices)*4, unsafe.Pointer(&p.Indices[0]))
	g.indexCount = int32(len(p.Indices))

	gl.BindVertexArray(0)
	return g
}

func (g *gpuPrimitive) vec3Attrib(loc uint32, data [][3]float32) {
	if len(data) == 0 {
		return
	}
	g.buffer(gl.ARRAY_BUFFER, len(data)*12, unsafe.Pointer(&data[0]))
	gl.VertexAttribPointerWithOffset(loc, 3, gl.FLOAT, false, 0, 0)
	gl.EnableVertexAttribArray(loc)
}

func (g *gpuPrimitive) buffer(target uint32, size int, data unsafe.Pointer) {
	var id uint32
	gl.GenBuffers(1, &id)
	gl.BindBuffer(target, id)
	gl.BufferData(target, size, data, gl.STATIC_DRAW)
	g.buffers = append(g.buffers, id)
}

func (g *gpuPrimitive) draw() {
	gl.BindVertexArray(g.vao)
	gl.DrawElements(gl.TRIANGLES, g.indexCount, gl.UNSIGNED_INT, nil)
}

func (g *gpuPrimitive) destroy() {
	if g.vao != 0 {
		gl.DeleteVertexArrays(1, &g.vao)
		g.vao = 0
	}
	if len(g.buffers) > 0 {
		gl.DeleteBuffers(int32(len(g.buffers)), &g.buffers[0])
		g.buffers = nil
	}
}

func uploadTexture(img *image.RGBA) uint32 {
	var texID uint32
	gl.GenTextures(1, &texID)
	gl.BindTexture(gl.TEXTURE_2D, texID)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, int32(img.Stride/4))
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA, int32(img.Bounds().Dx()), int32(img.Bounds().Dy()), 0, gl.RGBA, gl.UNSIGNED_BYTE, unsafe.Pointer(&img.Pix[0]))
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, 0)
	gl.GenerateMipmap(gl.TEXTURE_2D)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR_MIPMAP_LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.REPEAT)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return texID
}

// whiteTexture is bound for untextured materials so the shader can always
// sample uTexture.
func whiteTexture() uint32 {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	copy(img.Pix, []byte{255, 255, 255, 255})
	return uploadTexture(img)
}
