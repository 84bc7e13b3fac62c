// Package renderer draws a scene.Scene with OpenGL into an offscreen target
// that the UI composites as the window background.
package renderer

import (
	"fmt"
	"image"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/glbview/internal/engine/camera"
	"github.com/Faultbox/glbview/internal/engine/debug"
	"github.com/Faultbox/glbview/internal/engine/framebuffer"
	"github.com/Faultbox/glbview/internal/engine/renderer/shaders"
	"github.com/Faultbox/glbview/internal/engine/scene"
	"github.com/Faultbox/glbview/internal/engine/shader"
	"github.com/Faultbox/glbview/internal/engine/shadow"
	"github.com/Faultbox/glbview/internal/logger"
)

// Config holds renderer configuration.
type Config struct {
	Width  int
	Height int

	// ShadowBias is subtracted from the light-space depth before comparison.
	ShadowBias  float32
	BoundsColor [4]float32
}

// DefaultConfig returns the stock renderer settings for a width x height target.
func DefaultConfig(width, height int) Config {
	return Config{
		Width:       width,
		Height:      height,
		ShadowBias:  0.002,
		BoundsColor: [4]float32{0, 0.8, 0.2, 1},
	}
}

const shadowUnit = 1

// Renderer handles all OpenGL rendering.
type Renderer struct {
	config     Config
	pixelRatio float32

	target    *framebuffer.Framebuffer
	shadowMap *shadow.Map

	meshProgram  *shader.Program
	depthProgram *shader.Program
	lineProgram  *shader.Program

	lineVAO uint32
	lineVBO uint32

	white      uint32
	primitives map[*scene.Primitive]*gpuPrimitive
	textures   map[*image.RGBA]uint32
	warned     map[*scene.Mesh]bool

	pixels []byte
}

// New creates a renderer.
// Must be called after the OpenGL context is created.
func New(cfg Config) (*Renderer, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}

	logger.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
	)

	r := &Renderer{
		config:     cfg,
		pixelRatio: 1,
		primitives: make(map[*scene.Primitive]*gpuPrimitive),
		textures:   make(map[*image.RGBA]uint32),
		warned:     make(map[*scene.Mesh]bool),
	}

	var err error
	if r.meshProgram, err = shader.NewProgram("mesh", shaders.MeshVertexShader, shaders.MeshFragmentShader); err != nil {
		return nil, err
	}
	if r.depthProgram, err = shader.NewProgram("depth", shaders.MeshVertexShader, shaders.DepthFragmentShader); err != nil {
		r.Close()
		return nil, err
	}
	if r.lineProgram, err = shader.NewProgram("line", shaders.LineVertexShader, shaders.LineFragmentShader); err != nil {
		r.Close()
		return nil, err
	}

	w, h := r.pixelSize()
	if r.target, err = framebuffer.New(w, h); err != nil {
		r.Close()
		return nil, err
	}

	r.white = whiteTexture()
	r.createLineBuffer()

	return r, nil
}

// SetSize sets the drawing size in window units.
func (r *Renderer) SetSize(width, height int) {
	r.config.Width = width
	r.config.Height = height
	logger.Debug("renderer resized", zap.Int("width", width), zap.Int("height", height))
}

// Size returns the drawing size in window units.
func (r *Renderer) Size() (width, height int) {
	return r.config.Width, r.config.Height
}

// SetPixelRatio sets the framebuffer pixels per window unit.
func (r *Renderer) SetPixelRatio(ratio float32) {
	if ratio <= 0 {
		ratio = 1
	}
	r.pixelRatio = ratio
}

func (r *Renderer) pixelSize() (int, int) {
	return int(float32(r.config.Width) * r.pixelRatio), int(float32(r.config.Height) * r.pixelRatio)
}

// ColorTexture returns the texture holding the last rendered frame.
func (r *Renderer) ColorTexture() uint32 {
	return r.target.ColorTexture()
}

// ReadPixels returns the last frame as bottom-up RGBA rows with its size.
func (r *Renderer) ReadPixels() ([]byte, int, int) {
	r.pixels = r.target.ReadPixels(r.pixels)
	w, h := r.target.Size()
	return r.pixels, w, h
}

// drawItem is one primitive with everything needed to draw it this frame.
type drawItem struct {
	node    *scene.Node
	prim    *scene.Primitive
	gpu     *gpuPrimitive
	joints  []mgl32.Mat4
	weights [MaxMorphTargets]float32
}

// Render draws s as seen from cam into the offscreen target.
func (r *Renderer) Render(s *scene.Scene, cam *camera.PerspectiveCamera) {
	r.target.Resize(r.pixelSize())
	s.UpdateMatrixWorld()

	items := r.collect(s)

	light := s.Directional
	shadows := light != nil && light.CastShadow && r.ensureShadowMap(light.Shadow.MapSize)
	var lightViewProj mgl32.Mat4
	if shadows {
		lightViewProj = light.ShadowMatrix()
		r.shadowPass(items, lightViewProj)
	}

	restore := r.target.Begin(s.Background)
	defer restore()

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)

	viewProj := cam.ViewProjection()
	p := r.meshProgram
	p.Use()
	p.SetMat4("uViewProj", viewProj)
	p.SetMat4("uLightViewProj", lightViewProj)
	p.SetBool("uShadowsEnabled", shadows)
	p.SetFloat("uShadowBias", r.config.ShadowBias)
	p.SetInt("uTexture", 0)
	p.SetInt("uShadowMap", shadowUnit)

	var ambient, lightColor, lightDir mgl32.Vec3
	if s.Ambient != nil {
		ambient = s.Ambient.Radiance()
	}
	if light != nil {
		lightColor = light.Radiance()
		lightDir = light.Direction()
	}
	p.SetVec3("uAmbient", ambient)
	p.SetVec3("uLightColor", lightColor)
	p.SetVec3("uLightDir", lightDir)

	if shadows {
		r.shadowMap.BindTexture(shadowUnit)
	}

	// Opaque first, then shadow catchers blended over them.
	for _, it := range items {
		if !it.prim.Material.ShadowOnly {
			r.drawLit(it)
		}
	}

	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	gl.DepthMask(false)
	for _, it := range items {
		if it.prim.Material.ShadowOnly {
			r.drawLit(it)
		}
	}
	gl.DepthMask(true)
	gl.Disable(gl.BLEND)
	gl.BindVertexArray(0)

	if s.ShowBounds {
		r.drawBounds(s.Bounds, viewProj)
	}
}

func (r *Renderer) collect(s *scene.Scene) []drawItem {
	var items []drawItem
	s.Traverse(func(n *scene.Node) {
		m := n.Mesh
		if m == nil {
			return
		}

		var joints []mgl32.Mat4
		if m.Skin != nil {
			joints = m.Skin.JointMatrices(n.MatrixWorld)
			if len(joints) > MaxJoints {
				if !r.warned[m] {
					logger.Warn("skin exceeds joint limit, extra joints ignored",
						zap.String("mesh", m.Name), zap.Int("joints", len(joints)), zap.Int("limit", MaxJoints))
					r.warned[m] = true
				}
				joints = joints[:MaxJoints]
			}
		}

		for _, prim := range m.Primitives {
			if len(prim.Indices) == 0 || len(prim.Positions) == 0 {
				continue
			}
			g := r.primitive(prim)
			it := drawItem{node: n, prim: prim, gpu: g}
			if prim.Skinned() {
				it.joints = joints
			}
			for t := 0; t < g.targets && t < len(m.MorphTargetInfluences); t++ {
				it.weights[t] = m.MorphTargetInfluences[t]
			}
			if it.prim.Material == nil {
				it.prim.Material = scene.DefaultMaterial()
			}
			items = append(items, it)
		}
	})
	return items
}

func (r *Renderer) primitive(p *scene.Primitive) *gpuPrimitive {
	if g, ok := r.primitives[p]; ok {
		return g
	}
	g := uploadPrimitive(p)
	r.primitives[p] = g
	return g
}

func (r *Renderer) texture(img *image.RGBA) uint32 {
	if img == nil || len(img.Pix) == 0 {
		return r.white
	}
	if id, ok := r.textures[img]; ok {
		return id
	}
	id := uploadTexture(img)
	r.textures[img] = id
	return id
}

func (r *Renderer) ensureShadowMap(size int32) bool {
	if r.shadowMap.IsValid() && r.shadowMap.Resolution == size {
		return true
	}
	if r.shadowMap != nil {
		r.shadowMap.Destroy()
		r.shadowMap = nil
	}
	sm, err := shadow.NewMap(size)
	if err != nil {
		logger.Warn("shadows disabled", zap.Error(err))
		return false
	}
	r.shadowMap = sm
	return true
}

func (r *Renderer) shadowPass(items []drawItem, lightViewProj mgl32.Mat4) {
	r.shadowMap.Bind()
	defer r.shadowMap.Unbind()

	p := r.depthProgram
	p.Use()
	p.SetMat4("uViewProj", lightViewProj)
	p.SetMat4("uLightViewProj", lightViewProj)
	for _, it := range items {
		if !it.node.CastShadow || it.prim.Material.ShadowOnly {
			continue
		}
		r.setGeometryUniforms(p, it)
		it.gpu.draw()
	}
	gl.BindVertexArray(0)
}

func (r *Renderer) setGeometryUniforms(p *shader.Program, it drawItem) {
	p.SetMat4("uModel", it.node.MatrixWorld)
	p.SetBool("uSkinned", it.joints != nil)
	if it.joints != nil {
		p.SetMat4s("uJoints", it.joints)
	}
	p.SetFloats("uMorphWeights", it.weights[:])
}

func (r *Renderer) drawLit(it drawItem) {
	p := r.meshProgram
	mat := it.prim.Material
	r.setGeometryUniforms(p, it)
	p.SetVec4("uBaseColor", mat.BaseColor)
	p.SetBool("uReceiveShadow", it.node.ReceiveShadow)
	p.SetBool("uShadowOnly", mat.ShadowOnly)
	p.SetFloat("uOpacity", mat.Opacity)

	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, r.texture(mat.Texture))

	if mat.DoubleSided || mat.ShadowOnly {
		gl.Disable(gl.CULL_FACE)
	} else {
		gl.Enable(gl.CULL_FACE)
		gl.CullFace(gl.BACK)
	}
	it.gpu.draw()
	gl.Disable(gl.CULL_FACE)
}

func (r *Renderer) createLineBuffer() {
	gl.GenVertexArrays(1, &r.lineVAO)
	gl.BindVertexArray(r.lineVAO)
	gl.GenBuffers(1, &r.lineVBO)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.lineVBO)
	gl.BufferData(gl.ARRAY_BUFFER, debug.BBoxWireframeVertexCount*3*4, nil, gl.DYNAMIC_DRAW)
	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, 0, 0)
	gl.EnableVertexAttribArray(0)
	gl.BindVertexArray(0)
}

func (r *Renderer) drawBounds(box scene.Box3, viewProj mgl32.Mat4) {
	verts := debug.FromBox(box, 0)
	if verts == nil {
		return
	}

	p := r.lineProgram
	p.Use()
	p.SetMat4("uViewProj", viewProj)
	p.SetVec4("uColor", r.config.BoundsColor)

	gl.BindVertexArray(r.lineVAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.lineVBO)
	gl.BufferSubData(gl.ARRAY_BUFFER, 0, len(verts)*4, gl.Ptr(verts))
	gl.DrawArrays(gl.LINES, 0, int32(len(verts)/3))
	gl.BindVertexArray(0)
}

// Release frees the GPU copies of primitives and textures that are no longer
// in the scene. Call it after a model is replaced.
func (r *Renderer) Release(s *scene.Scene) {
	live := make(map[*scene.Primitive]bool)
	liveTex := make(map[*image.RGBA]bool)
	s.Traverse(func(n *scene.Node) {
		if n.Mesh == nil {
			return
		}
		for _, p := range n.Mesh.Primitives {
			live[p] = true
			if p.Material != nil && p.Material.Texture != nil {
				liveTex[p.Material.Texture] = true
			}
		}
	})

	freed := 0
	for p, g := range r.primitives {
		if !live[p] {
			g.destroy()
			delete(r.primitives, p)
			freed++
		}
	}
	for img, id := range r.textures {
		if !liveTex[img] {
			gl.DeleteTextures(1, &id)
			delete(r.textures, img)
		}
	}
	for m := range r.warned {
		delete(r.warned, m)
	}
	if freed > 0 {
		logger.Debug("released GPU primitives", zap.Int("count", freed))
	}
}

// Close releases all GPU resources.
func (r *Renderer) Close() {
	logger.Info("closing renderer")
	for _, g := range r.primitives {
		g.destroy()
	}
	r.primitives = nil
	for _, id := range r.textures {
		gl.DeleteTextures(1, &id)
	}
	r.textures = nil
	if r.white != 0 {
		gl.DeleteTextures(1, &r.white)
		r.white = 0
	}
	if r.lineVAO != 0 {
		gl.DeleteVertexArrays(1, &r.lineVAO)
		r.lineVAO = 0
	}
	if r.lineVBO != 0 {
		gl.DeleteBuffers(1, &r.lineVBO)
		r.lineVBO = 0
	}
	for _, p := range []*shader.Program{r.meshProgram, r.depthProgram, r.lineProgram} {
		if p != nil {
			p.Delete()
		}
	}
	if r.shadowMap != nil {
		r.shadowMap.Destroy()
	}
	if r.target != nil {
		r.target.Destroy()
	}
}
