package assets

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // register decoders for base color textures
	_ "image/png"
	"io/fs"
	"net/url"
	"path"
	"strconv"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/Faultbox/glbview/internal/engine/animation"
	"github.com/Faultbox/glbview/internal/engine/scene"
	"github.com/Faultbox/glbview/internal/logger"
)

// Model is a decoded glTF scene ready to be added to a viewer scene.
type Model struct {
	Name  string
	Root  *scene.Node
	Nodes []*scene.Node // indexed like the document's nodes
	Clips []*animation.Clip
}

// Meshes returns every mesh under Root in traversal order.
func (m *Model) Meshes() []*scene.Mesh {
	var out []*scene.Mesh
	m.Root.Traverse(func(n *scene.Node) {
		if n.Mesh != nil {
			out = append(out, n.Mesh)
		}
	})
	return out
}

type decoder struct {
	doc  *gltf.Document
	fsys fs.FS

	nodes     []*scene.Node
	meshes    map[int][]*scene.Primitive
	materials map[int]*scene.Material
	textures  map[int]*image.RGBA
	skins     map[int]*scene.Skin
}

// Decode converts a fetched document into a Model. Problems confined to one
// texture or animation channel are logged and skipped; broken geometry fails
// the whole decode.
func Decode(src *Source) (*Model, error) {
	doc := src.Doc
	sceneIdx, err := defaultScene(doc)
	if err != nil {
		return nil, err
	}

	d := &decoder{
		doc:       doc,
		fsys:      src.FS,
		meshes:    make(map[int][]*scene.Primitive),
		materials: make(map[int]*scene.Material),
		textures:  make(map[int]*image.RGBA),
		skins:     make(map[int]*scene.Skin),
	}

	if err := d.buildNodes(); err != nil {
		return nil, err
	}

	// The model is named after its file; the root node keeps the scene name.
	name := path.Base(src.Path)
	rootName := name
	if s := doc.Scenes[sceneIdx]; s.Name != "" {
		rootName = s.Name
	}
	root := scene.NewNode(rootName)
	for _, i := range doc.Scenes[sceneIdx].Nodes {
		if i < 0 || i >= len(d.nodes) {
			return nil, fmt.Errorf("scene %d references node %d of %d", sceneIdx, i, len(d.nodes))
		}
		root.Add(d.nodes[i])
	}

	clips := d.buildClips()

	logger.Info("model decoded",
		zap.String("name", name),
		zap.Int("nodes", len(d.nodes)),
		zap.Int("meshes", len(d.meshes)),
		zap.Int("clips", len(clips)))

	return &Model{Name: name, Root: root, Nodes: d.nodes, Clips: clips}, nil
}

func defaultScene(doc *gltf.Document) (int, error) {
	if doc.Scene != nil {
		if *doc.Scene < 0 || *doc.Scene >= len(doc.Scenes) {
			return 0, fmt.Errorf("default scene %d out of range: %w", *doc.Scene, ErrNoScene)
		}
		return *doc.Scene, nil
	}
	if len(doc.Scenes) == 0 {
		return 0, ErrNoScene
	}
	return 0, nil
}

func (d *decoder) buildNodes() error {
	doc := d.doc
	d.nodes = make([]*scene.Node, len(doc.Nodes))
	for i, gn := range doc.Nodes {
		n := scene.NewNode(gn.Name)
		setTransform(n, gn)
		d.nodes[i] = n
	}

	for i, gn := range doc.Nodes {
		for _, c := range gn.Children {
			if c < 0 || c >= len(d.nodes) || c == i {
				return fmt.Errorf("node %d has invalid child %d", i, c)
			}
			d.nodes[i].Add(d.nodes[c])
		}
	}

	for i, gn := range doc.Nodes {
		if gn.Mesh == nil {
			continue
		}
		mesh, err := d.mesh(*gn.Mesh)
		if err != nil {
			return fmt.Errorf("node %d: %w", i, err)
		}
		if gn.Skin != nil {
			skin, err := d.skin(*gn.Skin)
			if err != nil {
				return fmt.Errorf("node %d: %w", i, err)
			}
			mesh.Skin = skin
		}
		d.nodes[i].Mesh = mesh
	}
	return nil
}

var identity16 = [16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}

// setTransform copies the node transform, decomposing a matrix when present.
func setTransform(n *scene.Node, gn *gltf.Node) {
	if gn.Matrix != identity16 && gn.Matrix != ([16]float64{}) {
		var m mgl32.Mat4
		for i, v := range gn.Matrix {
			m[i] = float32(v)
		}
		n.Translation, n.Rotation, n.Scale = decompose(m)
		return
	}

	t := gn.TranslationOrDefault()
	r := gn.RotationOrDefault()
	s := gn.ScaleOrDefault()
	n.Translation = mgl32.Vec3{float32(t[0]), float32(t[1]), float32(t[2])}
	n.Rotation = mgl32.Quat{W: float32(r[3]), V: mgl32.Vec3{float32(r[0]), float32(r[1]), float32(r[2])}}.Normalize()
	n.Scale = mgl32.Vec3{float32(s[0]), float32(s[1]), float32(s[2])}
}

// decompose splits an affine matrix into translation, rotation and scale.
func decompose(m mgl32.Mat4) (mgl32.Vec3, mgl32.Quat, mgl32.Vec3) {
	t := m.Col(3).Vec3()
	sx := m.Col(0).Vec3().Len()
	sy := m.Col(1).Vec3().Len()
	sz := m.Col(2).Vec3().Len()
	if m.Det() < 0 {
		sx = -sx
	}

	rot := mgl32.Ident4()
	if sx != 0 && sy != 0 && sz != 0 {
		rot.SetCol(0, m.Col(0).Mul(1/sx))
		rot.SetCol(1, m.Col(1).Mul(1/sy))
		rot.SetCol(2, m.Col(2).Mul(1/sz))
		rot.SetCol(3, mgl32.Vec4{0, 0, 0, 1})
	}
	return t, mgl32.Mat4ToQuat(rot).Normalize(), mgl32.Vec3{sx, sy, sz}
}

// mesh builds a per-node mesh. Geometry is shared between nodes that
// instance the same glTF mesh; morph influences are not.
func (d *decoder) mesh(idx int) (*scene.Mesh, error) {
	doc := d.doc
	if idx < 0 || idx >= len(doc.Meshes) {
		return nil, fmt.Errorf("mesh %d out of range", idx)
	}
	gm := doc.Meshes[idx]

	prims, ok := d.meshes[idx]
	if !ok {
		for pi, gp := range gm.Primitives {
			p, err := d.primitive(gp)
			if err != nil {
				return nil, fmt.Errorf("mesh %q primitive %d: %w", gm.Name, pi, err)
			}
			if p != nil {
				prims = append(prims, p)
			}
		}
		d.meshes[idx] = prims
	}

	m := &scene.Mesh{Name: gm.Name, Primitives: prims}

	count := m.MorphTargetCount()
	if count == 0 {
		return m, nil
	}

	m.MorphTargetInfluences = make([]float32, count)
	for i, w := range gm.Weights {
		if i < count {
			m.MorphTargetInfluences[i] = float32(w)
		}
	}

	names := targetNames(gm.Extras)
	m.MorphTargetDictionary = make(map[string]int, count)
	for i := 0; i < count; i++ {
		name := strconv.Itoa(i)
		if i < len(names) && names[i] != "" {
			name = names[i]
		}
		m.MorphTargetDictionary[name] = i
	}
	return m, nil
}

// targetNames reads the conventional extras.targetNames list.
func targetNames(extras any) []string {
	obj, ok := extras.(map[string]any)
	if !ok {
		return nil
	}
	list, ok := obj["targetNames"].([]any)
	if !ok {
		return nil
	}
	out := make([]string, len(list))
	for i, v := range list {
		out[i], _ = v.(string)
	}
	return out
}

func (d *decoder) accessor(idx int) (*gltf.Accessor, error) {
	if idx < 0 || idx >= len(d.doc.Accessors) {
		return nil, fmt.Errorf("accessor %d out of range", idx)
	}
	return d.doc.Accessors[idx], nil
}

// primitive reads one triangle primitive. Non-triangle modes return nil.
func (d *decoder) primitive(gp *gltf.Primitive) (*scene.Primitive, error) {
	if gp.Mode != gltf.PrimitiveTriangles {
		logger.Warn("skipping non-triangle primitive", zap.Int("mode", int(gp.Mode)))
		return nil, nil
	}

	doc := d.doc
	posIdx, ok := gp.Attributes[gltf.POSITION]
	if !ok {
		return nil, fmt.Errorf("missing %s attribute", gltf.POSITION)
	}
	acc, err := d.accessor(posIdx)
	if err != nil {
		return nil, err
	}
	p := &scene.Primitive{}
	if p.Positions, err = modeler.ReadPosition(doc, acc, nil); err != nil {
		return nil, fmt.Errorf("reading positions: %w", err)
	}
	n := len(p.Positions)

	if idx, ok := gp.Attributes[gltf.NORMAL]; ok {
		if acc, err = d.accessor(idx); err != nil {
			return nil, err
		}
		if p.Normals, err = modeler.ReadNormal(doc, acc, nil); err != nil {
			return nil, fmt.Errorf("reading normals: %w", err)
		}
	}
	if idx, ok := gp.Attributes[gltf.TEXCOORD_0]; ok {
		if acc, err = d.accessor(idx); err != nil {
			return nil, err
		}
		if p.UVs, err = modeler.ReadTextureCoord(doc, acc, nil); err != nil {
			return nil, fmt.Errorf("reading uvs: %w", err)
		}
	}
	if idx, ok := gp.Attributes[gltf.JOINTS_0]; ok {
		if acc, err = d.accessor(idx); err != nil {
			return nil, err
		}
		if p.Joints, err = modeler.ReadJoints(doc, acc, nil); err != nil {
			return nil, fmt.Errorf("reading joints: %w", err)
		}
	}
	if idx, ok := gp.Attributes[gltf.WEIGHTS_0]; ok {
		if acc, err = d.accessor(idx); err != nil {
			return nil, err
		}
		if p.Weights, err = modeler.ReadWeights(doc, acc, nil); err != nil {
			return nil, fmt.Errorf("reading weights: %w", err)
		}
	}

	if gp.Indices != nil {
		if acc, err = d.accessor(*gp.Indices); err != nil {
			return nil, err
		}
		if p.Indices, err = modeler.ReadIndices(doc, acc, nil); err != nil {
			return nil, fmt.Errorf("reading indices: %w", err)
		}
		for _, i := range p.Indices {
			if int(i) >= n {
				return nil, fmt.Errorf("index %d exceeds %d vertices", i, n)
			}
		}
	} else {
		p.Indices = make([]uint32, n)
		for i := range p.Indices {
			p.Indices[i] = uint32(i)
		}
	}

	for ti, target := range gp.Targets {
		var mt scene.MorphTarget
		if idx, ok := target[gltf.POSITION]; ok {
			if acc, err = d.accessor(idx); err != nil {
				return nil, err
			}
			if mt.Positions, err = modeler.ReadPosition(doc, acc, nil); err != nil {
				return nil, fmt.Errorf("reading target %d positions: %w", ti, err)
			}
		}
		if idx, ok := target[gltf.NORMAL]; ok {
			if acc, err = d.accessor(idx); err != nil {
				return nil, err
			}
			if mt.Normals, err = modeler.ReadNormal(doc, acc, nil); err != nil {
				return nil, fmt.Errorf("reading target %d normals: %w", ti, err)
			}
		}
		p.Targets = append(p.Targets, mt)
	}

	p.Material = d.material(gp.Material)
	return p, nil
}

func (d *decoder) material(idx *int) *scene.Material {
	if idx == nil || *idx < 0 || *idx >= len(d.doc.Materials) {
		return scene.DefaultMaterial()
	}
	if m, ok := d.materials[*idx]; ok {
		return m
	}

	gm := d.doc.Materials[*idx]
	m := scene.DefaultMaterial()
	m.Name = gm.Name
	m.DoubleSided = gm.DoubleSided
	if pbr := gm.PBRMetallicRoughness; pbr != nil {
		if pbr.BaseColorFactor != nil {
			for i, v := range pbr.BaseColorFactor {
				m.BaseColor[i] = float32(v)
			}
		}
		if pbr.BaseColorTexture != nil {
			m.Texture = d.texture(pbr.BaseColorTexture.Index)
		}
	}
	d.materials[*idx] = m
	return m
}

// texture decodes the image behind a texture. Failures are logged and
// leave the material untextured.
func (d *decoder) texture(idx int) *image.RGBA {
	doc := d.doc
	if idx < 0 || idx >= len(doc.Textures) || doc.Textures[idx].Source == nil {
		return nil
	}
	src := *doc.Textures[idx].Source
	if img, ok := d.textures[src]; ok {
		return img
	}

	img, err := d.image(src)
	if err != nil {
		logger.Warn("texture skipped", zap.Int("image", src), zap.Error(err))
	}
	d.textures[src] = img
	return img
}

func (d *decoder) image(idx int) (*image.RGBA, error) {
	doc := d.doc
	if idx < 0 || idx >= len(doc.Images) {
		return nil, fmt.Errorf("image %d out of range", idx)
	}
	gi := doc.Images[idx]

	var data []byte
	var err error
	switch {
	case gi.BufferView != nil:
		if *gi.BufferView < 0 || *gi.BufferView >= len(doc.BufferViews) {
			return nil, fmt.Errorf("buffer view %d out of range", *gi.BufferView)
		}
		data, err = modeler.ReadBufferView(doc, doc.BufferViews[*gi.BufferView])
	case gi.IsEmbeddedResource():
		data, err = gi.MarshalData()
	case gi.URI != "" && d.fsys != nil:
		var name string
		if name, err = url.PathUnescape(gi.URI); err == nil {
			data, err = fs.ReadFile(d.fsys, name)
		}
	default:
		return nil, fmt.Errorf("image %d has no data", idx)
	}
	if err != nil {
		return nil, fmt.Errorf("reading image %d: %w", idx, err)
	}

	decoded, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image %d: %w", idx, err)
	}
	logger.Debug("texture decoded", zap.Int("image", idx), zap.String("format", format))

	if rgba, ok := decoded.(*image.RGBA); ok {
		return rgba, nil
	}
	b := decoded.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), decoded, b.Min, draw.Src)
	return rgba, nil
}

func (d *decoder) skin(idx int) (*scene.Skin, error) {
	if s, ok := d.skins[idx]; ok {
		return s, nil
	}
	doc := d.doc
	if idx < 0 || idx >= len(doc.Skins) {
		return nil, fmt.Errorf("skin %d out of range", idx)
	}
	gs := doc.Skins[idx]

	s := &scene.Skin{Name: gs.Name}
	for _, j := range gs.Joints {
		if j < 0 || j >= len(d.nodes) {
			return nil, fmt.Errorf("skin %q joint %d out of range", gs.Name, j)
		}
		s.Joints = append(s.Joints, d.nodes[j])
	}

	if gs.InverseBindMatrices != nil {
		acc, err := d.accessor(*gs.InverseBindMatrices)
		if err != nil {
			return nil, err
		}
		raw, err := modeler.ReadAccessor(doc, acc, nil)
		if err != nil {
			return nil, fmt.Errorf("reading inverse bind matrices: %w", err)
		}
		mats, ok := raw.([][4][4]float32)
		if !ok {
			return nil, fmt.Errorf("inverse bind matrices have type %T", raw)
		}
		for _, cols := range mats {
			var m mgl32.Mat4
			for c := 0; c < 4; c++ {
				copy(m[c*4:c*4+4], cols[c][:])
			}
			s.InverseBindMatrices = append(s.InverseBindMatrices, m)
		}
	}

	d.skins[idx] = s
	return s, nil
}

// buildClips converts every animation. Channels that cannot be read are
// dropped and reported together.
func (d *decoder) buildClips() []*animation.Clip {
	doc := d.doc
	clips := make([]*animation.Clip, 0, len(doc.Animations))
	for ai, ga := range doc.Animations {
		var tracks []*animation.Track
		var errs error
		for ci, ch := range ga.Channels {
			t, err := d.track(ga, ch)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("channel %d: %w", ci, err))
				continue
			}
			if t != nil {
				tracks = append(tracks, t)
			}
		}
		if errs != nil {
			logger.Warn("animation channels skipped",
				zap.Int("animation", ai),
				zap.String("name", ga.Name),
				zap.Error(errs))
		}
		clips = append(clips, animation.NewClip(ga.Name, tracks))
	}
	return clips
}

func (d *decoder) track(ga *gltf.Animation, ch *gltf.AnimationChannel) (*animation.Track, error) {
	if ch.Target.Node == nil {
		return nil, nil
	}
	node := *ch.Target.Node
	if node < 0 || node >= len(d.nodes) {
		return nil, fmt.Errorf("target node %d out of range", node)
	}
	if ch.Sampler < 0 || ch.Sampler >= len(ga.Samplers) {
		return nil, fmt.Errorf("sampler %d out of range", ch.Sampler)
	}
	smp := ga.Samplers[ch.Sampler]

	t := &animation.Track{Node: d.nodes[node]}
	switch ch.Target.Path {
	case gltf.TRSTranslation:
		t.Path = animation.PathTranslation
	case gltf.TRSRotation:
		t.Path = animation.PathRotation
	case gltf.TRSScale:
		t.Path = animation.PathScale
	case gltf.TRSWeights:
		if t.Node.Mesh == nil {
			return nil, fmt.Errorf("weights channel on node %d without mesh", node)
		}
		t.Path = animation.PathWeights
	default:
		return nil, fmt.Errorf("unsupported path %v", ch.Target.Path)
	}
	switch smp.Interpolation {
	case gltf.InterpolationStep:
		t.Interpolation = animation.InterpolationStep
	case gltf.InterpolationCubicSpline:
		t.Interpolation = animation.InterpolationCubicSpline
	default:
		t.Interpolation = animation.InterpolationLinear
	}

	var err error
	if t.Times, err = d.floats(smp.Input); err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}
	if t.Values, err = d.floats(smp.Output); err != nil {
		return nil, fmt.Errorf("output: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// floats reads an accessor as a flat float slice, normalizing integer data.
func (d *decoder) floats(idx int) ([]float32, error) {
	acc, err := d.accessor(idx)
	if err != nil {
		return nil, err
	}
	raw, err := modeler.ReadAccessor(d.doc, acc, nil)
	if err != nil {
		return nil, err
	}
	return flatten(raw)
}

func flatten(raw any) ([]float32, error) {
	switch v := raw.(type) {
	case []float32:
		return v, nil
	case [][2]float32:
		out := make([]float32, 0, len(v)*2)
		for _, e := range v {
			out = append(out, e[:]...)
		}
		return out, nil
	case [][3]float32:
		out := make([]float32, 0, len(v)*3)
		for _, e := range v {
			out = append(out, e[:]...)
		}
		return out, nil
	case [][4]float32:
		out := make([]float32, 0, len(v)*4)
		for _, e := range v {
			out = append(out, e[:]...)
		}
		return out, nil
	case []int8:
		return normalize(v, 127), nil
	case []uint8:
		return normalize(v, 255), nil
	case []int16:
		return normalize(v, 32767), nil
	case []uint16:
		return normalize(v, 65535), nil
	case [][4]int8:
		return normalize4(v, 127), nil
	case [][4]uint8:
		return normalize4(v, 255), nil
	case [][4]int16:
		return normalize4(v, 32767), nil
	case [][4]uint16:
		return normalize4(v, 65535), nil
	}
	return nil, fmt.Errorf("unsupported accessor data %T", raw)
}

type normInt interface {
	~int8 | ~uint8 | ~int16 | ~uint16
}

func normalize[T normInt](v []T, scale float32) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x) / scale
		if out[i] < -1 {
			out[i] = -1
		}
	}
	return out
}

func normalize4[T normInt](v [][4]T, scale float32) []float32 {
	out := make([]float32, 0, len(v)*4)
	for _, e := range v {
		out = append(out, normalize(e[:], scale)...)
	}
	return out
}
