// Package export writes skinned models as glTF 2.0.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/Faultbox/skeletor/pkg/formats"
	"github.com/Faultbox/skeletor/pkg/math"
	"github.com/Faultbox/skeletor/pkg/skeleton"
	"github.com/Faultbox/skeletor/pkg/texture"
)

// ErrEmptyModel is returned when no surface has any geometry to export.
var ErrEmptyModel = errors.New("export: model has no geometry")

// MaxInfluences is the number of joints glTF binds per vertex in JOINTS_0.
const MaxInfluences = 4

// Options controls the exported document.
type Options struct {
	// Scale multiplies every position. Zero means 1.
	Scale float32
	// FlipV writes texture coordinates as (u, 1-v).
	FlipV bool
	// Textures names each surface's material. Optional.
	Textures texture.Resolver
	// Binary selects .glb output in WriteGLTF.
	Binary bool

	// EmbedTextures decodes each resolved texture (TGA, PNG or JPEG) from
	// TextureRoot and stores it in the buffer as PNG. Textures that fail to
	// load stay as URI references.
	EmbedTextures  bool
	TextureRoot    string
	MaxTextureSize int // 0 keeps the original size

	// Warnings, when set, collects issues that were skipped rather than
	// failing the export, such as triangles referring to missing vertices.
	Warnings *formats.Warnings
}

// WriteGLTF builds the document for model posed by pose and encodes it to w.
func WriteGLTF(w io.Writer, model *formats.SKD, pose *skeleton.Pose, opts Options) error {
	doc, err := BuildDocument(model, pose, opts)
	if err != nil {
		return err
	}
	if !opts.Binary {
		for _, b := range doc.Buffers {
			b.EmbeddedResource()
		}
	}
	enc := gltf.NewEncoder(w)
	enc.AsBinary = opts.Binary
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding glTF: %w", err)
	}
	return nil
}

// BuildDocument converts model to a glTF document. Vertices are skinned by
// pose, which also becomes the bind pose of the exported skeleton. A nil
// pose uses the translation-only rest pose.
func BuildDocument(model *formats.SKD, pose *skeleton.Pose, opts Options) (*gltf.Document, error) {
	if model == nil {
		return nil, ErrEmptyModel
	}
	if pose == nil {
		pose = skeleton.ResolveTranslationOnly(model.Bones)
	}
	scale := opts.Scale
	if scale == 0 {
		scale = 1
	}

	doc := gltf.NewDocument()
	b := &builder{doc: doc, model: model, pose: pose, scale: scale, opts: opts}

	b.addJoints()

	mesh := &gltf.Mesh{Name: model.Name}
	for i := range model.Surfaces {
		if prim := b.addSurface(&model.Surfaces[i]); prim != nil {
			mesh.Primitives = append(mesh.Primitives, prim)
		}
	}
	if len(mesh.Primitives) == 0 {
		return nil, ErrEmptyModel
	}
	doc.Meshes = append(doc.Meshes, mesh)

	node := &gltf.Node{Name: model.Name, Mesh: gltf.Index(len(doc.Meshes) - 1)}
	if b.skin >= 0 {
		node.Skin = gltf.Index(b.skin)
	}
	doc.Nodes = append(doc.Nodes, node)
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, len(doc.Nodes)-1)

	return doc, nil
}

type builder struct {
	doc   *gltf.Document
	model *formats.SKD
	pose  *skeleton.Pose
	scale float32
	opts  Options

	skin      int
	materials map[string]int
}

// addJoints emits one node per bone, placed at its posed world position with
// no rotation, and a skin binding them in that pose.
func (b *builder) addJoints() {
	b.skin = -1
	bones := b.model.Bones
	if len(bones) == 0 {
		return
	}

	first := len(b.doc.Nodes)
	joints := make([]int, len(bones))
	inverseBind := make([][4][4]float32, len(bones))
	for i := range bones {
		world := b.pose.Positions[i].Scale(b.scale)
		local := world
		if p := b.pose.Parents[i]; p >= 0 {
			local = world.Sub(b.pose.Positions[p].Scale(b.scale))
		}
		b.doc.Nodes = append(b.doc.Nodes, &gltf.Node{
			Name:        bones[i].Name,
			Translation: [3]float64{float64(local.X), float64(local.Y), float64(local.Z)},
			Rotation:    [4]float64{0, 0, 0, 1},
			Scale:       [3]float64{1, 1, 1},
		})
		joints[i] = first + i
		inverseBind[i] = translation(world.Scale(-1))
	}

	for i := range bones {
		if p := b.pose.Parents[i]; p >= 0 {
			parent := b.doc.Nodes[first+p]
			parent.Children = append(parent.Children, first+i)
		} else {
			b.doc.Scenes[0].Nodes = append(b.doc.Scenes[0].Nodes, first+i)
		}
	}

	ibm := modeler.WriteAccessor(b.doc, gltf.TargetNone, inverseBind)
	b.doc.Skins = append(b.doc.Skins, &gltf.Skin{
		Name:                b.model.Name,
		Joints:              joints,
		InverseBindMatrices: gltf.Index(ibm),
	})
	b.skin = len(b.doc.Skins) - 1
}

// translation returns a column-major translation matrix.
func translation(v math.Vec3) [4][4]float32 {
	return [4][4]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{v.X, v.Y, v.Z, 1},
	}
}

func (b *builder) addSurface(s *formats.Surface) *gltf.Primitive {
	if len(s.Vertices) == 0 || len(s.Triangles) == 0 {
		return nil
	}

	n := len(s.Vertices)
	positions := make([][3]float32, n)
	normals := make([][3]float32, n)
	uvs := make([][2]float32, n)
	var joints [][4]uint16
	var weights [][4]float32
	if b.skin >= 0 {
		joints = make([][4]uint16, n)
		weights = make([][4]float32, n)
	}

	for i := range s.Vertices {
		v := s.Vertices[i]
		positions[i] = skeleton.SkinVertex(b.pose, v).Scale(b.scale).Array()
		normals[i] = skeleton.SkinNormal(b.pose, v).Array()
		uv := v.TexCoord
		if b.opts.FlipV {
			uv[1] = 1 - uv[1]
		}
		uvs[i] = uv
		if b.skin >= 0 {
			joints[i], weights[i] = TopInfluences(v.Weights, len(b.model.Bones))
		}
	}

	indices := make([]uint32, 0, len(s.Triangles)*3)
	dropped := 0
	for _, tri := range s.Triangles {
		if !triangleInRange(tri, n) {
			dropped++
			continue
		}
		indices = append(indices, uint32(tri[0]), uint32(tri[1]), uint32(tri[2]))
	}
	if dropped > 0 {
		b.warnf("surface %q: dropped %d of %d triangles with vertex indices outside [0, %d)", s.Name, dropped, len(s.Triangles), n)
	}
	if len(indices) == 0 {
		return nil
	}

	attrs := map[string]int{
		gltf.POSITION:   modeler.WritePosition(b.doc, positions),
		gltf.NORMAL:     modeler.WriteNormal(b.doc, normals),
		gltf.TEXCOORD_0: modeler.WriteTextureCoord(b.doc, uvs),
	}
	if b.skin >= 0 {
		attrs[gltf.JOINTS_0] = modeler.WriteJoints(b.doc, joints)
		attrs[gltf.WEIGHTS_0] = modeler.WriteWeights(b.doc, weights)
	}

	return &gltf.Primitive{
		Attributes: attrs,
		Indices:    gltf.Index(modeler.WriteIndices(b.doc, indices)),
		Material:   gltf.Index(b.material(s.Name)),
		Mode:       gltf.PrimitiveTriangles,
	}
}

func triangleInRange(tri [3]int32, numVerts int) bool {
	for _, i := range tri {
		if i < 0 || int(i) >= numVerts {
			return false
		}
	}
	return true
}

func (b *builder) warnf(format string, args ...any) {
	if b.opts.Warnings != nil {
		b.opts.Warnings.Addf(formats.StructuralWarning, format, args...)
	}
}

// material returns the material for a surface, creating it on first use.
// Surfaces with a known texture get an image-backed base color.
func (b *builder) material(surface string) int {
	if idx, ok := b.materials[surface]; ok {
		return idx
	}
	if b.materials == nil {
		b.materials = make(map[string]int)
	}

	mat := &gltf.Material{
		Name:                 surface,
		DoubleSided:          true,
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{},
	}
	if b.opts.Textures != nil {
		if path, ok := b.opts.Textures.Lookup(surface); ok {
			b.addImage(surface, path)
			b.doc.Textures = append(b.doc.Textures, &gltf.Texture{
				Sampler: gltf.Index(b.sampler()),
				Source:  gltf.Index(len(b.doc.Images) - 1),
			})
			mat.PBRMetallicRoughness.BaseColorTexture = &gltf.TextureInfo{Index: len(b.doc.Textures) - 1}
		}
	}
	b.doc.Materials = append(b.doc.Materials, mat)

	idx := len(b.doc.Materials) - 1
	b.materials[surface] = idx
	return idx
}

// sampler returns the repeat-wrapping sampler shared by all textures.
func (b *builder) sampler() int {
	if len(b.doc.Samplers) == 0 {
		b.doc.Samplers = append(b.doc.Samplers, &gltf.Sampler{WrapS: gltf.WrapRepeat, WrapT: gltf.WrapRepeat})
	}
	return 0
}

// addImage appends the image for a surface texture, embedded when possible.
func (b *builder) addImage(surface, path string) {
	if b.opts.EmbedTextures {
		if data, err := b.loadPNG(path); err == nil {
			if _, err := modeler.WriteImage(b.doc, surface, "image/png", bytes.NewReader(data)); err == nil {
				return
			}
		}
	}
	b.doc.Images = append(b.doc.Images, &gltf.Image{Name: surface, URI: path})
}

func (b *builder) loadPNG(path string) ([]byte, error) {
	img, err := texture.LoadImage(b.opts.TextureRoot, path)
	if err != nil {
		return nil, err
	}
	return texture.EncodePNG(texture.Fit(img, b.opts.MaxTextureSize))
}

// TopInfluences picks the strongest weights whose bone exists, at most
// MaxInfluences of them, and renormalizes them to sum to one. A vertex with
// no usable weight binds fully to joint 0.
func TopInfluences(ws []formats.Weight, numBones int) ([4]uint16, [4]float32) {
	valid := make([]formats.Weight, 0, len(ws))
	for _, w := range ws {
		if w.BoneIndex >= 0 && int(w.BoneIndex) < numBones && w.Weight > 0 {
			valid = append(valid, w)
		}
	}
	sort.SliceStable(valid, func(i, j int) bool { return valid[i].Weight > valid[j].Weight })
	if len(valid) > MaxInfluences {
		valid = valid[:MaxInfluences]
	}

	var joints [4]uint16
	var weights [4]float32
	var sum float32
	for _, w := range valid {
		sum += w.Weight
	}
	if sum <= 0 {
		weights[0] = 1
		return joints, weights
	}
	for i, w := range valid {
		joints[i] = uint16(w.BoneIndex)
		weights[i] = w.Weight / sum
	}
	return joints, weights
}
