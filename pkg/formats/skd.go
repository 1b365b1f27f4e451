// SKD (skeletal model) format parser and writer.
package formats

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Faultbox/skeletor/pkg/encoding"
)

// SKD format errors.
var (
	ErrInvalidSKDMagic  = errors.New("invalid SKD magic: expected 'SKMD'")
	ErrTruncatedSKDData = errors.New("truncated SKD data")
)

// SKD identifiers and versions.
const (
	SKDMagic = "SKMD"
	// SKBMagic identifies the legacy pre-format variant with index-based bones.
	SKBMagic = "SKL "

	SKDVersionLegacy  = 4 // highest version using index-based bone records
	SKDVersionOld     = 5 // no morph targets, no scale
	SKDVersionCurrent = 6
)

// Fixed record sizes.
const (
	skdHeaderOldSize     = 140
	skdHeaderCurrentSize = 152
	skdSurfaceSize       = 100
	skdVertexSize        = 28
	skdWeightSize        = 20
	skdMorphSize         = 16
	skdTriangleSize      = 12
	skdBoneSize          = 84
	skdLegacyBoneSize    = 72
	skdHitBoxSize        = 4

	skdNameSize       = 64
	skdBoneNameSize   = 32
	skdLegacyNameSize = 64
	skdLODIndexes     = 10
)

// WorldBone is the reserved parent name of root bones.
const WorldBone = "worldbone"

// BoneType is the skeletor bone type tag.
type BoneType int32

// Bone types. Only BonePosRot drives skeleton resolution; the rest are
// preserved opaquely.
const (
	BoneRotation      BoneType = 0
	BonePosRot        BoneType = 1
	BoneIKShoulder    BoneType = 2
	BoneIKElbow       BoneType = 3
	BoneIKWrist       BoneType = 4
	BoneHoseRot       BoneType = 5
	BoneAvRot         BoneType = 6
	BoneZero          BoneType = 7
	BoneNumTypes      BoneType = 8
	BoneWorld         BoneType = 9
	BoneHoseRotBoth   BoneType = 10
	BoneHoseRotParent BoneType = 11
)

// String returns a human-readable bone type name.
func (t BoneType) String() string {
	switch t {
	case BoneRotation:
		return "Rotation"
	case BonePosRot:
		return "PosRot"
	case BoneIKShoulder:
		return "IKShoulder"
	case BoneIKElbow:
		return "IKElbow"
	case BoneIKWrist:
		return "IKWrist"
	case BoneHoseRot:
		return "HoseRot"
	case BoneAvRot:
		return "AvRot"
	case BoneZero:
		return "Zero"
	case BoneNumTypes:
		return "NumTypes"
	case BoneWorld:
		return "World"
	case BoneHoseRotBoth:
		return "HoseRotBoth"
	case BoneHoseRotParent:
		return "HoseRotParent"
	default:
		return fmt.Sprintf("Unknown(%d)", int32(t))
	}
}

// offsetSlot returns where the 3-float offset sits inside a bone's base data.
func (t BoneType) offsetSlot() (int, bool) {
	switch t {
	case BoneRotation, BonePosRot:
		return 0, true
	case BoneAvRot:
		return 4, true // preceded by length
	case BoneHoseRot, BoneHoseRotBoth, BoneHoseRotParent:
		return 12, true // preceded by bend ratio, bend max, spin ratio
	case BoneIKShoulder:
		return 16, true // preceded by a quaternion
	default:
		return 0, false
	}
}

// Bone is one node of the skeleton.
type Bone struct {
	Name   string
	Parent string // empty or WorldBone for roots
	Type   BoneType
	Offset [3]float32 // parent-relative translation

	// BaseData is the raw type-specific payload for types other than a plain
	// offset. The Offset field is written back into it on encode.
	BaseData []byte

	// Legacy index-based records only.
	BoxIndex int16
	Flags    int32
}

// IsRoot reports whether the bone has no parent.
func (b *Bone) IsRoot() bool {
	return IsRootParent(b.Parent)
}

// IsRootParent reports whether a parent name denotes the world root.
func IsRootParent(parent string) bool {
	return parent == "" || strings.EqualFold(parent, WorldBone)
}

// Weight is one bone's influence on a vertex.
type Weight struct {
	BoneIndex int32
	Weight    float32
	Offset    [3]float32 // bone-relative position
}

// Morph is one morph-target displacement of a vertex.
type Morph struct {
	Index  int32
	Offset [3]float32
}

// Vertex is a skinned vertex.
type Vertex struct {
	Normal   [3]float32
	TexCoord [2]float32
	Weights  []Weight
	Morphs   []Morph
}

// Surface is a group of triangles sharing one material.
type Surface struct {
	Ident     int32 // placeholder, normally zero
	Name      string
	Processed int32 // static surface processed flag
	Triangles [][3]int32
	Vertices  []Vertex

	// LOD tables, carried opaquely. Identity maps are written when absent.
	CollapseMap   []int32
	CollapseIndex []int32
}

// SKD represents a parsed skeletal model.
type SKD struct {
	Version      int32
	Legacy       bool // bones were decoded from index-based records
	Name         string
	LODIndex     [skdLODIndexes]int32
	Scale        float32
	Surfaces     []Surface
	Bones        []Bone
	HitBoxes     []int32 // bone index per hit box
	MorphTargets []string

	Warnings Warnings
}

// BoneIndex returns the index of the named bone, or -1.
func (m *SKD) BoneIndex(name string) int {
	for i := range m.Bones {
		if m.Bones[i].Name == name {
			return i
		}
	}
	return -1
}

// VertexCount returns the total vertex count over all surfaces.
func (m *SKD) VertexCount() int {
	n := 0
	for i := range m.Surfaces {
		n += len(m.Surfaces[i].Vertices)
	}
	return n
}

// TriangleCount returns the total triangle count over all surfaces.
func (m *SKD) TriangleCount() int {
	n := 0
	for i := range m.Surfaces {
		n += len(m.Surfaces[i].Triangles)
	}
	return n
}

// skdHeader mirrors the on-disk header fields needed while parsing.
type skdHeader struct {
	numSurfaces, numBones         int32
	ofsBones, ofsSurfaces, ofsEnd int32
	numBoxes, ofsBoxes            int32
	numMorphTargets, ofsMorph     int32
}

// ParseSKD parses SKD data from a byte slice.
func ParseSKD(data []byte) (*SKD, error) {
	if len(data) < 8 {
		return nil, &FormatError{Format: "SKD", Err: ErrTruncatedSKDData}
	}

	magic := string(data[:4])
	if magic != SKDMagic && magic != SKBMagic {
		return nil, &FormatError{Format: "SKD", Err: ErrInvalidSKDMagic}
	}

	r := encoding.NewReader(data)
	r.Skip(4)

	m := &SKD{Version: r.Int32(), Scale: 1.0}

	switch {
	case magic == SKBMagic:
		m.Legacy = true
		m.Warnings.Addf(VersionWarning, "legacy %q model (version %d), bones read as index records", SKBMagic, m.Version)
	case m.Version <= SKDVersionLegacy:
		m.Legacy = true
		m.Warnings.Addf(VersionWarning, "legacy SKD version %d, bones read as index records", m.Version)
	case m.Version > SKDVersionCurrent:
		m.Warnings.Addf(VersionWarning, "unknown SKD version %d, parsing as version %d", m.Version, SKDVersionCurrent)
	}

	hdr, err := m.readHeader(r)
	if err != nil {
		return nil, err
	}

	m.readSurfaces(r, hdr)

	if m.Legacy {
		m.readLegacyBones(r, hdr)
	} else {
		m.readBones(r, hdr)
	}

	m.readHitBoxes(r, hdr)
	m.readMorphTargets(r, hdr)

	return m, nil
}

// ParseSKDFile parses an SKD file from disk.
func ParseSKDFile(path string) (*SKD, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading SKD file: %w", err)
	}
	return ParseSKD(data)
}

func (m *SKD) readHeader(r *encoding.Reader) (skdHeader, error) {
	var h skdHeader

	size := skdHeaderOldSize
	if m.Version >= SKDVersionCurrent && !m.Legacy {
		size = skdHeaderCurrentSize
	}
	if r.Len() < size {
		return h, &FormatError{Format: "SKD", Err: ErrTruncatedSKDData}
	}

	m.Name = r.FixedString(skdNameSize)
	h.numSurfaces = r.Int32()
	h.numBones = r.Int32()
	h.ofsBones = r.Int32()
	h.ofsSurfaces = r.Int32()
	h.ofsEnd = r.Int32()
	for i := range m.LODIndex {
		m.LODIndex[i] = r.Int32()
	}
	h.numBoxes = r.Int32()
	h.ofsBoxes = r.Int32()

	if size == skdHeaderCurrentSize {
		h.numMorphTargets = r.Int32()
		h.ofsMorph = r.Int32()
		m.Scale = r.Float32()
	}

	if r.Err != nil {
		return h, &FormatError{Format: "SKD", Err: ErrTruncatedSKDData}
	}
	return h, nil
}

func (m *SKD) readSurfaces(r *encoding.Reader, h skdHeader) {
	if h.numSurfaces < 0 {
		m.Warnings.Addf(StructuralWarning, "negative surface count %d", h.numSurfaces)
		return
	}

	pos := int(h.ofsSurfaces)
	for i := int32(0); i < h.numSurfaces; i++ {
		if !r.InRange(pos, skdSurfaceSize) {
			m.Warnings.Addf(StructuralWarning, "surface %d header at %d is outside the file", i, pos)
			return
		}
		surf, next, ok := m.readSurface(r, pos, i)
		m.Surfaces = append(m.Surfaces, surf)
		if !ok || next <= pos {
			return
		}
		pos = next
	}
}

// readSurface decodes the surface starting at pos and returns the offset of the next one.
func (m *SKD) readSurface(r *encoding.Reader, pos int, idx int32) (Surface, int, bool) {
	r.Seek(pos)

	s := Surface{
		Ident: r.Int32(),
		Name:  r.FixedString(skdNameSize),
	}
	numTris := r.Int32()
	numVerts := r.Int32()
	s.Processed = r.Int32()
	ofsTris := r.Int32()
	ofsVerts := r.Int32()
	ofsCollapse := r.Int32()
	ofsEnd := r.Int32()
	ofsCollapseIndex := r.Int32()

	if numTris < 0 || numVerts < 0 {
		m.Warnings.Addf(StructuralWarning, "surface %q has negative counts (%d triangles, %d vertices)", s.Name, numTris, numVerts)
		return s, 0, false
	}

	if numTris > 0 {
		start := pos + int(ofsTris)
		if !r.InRange(start, int(numTris)*skdTriangleSize) {
			m.Warnings.Addf(StructuralWarning, "surface %q triangles run past end of file", s.Name)
		} else {
			r.Seek(start)
			s.Triangles = make([][3]int32, numTris)
			for t := range s.Triangles {
				s.Triangles[t] = [3]int32{r.Int32(), r.Int32(), r.Int32()}
			}
		}
	}

	if numVerts > 0 {
		start := pos + int(ofsVerts)
		if !r.InRange(start, int(numVerts)*skdVertexSize) {
			m.Warnings.Addf(StructuralWarning, "surface %q vertices (%d) run past end of file", s.Name, numVerts)
		} else {
			r.Seek(start)
			s.Vertices = m.readVertices(r, int(numVerts), s.Name)
		}
	}

	s.CollapseMap = readInt32Table(r, pos, ofsCollapse, numVerts)
	s.CollapseIndex = readInt32Table(r, pos, ofsCollapseIndex, numVerts)

	r.Err = nil
	return s, pos + int(ofsEnd), true
}

func (m *SKD) readVertices(r *encoding.Reader, count int, surface string) []Vertex {
	verts := make([]Vertex, 0, count)
	for i := 0; i < count; i++ {
		var v Vertex
		v.Normal = r.Vec3()
		v.TexCoord = r.Vec2()
		numWeights := int(r.Int32())
		numMorphs := int(r.Int32())

		if numWeights < 0 || numMorphs < 0 ||
			numMorphs*skdMorphSize+numWeights*skdWeightSize > r.Remaining() {
			m.Warnings.Addf(StructuralWarning, "surface %q vertex %d has invalid weight/morph counts (%d/%d)", surface, i, numWeights, numMorphs)
			r.Err = nil
			return verts
		}

		if numMorphs > 0 {
			v.Morphs = make([]Morph, numMorphs)
			for j := range v.Morphs {
				v.Morphs[j] = Morph{Index: r.Int32(), Offset: r.Vec3()}
			}
		}
		if numWeights > 0 {
			v.Weights = make([]Weight, numWeights)
			for j := range v.Weights {
				v.Weights[j] = Weight{BoneIndex: r.Int32(), Weight: r.Float32(), Offset: r.Vec3()}
			}
		}

		if r.Err != nil {
			m.Warnings.Addf(StructuralWarning, "surface %q vertex data truncated at vertex %d", surface, i)
			r.Err = nil
			return verts
		}
		verts = append(verts, v)
	}
	return verts
}

func readInt32Table(r *encoding.Reader, base int, ofs, count int32) []int32 {
	if ofs <= 0 || count <= 0 || !r.InRange(base+int(ofs), int(count)*4) {
		return nil
	}
	r.Seek(base + int(ofs))
	table := make([]int32, count)
	for i := range table {
		table[i] = r.Int32()
	}
	return table
}

func (m *SKD) readBones(r *encoding.Reader, h skdHeader) {
	if h.numBones <= 0 {
		return
	}

	pos := int(h.ofsBones)
	numBones := int(h.numBones)
	if !r.InRange(pos, numBones*skdBoneSize) {
		fit := 0
		if pos >= 0 && pos < r.Len() {
			fit = (r.Len() - pos) / skdBoneSize
		}
		m.Warnings.Addf(StructuralWarning, "bone table (%d bones at %d) runs past end of file, reading at most %d", h.numBones, h.ofsBones, fit)
		numBones = fit
	}

	m.Bones = make([]Bone, 0, numBones)
	for i := 0; i < numBones; i++ {
		if !r.InRange(pos, skdBoneSize) {
			m.Warnings.Addf(StructuralWarning, "bone %d record at %d is outside the file", i, pos)
			break
		}
		r.Seek(pos)

		b := Bone{
			Name:   r.FixedString(skdBoneNameSize),
			Parent: r.FixedString(skdBoneNameSize),
			Type:   BoneType(r.Int32()),
		}
		ofsBaseData := r.Int32()
		r.Int32() // ofsChannelNames
		r.Int32() // ofsBoneNames
		ofsEnd := r.Int32()

		if ofsBaseData > 0 && ofsEnd > ofsBaseData && r.InRange(pos+int(ofsBaseData), int(ofsEnd-ofsBaseData)) {
			r.Seek(pos + int(ofsBaseData))
			b.BaseData = append([]byte(nil), r.Bytes(int(ofsEnd-ofsBaseData))...)
		}
		b.unpackOffset()

		m.Bones = append(m.Bones, b)

		if ofsEnd <= 0 {
			m.Warnings.Addf(StructuralWarning, "bone %q has non-positive end offset %d", b.Name, ofsEnd)
			break
		}
		pos += int(ofsEnd)
	}
	m.checkParents()
}

// unpackOffset pulls the 3-float offset out of BaseData. A plain offset
// payload is dropped afterwards since Offset fully represents it.
func (b *Bone) unpackOffset() {
	slot, ok := b.Type.offsetSlot()
	if !ok || len(b.BaseData) < slot+12 {
		return
	}
	r := encoding.NewReader(b.BaseData)
	r.Seek(slot)
	b.Offset = r.Vec3()
	if slot == 0 && len(b.BaseData) == 12 {
		b.BaseData = nil
	}
}

// packBaseData returns the payload to write after the bone record.
func (b *Bone) packBaseData() []byte {
	slot, ok := b.Type.offsetSlot()
	if !ok {
		return b.BaseData
	}
	size := slot + 12
	if len(b.BaseData) > size {
		size = len(b.BaseData)
	}
	payload := make([]byte, size)
	copy(payload, b.BaseData)

	w := encoding.NewWriter()
	w.Vec3(b.Offset)
	copy(payload[slot:], w.Bytes())
	return payload
}

func (m *SKD) readLegacyBones(r *encoding.Reader, h skdHeader) {
	if h.numBones <= 0 {
		return
	}
	if !r.InRange(int(h.ofsBones), int(h.numBones)*skdLegacyBoneSize) {
		m.Warnings.Addf(StructuralWarning, "legacy bone table (%d bones) runs past end of file", h.numBones)
		return
	}

	r.Seek(int(h.ofsBones))
	parents := make([]int16, h.numBones)
	m.Bones = make([]Bone, h.numBones)
	for i := range m.Bones {
		parents[i] = r.Int16()
		m.Bones[i] = Bone{
			Type:     BonePosRot,
			BoxIndex: r.Int16(),
			Flags:    r.Int32(),
			Name:     r.FixedString(skdLegacyNameSize),
		}
	}

	for i, p := range parents {
		switch {
		case p == -1:
			m.Bones[i].Parent = WorldBone
		case p < 0 || int(p) >= len(m.Bones) || int(p) == i:
			m.Warnings.Addf(StructuralWarning, "bone %q has invalid parent index %d, treating as root", m.Bones[i].Name, p)
			m.Bones[i].Parent = WorldBone
		default:
			m.Bones[i].Parent = m.Bones[p].Name
		}
	}
}

// checkParents records a warning for every parent name that does not resolve.
func (m *SKD) checkParents() {
	names := make(map[string]struct{}, len(m.Bones))
	for i := range m.Bones {
		names[m.Bones[i].Name] = struct{}{}
	}
	for i := range m.Bones {
		b := &m.Bones[i]
		if b.IsRoot() {
			continue
		}
		if _, ok := names[b.Parent]; !ok {
			m.Warnings.Addf(StructuralWarning, "bone %q has unknown parent %q", b.Name, b.Parent)
		}
	}
}

func (m *SKD) readHitBoxes(r *encoding.Reader, h skdHeader) {
	if h.numBoxes <= 0 {
		return
	}
	if h.ofsBoxes <= 0 || !r.InRange(int(h.ofsBoxes), int(h.numBoxes)*skdHitBoxSize) {
		m.Warnings.Addf(StructuralWarning, "hit box table (%d boxes at %d) is outside the file", h.numBoxes, h.ofsBoxes)
		return
	}
	r.Seek(int(h.ofsBoxes))
	m.HitBoxes = make([]int32, h.numBoxes)
	for i := range m.HitBoxes {
		m.HitBoxes[i] = r.Int32()
	}
}

func (m *SKD) readMorphTargets(r *encoding.Reader, h skdHeader) {
	if h.numMorphTargets <= 0 || h.ofsMorph <= 0 {
		return
	}
	if !r.Seek(int(h.ofsMorph)) {
		m.Warnings.Addf(StructuralWarning, "morph target names at %d are outside the file", h.ofsMorph)
		return
	}
	for i := int32(0); i < h.numMorphTargets && r.Remaining() > 0; i++ {
		start := r.Pos()
		name, n := encoding.CString(r.Bytes(r.Remaining()))
		m.MorphTargets = append(m.MorphTargets, name)
		r.Seek(start + n)
	}
}
