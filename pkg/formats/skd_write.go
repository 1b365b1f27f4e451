package formats

import (
	"fmt"
	"os"

	"github.com/Faultbox/skeletor/pkg/encoding"
)

// Encode serializes the model in the given SKD version (5 or 6).
// Every offset and size is derived from content, so encoding a decoded
// model reproduces the original bytes when that file came from this writer.
// Version 5 has no morph data; morphs and morph target names are dropped.
func (m *SKD) Encode(version int32) ([]byte, error) {
	if version != SKDVersionOld && version != SKDVersionCurrent {
		return nil, fmt.Errorf("%w: SKD version %d", ErrUnsupportedWriteVersion, version)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}

	headerSize := skdHeaderOldSize
	if version >= SKDVersionCurrent {
		headerSize = skdHeaderCurrentSize
	}

	body := encoding.NewWriter()

	ofsSurfaces := headerSize
	for i := range m.Surfaces {
		m.Surfaces[i].encode(body, version)
	}

	ofsBones := headerSize + body.Len()
	for i := range m.Bones {
		m.Bones[i].encode(body)
	}

	ofsBoxes := 0
	if len(m.HitBoxes) > 0 {
		ofsBoxes = headerSize + body.Len()
		for _, b := range m.HitBoxes {
			body.Int32(b)
		}
	}

	ofsMorph := 0
	numMorph := 0
	if version >= SKDVersionCurrent && len(m.MorphTargets) > 0 {
		ofsMorph = headerSize + body.Len()
		numMorph = len(m.MorphTargets)
		for _, name := range m.MorphTargets {
			body.Write(encoding.UTF8ToLatin1(name))
			body.Zero(1)
		}
	}

	ofsEnd := headerSize + body.Len()

	w := encoding.NewWriter()
	w.Write([]byte(SKDMagic))
	w.Int32(version)
	w.FixedString(m.Name, skdNameSize)
	w.Int32(int32(len(m.Surfaces)))
	w.Int32(int32(len(m.Bones)))
	w.Int32(int32(ofsBones))
	w.Int32(int32(ofsSurfaces))
	w.Int32(int32(ofsEnd))
	for _, lod := range m.LODIndex {
		w.Int32(lod)
	}
	w.Int32(int32(len(m.HitBoxes)))
	w.Int32(int32(ofsBoxes))
	if version >= SKDVersionCurrent {
		w.Int32(int32(numMorph))
		w.Int32(int32(ofsMorph))
		w.Float32(m.Scale)
	}
	w.Write(body.Bytes())

	return w.Bytes(), nil
}

// WriteFile encodes the model and writes it to path.
func (m *SKD) WriteFile(path string, version int32) error {
	data, err := m.Encode(version)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// validate rejects references that cannot be written consistently.
func (m *SKD) validate() error {
	for si := range m.Surfaces {
		s := &m.Surfaces[si]
		for ti, tri := range s.Triangles {
			for _, idx := range tri {
				if idx < 0 || int(idx) >= len(s.Vertices) {
					return fmt.Errorf("%w: surface %q triangle %d vertex %d (have %d)", ErrIndexOutOfRange, s.Name, ti, idx, len(s.Vertices))
				}
			}
		}
		for vi := range s.Vertices {
			for _, wt := range s.Vertices[vi].Weights {
				if wt.BoneIndex < 0 || int(wt.BoneIndex) >= len(m.Bones) {
					return fmt.Errorf("%w: surface %q vertex %d bone %d (have %d)", ErrIndexOutOfRange, s.Name, vi, wt.BoneIndex, len(m.Bones))
				}
			}
		}
	}
	return nil
}

func (s *Surface) encode(w *encoding.Writer, version int32) {
	numVerts := len(s.Vertices)

	verts := encoding.NewWriter()
	for i := range s.Vertices {
		v := &s.Vertices[i]
		morphs := v.Morphs
		if version < SKDVersionCurrent {
			morphs = nil
		}
		verts.Vec3(v.Normal)
		verts.Vec2(v.TexCoord)
		verts.Int32(int32(len(v.Weights)))
		verts.Int32(int32(len(morphs)))
		for _, mo := range morphs {
			verts.Int32(mo.Index)
			verts.Vec3(mo.Offset)
		}
		for _, wt := range v.Weights {
			verts.Int32(wt.BoneIndex)
			verts.Float32(wt.Weight)
			verts.Vec3(wt.Offset)
		}
	}

	ofsTris := skdSurfaceSize
	ofsVerts := ofsTris + len(s.Triangles)*skdTriangleSize
	ofsCollapse := ofsVerts + verts.Len()
	ofsCollapseIndex := ofsCollapse + numVerts*4
	ofsEnd := ofsCollapseIndex + numVerts*4

	w.Int32(s.Ident)
	w.FixedString(s.Name, skdNameSize)
	w.Int32(int32(len(s.Triangles)))
	w.Int32(int32(numVerts))
	w.Int32(s.Processed)
	w.Int32(int32(ofsTris))
	w.Int32(int32(ofsVerts))
	w.Int32(int32(ofsCollapse))
	w.Int32(int32(ofsEnd))
	w.Int32(int32(ofsCollapseIndex))

	for _, tri := range s.Triangles {
		w.Int32(tri[0])
		w.Int32(tri[1])
		w.Int32(tri[2])
	}
	w.Write(verts.Bytes())
	writeCollapseTable(w, s.CollapseMap, numVerts)
	writeCollapseTable(w, s.CollapseIndex, numVerts)
}

// writeCollapseTable writes table, or an identity map when it does not match the vertex count.
func writeCollapseTable(w *encoding.Writer, table []int32, numVerts int) {
	if len(table) == numVerts {
		for _, v := range table {
			w.Int32(v)
		}
		return
	}
	for i := 0; i < numVerts; i++ {
		w.Int32(int32(i))
	}
}

func (b *Bone) encode(w *encoding.Writer) {
	payload := b.packBaseData()

	ofsBaseData := 0
	if len(payload) > 0 {
		ofsBaseData = skdBoneSize
	}

	w.FixedString(b.Name, skdBoneNameSize)
	w.FixedString(b.Parent, skdBoneNameSize)
	w.Int32(int32(b.Type))
	w.Int32(int32(ofsBaseData))
	w.Int32(0) // channel names
	w.Int32(0) // bone names
	w.Int32(int32(skdBoneSize + len(payload)))
	w.Write(payload)
}
