package skeleton

import (
	"github.com/Faultbox/skeletor/pkg/formats"
	"github.com/Faultbox/skeletor/pkg/math"
)

// SkinVertex returns the world position of v under pose: the weighted sum of
// each bone's world rotation applied to the weight offset, plus the bone's
// world position. A weight whose bone is not in the pose contributes its
// scaled offset alone. A vertex without weights lands at the origin.
func SkinVertex(pose *Pose, v formats.Vertex) math.Vec3 {
	var out math.Vec3
	for _, w := range v.Weights {
		offset := math.V3(w.Offset)
		i := int(w.BoneIndex)
		if !pose.Valid(i) {
			out = out.Add(offset.Scale(w.Weight))
			continue
		}
		world := pose.Rotations[i].MulVec(offset).Add(pose.Positions[i])
		out = out.Add(world.Scale(w.Weight))
	}
	return out
}

// SkinNormal rotates v's normal by the weighted bone rotations and
// renormalizes it. Unresolved bones leave their share unrotated.
func SkinNormal(pose *Pose, v formats.Vertex) math.Vec3 {
	n := math.V3(v.Normal)
	if len(v.Weights) == 0 {
		return n
	}
	var out math.Vec3
	for _, w := range v.Weights {
		rot, _ := pose.Rotation(int(w.BoneIndex))
		out = out.Add(rot.MulVec(n).Scale(w.Weight))
	}
	return out.Normalize()
}

// SkinSurface skins every vertex of s.
func SkinSurface(pose *Pose, s *formats.Surface) []math.Vec3 {
	out := make([]math.Vec3, len(s.Vertices))
	for i := range s.Vertices {
		out[i] = SkinVertex(pose, s.Vertices[i])
	}
	return out
}

// SkinModel skins every surface of m, one slice per surface.
func SkinModel(pose *Pose, m *formats.SKD) [][]math.Vec3 {
	out := make([][]math.Vec3, len(m.Surfaces))
	for i := range m.Surfaces {
		out[i] = SkinSurface(pose, &m.Surfaces[i])
	}
	return out
}

// WorldVertices returns the translation-only vertex positions of m: each
// weight contributes w * (bone position + offset) with rotation ignored.
// This is what a rotation-unaware consumer of the mesh computes.
func WorldVertices(m *formats.SKD, pose *Pose) [][]math.Vec3 {
	out := make([][]math.Vec3, len(m.Surfaces))
	for si := range m.Surfaces {
		verts := m.Surfaces[si].Vertices
		out[si] = make([]math.Vec3, len(verts))
		for vi := range verts {
			var p math.Vec3
			for _, w := range verts[vi].Weights {
				offset := math.V3(w.Offset)
				if bp, ok := pose.Position(int(w.BoneIndex)); ok {
					offset = offset.Add(bp)
				}
				p = p.Add(offset.Scale(w.Weight))
			}
			out[si][vi] = p
		}
	}
	return out
}
