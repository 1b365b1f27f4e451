package skeleton

import (
	"errors"

	"github.com/Faultbox/skeletor/pkg/formats"
	"github.com/Faultbox/skeletor/pkg/math"
)

// ErrNilModel is returned when Reconcile is given no model.
var ErrNilModel = errors.New("reconcile: nil model")

// Shifts at or below this length are treated as no movement when counting changes.
const shiftEpsilon = 1e-6

// Reconciliation reports what Reconcile changed.
type Reconciliation struct {
	// Shifts is the world-space movement of each bone from the mesh rest
	// pose to the animation's first frame.
	Shifts          []math.Vec3
	MaxShift        float32
	BonesChanged    int
	WeightsAdjusted int

	Warnings formats.Warnings
}

// Reconcile rewrites model's bone offsets to match frame 0 of anim and
// moves every weight offset by the opposite shift, so each vertex keeps its
// translation-only world position. Rotation is folded into positions; the
// mesh has nowhere to store it. model is modified in place and anim is only
// read. A nil or empty animation leaves the model untouched.
func Reconcile(model *formats.SKD, anim *formats.SKC) (*Reconciliation, error) {
	if model == nil {
		return nil, ErrNilModel
	}

	rec := &Reconciliation{}
	frame := FrameFromAnimation(anim, 0)
	if frame == nil {
		rec.Warnings.Addf(formats.StructuralWarning, "animation has no frame 0, rest pose left unchanged")
		return rec, nil
	}
	if frame.Len() == 0 {
		rec.Warnings.Addf(formats.StructuralWarning, "animation drives no bones, rest pose left unchanged")
	}

	old := ResolveTranslationOnly(model.Bones)
	cur := Resolve(model.Bones, frame)
	rec.Warnings = append(rec.Warnings, cur.Warnings...)

	rec.Shifts = make([]math.Vec3, len(model.Bones))
	for b := range model.Bones {
		s := cur.Positions[b].Sub(old.Positions[b])
		rec.Shifts[b] = s
		if l := s.Length(); l > rec.MaxShift {
			rec.MaxShift = l
		}
	}

	rec.adjustWeights(model)
	rec.rewriteOffsets(model, cur)

	return rec, nil
}

func (rec *Reconciliation) adjustWeights(model *formats.SKD) {
	for si := range model.Surfaces {
		s := &model.Surfaces[si]
		skipped := 0
		for vi := range s.Vertices {
			weights := s.Vertices[vi].Weights
			for wi := range weights {
				w := &weights[wi]
				b := int(w.BoneIndex)
				if b < 0 || b >= len(rec.Shifts) {
					skipped++
					continue
				}
				shift := rec.Shifts[b]
				if shift.Length() <= shiftEpsilon {
					continue
				}
				w.Offset = math.V3(w.Offset).Sub(shift).Array()
				rec.WeightsAdjusted++
			}
		}
		if skipped > 0 {
			rec.Warnings.Addf(formats.StructuralWarning, "surface %q: %d weights reference missing bones, left unchanged", s.Name, skipped)
		}
	}
}

func (rec *Reconciliation) rewriteOffsets(model *formats.SKD, cur *Pose) {
	for b := range model.Bones {
		local := cur.Positions[b]
		if p := cur.Parents[b]; p >= 0 {
			local = local.Sub(cur.Positions[p])
		}
		bone := &model.Bones[b]
		if !local.ApproxEqual(math.V3(bone.Offset), shiftEpsilon) {
			rec.BonesChanged++
		}
		bone.Offset = local.Array()
	}
}
