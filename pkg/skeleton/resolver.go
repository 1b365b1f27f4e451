// Package skeleton resolves bone hierarchies into world transforms, skins
// vertices against them, and reconciles degenerate mesh rest poses with an
// animation's first frame.
package skeleton

import (
	"strings"

	"github.com/Faultbox/skeletor/pkg/formats"
	"github.com/Faultbox/skeletor/pkg/math"
)

// FramePose holds the local rotation and position overrides of one
// animation frame, keyed by bone name.
type FramePose struct {
	rotations map[string]math.Quat
	positions map[string]math.Vec3
}

// NewFramePose creates an empty override set.
func NewFramePose() *FramePose {
	return &FramePose{
		rotations: make(map[string]math.Quat),
		positions: make(map[string]math.Vec3),
	}
}

// SetRotation overrides a bone's local rotation.
func (f *FramePose) SetRotation(bone string, q math.Quat) {
	f.rotations[bone] = q
}

// SetPosition overrides a bone's local position.
func (f *FramePose) SetPosition(bone string, p math.Vec3) {
	f.positions[bone] = p
}

// Rotation returns the override for bone, if any. Safe on a nil FramePose.
func (f *FramePose) Rotation(bone string) (math.Quat, bool) {
	if f == nil {
		return math.Quat{}, false
	}
	q, ok := f.rotations[bone]
	return q, ok
}

// Position returns the override for bone, if any. Safe on a nil FramePose.
func (f *FramePose) Position(bone string) (math.Vec3, bool) {
	if f == nil {
		return math.Vec3{}, false
	}
	p, ok := f.positions[bone]
	return p, ok
}

// Len returns the number of overridden rotations and positions.
func (f *FramePose) Len() int {
	if f == nil {
		return 0
	}
	return len(f.rotations) + len(f.positions)
}

// FrameFromAnimation collects the rotation and position channels of one
// frame. The first channel for a bone wins, matching SKC.BoneChannels.
// It returns nil when anim is nil or the frame does not exist.
func FrameFromAnimation(anim *formats.SKC, frame int) *FramePose {
	if anim == nil || frame < 0 || frame >= anim.NumFrames() {
		return nil
	}
	samples := anim.FrameSamples(frame)
	if samples == nil {
		return nil
	}

	f := NewFramePose()
	for i, c := range anim.Channels {
		bone := c.Bone()
		switch c.Kind {
		case formats.ChannelRotation:
			if _, ok := f.rotations[bone]; !ok {
				f.rotations[bone] = math.QuatFromArray(samples[i].Quat())
			}
		case formats.ChannelPosition:
			if _, ok := f.positions[bone]; !ok {
				f.positions[bone] = math.V3(samples[i].Position())
			}
		}
	}
	return f
}

// Pose is the resolved world transform of every bone, indexed like the bone
// slice it was resolved from.
type Pose struct {
	Positions []math.Vec3
	Rotations []math.Mat3
	// Parents is the effective parent index of each bone, -1 for roots.
	// Bones with a missing parent or on a cycle appear here as roots.
	Parents []int

	Warnings formats.Warnings
}

// Len returns the number of bones in the pose.
func (p *Pose) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Positions)
}

// Valid reports whether bone i has a resolved transform.
func (p *Pose) Valid(i int) bool {
	return p != nil && i >= 0 && i < len(p.Positions)
}

// Position returns bone i's world position.
func (p *Pose) Position(i int) (math.Vec3, bool) {
	if !p.Valid(i) {
		return math.Vec3{}, false
	}
	return p.Positions[i], true
}

// Rotation returns bone i's world rotation.
func (p *Pose) Rotation(i int) (math.Mat3, bool) {
	if !p.Valid(i) {
		return math.Mat3Identity(), false
	}
	return p.Rotations[i], true
}

// Resolve computes world transforms for bones, applying frame's overrides
// when frame is non-nil. Parents are always resolved before their children.
func Resolve(bones []formats.Bone, frame *FramePose) *Pose {
	r := newResolver(bones, frame)
	for i := range bones {
		for r.state[i] != resolved {
			r.walk(i)
		}
	}
	return r.pose
}

// ResolveTranslationOnly accumulates bone offsets down the hierarchy with
// identity rotation everywhere: the pose a rotation-unaware consumer sees.
func ResolveTranslationOnly(bones []formats.Bone) *Pose {
	return Resolve(bones, nil)
}

type visitState uint8

const (
	unvisited visitState = iota
	visiting
	resolved
)

type resolver struct {
	bones []formats.Bone
	frame *FramePose
	state []visitState
	stack []int
	pose  *Pose
}

func newResolver(bones []formats.Bone, frame *FramePose) *resolver {
	n := len(bones)
	r := &resolver{
		bones: bones,
		frame: frame,
		state: make([]visitState, n),
		pose: &Pose{
			Positions: make([]math.Vec3, n),
			Rotations: make([]math.Mat3, n),
			Parents:   make([]int, n),
		},
	}

	index := make(map[string]int, n)
	for i := range bones {
		name := bones[i].Name
		if _, dup := index[name]; dup {
			r.pose.Warnings.Addf(formats.StructuralWarning, "duplicate bone name %q at index %d, children bind to the first", name, i)
			continue
		}
		index[name] = i
	}

	for i := range bones {
		b := &bones[i]
		r.pose.Parents[i] = -1
		if b.IsRoot() {
			continue
		}
		p, ok := index[b.Parent]
		if !ok {
			// Some exporters vary the parent's case.
			p, ok = lookupFold(bones, b.Parent)
		}
		switch {
		case !ok:
			r.pose.Warnings.Addf(formats.StructuralWarning, "bone %q has unknown parent %q, treating as root", b.Name, b.Parent)
		case p == i:
			r.pose.Warnings.Addf(formats.StructuralWarning, "bone %q is its own parent, treating as root", b.Name)
		default:
			r.pose.Parents[i] = p
		}
	}
	return r
}

func lookupFold(bones []formats.Bone, name string) (int, bool) {
	for i := range bones {
		if strings.EqualFold(bones[i].Name, name) {
			return i, true
		}
	}
	return -1, false
}

// walk climbs from bone i to the nearest resolved ancestor or root, then
// resolves the chain top-down. On a cycle it detaches the revisited bone and
// reports false so the caller walks again.
func (r *resolver) walk(i int) bool {
	stack := r.stack[:0]
	j := i
	for j >= 0 && r.state[j] == unvisited {
		r.state[j] = visiting
		stack = append(stack, j)
		j = r.pose.Parents[j]
	}

	if j >= 0 && r.state[j] == visiting {
		r.pose.Warnings.Addf(formats.StructuralWarning, "bone %q is part of a parent cycle, treating as root", r.bones[j].Name)
		r.pose.Parents[j] = -1
		for _, k := range stack {
			r.state[k] = unvisited
		}
		r.stack = stack
		return false
	}

	for k := len(stack) - 1; k >= 0; k-- {
		b := stack[k]
		r.compose(b)
		r.state[b] = resolved
	}
	r.stack = stack
	return true
}

func (r *resolver) compose(i int) {
	b := &r.bones[i]

	localRot := math.Mat3Identity()
	if q, ok := r.frame.Rotation(b.Name); ok {
		localRot = q.ToMat3()
	}
	localPos := math.V3(b.Offset)
	if p, ok := r.frame.Position(b.Name); ok {
		localPos = p
	}

	parent := r.pose.Parents[i]
	if parent < 0 {
		r.pose.Rotations[i] = localRot
		r.pose.Positions[i] = localPos
		return
	}

	parentRot := r.pose.Rotations[parent]
	r.pose.Rotations[i] = parentRot.Mul(localRot)
	r.pose.Positions[i] = r.pose.Positions[parent].Add(parentRot.MulVec(localPos))
}
