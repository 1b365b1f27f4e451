package formats

import (
	"fmt"
	"strings"
)

// ChannelKind is how a channel's samples are interpreted.
type ChannelKind int32

const (
	ChannelRotation ChannelKind = 0 // quaternion (x, y, z, w)
	ChannelPosition ChannelKind = 1 // position (x, y, z)
	ChannelNone     ChannelKind = 2 // untyped, ignored
	ChannelValue    ChannelKind = 3 // single scalar (facial/viseme rigs)
)

// String returns a human-readable channel kind.
func (k ChannelKind) String() string {
	switch k {
	case ChannelRotation:
		return "Rotation"
	case ChannelPosition:
		return "Position"
	case ChannelNone:
		return "None"
	case ChannelValue:
		return "Value"
	default:
		return fmt.Sprintf("Unknown(%d)", int32(k))
	}
}

// Channel name suffixes that bind a channel to a bone.
const (
	RotationSuffix = " rot"
	PositionSuffix = " pos"
)

// valuePrefixes mark scalar facial channels.
var valuePrefixes = []string{
	"brow_",
	"eye",
	"mouth_",
	"jaw_",
	"lips_",
	"viseme",
	"visme",
}

// ChannelKindOf derives a channel's kind from its name. Matching is case-insensitive.
func ChannelKindOf(name string) ChannelKind {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, RotationSuffix):
		return ChannelRotation
	case strings.HasSuffix(lower, PositionSuffix):
		return ChannelPosition
	}
	for _, prefix := range valuePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return ChannelValue
		}
	}
	return ChannelNone
}

// BoneNameOf strips the rotation or position suffix from a channel name.
// Other names are returned unchanged.
func BoneNameOf(channel string) string {
	lower := strings.ToLower(channel)
	if strings.HasSuffix(lower, RotationSuffix) || strings.HasSuffix(lower, PositionSuffix) {
		return channel[:len(channel)-len(RotationSuffix)]
	}
	return channel
}

// Channel is a named, typed animation track.
type Channel struct {
	Name string
	Kind ChannelKind
}

// NewChannel creates a channel with its kind derived from name.
func NewChannel(name string) Channel {
	return Channel{Name: name, Kind: ChannelKindOf(name)}
}

// Bone returns the bone a rotation or position channel drives.
func (c Channel) Bone() string {
	return BoneNameOf(c.Name)
}

// ChannelSample is one frame's value for one channel.
type ChannelSample [4]float32

// Quat returns the sample as an (x, y, z, w) quaternion.
func (s ChannelSample) Quat() [4]float32 { return s }

// Position returns the first three components.
func (s ChannelSample) Position() [3]float32 { return [3]float32{s[0], s[1], s[2]} }

// Value returns the scalar component.
func (s ChannelSample) Value() float32 { return s[0] }
