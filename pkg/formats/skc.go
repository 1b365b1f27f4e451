// SKC (skeletal animation) format parser and writer.
package formats

import (
	"errors"
	"fmt"
	"os"

	"github.com/Faultbox/skeletor/pkg/encoding"
)

// SKC format errors.
var (
	ErrInvalidSKCMagic  = errors.New("invalid SKC magic: expected 'SKAN'")
	ErrTruncatedSKCData = errors.New("truncated SKC data")
)

// SKC identifiers and versions.
const (
	SKCMagic = "SKAN"

	SKCVersionMOHSH   = 10 // Spearhead
	SKCVersionMOHBT   = 11 // Breakthrough
	SKCVersionMOHSH2  = 12 // some Spearhead animations
	SKCVersionOld     = 13
	SKCVersionCurrent = 14
)

const (
	skcHeaderSize      = 48
	skcFrameSize       = 48
	skcSampleSize      = 16
	skcChannelNameSize = 32

	// Counts beyond these are corrupt headers, whatever the layout.
	skcMaxFrames   = 100000
	skcMaxChannels = 1000
)

// Default frame rate when the header carries no usable frame time.
const defaultFPS = 20

// AnimFlags is the animation flag bitmask.
type AnimFlags int32

// Animation flags.
const (
	AnimRandom            AnimFlags = 0x1
	AnimNoRepeat          AnimFlags = 0x2
	AnimDefaultAngles     AnimFlags = 0x8
	AnimNoTimeCheck       AnimFlags = 0x10
	AnimDeltaDriven       AnimFlags = 0x20
	AnimHasDelta          AnimFlags = 0x40 // root motion
	AnimHasMorph          AnimFlags = 0x80
	AnimHasUpper          AnimFlags = 0x100 // upper-body only
	AnimAutoSteps         AnimFlags = 0x400
	AnimAutoStepsRunning  AnimFlags = 0x800
	AnimAutoStepsEquipped AnimFlags = 0x1000
)

// Has reports whether all bits of f are set.
func (a AnimFlags) Has(f AnimFlags) bool {
	return a&f == f
}

// SKCHeader holds the animation-wide fields.
type SKCHeader struct {
	Version         int32
	Flags           AnimFlags
	BytesUsed       int32
	FrameTime       float32 // seconds per frame
	TotalDelta      [3]float32
	TotalAngleDelta float32
}

// SKCFrame is the per-frame record.
type SKCFrame struct {
	BoundsMin     [3]float32
	BoundsMax     [3]float32
	Radius        float32
	Delta         [3]float32
	AngleDelta    float32
	ChannelOffset int32 // offset of this frame's samples, recomputed on encode
}

// SKC represents a parsed animation.
type SKC struct {
	Header   SKCHeader
	Filename string // legacy layouts only
	Frames   []SKCFrame
	Channels []Channel
	// Samples holds len(Frames) * len(Channels) entries, frame-major.
	Samples []ChannelSample

	Warnings Warnings
}

// NumFrames returns the frame count.
func (a *SKC) NumFrames() int { return len(a.Frames) }

// NumChannels returns the channel count.
func (a *SKC) NumChannels() int { return len(a.Channels) }

// FPS returns frames per second, defaulting to 20 when the frame time is unset.
func (a *SKC) FPS() float32 {
	if a.Header.FrameTime > 0 {
		return 1 / a.Header.FrameTime
	}
	return defaultFPS
}

// Duration returns the animation length in seconds.
func (a *SKC) Duration() float32 {
	return float32(len(a.Frames)) / a.FPS()
}

// ChannelIndex returns the index of the named channel, or -1.
func (a *SKC) ChannelIndex(name string) int {
	for i := range a.Channels {
		if a.Channels[i].Name == name {
			return i
		}
	}
	return -1
}

// BoneChannels returns the rotation and position channel indices for a bone.
// Either is -1 when the animation has no such channel.
func (a *SKC) BoneChannels(bone string) (rot, pos int) {
	return a.ChannelIndex(bone + RotationSuffix), a.ChannelIndex(bone + PositionSuffix)
}

// Sample returns one channel's value at one frame.
func (a *SKC) Sample(frame, channel int) (ChannelSample, bool) {
	if frame < 0 || frame >= len(a.Frames) || channel < 0 || channel >= len(a.Channels) {
		return ChannelSample{}, false
	}
	i := frame*len(a.Channels) + channel
	if i >= len(a.Samples) {
		return ChannelSample{}, false
	}
	return a.Samples[i], true
}

// FrameSamples returns all channel values of one frame, in channel order.
func (a *SKC) FrameSamples(frame int) []ChannelSample {
	if frame < 0 || frame >= len(a.Frames) {
		return nil
	}
	n := len(a.Channels)
	start := frame * n
	if start+n > len(a.Samples) {
		return nil
	}
	return a.Samples[start : start+n]
}

// ParseSKC parses SKC data from a byte slice. Legacy and unknown versions are
// read best-effort and reported through Warnings; only a wrong magic or a
// truncated header is fatal.
func ParseSKC(data []byte) (*SKC, error) {
	if len(data) < 8 {
		return nil, &FormatError{Format: "SKC", Err: ErrTruncatedSKCData}
	}
	if string(data[:4]) != SKCMagic {
		return nil, &FormatError{Format: "SKC", Err: ErrInvalidSKCMagic}
	}

	r := encoding.NewReader(data)
	r.Skip(4)
	version := r.Int32()

	a := &SKC{}

	var l skcLayout
	if version < SKCVersionOld {
		if version < SKCVersionMOHSH {
			a.Warnings.Addf(VersionWarning, "unknown SKC version %d, attempting legacy layout", version)
		} else {
			a.Warnings.Addf(VersionWarning, "legacy SKC version %d, header fields recovered heuristically", version)
		}
		l = a.readLegacyHeader(r, version)
	} else {
		if version > SKCVersionCurrent {
			a.Warnings.Addf(VersionWarning, "newer SKC version %d, parsing as standard layout", version)
		}
		if r.Len() < skcHeaderSize {
			return nil, &FormatError{Format: "SKC", Err: ErrTruncatedSKCData}
		}
		l = a.readHeader(r, version)
	}

	a.readBody(r, l)
	return a, nil
}

// ParseSKCFile parses an SKC file from disk.
func ParseSKCFile(path string) (*SKC, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading SKC file: %w", err)
	}
	return ParseSKC(data)
}

// skcLayout locates the variable-size blocks of an animation file.
type skcLayout struct {
	headerSize      int
	numFrames       int
	numChannels     int
	ofsChannelNames int
}

func (a *SKC) readHeader(r *encoding.Reader, version int32) skcLayout {
	h := &a.Header
	h.Version = version
	h.Flags = AnimFlags(r.Int32())
	h.BytesUsed = r.Int32()
	h.FrameTime = r.Float32()
	h.TotalDelta = r.Vec3()
	h.TotalAngleDelta = r.Float32()
	numChannels := r.Int32()
	ofsChannelNames := r.Int32()
	numFrames := r.Int32()

	l := skcLayout{
		headerSize:      skcHeaderSize,
		numFrames:       int(numFrames),
		numChannels:     int(numChannels),
		ofsChannelNames: int(ofsChannelNames),
	}
	l.checkCounts(&a.Warnings)
	return l
}

// checkCounts zeroes frame and channel counts outside sane bounds.
func (l *skcLayout) checkCounts(ws *Warnings) {
	if l.numFrames < 0 || l.numFrames > skcMaxFrames {
		ws.Addf(StructuralWarning, "implausible frame count %d, using 0", l.numFrames)
		l.numFrames = 0
	}
	if l.numChannels < 0 || l.numChannels > skcMaxChannels {
		ws.Addf(StructuralWarning, "implausible channel count %d, using 0", l.numChannels)
		l.numChannels = 0
	}
}

// readBody reads frames, names and samples. Every count is checked against
// what the file can hold before anything is allocated: a name table outside
// the file drops the channels, and frames without a full set of samples are
// dropped from the end.
func (a *SKC) readBody(r *encoding.Reader, l skcLayout) {
	if l.numFrames > 0 && !r.InRange(l.headerSize, l.numFrames*skcFrameSize) {
		fit := max(0, (r.Len()-l.headerSize)/skcFrameSize)
		a.Warnings.Addf(StructuralWarning, "frame table truncated: header says %d frames, file holds %d", l.numFrames, fit)
		l.numFrames = fit
	}

	if l.numChannels > 0 && (l.ofsChannelNames <= 0 || !r.InRange(l.ofsChannelNames, l.numChannels*skcChannelNameSize)) {
		a.Warnings.Addf(StructuralWarning, "channel name table at %d is outside the file, dropping %d channels", l.ofsChannelNames, l.numChannels)
		l.numChannels = 0
	}

	// Samples run from the end of the frame table up to the name table when
	// it follows them, or to the end of the file.
	start := l.headerSize + l.numFrames*skcFrameSize
	limit := r.Len()
	if l.numChannels > 0 && l.ofsChannelNames >= start {
		limit = l.ofsChannelNames
	}
	if l.numChannels > 0 {
		avail := max(0, (limit-start)/skcSampleSize)
		if whole := avail / l.numChannels; whole < l.numFrames {
			a.Warnings.Addf(StructuralWarning, "channel data truncated: %d of %d frames have samples, dropping the rest", whole, l.numFrames)
			l.numFrames = whole
		}
	}

	if l.numFrames > 0 {
		r.Seek(l.headerSize)
		a.Frames = make([]SKCFrame, l.numFrames)
		for i := range a.Frames {
			a.Frames[i] = SKCFrame{
				BoundsMin:     r.Vec3(),
				BoundsMax:     r.Vec3(),
				Radius:        r.Float32(),
				Delta:         r.Vec3(),
				AngleDelta:    r.Float32(),
				ChannelOffset: r.Int32(),
			}
		}
	}

	if l.numChannels > 0 {
		r.Seek(l.ofsChannelNames)
		a.Channels = make([]Channel, l.numChannels)
		for i := range a.Channels {
			a.Channels[i] = NewChannel(r.FixedString(skcChannelNameSize))
		}
	}

	total := l.numFrames * l.numChannels
	if total == 0 {
		return
	}
	r.Seek(start)
	a.Samples = make([]ChannelSample, total)
	for i := range a.Samples {
		a.Samples[i] = ChannelSample(r.Vec4())
	}
}

// Encode serializes the animation in the standard layout. Legacy versions
// are read-only; version must be 13 or 14.
func (a *SKC) Encode(version int32) ([]byte, error) {
	if version != SKCVersionOld && version != SKCVersionCurrent {
		return nil, fmt.Errorf("%w: SKC version %d", ErrUnsupportedWriteVersion, version)
	}
	numFrames := len(a.Frames)
	numChannels := len(a.Channels)
	if len(a.Samples) != numFrames*numChannels {
		return nil, fmt.Errorf("%w: %d samples for %d frames x %d channels", ErrIndexOutOfRange, len(a.Samples), numFrames, numChannels)
	}

	dataStart := skcHeaderSize + numFrames*skcFrameSize
	ofsNames := dataStart + len(a.Samples)*skcSampleSize
	total := ofsNames + numChannels*skcChannelNameSize

	h := &a.Header
	w := encoding.NewWriter()
	w.Write([]byte(SKCMagic))
	w.Int32(version)
	w.Int32(int32(h.Flags))
	w.Int32(int32(total))
	w.Float32(h.FrameTime)
	w.Vec3(h.TotalDelta)
	w.Float32(h.TotalAngleDelta)
	w.Int32(int32(numChannels))
	w.Int32(int32(ofsNames))
	w.Int32(int32(numFrames))

	for i, f := range a.Frames {
		w.Vec3(f.BoundsMin)
		w.Vec3(f.BoundsMax)
		w.Float32(f.Radius)
		w.Vec3(f.Delta)
		w.Float32(f.AngleDelta)
		w.Int32(int32(dataStart + i*numChannels*skcSampleSize))
	}
	for _, s := range a.Samples {
		w.Vec4(s)
	}
	for _, c := range a.Channels {
		w.FixedString(c.Name, skcChannelNameSize)
	}

	return w.Bytes(), nil
}

// WriteFile encodes the animation and writes it to path.
func (a *SKC) WriteFile(path string, version int32) error {
	data, err := a.Encode(version)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
