package formats

import "github.com/Faultbox/skeletor/pkg/encoding"

// Legacy (pre-standard, versions 10-12) header layout. These offsets come
// from inspecting shipped files, not from a published format description,
// so this is a degraded-fidelity read path.
//
//	  0 ident          4 version
//	  8 filename[64]
//	 72 unknown       76 flags          80 frame time
//	 84 total delta   96 ofs channel data
//	100 ofs channel info               104 unused
//	108 num frames
//
// The channel info block holds numChannels, numFrames and then the 32-byte
// channel names.
const (
	skcLegacyFilenameSize = 64
	skcLegacyHeaderSize   = 112
	skcLegacyInfoSize     = 8

	skcLegacyFrameTime = 0.05
)

func (a *SKC) readLegacyHeader(r *encoding.Reader, version int32) skcLayout {
	h := &a.Header
	h.Version = version
	l := skcLayout{headerSize: skcLegacyHeaderSize}

	if r.Len() < skcLegacyHeaderSize {
		a.Warnings.Addf(StructuralWarning, "legacy header truncated (%d bytes), using empty animation", r.Len())
		h.FrameTime = skcLegacyFrameTime
		return l
	}

	a.Filename = r.FixedString(skcLegacyFilenameSize)
	r.Int32() // unknown
	h.Flags = AnimFlags(r.Int32())
	h.FrameTime = r.Float32()
	h.TotalDelta = r.Vec3()
	r.Int32() // ofs channel data; samples are read densely after the frames instead
	ofsInfo := int(r.Int32())
	r.Int32() // unused
	numFrames := int(r.Int32())

	numChannels := 0
	if ofsInfo > 0 {
		if r.InRange(ofsInfo, skcLegacyInfoSize) {
			r.Seek(ofsInfo)
			numChannels = int(r.Int32())
			if framesCheck := int(r.Int32()); framesCheck != numFrames {
				a.Warnings.Addf(StructuralWarning, "legacy frame counts disagree: header %d, channel info %d", numFrames, framesCheck)
			}
			l.ofsChannelNames = ofsInfo + skcLegacyInfoSize
		} else {
			a.Warnings.Addf(StructuralWarning, "legacy channel info offset %d is outside the file", ofsInfo)
		}
	}

	l.numFrames = numFrames
	l.numChannels = numChannels
	l.checkCounts(&a.Warnings)
	return l
}
