package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"reflect"
	"testing"

	"github.com/Faultbox/skeletor/pkg/encoding"
)

// makeTestSKC builds a 2-frame animation with three channels: rotation and
// position for bone "B" and one facial value channel.
func makeTestSKC() *SKC {
	return &SKC{
		Header: SKCHeader{
			Version:    SKCVersionCurrent,
			Flags:      AnimHasDelta | AnimDefaultAngles,
			FrameTime:  0.1,
			TotalDelta: [3]float32{0, 32, 0},
		},
		Frames: []SKCFrame{
			{BoundsMin: [3]float32{-8, -8, 0}, BoundsMax: [3]float32{8, 8, 64}, Radius: 40, Delta: [3]float32{0, 16, 0}},
			{BoundsMin: [3]float32{-8, -8, 0}, BoundsMax: [3]float32{8, 8, 64}, Radius: 40, Delta: [3]float32{0, 16, 0}, AngleDelta: 5},
		},
		Channels: []Channel{
			NewChannel("B rot"),
			NewChannel("B pos"),
			NewChannel("eyes_blink"),
		},
		Samples: []ChannelSample{
			{0, 0, 0, 1}, {1, 2, 3, 0}, {0.5, 0, 0, 0},
			{0, 0, 0.7071, 0.7071}, {1, 2, 4, 0}, {1, 0, 0, 0},
		},
	}
}

func TestParseSKC_MagicValidation(t *testing.T) {
	valid, err := makeTestSKC().Encode(SKCVersionCurrent)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	bad := append([]byte(nil), valid...)
	copy(bad, "SKMD")

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"valid magic", valid, nil},
		{"mesh magic", bad, ErrInvalidSKCMagic},
		{"too short", []byte("SKAN"), ErrTruncatedSKCData},
		{"truncated header", valid[:20], ErrTruncatedSKCData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := ParseSKC(tt.data)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			var fe *FormatError
			if !errors.As(err, &fe) || fe.Format != "SKC" {
				t.Errorf("expected SKC *FormatError, got %v", err)
			}
			if a != nil {
				t.Error("expected no partial animation on format error")
			}
		})
	}
}

func TestSKC_RoundTrip(t *testing.T) {
	a := makeTestSKC()

	data, err := a.Encode(SKCVersionCurrent)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	got, err := ParseSKC(data)
	if err != nil {
		t.Fatalf("ParseSKC failed: %v", err)
	}
	if len(got.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", got.Warnings)
	}

	if got.NumFrames() != 2 || got.NumChannels() != 3 || len(got.Samples) != 6 {
		t.Fatalf("got %d frames, %d channels, %d samples", got.NumFrames(), got.NumChannels(), len(got.Samples))
	}
	if int(got.Header.BytesUsed) != len(data) {
		t.Errorf("BytesUsed = %d, want %d", got.Header.BytesUsed, len(data))
	}
	if got.Header.Flags != a.Header.Flags || got.Header.FrameTime != a.Header.FrameTime || got.Header.TotalDelta != a.Header.TotalDelta {
		t.Errorf("header = %+v, want %+v", got.Header, a.Header)
	}
	if !reflect.DeepEqual(got.Channels, a.Channels) {
		t.Errorf("Channels = %+v, want %+v", got.Channels, a.Channels)
	}
	if !reflect.DeepEqual(got.Samples, a.Samples) {
		t.Errorf("Samples = %v, want %v", got.Samples, a.Samples)
	}
	for i := range got.Frames {
		f, w := got.Frames[i], a.Frames[i]
		f.ChannelOffset = 0
		if f != w {
			t.Errorf("frame %d = %+v, want %+v", i, f, w)
		}
	}

	again, err := got.Encode(SKCVersionCurrent)
	if err != nil {
		t.Fatalf("re-Encode failed: %v", err)
	}
	if !bytes.Equal(again, data) {
		t.Error("re-encoded bytes differ from first encoding")
	}
}

func TestSKC_FrameChannelOffsets(t *testing.T) {
	data, err := makeTestSKC().Encode(SKCVersionOld)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	got, err := ParseSKC(data)
	if err != nil {
		t.Fatalf("ParseSKC failed: %v", err)
	}
	dataStart := int32(skcHeaderSize + 2*skcFrameSize)
	for i, f := range got.Frames {
		want := dataStart + int32(i*3*skcSampleSize)
		if f.ChannelOffset != want {
			t.Errorf("frame %d ChannelOffset = %d, want %d", i, f.ChannelOffset, want)
		}
	}
}

func TestSKC_BoneChannels(t *testing.T) {
	a := makeTestSKC()

	rot, pos := a.BoneChannels("B")
	if rot != 0 || pos != 1 {
		t.Errorf("BoneChannels(B) = (%d, %d), want (0, 1)", rot, pos)
	}
	rot, pos = a.BoneChannels("C")
	if rot != -1 || pos != -1 {
		t.Errorf("BoneChannels(C) = (%d, %d), want (-1, -1)", rot, pos)
	}

	s, ok := a.Sample(1, pos+2)
	if ok {
		t.Errorf("Sample with bad channel returned %v", s)
	}
	s, ok = a.Sample(1, 1)
	if !ok || s.Position() != [3]float32{1, 2, 4} {
		t.Errorf("Sample(1, 1) = %v, %v", s, ok)
	}
	if q := a.Samples[0].Quat(); q != [4]float32{0, 0, 0, 1} {
		t.Errorf("Quat = %v", q)
	}
	if v := a.Samples[5].Value(); v != 1 {
		t.Errorf("Value = %v", v)
	}
	if fs := a.FrameSamples(1); len(fs) != 3 || fs[0] != a.Samples[3] {
		t.Errorf("FrameSamples(1) = %v", fs)
	}
	if fs := a.FrameSamples(2); fs != nil {
		t.Errorf("FrameSamples(2) = %v, want nil", fs)
	}
}

func TestSKC_Timing(t *testing.T) {
	a := makeTestSKC()
	if fps := a.FPS(); fps < 9.99 || fps > 10.01 {
		t.Errorf("FPS = %v, want 10", fps)
	}
	if d := a.Duration(); d < 0.199 || d > 0.201 {
		t.Errorf("Duration = %v, want 0.2", d)
	}
	a.Header.FrameTime = 0
	if fps := a.FPS(); fps != 20 {
		t.Errorf("default FPS = %v, want 20", fps)
	}
	if !a.Header.Flags.Has(AnimHasDelta) || a.Header.Flags.Has(AnimHasMorph) {
		t.Errorf("Flags.Has mismatch for %#x", a.Header.Flags)
	}
}

func TestSKC_NewerVersionWarns(t *testing.T) {
	data, err := makeTestSKC().Encode(SKCVersionCurrent)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	binary.LittleEndian.PutUint32(data[4:8], 15)

	got, err := ParseSKC(data)
	if err != nil {
		t.Fatalf("ParseSKC failed: %v", err)
	}
	if !got.Warnings.Has(VersionWarning) {
		t.Error("expected a version warning")
	}
	if len(got.Samples) != 6 {
		t.Errorf("got %d samples, want 6", len(got.Samples))
	}
}

func TestSKC_TruncatedSamples(t *testing.T) {
	data, err := makeTestSKC().Encode(SKCVersionCurrent)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	// Keep four of the six samples and move the name table up behind them.
	cut := skcHeaderSize + 2*skcFrameSize + 4*skcSampleSize
	names := data[len(data)-3*skcChannelNameSize:]
	short := append(append([]byte(nil), data[:cut]...), names...)
	binary.LittleEndian.PutUint32(short[40:44], uint32(cut))

	got, err := ParseSKC(short)
	if err != nil {
		t.Fatalf("ParseSKC failed: %v", err)
	}
	if !got.Warnings.Has(StructuralWarning) {
		t.Error("expected a structural warning")
	}
	// Only the first frame has a full set of samples.
	if got.NumFrames() != 1 || len(got.Samples) != 3 {
		t.Fatalf("got %d frames, %d samples; want 1 frame, 3 samples", got.NumFrames(), len(got.Samples))
	}
	if got.Samples[1] != (ChannelSample{1, 2, 3, 0}) {
		t.Errorf("sample 1 = %v", got.Samples[1])
	}
	if got.NumChannels() != 3 || got.Channels[2].Kind != ChannelValue {
		t.Errorf("channels = %+v", got.Channels)
	}
}

func TestSKC_CountsBoundedByFile(t *testing.T) {
	valid, err := makeTestSKC().Encode(SKCVersionCurrent)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	tests := []struct {
		name         string
		patch        func([]byte)
		wantFrames   int
		wantChannels int
	}{
		{
			name:       "huge channel count",
			patch:      func(b []byte) { binary.LittleEndian.PutUint32(b[36:40], 40000000) },
			wantFrames: 2,
		},
		{
			name:       "channel count the name table cannot hold",
			patch:      func(b []byte) { binary.LittleEndian.PutUint32(b[36:40], 900) },
			wantFrames: 2,
		},
		{
			name:       "huge frame count",
			patch:        func(b []byte) { binary.LittleEndian.PutUint32(b[44:48], 30000000) },
			wantFrames:   0,
			wantChannels: 3,
		},
		{
			name: "names outside the file",
			patch: func(b []byte) {
				binary.LittleEndian.PutUint32(b[40:44], uint32(len(b)))
			},
			wantFrames: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := append([]byte(nil), valid...)
			tt.patch(data)

			got, err := ParseSKC(data)
			if err != nil {
				t.Fatalf("ParseSKC failed: %v", err)
			}
			if !got.Warnings.Has(StructuralWarning) {
				t.Error("expected a structural warning")
			}
			if got.NumChannels() != tt.wantChannels || len(got.Samples) != 0 {
				t.Errorf("got %d channels, %d samples; want %d channels, no samples",
					got.NumChannels(), len(got.Samples), tt.wantChannels)
			}
			if got.NumFrames() != tt.wantFrames {
				t.Errorf("got %d frames, want %d", got.NumFrames(), tt.wantFrames)
			}
		})
	}
}

func TestSKC_EncodeErrors(t *testing.T) {
	a := makeTestSKC()
	if _, err := a.Encode(SKCVersionMOHBT); !errors.Is(err, ErrUnsupportedWriteVersion) {
		t.Errorf("legacy encode: expected ErrUnsupportedWriteVersion, got %v", err)
	}
	a.Samples = a.Samples[:5]
	if _, err := a.Encode(SKCVersionCurrent); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("short samples: expected ErrIndexOutOfRange, got %v", err)
	}
}

// buildLegacySKC lays out a version 10-12 file: header, frames, samples,
// then the channel info block.
func buildLegacySKC(version int32, names []string, samples []ChannelSample, numFrames int32) []byte {
	ofsInfo := int32(skcLegacyHeaderSize + int(numFrames)*skcFrameSize + len(samples)*skcSampleSize)

	w := encoding.NewWriter()
	w.Write([]byte(SKCMagic))
	w.Int32(version)
	w.FixedString("anims/walk.skc", skcLegacyFilenameSize)
	w.Int32(0)
	w.Int32(int32(AnimHasDelta))
	w.Float32(0.04)
	w.Vec3([3]float32{0, 12, 0})
	w.Int32(skcLegacyHeaderSize + numFrames*skcFrameSize)
	w.Int32(ofsInfo)
	w.Int32(0)
	w.Int32(numFrames)

	for i := int32(0); i < numFrames; i++ {
		w.Vec3([3]float32{-1, -1, -1})
		w.Vec3([3]float32{1, 1, 1})
		w.Float32(2)
		w.Vec3([3]float32{})
		w.Float32(0)
		w.Int32(0)
	}
	for _, s := range samples {
		w.Vec4(s)
	}
	w.Int32(int32(len(names)))
	w.Int32(numFrames)
	for _, n := range names {
		w.FixedString(n, skcChannelNameSize)
	}
	return w.Bytes()
}

func TestSKC_LegacyHeader(t *testing.T) {
	samples := []ChannelSample{{0, 0, 0, 1}, {4, 5, 6, 0}}
	data := buildLegacySKC(SKCVersionMOHBT, []string{"Bip01 rot", "Bip01 pos"}, samples, 1)

	a, err := ParseSKC(data)
	if err != nil {
		t.Fatalf("ParseSKC failed: %v", err)
	}
	if !a.Warnings.Has(VersionWarning) {
		t.Error("expected a legacy version warning")
	}
	if a.Warnings.Has(StructuralWarning) {
		t.Errorf("unexpected structural warnings: %v", a.Warnings)
	}
	if a.Filename != "anims/walk.skc" {
		t.Errorf("Filename = %q", a.Filename)
	}
	if a.Header.Version != SKCVersionMOHBT || a.Header.FrameTime != 0.04 || !a.Header.Flags.Has(AnimHasDelta) {
		t.Errorf("Header = %+v", a.Header)
	}
	if a.Header.TotalDelta != [3]float32{0, 12, 0} {
		t.Errorf("TotalDelta = %v", a.Header.TotalDelta)
	}
	if a.NumFrames() != 1 || a.NumChannels() != 2 {
		t.Fatalf("got %d frames, %d channels", a.NumFrames(), a.NumChannels())
	}
	if rot, pos := a.BoneChannels("Bip01"); rot != 0 || pos != 1 {
		t.Errorf("BoneChannels = (%d, %d)", rot, pos)
	}
	if !reflect.DeepEqual(a.Samples, samples) {
		t.Errorf("Samples = %v, want %v", a.Samples, samples)
	}

	// Legacy input upgrades to the standard layout.
	out, err := a.Encode(SKCVersionCurrent)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	modern, err := ParseSKC(out)
	if err != nil {
		t.Fatalf("ParseSKC(modern) failed: %v", err)
	}
	if len(modern.Warnings) != 0 || !reflect.DeepEqual(modern.Samples, samples) {
		t.Errorf("modern = %+v", modern)
	}
}

func TestSKC_LegacyImplausibleCounts(t *testing.T) {
	data := buildLegacySKC(SKCVersionMOHSH, []string{"a rot"}, nil, 0)
	binary.LittleEndian.PutUint32(data[108:112], 500000)

	a, err := ParseSKC(data)
	if err != nil {
		t.Fatalf("ParseSKC failed: %v", err)
	}
	if a.NumFrames() != 0 {
		t.Errorf("NumFrames = %d, want 0", a.NumFrames())
	}
	if !a.Warnings.Has(StructuralWarning) {
		t.Error("expected structural warning")
	}
}

func TestSKC_LegacyTruncatedHeader(t *testing.T) {
	w := encoding.NewWriter()
	w.Write([]byte(SKCMagic))
	w.Int32(SKCVersionMOHSH2)
	w.Zero(20)

	a, err := ParseSKC(w.Bytes())
	if err != nil {
		t.Fatalf("ParseSKC failed: %v", err)
	}
	if a.NumFrames() != 0 || a.NumChannels() != 0 {
		t.Errorf("got %d frames, %d channels", a.NumFrames(), a.NumChannels())
	}
	if a.Header.FrameTime != skcLegacyFrameTime {
		t.Errorf("FrameTime = %v, want fallback", a.Header.FrameTime)
	}
}

func TestChannelKindOf(t *testing.T) {
	tests := []struct {
		name string
		want ChannelKind
	}{
		{"Bip01 Spine rot", ChannelRotation},
		{"Bip01 Spine ROT", ChannelRotation},
		{"Bip01 pos", ChannelPosition},
		{"brow_raise", ChannelValue},
		{"EyeLid_L", ChannelValue},
		{"viseme_aa", ChannelValue},
		{"visme_oh", ChannelValue},
		{"jaw_open", ChannelValue},
		{"rotation", ChannelNone},
		{"", ChannelNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ChannelKindOf(tt.name); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBoneNameOf(t *testing.T) {
	tests := []struct {
		channel string
		want    string
	}{
		{"Bip01 Spine rot", "Bip01 Spine"},
		{"Bip01 Pos", "Bip01"},
		{"mouth_smile", "mouth_smile"},
		{"rot", "rot"},
	}

	for _, tt := range tests {
		t.Run(tt.channel, func(t *testing.T) {
			if got := BoneNameOf(tt.channel); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if got := NewChannel(tt.channel).Bone(); got != tt.want {
				t.Errorf("Channel.Bone() = %q, want %q", got, tt.want)
			}
		})
	}
}
