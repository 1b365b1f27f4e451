package encoding

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
)

// ErrTruncated is recorded by Reader when a read runs past the end of the buffer.
var ErrTruncated = errors.New("truncated data")

// Reader is a little-endian cursor over an in-memory file.
// The first out-of-range read sets Err; subsequent reads return zero values,
// so callers can decode a whole record and check Err once.
type Reader struct {
	data []byte
	pos  int
	Err  error
}

// NewReader returns a Reader positioned at offset 0.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Len returns the size of the underlying buffer.
func (r *Reader) Len() int { return len(r.data) }

// Pos returns the current absolute offset.
func (r *Reader) Pos() int { return r.pos }

// Seek moves to an absolute offset. Seeking outside the buffer sets Err.
func (r *Reader) Seek(offset int) bool {
	if offset < 0 || offset > len(r.data) {
		r.fail()
		return false
	}
	r.pos = offset
	return true
}

// Skip advances by n bytes.
func (r *Reader) Skip(n int) bool {
	return r.Seek(r.pos + n)
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.pos
}

// InRange reports whether [offset, offset+size) lies inside the buffer.
func (r *Reader) InRange(offset, size int) bool {
	return offset >= 0 && size >= 0 && offset+size <= len(r.data)
}

func (r *Reader) fail() {
	if r.Err == nil {
		r.Err = ErrTruncated
	}
}

func (r *Reader) take(n int) []byte {
	if r.Err != nil {
		return nil
	}
	if n < 0 || r.pos+n > len(r.data) {
		r.fail()
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

// Bytes returns the next n bytes without copying.
func (r *Reader) Bytes(n int) []byte {
	return r.take(n)
}

// Int16 reads a signed 16-bit integer.
func (r *Reader) Int16() int16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return int16(binary.LittleEndian.Uint16(b))
}

// Int32 reads a signed 32-bit integer.
func (r *Reader) Int32() int32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(b))
}

// Uint32 reads an unsigned 32-bit integer.
func (r *Reader) Uint32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// Float32 reads an IEEE-754 single.
func (r *Reader) Float32() float32 {
	return math.Float32frombits(r.Uint32())
}

// Vec2 reads two floats.
func (r *Reader) Vec2() [2]float32 {
	return [2]float32{r.Float32(), r.Float32()}
}

// Vec3 reads three floats.
func (r *Reader) Vec3() [3]float32 {
	return [3]float32{r.Float32(), r.Float32(), r.Float32()}
}

// Vec4 reads four floats.
func (r *Reader) Vec4() [4]float32 {
	return [4]float32{r.Float32(), r.Float32(), r.Float32(), r.Float32()}
}

// FixedString reads a size-byte null-padded Latin-1 field.
func (r *Reader) FixedString(size int) string {
	b := r.take(size)
	if b == nil {
		return ""
	}
	return FixedString(b)
}

// Writer builds a little-endian file image in memory.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return w.buf.Len() }

// Bytes returns the written image.
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

// Write appends raw bytes.
func (w *Writer) Write(p []byte) {
	w.buf.Write(p)
}

// Zero appends n zero bytes.
func (w *Writer) Zero(n int) {
	if n > 0 {
		w.buf.Write(make([]byte, n))
	}
}

// Int16 appends a signed 16-bit integer.
func (w *Writer) Int16(v int16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], uint16(v))
	w.buf.Write(b[:])
}

// Int32 appends a signed 32-bit integer.
func (w *Writer) Int32(v int32) {
	w.Uint32(uint32(v))
}

// Uint32 appends an unsigned 32-bit integer.
func (w *Writer) Uint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

// Float32 appends an IEEE-754 single.
func (w *Writer) Float32(v float32) {
	w.Uint32(math.Float32bits(v))
}

// Vec2 appends two floats.
func (w *Writer) Vec2(v [2]float32) {
	w.Float32(v[0])
	w.Float32(v[1])
}

// Vec3 appends three floats.
func (w *Writer) Vec3(v [3]float32) {
	for _, f := range v {
		w.Float32(f)
	}
}

// Vec4 appends four floats.
func (w *Writer) Vec4(v [4]float32) {
	for _, f := range v {
		w.Float32(f)
	}
}

// FixedString appends s as a size-byte null-padded Latin-1 field.
func (w *Writer) FixedString(s string, size int) {
	w.buf.Write(PutFixedString(s, size))
}
