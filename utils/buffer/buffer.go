// Package buffer provides the io.Writer/io.Reader-based serialization
// primitives every WriteTo/ReadFrom/MarshalBinary/UnmarshalBinary pair in
// this module is built on: scalar and slice encoders for the fixed-width
// integer types the ring, rlwe and rgsw packages persist, plus a small
// in-memory Buffer for the common case of serializing to/from a []byte.
package buffer

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Writer is the interface WriteTo methods type-switch on to avoid wrapping
// an already-buffered io.Writer (e.g. a *Buffer) in a *bufio.Writer.
type Writer interface {
	io.Writer
	io.ByteWriter
}

// Reader is the interface ReadFrom methods type-switch on to avoid wrapping
// an already-buffered io.Reader in a *bufio.Reader.
type Reader interface {
	io.Reader
	io.ByteReader
}

// Buffer is an in-memory Writer and Reader over a single []byte: writes
// append, reads consume from the front. It is the concrete type
// NewBufferSize/NewBuffer return for MarshalBinary/UnmarshalBinary's use of
// WriteTo/ReadFrom.
type Buffer struct {
	buf []byte
}

// NewBuffer wraps buf for reading: successive ReadFrom calls consume it
// front to back. Also usable for writing, in which case writes append to
// buf's existing contents.
func NewBuffer(buf []byte) *Buffer {
	return &Buffer{buf: buf}
}

// NewBufferSize allocates an empty Buffer with size bytes of backing
// capacity pre-reserved, the usual pattern for MarshalBinary(BinarySize()).
func NewBufferSize(size int) *Buffer {
	return &Buffer{buf: make([]byte, 0, size)}
}

// Bytes returns the buffer's current, unconsumed contents.
func (b *Buffer) Bytes() []byte {
	return b.buf
}

// Write appends p to the buffer, implementing io.Writer.
func (b *Buffer) Write(p []byte) (n int, err error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// WriteByte appends a single byte, implementing io.ByteWriter.
func (b *Buffer) WriteByte(c byte) error {
	b.buf = append(b.buf, c)
	return nil
}

// Read consumes up to len(p) bytes from the front of the buffer,
// implementing io.Reader.
func (b *Buffer) Read(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}
	if len(b.buf) == 0 {
		return 0, io.EOF
	}
	n = copy(p, b.buf)
	b.buf = b.buf[n:]
	return n, nil
}

// ReadByte consumes a single byte from the front of the buffer,
// implementing io.ByteReader.
func (b *Buffer) ReadByte() (byte, error) {
	if len(b.buf) == 0 {
		return 0, io.EOF
	}
	c := b.buf[0]
	b.buf = b.buf[1:]
	return c, nil
}

// Write writes all of p to w, looping on short writes, and returns the
// number of bytes written. The free-function counterpart to (*Buffer).Write
// for callers holding a plain Writer.
func Write(w Writer, p []byte) (n int64, err error) {
	written, err := w.Write(p)
	return int64(written), err
}

// Read fills p entirely from r, looping on short reads, returning an error
// if r is exhausted first.
func Read(r Reader, p []byte) (n int64, err error) {
	read, err := io.ReadFull(r, p)
	return int64(read), err
}

// WriteUint8 writes v as a single byte.
func WriteUint8(w Writer, v uint8) (n int64, err error) {
	if err = w.WriteByte(v); err != nil {
		return 0, err
	}
	return 1, nil
}

// ReadUint8 reads a single byte into v.
func ReadUint8(r Reader, v *uint8) (n int64, err error) {
	*v, err = r.ReadByte()
	if err != nil {
		return 0, err
	}
	return 1, nil
}

// WriteUint16 writes v in little-endian byte order.
func WriteUint16(w Writer, v uint16) (n int64, err error) {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	return Write(w, buf[:])
}

// ReadUint16 reads a little-endian uint16 into v.
func ReadUint16(r Reader, v *uint16) (n int64, err error) {
	var buf [2]byte
	if n, err = Read(r, buf[:]); err != nil {
		return n, err
	}
	*v = binary.LittleEndian.Uint16(buf[:])
	return n, nil
}

// WriteUint32 writes v in little-endian byte order.
func WriteUint32(w Writer, v uint32) (n int64, err error) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return Write(w, buf[:])
}

// ReadUint32 reads a little-endian uint32 into v.
func ReadUint32(r Reader, v *uint32) (n int64, err error) {
	var buf [4]byte
	if n, err = Read(r, buf[:]); err != nil {
		return n, err
	}
	*v = binary.LittleEndian.Uint32(buf[:])
	return n, nil
}

// WriteUint64 writes v in little-endian byte order.
func WriteUint64(w Writer, v uint64) (n int64, err error) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return Write(w, buf[:])
}

// ReadUint64 reads a little-endian uint64 into v.
func ReadUint64(r Reader, v *uint64) (n int64, err error) {
	var buf [8]byte
	if n, err = Read(r, buf[:]); err != nil {
		return n, err
	}
	*v = binary.LittleEndian.Uint64(buf[:])
	return n, nil
}

// scalarLike is the set of scalar Go types the generic WriteAsUintN/
// ReadAsUintN helpers accept: named types whose underlying representation
// is one of these convert through `any` the same way.
type scalar8 interface{ ~uint8 | ~int8 | ~bool }
type scalar16 interface{ ~uint16 | ~int16 }
type scalar32 interface{ ~uint32 | ~int32 | ~float32 }
type scalar64 interface{ ~uint64 | ~int64 | ~uint | ~int | ~float64 }

func toUint8[T scalar8](v T) uint8 {
	switch x := any(v).(type) {
	case bool:
		if x {
			return 1
		}
		return 0
	default:
		return uint8(reflectInt8(v))
	}
}

// reflectInt8 extracts the integer value of v for every scalar8 case other
// than bool, via a type switch over the possible underlying types.
func reflectInt8[T scalar8](v T) int64 {
	switch x := any(v).(type) {
	case uint8:
		return int64(x)
	case int8:
		return int64(x)
	default:
		panic(fmt.Sprintf("buffer: unsupported scalar8 type %T", v))
	}
}

func fromUint8[T scalar8](u uint8) T {
	var zero T
	switch any(zero).(type) {
	case bool:
		return any(u != 0).(T)
	case uint8:
		return any(u).(T)
	case int8:
		return any(int8(u)).(T)
	default:
		panic(fmt.Sprintf("buffer: unsupported scalar8 type %T", zero))
	}
}

func toUint16[T scalar16](v T) uint16 {
	switch x := any(v).(type) {
	case uint16:
		return x
	case int16:
		return uint16(x)
	default:
		panic(fmt.Sprintf("buffer: unsupported scalar16 type %T", v))
	}
}

func fromUint16[T scalar16](u uint16) T {
	var zero T
	switch any(zero).(type) {
	case uint16:
		return any(u).(T)
	case int16:
		return any(int16(u)).(T)
	default:
		panic(fmt.Sprintf("buffer: unsupported scalar16 type %T", zero))
	}
}

func toUint32[T scalar32](v T) uint32 {
	switch x := any(v).(type) {
	case uint32:
		return x
	case int32:
		return uint32(x)
	case float32:
		return math.Float32bits(x)
	default:
		panic(fmt.Sprintf("buffer: unsupported scalar32 type %T", v))
	}
}

func fromUint32[T scalar32](u uint32) T {
	var zero T
	switch any(zero).(type) {
	case uint32:
		return any(u).(T)
	case int32:
		return any(int32(u)).(T)
	case float32:
		return any(math.Float32frombits(u)).(T)
	default:
		panic(fmt.Sprintf("buffer: unsupported scalar32 type %T", zero))
	}
}

func toUint64[T scalar64](v T) uint64 {
	switch x := any(v).(type) {
	case uint64:
		return x
	case int64:
		return uint64(x)
	case uint:
		return uint64(x)
	case int:
		return uint64(x)
	case float64:
		return math.Float64bits(x)
	default:
		panic(fmt.Sprintf("buffer: unsupported scalar64 type %T", v))
	}
}

func fromUint64[T scalar64](u uint64) T {
	var zero T
	switch any(zero).(type) {
	case uint64:
		return any(u).(T)
	case int64:
		return any(int64(u)).(T)
	case uint:
		return any(uint(u)).(T)
	case int:
		return any(int(u)).(T)
	case float64:
		return any(math.Float64frombits(u)).(T)
	default:
		panic(fmt.Sprintf("buffer: unsupported scalar64 type %T", zero))
	}
}

// WriteAsUint8 writes v, a named type over uint8/int8/bool, as one byte.
func WriteAsUint8[T scalar8](w Writer, v T) (n int64, err error) {
	return WriteUint8(w, toUint8(v))
}

// ReadAsUint8 reads one byte into v, a named type over uint8/int8/bool.
func ReadAsUint8[T scalar8](r Reader, v *T) (n int64, err error) {
	var u uint8
	if n, err = ReadUint8(r, &u); err != nil {
		return n, err
	}
	*v = fromUint8[T](u)
	return n, nil
}

// WriteAsUint16 writes v, a named type over uint16/int16, in little-endian
// byte order.
func WriteAsUint16[T scalar16](w Writer, v T) (n int64, err error) {
	return WriteUint16(w, toUint16(v))
}

// ReadAsUint16 reads a little-endian uint16 into v.
func ReadAsUint16[T scalar16](r Reader, v *T) (n int64, err error) {
	var u uint16
	if n, err = ReadUint16(r, &u); err != nil {
		return n, err
	}
	*v = fromUint16[T](u)
	return n, nil
}

// WriteAsUint32 writes v, a named type over uint32/int32/float32, in
// little-endian byte order.
func WriteAsUint32[T scalar32](w Writer, v T) (n int64, err error) {
	return WriteUint32(w, toUint32(v))
}

// ReadAsUint32 reads a little-endian uint32 into v.
func ReadAsUint32[T scalar32](r Reader, v *T) (n int64, err error) {
	var u uint32
	if n, err = ReadUint32(r, &u); err != nil {
		return n, err
	}
	*v = fromUint32[T](u)
	return n, nil
}

// WriteAsUint64 writes v, a named type over uint64/int64/uint/int/float64,
// in little-endian byte order.
func WriteAsUint64[T scalar64](w Writer, v T) (n int64, err error) {
	return WriteUint64(w, toUint64(v))
}

// ReadAsUint64 reads a little-endian uint64 into v.
func ReadAsUint64[T scalar64](r Reader, v *T) (n int64, err error) {
	var u uint64
	if n, err = ReadUint64(r, &u); err != nil {
		return n, err
	}
	*v = fromUint64[T](u)
	return n, nil
}

// WriteAsUint8Slice writes len(v), then each element of v as one byte.
func WriteAsUint8Slice[T scalar8](w Writer, v []T) (n int64, err error) {
	var inc int64
	if inc, err = WriteUint64(w, uint64(len(v))); err != nil {
		return n + inc, err
	}
	n += inc
	for _, x := range v {
		if inc, err = WriteAsUint8(w, x); err != nil {
			return n + inc, err
		}
		n += inc
	}
	return n, nil
}

// ReadAsUint8Slice reads a length prefix and that many bytes into v, which
// must already be sized to hold them.
func ReadAsUint8Slice[T scalar8](r Reader, v []T) (n int64, err error) {
	var inc int64
	var size uint64
	if inc, err = ReadUint64(r, &size); err != nil {
		return n + inc, err
	}
	n += inc
	for i := uint64(0); i < size && int(i) < len(v); i++ {
		if inc, err = ReadAsUint8(r, &v[i]); err != nil {
			return n + inc, err
		}
		n += inc
	}
	return n, nil
}

// WriteAsUint16Slice writes len(v), then each element of v as a
// little-endian uint16.
func WriteAsUint16Slice[T scalar16](w Writer, v []T) (n int64, err error) {
	var inc int64
	if inc, err = WriteUint64(w, uint64(len(v))); err != nil {
		return n + inc, err
	}
	n += inc
	for _, x := range v {
		if inc, err = WriteAsUint16(w, x); err != nil {
			return n + inc, err
		}
		n += inc
	}
	return n, nil
}

// ReadAsUint16Slice reads a length prefix and that many uint16s into v.
func ReadAsUint16Slice[T scalar16](r Reader, v []T) (n int64, err error) {
	var inc int64
	var size uint64
	if inc, err = ReadUint64(r, &size); err != nil {
		return n + inc, err
	}
	n += inc
	for i := uint64(0); i < size && int(i) < len(v); i++ {
		if inc, err = ReadAsUint16(r, &v[i]); err != nil {
			return n + inc, err
		}
		n += inc
	}
	return n, nil
}

// WriteAsUint32Slice writes len(v), then each element of v as a
// little-endian uint32.
func WriteAsUint32Slice[T scalar32](w Writer, v []T) (n int64, err error) {
	var inc int64
	if inc, err = WriteUint64(w, uint64(len(v))); err != nil {
		return n + inc, err
	}
	n += inc
	for _, x := range v {
		if inc, err = WriteAsUint32(w, x); err != nil {
			return n + inc, err
		}
		n += inc
	}
	return n, nil
}

// ReadAsUint32Slice reads a length prefix and that many uint32s into v.
func ReadAsUint32Slice[T scalar32](r Reader, v []T) (n int64, err error) {
	var inc int64
	var size uint64
	if inc, err = ReadUint64(r, &size); err != nil {
		return n + inc, err
	}
	n += inc
	for i := uint64(0); i < size && int(i) < len(v); i++ {
		if inc, err = ReadAsUint32(r, &v[i]); err != nil {
			return n + inc, err
		}
		n += inc
	}
	return n, nil
}

// WriteAsUint64Slice writes len(v), then each element of v as a
// little-endian uint64.
func WriteAsUint64Slice[T scalar64](w Writer, v []T) (n int64, err error) {
	var inc int64
	if inc, err = WriteUint64(w, uint64(len(v))); err != nil {
		return n + inc, err
	}
	n += inc
	for _, x := range v {
		if inc, err = WriteAsUint64(w, x); err != nil {
			return n + inc, err
		}
		n += inc
	}
	return n, nil
}

// ReadAsUint64Slice reads a length prefix and that many uint64s into v.
func ReadAsUint64Slice[T scalar64](r Reader, v []T) (n int64, err error) {
	var inc int64
	var size uint64
	if inc, err = ReadUint64(r, &size); err != nil {
		return n + inc, err
	}
	n += inc
	for i := uint64(0); i < size && int(i) < len(v); i++ {
		if inc, err = ReadAsUint64(r, &v[i]); err != nil {
			return n + inc, err
		}
		n += inc
	}
	return n, nil
}

// EqualAsUint8Slice reports whether a and b hold identical elements.
func EqualAsUint8Slice[T scalar8](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if toUint8(a[i]) != toUint8(b[i]) {
			return false
		}
	}
	return true
}

// EqualAsUint16Slice reports whether a and b hold identical elements.
func EqualAsUint16Slice[T scalar16](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if toUint16(a[i]) != toUint16(b[i]) {
			return false
		}
	}
	return true
}

// EqualAsUint32Slice reports whether a and b hold identical elements.
func EqualAsUint32Slice[T scalar32](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if toUint32(a[i]) != toUint32(b[i]) {
			return false
		}
	}
	return true
}

// EqualAsUint64Slice reports whether a and b hold identical elements.
func EqualAsUint64Slice[T scalar64](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if toUint64(a[i]) != toUint64(b[i]) {
			return false
		}
	}
	return true
}
