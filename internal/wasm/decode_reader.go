package wasm

import (
	"math"
	"unicode/utf8"

	"github.com/tinygo-wasm/tinywasm/internal/leb128"
)

// reader is the binary reader of §4.1: a cursor over the module bytes
// exposing the primitive decodes every section decoder is built from. All
// reads fail with a *DecodeError on EOF or overlong LEB128 encodings.
type reader struct {
	buf []byte
	pos int
}

func newReader(buf []byte) *reader {
	return &reader{buf: buf}
}

func (r *reader) offset() int { return r.pos }

func (r *reader) remaining() int { return len(r.buf) - r.pos }

func (r *reader) byte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, newDecodeError(r.pos, "unexpected end of input")
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

// ReadByte satisfies io.ByteReader, used by leb128.DecodeInt33AsInt64.
func (r *reader) ReadByte() (byte, error) { return r.byte() }

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, newDecodeError(r.pos, "unexpected end of input reading %d bytes", n)
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) u32() (uint32, error) {
	v, n, err := leb128.LoadUint32(r.buf[r.pos:])
	if err != nil {
		return 0, newDecodeError(r.pos, "malformed u32 leb128: %s", err)
	}
	r.pos += int(n)
	return v, nil
}

func (r *reader) u64() (uint64, error) {
	v, n, err := leb128.LoadUint64(r.buf[r.pos:])
	if err != nil {
		return 0, newDecodeError(r.pos, "malformed u64 leb128: %s", err)
	}
	r.pos += int(n)
	return v, nil
}

func (r *reader) i32() (int32, error) {
	v, n, err := leb128.LoadInt32(r.buf[r.pos:])
	if err != nil {
		return 0, newDecodeError(r.pos, "malformed s32 leb128: %s", err)
	}
	r.pos += int(n)
	return v, nil
}

func (r *reader) i64() (int64, error) {
	v, n, err := leb128.LoadInt64(r.buf[r.pos:])
	if err != nil {
		return 0, newDecodeError(r.pos, "malformed s64 leb128: %s", err)
	}
	r.pos += int(n)
	return v, nil
}

// i33 reads the 33-bit signed immediate used to encode a block
// type: either a single byte ValType (negative) or a type-section index
// (non-negative).
func (r *reader) i33() (int64, error) {
	v, n, err := leb128.DecodeInt33AsInt64(r)
	if err != nil {
		return 0, newDecodeError(r.pos, "malformed block type: %s", err)
	}
	_ = n
	return v, nil
}

func (r *reader) f32() (float32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	bits := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	return math.Float32frombits(bits), nil
}

func (r *reader) f64() (float64, error) {
	b, err := r.bytes(8)
	if err != nil {
		return 0, err
	}
	var bits uint64
	for i := 0; i < 8; i++ {
		bits |= uint64(b[i]) << (8 * i)
	}
	return math.Float64frombits(bits), nil
}

// name reads a length-prefixed UTF-8 string, failing on invalid UTF-8.
func (r *reader) name() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	b, err := r.bytes(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", newDecodeError(r.pos, "invalid UTF-8 in name")
	}
	return string(b), nil
}

// vectorLen reads the ULEB128 element count prefixing a binary-format
// vector.
func (r *reader) vectorLen() (uint32, error) {
	return r.u32()
}
