package profile

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Base type codes as they appear in definition messages.
const (
	CodeEnum    byte = 0x00
	CodeSint8   byte = 0x01
	CodeUint8   byte = 0x02
	CodeSint16  byte = 0x83
	CodeUint16  byte = 0x84
	CodeSint32  byte = 0x85
	CodeUint32  byte = 0x86
	CodeString  byte = 0x07
	CodeFloat32 byte = 0x88
	CodeFloat64 byte = 0x89
	CodeUint8z  byte = 0x0A
	CodeUint16z byte = 0x8B
	CodeUint32z byte = 0x8C
	CodeByte    byte = 0x0D
	CodeSint64  byte = 0x8E
	CodeUint64  byte = 0x8F
	CodeUint64z byte = 0x90
)

// BaseType is one of the fixed-width FIT base types.
type BaseType struct {
	Code        byte
	Name        string
	Size        int
	Signed      bool
	Float       bool
	ZeroInvalid bool
}

// Invalid marks an element holding its base type's invalid sentinel.
// Raw keeps the value exactly as it was read.
type Invalid struct {
	Raw any
}

var baseTypes = []*BaseType{
	{Code: CodeEnum, Name: "enum", Size: 1},
	{Code: CodeSint8, Name: "sint8", Size: 1, Signed: true},
	{Code: CodeUint8, Name: "uint8", Size: 1},
	{Code: CodeSint16, Name: "sint16", Size: 2, Signed: true},
	{Code: CodeUint16, Name: "uint16", Size: 2},
	{Code: CodeSint32, Name: "sint32", Size: 4, Signed: true},
	{Code: CodeUint32, Name: "uint32", Size: 4},
	{Code: CodeString, Name: "string", Size: 1},
	{Code: CodeFloat32, Name: "float32", Size: 4, Signed: true, Float: true},
	{Code: CodeFloat64, Name: "float64", Size: 8, Signed: true, Float: true},
	{Code: CodeUint8z, Name: "uint8z", Size: 1, ZeroInvalid: true},
	{Code: CodeUint16z, Name: "uint16z", Size: 2, ZeroInvalid: true},
	{Code: CodeUint32z, Name: "uint32z", Size: 4, ZeroInvalid: true},
	{Code: CodeByte, Name: "byte", Size: 1},
	{Code: CodeSint64, Name: "sint64", Size: 8, Signed: true},
	{Code: CodeUint64, Name: "uint64", Size: 8},
	{Code: CodeUint64z, Name: "uint64z", Size: 8, ZeroInvalid: true},
}

var (
	baseByCode = make(map[byte]*BaseType, len(baseTypes))
	baseByName = make(map[string]*BaseType, len(baseTypes))
)

func init() {
	for _, b := range baseTypes {
		baseByCode[b.Code] = b
		baseByName[b.Name] = b
	}
}

// BaseTypeByCode returns the base type for a definition message code.
// Codes written without the endian-ability bit (0x80) are accepted too.
func BaseTypeByCode(code byte) (*BaseType, bool) {
	if b, ok := baseByCode[code]; ok {
		return b, true
	}
	for _, b := range baseTypes {
		if b.Code&0x1F == code&0x1F && code&0x60 == 0 {
			return b, true
		}
	}
	return nil, false
}

// BaseTypeByName returns the base type called name ("uint16", "string", ...).
func BaseTypeByName(name string) (*BaseType, bool) {
	b, ok := baseByName[name]
	return b, ok
}

// Bits is the width of one element in bits.
func (b *BaseType) Bits() int {
	return b.Size * 8
}

// Parse splits raw into elements. Unsigned integers become uint64, signed
// integers int64, floats float64 and strings a single string. Elements
// carrying the invalid sentinel are wrapped in Invalid.
func (b *BaseType) Parse(raw []byte, order binary.ByteOrder) ([]any, error) {
	switch b.Code {
	case CodeString:
		s := nullTerminated(raw)
		if s == "" {
			return []any{Invalid{Raw: ""}}, nil
		}
		return []any{s}, nil
	case CodeByte:
		out := make([]any, len(raw))
		invalid := allBytes(raw, 0xFF)
		for i, v := range raw {
			if invalid {
				out[i] = Invalid{Raw: uint64(v)}
			} else {
				out[i] = uint64(v)
			}
		}
		return out, nil
	}
	if len(raw)%b.Size != 0 {
		return nil, fmt.Errorf("field size %d not a multiple of %s width %d", len(raw), b.Name, b.Size)
	}
	count := len(raw) / b.Size
	out := make([]any, count)
	for i := 0; i < count; i++ {
		v, bad := b.decodeOne(raw[i*b.Size:(i+1)*b.Size], order)
		if bad {
			out[i] = Invalid{Raw: v}
		} else {
			out[i] = v
		}
	}
	return out, nil
}

func (b *BaseType) decodeOne(raw []byte, order binary.ByteOrder) (any, bool) {
	var bits uint64
	switch b.Size {
	case 1:
		bits = uint64(raw[0])
	case 2:
		bits = uint64(order.Uint16(raw))
	case 4:
		bits = uint64(order.Uint32(raw))
	case 8:
		bits = order.Uint64(raw)
	}
	switch {
	case b.Float && b.Size == 4:
		return float64(math.Float32frombits(uint32(bits))), bits == math.MaxUint32
	case b.Float:
		return math.Float64frombits(bits), bits == math.MaxUint64
	case b.Signed:
		shift := 64 - uint(b.Bits())
		v := int64(bits<<shift) >> shift
		return v, bits == b.invalidBits()
	case b.ZeroInvalid:
		return bits, bits == 0
	default:
		return bits, bits == b.invalidBits()
	}
}

func (b *BaseType) invalidBits() uint64 {
	all := uint64(math.MaxUint64) >> (64 - uint(b.Bits()))
	if b.Signed {
		return all >> 1
	}
	return all
}

// Encode writes v into dst using the base type width. Only integer base
// types can be encoded; it is used when rewriting timestamps in place.
func (b *BaseType) Encode(dst []byte, v uint64, order binary.ByteOrder) error {
	if b.Float || b.Code == CodeString || len(dst) < b.Size {
		return fmt.Errorf("cannot encode into %s field of %d bytes", b.Name, len(dst))
	}
	switch b.Size {
	case 1:
		dst[0] = byte(v)
	case 2:
		order.PutUint16(dst, uint16(v))
	case 4:
		order.PutUint32(dst, uint32(v))
	case 8:
		order.PutUint64(dst, v)
	}
	return nil
}

func nullTerminated(raw []byte) string {
	for i := 0; i < len(raw); i++ {
		if raw[i] == 0x00 {
			return string(raw[:i])
		}
	}
	return string(raw)
}

func allBytes(raw []byte, value byte) bool {
	if len(raw) == 0 {
		return false
	}
	for _, b := range raw {
		if b != value {
			return false
		}
	}
	return true
}
