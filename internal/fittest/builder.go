// Package fittest assembles FIT files byte by byte for tests.
package fittest

import (
	"encoding/binary"
	"fmt"

	"github.com/tormoder/fit/dyncrc16"
)

// Base type codes used by the helpers below.
const (
	Enum    byte = 0x00
	Sint8   byte = 0x01
	Uint8   byte = 0x02
	Sint16  byte = 0x83
	Uint16  byte = 0x84
	Sint32  byte = 0x85
	Uint32  byte = 0x86
	String  byte = 0x07
	Uint8z  byte = 0x0A
	Uint32z byte = 0x8C
	Byte    byte = 0x0D
)

var widths = map[byte]int{
	Enum: 1, Sint8: 1, Uint8: 1, Sint16: 2, Uint16: 2, Sint32: 4, Uint32: 4,
	String: 1, Uint8z: 1, Uint32z: 4, Byte: 1,
}

// Field is a field of a definition message.
type Field struct {
	Number byte
	Size   byte
	Base   byte
}

// F declares a scalar field of base type base.
func F(number, base byte) Field {
	return Field{Number: number, Size: byte(widths[base]), Base: base}
}

// A declares an array of n elements of base type base.
func A(number, base byte, n int) Field {
	return Field{Number: number, Size: byte(widths[base] * n), Base: base}
}

// Dev is a developer field of a definition message.
type Dev struct {
	Number byte
	Size   byte
	Index  byte
}

type layout struct {
	fields []Field
	devs   []Dev
	order  binary.ByteOrder
}

// Builder appends records and wraps them in a header and checksum.
type Builder struct {
	HeaderSize     byte
	Protocol       byte
	ProfileVersion uint16
	// HeaderCRC writes the header CRC of a 14 byte header. When false the
	// CRC slot holds zero.
	HeaderCRC bool

	records []byte
	layouts map[byte]layout
}

// New returns a builder for files with a 14 byte header.
func New() *Builder {
	return &Builder{
		HeaderSize:     14,
		Protocol:       0x10,
		ProfileVersion: 2014,
		HeaderCRC:      true,
		layouts:        make(map[byte]layout),
	}
}

// Short switches to a 12 byte header.
func (b *Builder) Short() *Builder {
	b.HeaderSize = 12
	return b
}

// Define appends a little-endian definition message.
func (b *Builder) Define(local byte, global uint16, fields ...Field) *Builder {
	return b.define(local, global, binary.LittleEndian, fields, nil)
}

// DefineBig appends a big-endian definition message.
func (b *Builder) DefineBig(local byte, global uint16, fields ...Field) *Builder {
	return b.define(local, global, binary.BigEndian, fields, nil)
}

// DefineDev appends a definition message with developer fields.
func (b *Builder) DefineDev(local byte, global uint16, fields []Field, devs []Dev) *Builder {
	return b.define(local, global, binary.LittleEndian, fields, devs)
}

func (b *Builder) define(local byte, global uint16, order binary.ByteOrder, fields []Field, devs []Dev) *Builder {
	hdr := 0x40 | local&0x0F
	if devs != nil {
		hdr |= 0x20
	}
	arch := byte(0)
	if order == binary.BigEndian {
		arch = 1
	}
	rec := []byte{hdr, 0, arch, 0, 0, byte(len(fields))}
	order.PutUint16(rec[3:5], global)
	for _, f := range fields {
		rec = append(rec, f.Number, f.Size, f.Base)
	}
	if devs != nil {
		rec = append(rec, byte(len(devs)))
		for _, d := range devs {
			rec = append(rec, d.Number, d.Size, d.Index)
		}
	}
	b.records = append(b.records, rec...)
	b.layouts[local] = layout{fields: fields, devs: devs, order: order}
	return b
}

// Data appends a data message holding one integer per defined field, each
// written in the field's full width. Developer fields follow as further
// values.
func (b *Builder) Data(local byte, values ...uint64) *Builder {
	b.records = append(b.records, local&0x0F)
	b.records = append(b.records, b.body(local, values)...)
	return b
}

// Compressed appends a data message with a compressed timestamp header.
func (b *Builder) Compressed(local, offset byte, values ...uint64) *Builder {
	b.records = append(b.records, 0x80|(local&0x03)<<5|offset&0x1F)
	b.records = append(b.records, b.body(local, values)...)
	return b
}

// DataBytes appends a data message with a literal body.
func (b *Builder) DataBytes(local byte, body []byte) *Builder {
	b.records = append(b.records, local&0x0F)
	b.records = append(b.records, body...)
	return b
}

// Raw appends arbitrary bytes to the record area.
func (b *Builder) Raw(data ...byte) *Builder {
	b.records = append(b.records, data...)
	return b
}

func (b *Builder) body(local byte, values []uint64) []byte {
	l, ok := b.layouts[local]
	if !ok {
		panic(fmt.Sprintf("fittest: local type %d not defined", local))
	}
	sizes := make([]int, 0, len(l.fields)+len(l.devs))
	for _, f := range l.fields {
		sizes = append(sizes, int(f.Size))
	}
	for _, d := range l.devs {
		sizes = append(sizes, int(d.Size))
	}
	if len(values) != len(sizes) {
		panic(fmt.Sprintf("fittest: local type %d has %d fields, got %d values", local, len(sizes), len(values)))
	}
	var out []byte
	for i, v := range values {
		out = append(out, encode(v, sizes[i], l.order)...)
	}
	return out
}

func encode(v uint64, size int, order binary.ByteOrder) []byte {
	out := make([]byte, size)
	switch size {
	case 1:
		out[0] = byte(v)
	case 2:
		order.PutUint16(out, uint16(v))
	case 4:
		order.PutUint32(out, uint32(v))
	case 8:
		order.PutUint64(out, v)
	default:
		for i := range out {
			out[i] = byte(v >> (8 * uint(i)))
		}
	}
	return out
}

// Records returns the record area built so far.
func (b *Builder) Records() []byte {
	return append([]byte(nil), b.records...)
}

// Header returns the file header for the current record area.
func (b *Builder) Header() []byte {
	h := make([]byte, b.HeaderSize)
	h[0] = b.HeaderSize
	h[1] = b.Protocol
	binary.LittleEndian.PutUint16(h[2:4], b.ProfileVersion)
	binary.LittleEndian.PutUint32(h[4:8], uint32(len(b.records)))
	copy(h[8:12], ".FIT")
	if b.HeaderSize == 14 && b.HeaderCRC {
		binary.LittleEndian.PutUint16(h[12:14], dyncrc16.Checksum(h[:12]))
	}
	return h
}

// Bytes returns the complete file: header, records and checksum.
func (b *Builder) Bytes() []byte {
	out := append(b.Header(), b.records...)
	return AppendCRC(out)
}

// AppendCRC appends the FIT CRC of data.
func AppendCRC(data []byte) []byte {
	return binary.LittleEndian.AppendUint16(data, dyncrc16.Checksum(data))
}
