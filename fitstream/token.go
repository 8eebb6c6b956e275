package fitstream

import (
	"encoding/binary"
	"fmt"
)

// Kind classifies tokens and records.
type Kind uint8

const (
	KindFileHeader Kind = iota
	KindDefinition
	KindData
	KindCompressedTimestamp
	KindDeveloperDataID
	KindFieldDescription
	KindChecksum
)

func (k Kind) String() string {
	switch k {
	case KindFileHeader:
		return "file_header"
	case KindDefinition:
		return "definition"
	case KindData:
		return "data"
	case KindCompressedTimestamp:
		return "compressed_timestamp"
	case KindDeveloperDataID:
		return "developer_data_id"
	case KindFieldDescription:
		return "field_description"
	case KindChecksum:
		return "checksum"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// IsData reports whether records of this kind come from data messages.
func (k Kind) IsData() bool {
	switch k {
	case KindData, KindCompressedTimestamp, KindDeveloperDataID, KindFieldDescription:
		return true
	}
	return false
}

// Token is a contiguous span of the file that parses to one record.
type Token interface {
	Kind() Kind
	Offset() int
	Len() int
	// Bytes returns the token's span of the file. Callers must not modify it.
	Bytes() []byte
	// Parse decodes the token. With warn, per-field decode problems are
	// logged and the field is dropped instead of failing the record.
	Parse(warn bool) (*Record, error)
}

type span struct {
	offset int
	raw    []byte
}

func (s span) Offset() int   { return s.offset }
func (s span) Len() int      { return len(s.raw) }
func (s span) Bytes() []byte { return s.raw }

// FileHeader is the header token.
type FileHeader struct {
	span
	Header Header
}

func (*FileHeader) Kind() Kind { return KindFileHeader }

func (t *FileHeader) Parse(bool) (*Record, error) {
	h := t.Header
	fields := []Field{
		{Name: "header_size", Values: []any{uint64(h.Size)}},
		{Name: "protocol_version", Values: []any{uint64(h.ProtocolVersion)}},
		{Name: "profile_version", Values: []any{uint64(h.ProfileVersion)}},
		{Name: "data_size", Values: []any{uint64(h.DataSize)}},
		{Name: "data_type", Values: []any{h.DataType}},
	}
	if h.Size == HeaderSize {
		fields = append(fields, Field{Name: "header_crc", Values: []any{uint64(h.CRC)}})
	}
	return fixedRecord(KindFileHeader, t.offset, "file_header", fields), nil
}

// DefinitionMessage is a definition token.
type DefinitionMessage struct {
	span
	Definition *Definition
}

func (*DefinitionMessage) Kind() Kind { return KindDefinition }

func (t *DefinitionMessage) Parse(bool) (*Record, error) {
	d := t.Definition
	arch := "little"
	if d.BigEndian {
		arch = "big"
	}
	numbers := make([]any, len(d.Fields))
	for i, f := range d.Fields {
		numbers[i] = uint64(f.Number)
	}
	fields := []Field{
		{Name: "local_message_type", Values: []any{uint64(d.Local)}},
		{Name: "global_message_number", Values: []any{uint64(d.Global)}},
		{Name: "message", Values: []any{d.Message.Name}},
		{Name: "architecture", Values: []any{arch}},
		{Name: "fields", Values: numbers},
		{Name: "developer_fields", Values: []any{uint64(len(d.DevFields))}},
	}
	return fixedRecord(KindDefinition, t.offset, "definition", fields), nil
}

// DataMessage is a data token, with or without a compressed timestamp
// header. Raw values are split out when the token is read; views are
// built on demand.
type DataMessage struct {
	span
	kind       Kind
	Definition *Definition
	Compressed bool
	record     *Record
}

func (t *DataMessage) Kind() Kind { return t.kind }

func (t *DataMessage) Parse(warn bool) (*Record, error) {
	t.record.warn = t.record.warn || warn
	if err := t.record.Force(); err != nil {
		return nil, parseError(t.offset, t.kind, err)
	}
	return t.record, nil
}

// Record returns the record without decoding it.
func (t *DataMessage) Record() *Record {
	return t.record
}

// FieldSpan locates one field's bytes in the file.
type FieldSpan struct {
	Def   *FieldDef
	Start int
	End   int
}

// Fields locates each defined field of the message in the file.
func (t *DataMessage) Fields() []FieldSpan {
	out := make([]FieldSpan, len(t.Definition.Fields))
	body := t.offset + 1
	for i := range t.Definition.Fields {
		fd := &t.Definition.Fields[i]
		out[i] = FieldSpan{Def: fd, Start: body + fd.Offset, End: body + fd.Offset + fd.Size}
	}
	return out
}

// Checksum is the trailing CRC token.
type Checksum struct {
	span
	Value uint16
}

func (*Checksum) Kind() Kind { return KindChecksum }

func (t *Checksum) Parse(bool) (*Record, error) {
	fields := []Field{{Name: "checksum", Values: []any{uint64(t.Value)}}}
	return fixedRecord(KindChecksum, t.offset, "checksum", fields), nil
}

func newChecksum(data []byte, offset int) *Checksum {
	raw := data[offset : offset+ChecksumSize]
	return &Checksum{span: span{offset: offset, raw: raw}, Value: binary.LittleEndian.Uint16(raw)}
}
