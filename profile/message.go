package profile

import "fmt"

// TimestampField is the field number every message uses for its timestamp.
const TimestampField = 253

// Message is one entry of the messages table.
type Message struct {
	Number  uint16
	Name    string
	Fields  []*Field
	Unknown bool

	byNumber map[byte]*Field
	byName   map[string]*Field
}

// Field describes one field of a message.
type Field struct {
	Number     byte
	Name       string
	Type       *Type
	Array      bool
	Scale      float64
	Offset     float64
	Units      string
	Accumulate bool
	Components []Component
	Subfields  []*Subfield
	Unknown    bool
}

// Component unpacks a bit group of a field value into another field.
type Component struct {
	Field      *Field
	Bits       int
	Scale      float64
	Offset     float64
	Units      string
	Accumulate bool
}

// Subfield replaces its parent field's definition when one of Refs matches
// a field decoded earlier in the same record.
type Subfield struct {
	Name       string
	Type       *Type
	Scale      float64
	Offset     float64
	Units      string
	Components []Component
	Refs       []Ref
}

// Ref is a (field, value) condition selecting a Subfield.
type Ref struct {
	Field *Field
	Value int64
}

// FieldByNumber looks up a field by its number.
func (m *Message) FieldByNumber(n byte) (*Field, bool) {
	f, ok := m.byNumber[n]
	return f, ok
}

// FieldByName looks up a field by its profile name.
func (m *Message) FieldByName(name string) (*Field, bool) {
	f, ok := m.byName[name]
	return f, ok
}

func (m *Message) String() string {
	return fmt.Sprintf("%s(%d)", m.Name, m.Number)
}

func (m *Message) index() {
	m.byNumber = make(map[byte]*Field, len(m.Fields))
	m.byName = make(map[string]*Field, len(m.Fields))
	for _, f := range m.Fields {
		m.byNumber[f.Number] = f
		m.byName[f.Name] = f
	}
}

// Scaled reports whether raw values need scale or offset applied.
func (f *Field) Scaled() bool {
	return scaled(f.Scale, f.Offset)
}

// Scaled reports whether raw values need scale or offset applied.
func (s *Subfield) Scaled() bool {
	return scaled(s.Scale, s.Offset)
}

// Scaled reports whether raw values need scale or offset applied.
func (c Component) Scaled() bool {
	return scaled(c.Scale, c.Offset)
}

func scaled(scale, offset float64) bool {
	return (scale != 0 && scale != 1) || offset != 0
}

// Apply converts a raw number with scale and offset: raw/scale - offset.
func Apply(raw, scale, offset float64) float64 {
	if scale == 0 {
		scale = 1
	}
	return raw/scale - offset
}

// Unapply is the inverse of Apply.
func Unapply(v, scale, offset float64) float64 {
	if scale == 0 {
		scale = 1
	}
	return (v + offset) * scale
}
