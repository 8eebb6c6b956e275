package profile

import (
	"encoding/binary"
	"sort"
	"strings"
)

// Kind tells how the names view presents values of a type.
type Kind uint8

const (
	// KindBase values are numbers.
	KindBase Kind = iota
	// KindEnum values map to symbolic names.
	KindEnum
	// KindTime values are seconds since the FIT epoch.
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindEnum:
		return "enum"
	case KindTime:
		return "time"
	default:
		return "base"
	}
}

// Type is an entry of the types table: a base type, optionally with a
// table of symbolic names.
type Type struct {
	ID   int
	Name string
	Kind Kind
	Base *BaseType

	names []string
	codes []int64
	byVal map[int64]string
	byNam map[string]int64
}

func newType(id int, name string, base *BaseType, values []artifactValue) *Type {
	t := &Type{
		ID:    id,
		Name:  name,
		Base:  base,
		byVal: make(map[int64]string, len(values)),
		byNam: make(map[string]int64, len(values)),
	}
	bitfield := false
	for _, v := range values {
		t.names = append(t.names, v.Name)
		t.codes = append(t.codes, v.Value)
		t.byNam[v.Name] = v.Value
		if _, dup := t.byVal[v.Value]; !dup {
			t.byVal[v.Value] = v.Name
		}
		if strings.Contains(v.Name, "mask") {
			bitfield = true
		}
	}
	switch {
	case name == "date_time" || name == "local_date_time":
		t.Kind = KindTime
	case len(values) > 0 && !bitfield:
		t.Kind = KindEnum
	}
	return t
}

// Size is the width of one element in bytes.
func (t *Type) Size() int {
	return t.Base.Size
}

// Parse decodes raw bytes as elements of this type.
func (t *Type) Parse(raw []byte, order binary.ByteOrder) ([]any, error) {
	return t.Base.Parse(raw, order)
}

// IsInvalid reports whether v is the invalid sentinel of the type.
func (t *Type) IsInvalid(v any) bool {
	_, bad := v.(Invalid)
	return bad
}

// ValueName translates a raw value to its symbolic name.
func (t *Type) ValueName(v int64) (string, bool) {
	name, ok := t.byVal[v]
	return name, ok
}

// ValueCode translates a symbolic name to its raw value.
func (t *Type) ValueCode(name string) (int64, bool) {
	v, ok := t.byNam[name]
	return v, ok
}

// Values lists the symbolic names in declaration order.
func (t *Type) Values() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

func (t *Type) artifactValues() []artifactValue {
	out := make([]artifactValue, len(t.names))
	for i := range t.names {
		out[i] = artifactValue{Name: t.names[i], Value: t.codes[i]}
	}
	return out
}

func sortedTypeNames(m map[string]*Type) []string {
	out := make([]string, 0, len(m))
	for name := range m {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
