package profile

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// ArtifactFormat identifies the on-disk layout written by Save.
const ArtifactFormat = "fit_profile_v1"

var (
	// ErrMissingArtifact is returned by Read when the artifact does not exist.
	ErrMissingArtifact = errors.New("profile artifact missing")
	// ErrUnresolved is returned when a type, field or value reference
	// cannot be resolved while building a profile.
	ErrUnresolved = errors.New("unresolved profile reference")
)

// The artifact is two flat tables. Fields point at types by id and at
// sibling fields by name, so the file can be inspected without this package.
type artifact struct {
	Format   string            `cbor:"format"`
	Types    []artifactType    `cbor:"types"`
	Messages []artifactMessage `cbor:"messages"`
}

type artifactType struct {
	ID     int             `cbor:"id"`
	Name   string          `cbor:"name"`
	Base   byte            `cbor:"base"`
	Values []artifactValue `cbor:"values,omitempty"`
}

type artifactValue struct {
	Name  string `cbor:"name"`
	Value int64  `cbor:"value"`
}

type artifactMessage struct {
	Number uint16          `cbor:"number"`
	Name   string          `cbor:"name"`
	Fields []artifactField `cbor:"fields"`
}

type artifactField struct {
	Number     byte                `cbor:"number"`
	Name       string              `cbor:"name"`
	Type       int                 `cbor:"type"`
	Array      bool                `cbor:"array,omitempty"`
	Scale      float64             `cbor:"scale,omitempty"`
	Offset     float64             `cbor:"offset,omitempty"`
	Units      string              `cbor:"units,omitempty"`
	Accumulate bool                `cbor:"accumulate,omitempty"`
	Components []artifactComponent `cbor:"components,omitempty"`
	Subfields  []artifactSubfield  `cbor:"subfields,omitempty"`
}

type artifactComponent struct {
	Field      string  `cbor:"field"`
	Bits       int     `cbor:"bits"`
	Scale      float64 `cbor:"scale,omitempty"`
	Offset     float64 `cbor:"offset,omitempty"`
	Units      string  `cbor:"units,omitempty"`
	Accumulate bool    `cbor:"accumulate,omitempty"`
}

type artifactSubfield struct {
	Name       string              `cbor:"name"`
	Type       int                 `cbor:"type"`
	Scale      float64             `cbor:"scale,omitempty"`
	Offset     float64             `cbor:"offset,omitempty"`
	Units      string              `cbor:"units,omitempty"`
	Components []artifactComponent `cbor:"components,omitempty"`
	Refs       []artifactRef       `cbor:"refs"`
}

type artifactRef struct {
	Field string `cbor:"field"`
	Value int64  `cbor:"value"`
}

// Read loads a profile artifact written by Save.
func Read(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissingArtifact, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read profile artifact: %w", err)
	}
	return Decode(data)
}

// Decode builds a profile from artifact bytes.
func Decode(data []byte) (*Profile, error) {
	var a artifact
	if err := cbor.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode profile artifact: %w", err)
	}
	if a.Format != ArtifactFormat {
		return nil, fmt.Errorf("unsupported profile artifact format %q", a.Format)
	}
	return resolve(&a)
}

// Save writes the profile artifact to path.
func (p *Profile) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create profile artifact: %w", err)
	}
	if _, err := p.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteTo encodes the profile artifact to w.
func (p *Profile) WriteTo(w io.Writer) (int64, error) {
	data, err := cbor.Marshal(p.source)
	if err != nil {
		return 0, fmt.Errorf("encode profile artifact: %w", err)
	}
	n, err := w.Write(data)
	return int64(n), err
}

// resolve turns the flat tables into the linked catalogue.
func resolve(a *artifact) (*Profile, error) {
	p := newProfile(a)

	for i, at := range a.Types {
		if at.ID != i {
			return nil, fmt.Errorf("%w: type %q has id %d at position %d", ErrUnresolved, at.Name, at.ID, i)
		}
		base, ok := BaseTypeByCode(at.Base)
		if !ok {
			return nil, fmt.Errorf("%w: type %q has unknown base code 0x%02X", ErrUnresolved, at.Name, at.Base)
		}
		t := newType(at.ID, at.Name, base, at.Values)
		p.types = append(p.types, t)
		p.typeByName[t.Name] = t
	}
	typeAt := func(id int, owner string) (*Type, error) {
		if id < 0 || id >= len(p.types) {
			return nil, fmt.Errorf("%w: %s refers to type id %d", ErrUnresolved, owner, id)
		}
		return p.types[id], nil
	}

	for _, am := range a.Messages {
		m := &Message{Number: am.Number, Name: am.Name}
		for _, af := range am.Fields {
			t, err := typeAt(af.Type, am.Name+"."+af.Name)
			if err != nil {
				return nil, err
			}
			m.Fields = append(m.Fields, &Field{
				Number:     af.Number,
				Name:       af.Name,
				Type:       t,
				Array:      af.Array,
				Scale:      af.Scale,
				Offset:     af.Offset,
				Units:      af.Units,
				Accumulate: af.Accumulate,
			})
		}
		m.index()

		for i, af := range am.Fields {
			f := m.Fields[i]
			comps, err := resolveComponents(m, af.Components)
			if err != nil {
				return nil, err
			}
			f.Components = comps
			for _, as := range af.Subfields {
				t, err := typeAt(as.Type, am.Name+"."+as.Name)
				if err != nil {
					return nil, err
				}
				sub := &Subfield{
					Name:   as.Name,
					Type:   t,
					Scale:  as.Scale,
					Offset: as.Offset,
					Units:  as.Units,
				}
				if sub.Components, err = resolveComponents(m, as.Components); err != nil {
					return nil, err
				}
				for _, ar := range as.Refs {
					rf, ok := m.FieldByName(ar.Field)
					if !ok {
						return nil, fmt.Errorf("%w: subfield %s.%s refers to field %q", ErrUnresolved, m.Name, as.Name, ar.Field)
					}
					sub.Refs = append(sub.Refs, Ref{Field: rf, Value: ar.Value})
				}
				f.Subfields = append(f.Subfields, sub)
			}
		}

		if _, dup := p.byNumber[m.Number]; dup {
			return nil, fmt.Errorf("duplicate message number %d (%s)", m.Number, m.Name)
		}
		p.messages = append(p.messages, m)
		p.byNumber[m.Number] = m
		p.byName[m.Name] = m
	}
	return p, nil
}

func resolveComponents(m *Message, in []artifactComponent) ([]Component, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]Component, 0, len(in))
	for _, ac := range in {
		target, ok := m.FieldByName(ac.Field)
		if !ok {
			return nil, fmt.Errorf("%w: component of %s refers to field %q", ErrUnresolved, m.Name, ac.Field)
		}
		if ac.Bits <= 0 || ac.Bits > 64 {
			return nil, fmt.Errorf("component %s.%s has bit width %d", m.Name, ac.Field, ac.Bits)
		}
		out = append(out, Component{
			Field:      target,
			Bits:       ac.Bits,
			Scale:      ac.Scale,
			Offset:     ac.Offset,
			Units:      ac.Units,
			Accumulate: ac.Accumulate,
		})
	}
	return out, nil
}
