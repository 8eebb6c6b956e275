package fitstream

import (
	"encoding/binary"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/lucasjlepore/fitcodec/profile"
)

// Record header bits.
const (
	compressedHeaderMask = 0x80
	compressedLocalMask  = 0x60
	compressedTimeMask   = 0x1F
	definitionHeaderMask = 0x40
	devDataMask          = 0x20
	localMesgNumMask     = 0x0F
)

// Definition is a compiled definition message: the layout of the data
// messages that follow it under the same local message number.
type Definition struct {
	Local     byte
	Order     binary.ByteOrder
	BigEndian bool
	Global    uint16
	Message   *profile.Message
	Fields    []FieldDef
	DevFields []DevFieldDef
	// Size is the length of a data message body.
	Size int
}

// FieldDef is one field of a definition.
type FieldDef struct {
	Number   byte
	Size     int
	BaseCode byte
	// Offset of the field within the data message body.
	Offset int
	Base   *profile.BaseType
	Field  *profile.Field
	// Opaque fields are kept as bytes because their base type code or width
	// could not be honoured.
	Opaque bool
	Switch *Switch
}

// Switch selects a subfield from the raw value of an earlier field of the
// same record. Keys always refer to fields before the switched one.
type Switch struct {
	Cases []SwitchCase
}

// SwitchCase picks Subfield when field Key holds Value.
type SwitchCase struct {
	Key      int
	Value    int64
	Subfield *profile.Subfield
}

// DevFieldDef is one developer field of a definition.
type DevFieldDef struct {
	Number         byte
	Size           int
	DeveloperIndex byte
	Offset         int
	Desc           *DeveloperField
}

type rawFieldDef struct {
	number, size, code byte
}

type rawDevFieldDef struct {
	number, size, index byte
}

func compileDefinition(local byte, order binary.ByteOrder, global uint16, fields []rawFieldDef, devs []rawDevFieldDef, state *State, opts Options) (*Definition, error) {
	p := state.Profile
	def := &Definition{
		Local:     local,
		Order:     order,
		BigEndian: order == binary.BigEndian,
		Global:    global,
		Message:   p.MessageByNumber(global),
		Fields:    make([]FieldDef, 0, len(fields)),
	}
	byteBase, _ := profile.BaseTypeByCode(profile.CodeByte)
	log := opts.logger().WithFields(logrus.Fields{"message": def.Message.Name, "local": local})

	for _, rf := range fields {
		fd := FieldDef{Number: rf.number, Size: int(rf.size), BaseCode: rf.code, Offset: def.Size}
		def.Size += fd.Size
		base, ok := profile.BaseTypeByCode(rf.code)
		switch {
		case !ok:
			if opts.Warn {
				log.WithField("field", rf.number).Warnf("unknown base type 0x%02X, keeping bytes", rf.code)
			}
			base, fd.Opaque = byteBase, true
		case base.Code != profile.CodeString && base.Code != profile.CodeByte && fd.Size%base.Size != 0:
			if !opts.Warn {
				return nil, fmt.Errorf("%w: field %d of %s is %d bytes, not a multiple of %s", ErrFraming, rf.number, def.Message.Name, fd.Size, base.Name)
			}
			log.WithField("field", rf.number).Warnf("%d bytes is not a multiple of %s, keeping bytes", fd.Size, base.Name)
			base, fd.Opaque = byteBase, true
		}
		fd.Base = base
		fd.Field = p.FieldOf(def.Message, rf.number, base)
		def.Fields = append(def.Fields, fd)
	}

	for i := range def.Fields {
		def.Fields[i].Switch = compileSwitch(def.Fields[:i], def.Fields[i].Field)
	}

	for _, rd := range devs {
		dd := DevFieldDef{Number: rd.number, Size: int(rd.size), DeveloperIndex: rd.index, Offset: def.Size}
		def.Size += dd.Size
		desc, ok := state.developerField(rd.index, rd.number)
		if !ok {
			if opts.Warn {
				log.WithFields(logrus.Fields{"developer_index": rd.index, "field": rd.number}).Warn("developer field without description")
			}
			desc = &DeveloperField{
				DeveloperIndex: rd.index,
				Number:         rd.number,
				Name:           fmt.Sprintf("developer_%d_%d", rd.index, rd.number),
				Base:           byteBase,
				Undocumented:   true,
			}
		}
		dd.Desc = desc
		def.DevFields = append(def.DevFields, dd)
	}
	return def, nil
}

// compileSwitch collects the subfield conditions of f whose key field is
// among earlier. Conditions on later or absent fields never apply.
func compileSwitch(earlier []FieldDef, f *profile.Field) *Switch {
	if f == nil || len(f.Subfields) == 0 {
		return nil
	}
	var sw Switch
	for _, sub := range f.Subfields {
		for _, ref := range sub.Refs {
			for k := range earlier {
				if earlier[k].Number == ref.Field.Number && !earlier[k].Opaque {
					sw.Cases = append(sw.Cases, SwitchCase{Key: k, Value: ref.Value, Subfield: sub})
					break
				}
			}
		}
	}
	if len(sw.Cases) == 0 {
		return nil
	}
	return &sw
}

// FieldIndex returns the position of field number n.
func (d *Definition) FieldIndex(n byte) (int, bool) {
	for i := range d.Fields {
		if d.Fields[i].Number == n {
			return i, true
		}
	}
	return 0, false
}
