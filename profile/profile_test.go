package profile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestBuiltinResolves(t *testing.T) {
	p, err := Builtin()
	require.NoError(t, err)

	record, err := p.MessageByName("record")
	require.NoError(t, err)
	require.Equal(t, uint16(20), record.Number)

	alt, ok := record.FieldByName("altitude")
	require.True(t, ok)
	require.Equal(t, byte(2), alt.Number)
	require.Equal(t, 5.0, alt.Scale)
	require.Equal(t, 500.0, alt.Offset)
	require.Len(t, alt.Components, 1)
	require.Equal(t, "enhanced_altitude", alt.Components[0].Field.Name)
	require.Equal(t, 16, alt.Components[0].Bits)

	csd, ok := record.FieldByNumber(8)
	require.True(t, ok)
	require.Equal(t, "compressed_speed_distance", csd.Name)
	require.True(t, csd.Array)
	require.Len(t, csd.Components, 2)
	require.Equal(t, "speed", csd.Components[0].Field.Name)
	require.Equal(t, "m/s", csd.Components[0].Units)
	require.False(t, csd.Components[0].Accumulate)
	require.Equal(t, "distance", csd.Components[1].Field.Name)
	require.Equal(t, 16.0, csd.Components[1].Scale)
	require.True(t, csd.Components[1].Accumulate)
	require.Empty(t, csd.Units)
}

func TestTypeLookups(t *testing.T) {
	p, err := Builtin()
	require.NoError(t, err)

	file, err := p.Type("file")
	require.NoError(t, err)
	require.Equal(t, KindEnum, file.Kind)
	name, ok := file.ValueName(4)
	require.True(t, ok)
	require.Equal(t, "activity", name)

	event, err := p.Type("event")
	require.NoError(t, err)
	code, ok := event.ValueCode("battery")
	require.True(t, ok)
	require.Equal(t, int64(11), code)

	dt, err := p.Type("date_time")
	require.NoError(t, err)
	require.Equal(t, KindTime, dt.Kind)
	require.Equal(t, 4, dt.Size())

	idx, err := p.Type("message_index")
	require.NoError(t, err)
	require.Equal(t, KindBase, idx.Kind)

	u16, err := p.Type("uint16")
	require.NoError(t, err)
	require.Equal(t, CodeUint16, u16.Base.Code)

	_, err = p.Type("no_such_type")
	require.ErrorIs(t, err, ErrUnresolved)
}

func TestSubfieldRefsResolve(t *testing.T) {
	p, err := Builtin()
	require.NoError(t, err)

	event, err := p.MessageByName("event")
	require.NoError(t, err)
	data, ok := event.FieldByName("data")
	require.True(t, ok)

	var battery, gears *Subfield
	for _, sub := range data.Subfields {
		switch sub.Name {
		case "battery_level":
			battery = sub
		case "gear_change_data":
			gears = sub
		}
	}
	require.NotNil(t, battery)
	require.Equal(t, 1000.0, battery.Scale)
	require.Equal(t, "V", battery.Units)
	require.Len(t, battery.Refs, 1)
	require.Equal(t, "event", battery.Refs[0].Field.Name)
	require.Equal(t, int64(11), battery.Refs[0].Value)

	require.NotNil(t, gears)
	require.Len(t, gears.Refs, 2)
	require.Equal(t, int64(43), gears.Refs[0].Value)
	require.Equal(t, int64(42), gears.Refs[1].Value)
	require.Len(t, gears.Components, 4)
	require.Equal(t, "front_gear", gears.Components[3].Field.Name)
}

func TestMessageByNumberSynthesisesUnknown(t *testing.T) {
	p, err := Builtin()
	require.NoError(t, err)

	require.Equal(t, "record", p.MessageByNumber(20).Name)

	// documented only by name in mesg_num
	caps := p.MessageByNumber(1)
	require.True(t, caps.Unknown)
	require.Equal(t, "capabilities", caps.Name)

	unknown := p.MessageByNumber(65000)
	require.True(t, unknown.Unknown)
	require.Equal(t, "unknown_65000", unknown.Name)
	require.Same(t, unknown, p.MessageByNumber(65000))

	uint8Base, ok := BaseTypeByName("uint8")
	require.True(t, ok)
	f := p.FieldOf(unknown, 7, uint8Base)
	require.Equal(t, "unknown_7", f.Name)
	require.True(t, f.Unknown)
	require.Same(t, f, p.FieldOf(unknown, 7, uint8Base))
}

func TestBuildRejectsUnresolvedReferences(t *testing.T) {
	types := [][]string{
		{"mesg_num", "uint16"},
		{"", "", "file_id", "0"},
		{"file", "enum"},
		{"", "", "activity", "4"},
	}
	cases := map[string][][]string{
		"unknown field type": {
			{"file_id"},
			{"", "0", "type", "no_such_type"},
		},
		"unknown component target": {
			{"file_id"},
			{"", "0", "type", "file", "", "missing", "", "", "", "8"},
		},
		"unknown reference value": {
			{"file_id"},
			{"", "0", "type", "file"},
			{"", "1", "product", "uint16"},
			{"", "", "special", "uint16", "", "", "", "", "", "", "", "type", "nope"},
		},
		"message missing from mesg_num": {
			{"record"},
			{"", "0", "heart_rate", "uint8"},
		},
	}
	for name, messages := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Build(types, messages)
			require.ErrorIs(t, err, ErrUnresolved)
		})
	}
}

func TestArtifactSaveAndRead(t *testing.T) {
	p, err := Builtin()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "profile.cbor")
	require.NoError(t, p.Save(path))

	q, err := Read(path)
	require.NoError(t, err)
	require.Equal(t, len(p.Messages()), len(q.Messages()))
	require.Equal(t, p.Types(), q.Types())

	event, err := q.MessageByName("event")
	require.NoError(t, err)
	data, ok := event.FieldByNumber(3)
	require.True(t, ok)
	require.Len(t, data.Subfields, len(mustField(t, p, "event", "data").Subfields))

	var buf bytes.Buffer
	_, err = q.WriteTo(&buf)
	require.NoError(t, err)
	r, err := Decode(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, "record", r.MessageByNumber(20).Name)
}

func TestReadMissingArtifact(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "absent.cbor"))
	require.True(t, errors.Is(err, ErrMissingArtifact))
}

func TestLoadSpreadsheet(t *testing.T) {
	types := [][]string{
		{"Type Name", "Base Type", "Value Name", "Value"},
		{"mesg_num", "uint16"},
		{"", "", "file_id", "0"},
		{"file", "enum"},
		{"", "", "activity", "4"},
		{"manufacturer", "uint16"},
		{"", "", "garmin", "1"},
	}
	messages := [][]string{
		{"Message Name", "Field Def #", "Field Name", "Field Type"},
		{"COMMON MESSAGES"},
		{"file_id"},
		{"", "0", "type", "file"},
		{"", "1", "manufacturer", "manufacturer"},
		{"", "4", "time_created", "uint32"},
	}

	f := excelize.NewFile()
	_, err := f.NewSheet(TypesSheet)
	require.NoError(t, err)
	_, err = f.NewSheet(MessagesSheet)
	require.NoError(t, err)
	writeRows := func(sheet string, rows [][]string) {
		for i, r := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			values := make([]interface{}, len(r))
			for j := range r {
				values[j] = r[j]
			}
			require.NoError(t, f.SetSheetRow(sheet, cell, &values))
		}
	}
	writeRows(TypesSheet, types)
	writeRows(MessagesSheet, messages)
	path := filepath.Join(t.TempDir(), "Profile.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	p, err := Load(path)
	require.NoError(t, err)
	m, err := p.MessageByName("file_id")
	require.NoError(t, err)
	require.Len(t, m.Fields, 3)
	mf, ok := m.FieldByName("manufacturer")
	require.True(t, ok)
	name, ok := mf.Type.ValueName(1)
	require.True(t, ok)
	require.Equal(t, "garmin", name)
}

func TestBaseTypeParse(t *testing.T) {
	le := binary.LittleEndian

	s16, ok := BaseTypeByCode(CodeSint16)
	require.True(t, ok)
	vals, err := s16.Parse([]byte{0xFE, 0xFF, 0xFF, 0x7F}, le)
	require.NoError(t, err)
	require.Equal(t, []any{int64(-2), Invalid{Raw: int64(0x7FFF)}}, vals)

	u8z, ok := BaseTypeByCode(CodeUint8z)
	require.True(t, ok)
	vals, err = u8z.Parse([]byte{0, 5}, le)
	require.NoError(t, err)
	require.Equal(t, []any{Invalid{Raw: uint64(0)}, uint64(5)}, vals)

	u16be, ok := BaseTypeByCode(CodeUint16)
	require.True(t, ok)
	vals, err = u16be.Parse([]byte{0x01, 0x02}, binary.BigEndian)
	require.NoError(t, err)
	require.Equal(t, []any{uint64(0x0102)}, vals)

	str, ok := BaseTypeByCode(CodeString)
	require.True(t, ok)
	vals, err = str.Parse([]byte("edge\x00\x00"), le)
	require.NoError(t, err)
	require.Equal(t, []any{"edge"}, vals)
	vals, err = str.Parse([]byte{0, 0}, le)
	require.NoError(t, err)
	require.Equal(t, []any{Invalid{Raw: ""}}, vals)

	byt, ok := BaseTypeByCode(CodeByte)
	require.True(t, ok)
	vals, err = byt.Parse([]byte{0xFF, 0xFF}, le)
	require.NoError(t, err)
	require.Equal(t, []any{Invalid{Raw: uint64(0xFF)}, Invalid{Raw: uint64(0xFF)}}, vals)

	f32, ok := BaseTypeByCode(CodeFloat32)
	require.True(t, ok)
	vals, err = f32.Parse([]byte{0, 0, 0xC0, 0x3F}, le)
	require.NoError(t, err)
	require.Equal(t, []any{1.5}, vals)

	u32, ok := BaseTypeByCode(CodeUint32)
	require.True(t, ok)
	_, err = u32.Parse([]byte{1, 2, 3}, le)
	require.Error(t, err)

	// endian-ability bit left clear
	legacy, ok := BaseTypeByCode(0x04)
	require.True(t, ok)
	require.Equal(t, "uint16", legacy.Name)
	_, ok = BaseTypeByCode(0x55)
	require.False(t, ok)
}

func mustField(t *testing.T, p *Profile, message, field string) *Field {
	t.Helper()
	m, err := p.MessageByName(message)
	require.NoError(t, err)
	f, ok := m.FieldByName(field)
	require.True(t, ok)
	return f
}
