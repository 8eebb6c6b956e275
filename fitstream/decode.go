package fitstream

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/lucasjlepore/fitcodec/profile"
)

// Global numbers of the messages that extend the decoder state.
const (
	mesgFieldDescription = 206
	mesgDeveloperDataID  = 207
)

// maxComponentDepth bounds the expansion of components into fields that
// have components themselves.
const maxComponentDepth = 4

// fieldDesc is a field definition after dynamic subfield resolution.
type fieldDesc struct {
	name       string
	typ        *profile.Type
	scale      float64
	offset     float64
	units      string
	accumulate bool
	components []profile.Component
}

func (d fieldDesc) scaled() bool {
	return (d.scale != 0 && d.scale != 1) || d.offset != 0
}

// newDataRecord splits a data message body into raw values and applies
// everything that changes the decoder state: timestamps, accumulators and
// developer field registrations. Views are left for Force.
func newDataRecord(def *Definition, body []byte, offset int, compressed bool, ts uint32, state *State, opts Options) (*Record, error) {
	r := &Record{
		Kind:       KindData,
		Offset:     offset,
		Name:       def.Message.Name,
		Number:     def.Global,
		Message:    def.Message,
		Definition: def,
		raw:        make([][]any, len(def.Fields)),
		dev:        make([][]any, len(def.DevFields)),
		desc:       make([]fieldDesc, len(def.Fields)),
		warn:       opts.Warn,
		log:        opts.logger().WithFields(logrus.Fields{"message": def.Message.Name, "offset": offset}),
	}
	switch {
	case compressed:
		r.Kind = KindCompressedTimestamp
	case def.Global == mesgDeveloperDataID:
		r.Kind = KindDeveloperDataID
	case def.Global == mesgFieldDescription:
		r.Kind = KindFieldDescription
	}

	for i := range def.Fields {
		fd := &def.Fields[i]
		vals, err := fd.Base.Parse(body[fd.Offset:fd.Offset+fd.Size], def.Order)
		if err != nil {
			return nil, fmt.Errorf("%w: field %d: %v", ErrValue, fd.Number, err)
		}
		r.raw[i] = vals
	}
	for i := range def.DevFields {
		dd := &def.DevFields[i]
		raw := body[dd.Offset : dd.Offset+dd.Size]
		vals, err := dd.Desc.Base.Parse(raw, def.Order)
		if err != nil {
			byteBase, _ := profile.BaseTypeByCode(profile.CodeByte)
			vals, _ = byteBase.Parse(raw, def.Order)
		}
		r.dev[i] = vals
	}
	for i := range def.Fields {
		r.desc[i] = r.resolve(i)
	}

	if compressed {
		if err := state.setTimestamp(ts); err != nil {
			return nil, err
		}
		r.timestamp, r.hasTimestamp = ts, true
	}
	if i, ok := def.FieldIndex(profile.TimestampField); ok && !def.Fields[i].Opaque {
		if v, ok := scalarUint(r.raw[i]); ok {
			if err := state.setTimestamp(uint32(v)); err != nil {
				return nil, err
			}
			r.timestamp, r.hasTimestamp = uint32(v), true
		}
	}

	r.accumulate(state)

	switch r.Kind {
	case KindDeveloperDataID:
		r.registerDeveloper(state)
	case KindFieldDescription:
		if err := r.registerFieldDescription(state); err != nil {
			if !opts.Warn {
				return nil, err
			}
			r.log.WithError(err).Warn("ignoring field description")
		}
	}
	return r, nil
}

// resolve applies the dynamic subfield switch of field i.
func (r *Record) resolve(i int) fieldDesc {
	fd := &r.Definition.Fields[i]
	f := fd.Field
	d := fieldDesc{
		name:       f.Name,
		typ:        f.Type,
		scale:      f.Scale,
		offset:     f.Offset,
		units:      f.Units,
		accumulate: f.Accumulate,
		components: f.Components,
	}
	if fd.Opaque {
		return fieldDesc{name: f.Name}
	}
	if fd.Switch == nil {
		return d
	}
	for _, c := range fd.Switch.Cases {
		key, ok := scalarInt(r.raw[c.Key])
		if !ok || key != c.Value {
			continue
		}
		s := c.Subfield
		return fieldDesc{
			name:       s.Name,
			typ:        s.Type,
			scale:      s.Scale,
			offset:     s.Offset,
			units:      s.Units,
			components: s.Components,
		}
	}
	return d
}

func (r *Record) accumulate(state *State) {
	def := r.Definition
	for i := range def.Fields {
		fd := &def.Fields[i]
		d := &r.desc[i]
		vals := r.raw[i]
		if d.accumulate {
			totals := make([]uint64, len(vals))
			for j, v := range vals {
				if u, ok := v.(uint64); ok {
					totals[j] = state.accumulate(def.Global, fd.Number, u, fd.Base.Bits())
				}
			}
			if r.totals == nil {
				r.totals = make(map[int][]uint64)
			}
			r.totals[i] = totals
		} else if u, ok := scalarUint(vals); ok {
			state.resetAccumulator(def.Global, fd.Number, u)
		}

		if !hasAccumulated(d.components) {
			continue
		}
		bits, width, err := packBits(vals, fd.Base)
		if err != nil || width == 0 {
			continue
		}
		pos := 0
		for ci, c := range d.components {
			if pos+c.Bits > width {
				break
			}
			mask := bitMask(c.Bits)
			raw := (bits >> uint(pos)) & mask
			pos += c.Bits
			if !c.Accumulate || raw == mask {
				continue
			}
			if r.compTotals == nil {
				r.compTotals = make(map[componentKey]uint64)
			}
			r.compTotals[componentKey{field: i, component: ci}] = state.accumulate(def.Global, c.Field.Number, raw, c.Bits)
		}
	}
}

func hasAccumulated(comps []profile.Component) bool {
	for _, c := range comps {
		if c.Accumulate {
			return true
		}
	}
	return false
}

func (r *Record) registerDeveloper(state *State) {
	index, ok := r.rawUint(3)
	if !ok {
		r.log.Warn("developer_data_id without developer_data_index")
		return
	}
	d := DeveloperDataID{Index: byte(index)}
	if i, ok := r.Definition.FieldIndex(1); ok {
		for _, v := range r.raw[i] {
			if u, ok := v.(uint64); ok {
				d.ApplicationID = append(d.ApplicationID, byte(u))
			}
		}
	}
	if m, ok := r.rawUint(2); ok {
		d.Manufacturer = uint16(m)
	}
	state.Developers = append(state.Developers, d)
}

func (r *Record) registerFieldDescription(state *State) error {
	index, ok1 := r.rawUint(0)
	number, ok2 := r.rawUint(1)
	code, ok3 := r.rawUint(2)
	if !ok1 || !ok2 || !ok3 {
		return fmt.Errorf("%w: field_description at offset %d lacks index, number or base type", ErrValue, r.Offset)
	}
	base, ok := profile.BaseTypeByCode(byte(code))
	if !ok {
		return fmt.Errorf("%w: field_description at offset %d has invalid base type 0x%02X", ErrValue, r.Offset, code)
	}
	f := &DeveloperField{
		DeveloperIndex: byte(index),
		Number:         byte(number),
		Name:           r.rawString(3),
		Base:           base,
		Units:          r.rawString(8),
	}
	if f.Name == "" {
		f.Name = fmt.Sprintf("developer_%d_%d", index, number)
	}
	if s, ok := r.rawUint(6); ok {
		f.Scale = float64(s)
	}
	if i, ok := r.Definition.FieldIndex(7); ok {
		if o, ok := scalarInt(r.raw[i]); ok {
			f.Offset = float64(o)
		}
	}
	if m, ok := r.rawUint(14); ok {
		f.NativeMessage, f.HasNative = uint16(m), true
		if n, ok := r.rawUint(15); ok {
			f.NativeField = byte(n)
		}
	}
	state.DevFields = append(state.DevFields, f)
	return nil
}

func (r *Record) rawUint(number byte) (uint64, bool) {
	i, ok := r.Definition.FieldIndex(number)
	if !ok {
		return 0, false
	}
	return scalarUint(r.raw[i])
}

func (r *Record) rawString(number byte) string {
	i, ok := r.Definition.FieldIndex(number)
	if !ok || len(r.raw[i]) == 0 {
		return ""
	}
	s, _ := r.raw[i][0].(string)
	return s
}

// scalarUint returns the first element when it is a valid unsigned value.
func scalarUint(vals []any) (uint64, bool) {
	if len(vals) == 0 {
		return 0, false
	}
	u, ok := vals[0].(uint64)
	return u, ok
}

// scalarInt returns the first element when it is a valid integer.
func scalarInt(vals []any) (int64, bool) {
	if len(vals) == 0 {
		return 0, false
	}
	switch v := vals[0].(type) {
	case uint64:
		return int64(v), true
	case int64:
		return v, true
	}
	return 0, false
}

// packBits concatenates the elements of an integer field little-endian,
// first element in the lowest bits. At most 64 bits are kept.
func packBits(vals []any, base *profile.BaseType) (uint64, int, error) {
	if base.Float || base.Code == profile.CodeString {
		return 0, 0, fmt.Errorf("%w: cannot unpack components from %s", ErrValue, base.Name)
	}
	elemBits := base.Bits()
	var bits uint64
	width := 0
	valid := false
	for _, v := range vals {
		if width >= 64 {
			break
		}
		var u uint64
		switch x := v.(type) {
		case uint64:
			u, valid = x, true
		case int64:
			u, valid = uint64(x), true
		case profile.Invalid:
			switch raw := x.Raw.(type) {
			case uint64:
				u = raw
			case int64:
				u = uint64(raw)
			}
		}
		u &= bitMask(elemBits)
		bits |= u << uint(width)
		width += elemBits
	}
	if !valid {
		return 0, 0, nil
	}
	if width > 64 {
		width = 64
	}
	return bits, width, nil
}

// viewBuilder assembles the three views of a record. An explicitly
// recorded field takes precedence over a component output of the same
// name, whichever comes first.
type viewBuilder struct {
	views     [numViews]*RecordView
	component [numViews]map[string]bool
}

func newViewBuilder(capacity int) *viewBuilder {
	b := &viewBuilder{}
	for i := range b.views {
		b.views[i] = newRecordView(capacity)
		b.component[i] = make(map[string]bool)
	}
	return b
}

func (b *viewBuilder) add(v View, f Field, component bool) {
	view := b.views[v]
	if i, ok := view.index[f.Name]; ok {
		if component || !b.component[v][f.Name] {
			return
		}
		view.fields[i] = f
		delete(b.component[v], f.Name)
		return
	}
	view.index[f.Name] = len(view.fields)
	view.fields = append(view.fields, f)
	if component {
		b.component[v][f.Name] = true
	}
}

func (r *Record) decode() error {
	def := r.Definition
	b := newViewBuilder(len(def.Fields) + len(def.DevFields))
	for i := range def.Fields {
		if err := r.emitField(b, i); err != nil {
			if !r.warn {
				return fmt.Errorf("field %s: %w", r.desc[i].name, err)
			}
			r.log.WithError(err).WithField("field", r.desc[i].name).Warn("dropping undecodable field")
		}
	}
	for i := range def.DevFields {
		r.emitDevField(b, i)
	}
	r.views = b.views
	return nil
}

func (r *Record) emitField(b *viewBuilder, i int) error {
	fd := &r.Definition.Fields[i]
	d := r.desc[i]
	vals := r.raw[i]
	b.add(ViewRaw, Field{Name: d.name, Values: vals}, false)

	values, names, err := convert(d, vals, r.totals[i])
	if err != nil {
		return err
	}
	if len(values) > 0 {
		b.add(ViewValue, Field{Name: d.name, Units: d.units, Values: values}, false)
		b.add(ViewNames, Field{Name: d.name, Units: d.units, Values: names}, false)
	}
	if len(d.components) == 0 || fd.Opaque {
		return nil
	}
	bits, width, err := packBits(vals, fd.Base)
	if err != nil {
		return err
	}
	if width == 0 {
		return nil
	}
	r.expand(b, d.components, bits, width, i, 0)
	return nil
}

// expand unpacks component bit groups from bits, LSB first.
func (r *Record) expand(b *viewBuilder, comps []profile.Component, bits uint64, width, field, depth int) {
	pos := 0
	for ci, c := range comps {
		if pos+c.Bits > width {
			return
		}
		mask := bitMask(c.Bits)
		raw := (bits >> uint(pos)) & mask
		pos += c.Bits
		if raw == mask {
			continue
		}
		acc := raw
		if depth == 0 && c.Accumulate {
			if total, ok := r.compTotals[componentKey{field: field, component: ci}]; ok {
				acc = total
			}
		}
		target := c.Field
		units := c.Units
		if units == "" {
			units = target.Units
		}
		var value any = acc
		if c.Scaled() {
			value = profile.Apply(float64(acc), c.Scale, c.Offset)
		}
		name := value
		if !c.Scaled() {
			name = nameOf(target.Type, acc)
		}
		b.add(ViewRaw, Field{Name: target.Name, Values: []any{raw}}, true)
		b.add(ViewValue, Field{Name: target.Name, Units: units, Values: []any{value}}, true)
		b.add(ViewNames, Field{Name: target.Name, Units: units, Values: []any{name}}, true)

		if len(target.Components) > 0 && depth+1 < maxComponentDepth {
			v := float64(acc)
			if c.Scaled() {
				v = profile.Apply(v, c.Scale, c.Offset)
			}
			traw := uint64(math.Round(profile.Unapply(v, target.Scale, target.Offset)))
			r.expand(b, target.Components, traw, 64, field, depth+1)
		}
	}
}

func (r *Record) emitDevField(b *viewBuilder, i int) {
	desc := r.Definition.DevFields[i].Desc
	vals := r.dev[i]
	d := fieldDesc{name: desc.Name, scale: desc.Scale, offset: desc.Offset, units: desc.Units}
	b.add(ViewRaw, Field{Name: d.name, Values: vals}, false)
	values, names, err := convert(d, vals, nil)
	if err != nil {
		r.log.WithError(err).WithField("field", d.name).Warn("dropping undecodable developer field")
		return
	}
	if len(values) > 0 {
		b.add(ViewValue, Field{Name: d.name, Units: d.units, Values: values}, false)
		b.add(ViewNames, Field{Name: d.name, Units: d.units, Values: names}, false)
	}
}

// convert produces the value and names view elements of a field. Invalid
// elements are dropped; accumulated totals replace raw values.
func convert(d fieldDesc, vals []any, totals []uint64) ([]any, []any, error) {
	var values, names []any
	for j, v := range vals {
		if _, bad := v.(profile.Invalid); bad {
			continue
		}
		if j < len(totals) {
			v = totals[j]
		}
		if d.scaled() {
			f, ok := toFloat(v)
			if !ok {
				return nil, nil, fmt.Errorf("%w: cannot scale %T value", ErrValue, v)
			}
			f = profile.Apply(f, d.scale, d.offset)
			values = append(values, f)
			names = append(names, f)
			continue
		}
		if d.typ != nil && d.typ.Kind == profile.KindTime {
			if _, ok := v.(uint64); !ok {
				return nil, nil, fmt.Errorf("%w: %s value is %T", ErrValue, d.typ.Name, v)
			}
		}
		values = append(values, v)
		names = append(names, nameOf(d.typ, v))
	}
	return values, names, nil
}

// nameOf presents v in the names view of type t.
func nameOf(t *profile.Type, v any) any {
	if t == nil {
		return v
	}
	switch t.Kind {
	case profile.KindEnum:
		n, ok := toInt(v)
		if !ok {
			return v
		}
		if name, ok := t.ValueName(n); ok {
			return name
		}
		return nil
	case profile.KindTime:
		if u, ok := v.(uint64); ok && u >= MinAbsoluteTime {
			return Time(uint32(u))
		}
	}
	return v
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case uint64:
		return float64(x), true
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

func toInt(v any) (int64, bool) {
	switch x := v.(type) {
	case uint64:
		return int64(x), true
	case int64:
		return x, true
	}
	return 0, false
}
