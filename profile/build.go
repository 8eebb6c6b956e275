package profile

import (
	"fmt"
	"strconv"
	"strings"
)

// Column layout of the vendor spreadsheet.
const (
	colTypeName  = 0
	colBaseType  = 1
	colValueName = 2
	colValue     = 3

	colMessageName = 0
	colFieldNumber = 1
	colFieldName   = 2
	colFieldType   = 3
	colArray       = 4
	colComponents  = 5
	colScale       = 6
	colOffset      = 7
	colUnits       = 8
	colBits        = 9
	colAccumulate  = 10
	colRefName     = 11
	colRefValue    = 12
)

type row []string

func (r row) cell(i int) string {
	if i >= len(r) {
		return ""
	}
	return strings.TrimSpace(r[i])
}

func (r row) empty() bool {
	for i := range r {
		if r.cell(i) != "" {
			return false
		}
	}
	return true
}

// Build compiles rows of the Types and Messages sheets into a profile.
// The first row of each sheet may be the column header.
func Build(types, messages [][]string) (*Profile, error) {
	a, err := buildArtifact(types, messages)
	if err != nil {
		return nil, err
	}
	return resolve(a)
}

type pendingField struct {
	row  row
	subs []row
}

type pendingMessage struct {
	name   string
	fields []*pendingField
}

func buildArtifact(typeRows, messageRows [][]string) (*artifact, error) {
	a := &artifact{Format: ArtifactFormat}
	typeIDs := make(map[string]int)
	typeValues := make(map[string]map[string]int64)

	for _, b := range baseTypes {
		typeIDs[b.Name] = len(a.Types)
		a.Types = append(a.Types, artifactType{ID: len(a.Types), Name: b.Name, Base: b.Code})
	}

	current := ""
	for i, raw := range typeRows {
		r := row(raw)
		if r.empty() || (i == 0 && r.cell(colTypeName) == "Type Name") {
			continue
		}
		if name := r.cell(colTypeName); name != "" {
			base, ok := BaseTypeByName(r.cell(colBaseType))
			if !ok {
				return nil, fmt.Errorf("%w: type %q has base type %q", ErrUnresolved, name, r.cell(colBaseType))
			}
			if _, dup := typeIDs[name]; dup {
				return nil, fmt.Errorf("duplicate type %q", name)
			}
			typeIDs[name] = len(a.Types)
			a.Types = append(a.Types, artifactType{ID: len(a.Types), Name: name, Base: base.Code})
			typeValues[name] = make(map[string]int64)
			current = name
			continue
		}
		if current == "" || r.cell(colValueName) == "" {
			continue
		}
		v, err := strconv.ParseInt(r.cell(colValue), 0, 64)
		if err != nil {
			return nil, fmt.Errorf("type %s value %s: %w", current, r.cell(colValueName), err)
		}
		idx := typeIDs[current]
		a.Types[idx].Values = append(a.Types[idx].Values, artifactValue{Name: r.cell(colValueName), Value: v})
		typeValues[current][r.cell(colValueName)] = v
	}

	mesgNums, ok := typeValues["mesg_num"]
	if !ok {
		return nil, fmt.Errorf("%w: types sheet has no mesg_num type", ErrUnresolved)
	}

	var pending []*pendingMessage
	var msg *pendingMessage
	var field *pendingField
	for i, raw := range messageRows {
		r := row(raw)
		if r.empty() || (i == 0 && r.cell(colMessageName) == "Message Name") {
			continue
		}
		if name := r.cell(colMessageName); name != "" {
			if !isIdentifier(name) {
				// section heading
				msg, field = nil, nil
				continue
			}
			msg = &pendingMessage{name: name}
			pending = append(pending, msg)
			field = nil
			continue
		}
		if msg == nil || r.cell(colFieldName) == "" {
			continue
		}
		if r.cell(colFieldNumber) != "" {
			field = &pendingField{row: r}
			msg.fields = append(msg.fields, field)
			continue
		}
		if field == nil {
			return nil, fmt.Errorf("%w: subfield %s.%s has no parent field", ErrUnresolved, msg.name, r.cell(colFieldName))
		}
		field.subs = append(field.subs, r)
	}

	typeID := func(name, owner string) (int, error) {
		id, ok := typeIDs[name]
		if !ok {
			return 0, fmt.Errorf("%w: %s has type %q", ErrUnresolved, owner, name)
		}
		return id, nil
	}

	for _, pm := range pending {
		num, ok := mesgNums[pm.name]
		if !ok {
			return nil, fmt.Errorf("%w: message %q is not a mesg_num value", ErrUnresolved, pm.name)
		}
		am := artifactMessage{Number: uint16(num), Name: pm.name}
		fieldTypes := make(map[string]string, len(pm.fields))
		for _, pf := range pm.fields {
			fieldTypes[pf.row.cell(colFieldName)] = pf.row.cell(colFieldType)
		}
		for _, pf := range pm.fields {
			r := pf.row
			owner := pm.name + "." + r.cell(colFieldName)
			n, err := strconv.ParseUint(r.cell(colFieldNumber), 10, 8)
			if err != nil {
				return nil, fmt.Errorf("%s field number: %w", owner, err)
			}
			tid, err := typeID(r.cell(colFieldType), owner)
			if err != nil {
				return nil, err
			}
			af := artifactField{
				Number: byte(n),
				Name:   r.cell(colFieldName),
				Type:   tid,
				Array:  r.cell(colArray) != "",
				Units:  r.cell(colUnits),
			}
			comps, scale, offset, accumulate, err := parseScaling(r, owner)
			if err != nil {
				return nil, err
			}
			switch len(comps) {
			case 0:
				af.Scale, af.Offset, af.Accumulate = scale, offset, accumulate
			case 1:
				// a single component shares the field's own scaling
				af.Components = comps
				af.Scale, af.Offset = comps[0].Scale, comps[0].Offset
			default:
				af.Components = comps
				af.Units = ""
			}
			for _, sr := range pf.subs {
				subOwner := owner + "/" + sr.cell(colFieldName)
				sid, err := typeID(sr.cell(colFieldType), subOwner)
				if err != nil {
					return nil, err
				}
				as := artifactSubfield{Name: sr.cell(colFieldName), Type: sid, Units: sr.cell(colUnits)}
				comps, scale, offset, _, err := parseScaling(sr, subOwner)
				if err != nil {
					return nil, err
				}
				if len(comps) > 0 {
					as.Components = comps
				} else {
					as.Scale, as.Offset = scale, offset
				}
				refs, err := parseRefs(sr, fieldTypes, typeValues, subOwner)
				if err != nil {
					return nil, err
				}
				as.Refs = refs
				af.Subfields = append(af.Subfields, as)
			}
			am.Fields = append(am.Fields, af)
		}
		a.Messages = append(a.Messages, am)
	}
	return a, nil
}

// parseScaling reads the components, scale, offset, units, bits and
// accumulate columns. Without components the scale/offset apply to the
// field itself; with components they are per-component lists.
func parseScaling(r row, owner string) ([]artifactComponent, float64, float64, bool, error) {
	scales, err := floatList(r.cell(colScale))
	if err != nil {
		return nil, 0, 0, false, fmt.Errorf("%s scale: %w", owner, err)
	}
	offsets, err := floatList(r.cell(colOffset))
	if err != nil {
		return nil, 0, 0, false, fmt.Errorf("%s offset: %w", owner, err)
	}
	accs := splitList(r.cell(colAccumulate))
	names := splitList(r.cell(colComponents))
	if len(names) == 0 {
		return nil, at(scales, 0, 0), at(offsets, 0, 0), atString(accs, 0) == "1", nil
	}
	bits := splitList(r.cell(colBits))
	if len(bits) != len(names) {
		return nil, 0, 0, false, fmt.Errorf("%s: %d components but %d bit widths", owner, len(names), len(bits))
	}
	units := splitList(r.cell(colUnits))
	comps := make([]artifactComponent, len(names))
	for i, name := range names {
		b, err := strconv.Atoi(bits[i])
		if err != nil {
			return nil, 0, 0, false, fmt.Errorf("%s component %s bits: %w", owner, name, err)
		}
		comps[i] = artifactComponent{
			Field:      name,
			Bits:       b,
			Scale:      at(scales, i, 0),
			Offset:     at(offsets, i, 0),
			Accumulate: atString(accs, i) == "1",
		}
		if len(units) == len(names) {
			comps[i].Units = units[i]
		}
	}
	return comps, 0, 0, false, nil
}

func parseRefs(r row, fieldTypes map[string]string, typeValues map[string]map[string]int64, owner string) ([]artifactRef, error) {
	names := splitList(r.cell(colRefName))
	values := splitList(r.cell(colRefValue))
	if len(names) != len(values) || len(names) == 0 {
		return nil, fmt.Errorf("%w: %s has %d reference fields and %d reference values", ErrUnresolved, owner, len(names), len(values))
	}
	refs := make([]artifactRef, len(names))
	for i := range names {
		typeName, ok := fieldTypes[names[i]]
		if !ok {
			return nil, fmt.Errorf("%w: %s refers to field %q", ErrUnresolved, owner, names[i])
		}
		code, ok := typeValues[typeName][values[i]]
		if !ok {
			// numeric reference values are allowed for plain integer types
			v, err := strconv.ParseInt(values[i], 0, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %s refers to %s value %q", ErrUnresolved, owner, typeName, values[i])
			}
			code = v
		}
		refs[i] = artifactRef{Field: names[i], Value: code}
	}
	return refs, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func floatList(s string) ([]float64, error) {
	parts := splitList(s)
	out := make([]float64, len(parts))
	for i, p := range parts {
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func at(vs []float64, i int, fallback float64) float64 {
	if len(vs) == 1 {
		return vs[0]
	}
	if i < len(vs) {
		return vs[i]
	}
	return fallback
}

func atString(vs []string, i int) string {
	if len(vs) == 1 {
		return vs[0]
	}
	if i < len(vs) {
		return vs[i]
	}
	return ""
}

func isIdentifier(s string) bool {
	for _, r := range s {
		if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return s != ""
}
