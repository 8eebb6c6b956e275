package fitstream

import (
	"encoding/binary"
	"fmt"
)

// ReadToken reads the definition or data token starting at offset. data
// ends where the record area ends; offsets stay absolute so callers pass
// the file sliced before its checksum. The state is updated by the token;
// on error it may be partially updated and should be discarded.
func ReadToken(data []byte, offset int, state *State, opts Options) (Token, error) {
	if offset >= len(data) {
		return nil, parseError(offset, KindData, fmt.Errorf("%w: no record at offset %d", ErrFraming, offset))
	}
	hdr := data[offset]
	switch {
	case hdr&compressedHeaderMask != 0:
		local := (hdr & compressedLocalMask) >> 5
		def, ok := state.Definitions[local]
		if !ok {
			return nil, parseError(offset, KindCompressedTimestamp, fmt.Errorf("%w: compressed timestamp message for undefined local type %d", ErrFraming, local))
		}
		ts, err := state.compressedTimestamp(hdr & compressedTimeMask)
		if err != nil {
			return nil, parseError(offset, KindCompressedTimestamp, err)
		}
		return readData(data, offset, def, true, ts, state, opts)
	case hdr&definitionHeaderMask != 0:
		return readDefinition(data, offset, hdr, state, opts)
	default:
		local := hdr & localMesgNumMask
		def, ok := state.Definitions[local]
		if !ok {
			return nil, parseError(offset, KindData, fmt.Errorf("%w: data message for undefined local type %d", ErrFraming, local))
		}
		return readData(data, offset, def, false, 0, state, opts)
	}
}

func checkLength(offset, length int, opts Options, kind Kind) error {
	if opts.MaxRecordLen > 0 && length > opts.MaxRecordLen {
		return parseError(offset, kind, fmt.Errorf("%w: %s of %d bytes exceeds limit of %d", ErrFraming, kind, length, opts.MaxRecordLen))
	}
	return nil
}

func readDefinition(data []byte, offset int, hdr byte, state *State, opts Options) (Token, error) {
	overflow := func(what string) error {
		return parseError(offset, KindDefinition, fmt.Errorf("%w: definition %s overflows remaining %d bytes", ErrFraming, what, len(data)-offset))
	}
	if offset+6 > len(data) {
		return nil, overflow("header")
	}
	var order binary.ByteOrder
	switch arch := data[offset+2]; arch {
	case 0:
		order = binary.LittleEndian
	case 1:
		order = binary.BigEndian
	default:
		return nil, parseError(offset, KindDefinition, fmt.Errorf("%w: invalid architecture %d", ErrFormat, arch))
	}
	global := order.Uint16(data[offset+3 : offset+5])
	n := int(data[offset+5])
	pos := offset + 6
	if pos+3*n > len(data) {
		return nil, overflow("fields")
	}
	fields := make([]rawFieldDef, n)
	for i := range fields {
		fields[i] = rawFieldDef{number: data[pos], size: data[pos+1], code: data[pos+2]}
		pos += 3
	}
	var devs []rawDevFieldDef
	if hdr&devDataMask != 0 {
		if pos+1 > len(data) {
			return nil, overflow("developer field count")
		}
		nd := int(data[pos])
		pos++
		if pos+3*nd > len(data) {
			return nil, overflow("developer fields")
		}
		devs = make([]rawDevFieldDef, nd)
		for i := range devs {
			devs[i] = rawDevFieldDef{number: data[pos], size: data[pos+1], index: data[pos+2]}
			pos += 3
		}
	}
	if err := checkLength(offset, pos-offset, opts, KindDefinition); err != nil {
		return nil, err
	}

	local := hdr & localMesgNumMask
	def, err := compileDefinition(local, order, global, fields, devs, state, opts)
	if err != nil {
		return nil, parseError(offset, KindDefinition, err)
	}
	state.Definitions[local] = def
	return &DefinitionMessage{span: span{offset: offset, raw: data[offset:pos]}, Definition: def}, nil
}

func readData(data []byte, offset int, def *Definition, compressed bool, ts uint32, state *State, opts Options) (Token, error) {
	kind := KindData
	if compressed {
		kind = KindCompressedTimestamp
	}
	length := 1 + def.Size
	if offset+length > len(data) {
		return nil, parseError(offset, kind, fmt.Errorf("%w: %s message of %d bytes overflows remaining %d bytes", ErrFraming, def.Message.Name, length, len(data)-offset))
	}
	if err := checkLength(offset, length, opts, kind); err != nil {
		return nil, err
	}
	rec, err := newDataRecord(def, data[offset+1:offset+length], offset, compressed, ts, state, opts)
	if err != nil {
		return nil, parseError(offset, kind, err)
	}
	tok := &DataMessage{
		span:       span{offset: offset, raw: data[offset : offset+length]},
		kind:       rec.Kind,
		Definition: def,
		Compressed: compressed,
		record:     rec,
	}
	if opts.Force {
		if err := rec.Force(); err != nil {
			return nil, parseError(offset, rec.Kind, err)
		}
	}
	return tok, nil
}
