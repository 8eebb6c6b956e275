package repair

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/lucasjlepore/fitcodec/fitstream"
	"github.com/lucasjlepore/fitcodec/profile"
)

type timeEdit struct {
	span  fitstream.FieldSpan
	index int
	value uint32
	order binary.ByteOrder
}

type compressedEdit struct {
	offset int
	value  uint32
}

// setStart shifts every absolute timestamp in data so that the first
// record timestamp equals target. Compressed timestamp headers are
// rewritten so their expansion follows the shift. It returns the applied
// delta in seconds.
func setStart(data []byte, target time.Time, o Options) (int64, error) {
	want, err := fitstream.FITTime(target)
	if err != nil {
		return 0, configError("start time: %v", err)
	}
	h, err := fitstream.ReadHeader(data)
	if err != nil {
		return 0, err
	}
	if len(data) < int(h.Size)+fitstream.ChecksumSize {
		return 0, fmt.Errorf("%w: no records to shift", fitstream.ErrFraming)
	}

	opts := o.streamOptions()
	opts.Force, opts.MaxDeltaT = false, 0
	state := opts.NewState()
	records := data[:len(data)-fitstream.ChecksumSize]

	var (
		edits      []timeEdit
		compressed []compressedEdit
		first      uint32
		found      bool
	)
	for pos := int(h.Size); pos < len(records); {
		tok, err := fitstream.ReadToken(records, pos, state, opts)
		if err != nil {
			return 0, fmt.Errorf("walk records for start time: %w", err)
		}
		pos += tok.Len()
		msg, ok := tok.(*fitstream.DataMessage)
		if !ok {
			continue
		}
		if msg.Compressed {
			ts, _ := msg.Record().RawTimestamp()
			compressed = append(compressed, compressedEdit{offset: msg.Offset(), value: ts})
		}
		for _, fs := range msg.Fields() {
			if !isTimeField(fs.Def) {
				continue
			}
			vals, err := fs.Def.Base.Parse(data[fs.Start:fs.End], msg.Definition.Order)
			if err != nil {
				continue
			}
			for i, v := range vals {
				u, ok := v.(uint64)
				if !ok || u < fitstream.MinAbsoluteTime {
					continue
				}
				if !found && fs.Def.Number == profile.TimestampField {
					first, found = uint32(u), true
				}
				edits = append(edits, timeEdit{span: fs, index: i, value: uint32(u), order: msg.Definition.Order})
			}
		}
	}
	if !found {
		return 0, fmt.Errorf("%w: no absolute timestamp to shift", fitstream.ErrValue)
	}

	delta := int64(want) - int64(first)
	for _, e := range edits {
		v := int64(e.value) + delta
		if v < 0 || v > math.MaxUint32 {
			return 0, fmt.Errorf("%w: shifted timestamp %d out of range", fitstream.ErrValue, v)
		}
		size := e.span.Def.Base.Size
		at := e.span.Start + e.index*size
		if err := e.span.Def.Base.Encode(data[at:at+size], uint64(v), e.order); err != nil {
			return 0, err
		}
	}
	for _, c := range compressed {
		shifted := uint32(int64(c.value) + delta)
		data[c.offset] = data[c.offset]&^0x1F | byte(shifted&0x1F)
	}
	return delta, nil
}

// isTimeField reports whether a field holds date_time seconds that move
// with the start time.
func isTimeField(fd *fitstream.FieldDef) bool {
	if fd.Opaque || fd.Base.Float || fd.Base.Size != 4 {
		return false
	}
	if fd.Number == profile.TimestampField {
		return true
	}
	return fd.Field.Type != nil && fd.Field.Type.Kind == profile.KindTime
}
