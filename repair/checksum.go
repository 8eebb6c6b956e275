package repair

import (
	"encoding/binary"
	"fmt"

	"github.com/lucasjlepore/fitcodec/fitstream"
)

// hasChecksumSlot walks the records to decide whether the last two bytes
// are a checksum. A walk ending exactly at the end of data means the
// checksum is missing; one ending two bytes short, or failing, means the
// slot is there.
func hasChecksumSlot(data []byte, o Options) bool {
	h, err := fitstream.ReadHeader(data)
	if err != nil {
		return true
	}
	opts := o.streamOptions()
	opts.Force, opts.MaxDeltaT = false, 0
	state := opts.NewState()
	pos := int(h.Size)
	for pos < len(data) {
		if pos == len(data)-fitstream.ChecksumSize {
			return true
		}
		tok, err := fitstream.ReadToken(data, pos, state, opts)
		if err != nil {
			return true
		}
		pos += tok.Len()
	}
	return pos != len(data)
}

// fixChecksum writes the CRC of everything before the last two bytes into
// them, appending a slot first when the data has none.
func fixChecksum(data []byte, o Options) ([]byte, bool, error) {
	appended := false
	if !hasChecksumSlot(data, o) {
		data = append(data, 0, 0)
		appended = true
	}
	if len(data) < fitstream.ChecksumSize {
		return nil, false, fmt.Errorf("%w: %d bytes cannot hold a checksum", fitstream.ErrFraming, len(data))
	}
	end := len(data) - fitstream.ChecksumSize
	binary.LittleEndian.PutUint16(data[end:], fitstream.CRC(data[:end]))
	return data, appended, nil
}
