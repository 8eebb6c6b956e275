package repair

import (
	"encoding/binary"
	"fmt"

	"github.com/lucasjlepore/fitcodec/fitstream"
)

// addHeader prepends a fresh header to a payload of records followed by a
// checksum.
func addHeader(payload []byte, o Options) []byte {
	size := byte(fitstream.HeaderSize)
	if o.HeaderSize != 0 {
		size = byte(o.HeaderSize)
	}
	protocol := byte(fitstream.DefaultProtocolVersion)
	if o.ProtocolVersion != 0 {
		protocol = byte(o.ProtocolVersion)
	}
	profileVersion := uint16(fitstream.DefaultProfileVersion)
	if o.ProfileVersion != 0 {
		profileVersion = uint16(o.ProfileVersion)
	}
	dataSize := max(len(payload)-fitstream.ChecksumSize, 0)
	h := fitstream.NewHeader(size, protocol, profileVersion, uint32(dataSize))
	return append(h.Bytes(true), payload...)
}

// fixHeader rewrites the header in place: signature, data size and CRC.
// The header size comes from the first byte unless overridden, in which
// case the header is rebuilt at the new size. A stored CRC of zero stays
// zero unless the header grows to 14 bytes.
func fixHeader(data []byte, o Options) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: no header to fix", fitstream.ErrFraming)
	}
	oldSize := int(data[0])
	if oldSize != fitstream.ShortHeaderSize && oldSize != fitstream.HeaderSize {
		if o.HeaderSize == 0 {
			return nil, fmt.Errorf("%w: cannot fix header of size %d", fitstream.ErrFormat, oldSize)
		}
		oldSize = o.HeaderSize
	}
	if len(data) < oldSize {
		return nil, fmt.Errorf("%w: %d bytes cannot hold a %d byte header", fitstream.ErrFraming, len(data), oldSize)
	}
	newSize := oldSize
	if o.HeaderSize != 0 {
		newSize = o.HeaderSize
	}

	protocol := data[1]
	if o.ProtocolVersion != 0 {
		protocol = byte(o.ProtocolVersion)
	}
	profileVersion := binary.LittleEndian.Uint16(data[2:4])
	if o.ProfileVersion != 0 {
		profileVersion = uint16(o.ProfileVersion)
	}
	var storedCRC uint16
	if oldSize == fitstream.HeaderSize {
		storedCRC = binary.LittleEndian.Uint16(data[12:14])
	}

	body := data[oldSize:]
	dataSize := max(len(body)-fitstream.ChecksumSize, 0)
	h := fitstream.NewHeader(byte(newSize), protocol, profileVersion, uint32(dataSize))
	withCRC := storedCRC != 0 || (newSize == fitstream.HeaderSize && oldSize != fitstream.HeaderSize)
	hdr := h.Bytes(withCRC)

	if newSize == oldSize {
		copy(data, hdr)
		return data, nil
	}
	out := make([]byte, 0, len(hdr)+len(body))
	out = append(out, hdr...)
	return append(out, body...), nil
}
