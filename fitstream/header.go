package fitstream

import (
	"encoding/binary"
	"fmt"
)

// Header layout constants.
const (
	HeaderSize      = 14
	ShortHeaderSize = 12
	Signature       = ".FIT"

	DefaultProtocolVersion = 0x10
	DefaultProfileVersion  = 0x07de
)

// Header is the file header preceding the records.
type Header struct {
	Size            byte
	ProtocolVersion byte
	ProfileVersion  uint16
	DataSize        uint32
	DataType        string
	CRC             uint16
}

// NewHeader returns a header describing dataSize bytes of records.
func NewHeader(size, protocol byte, profileVersion uint16, dataSize uint32) Header {
	return Header{
		Size:            size,
		ProtocolVersion: protocol,
		ProfileVersion:  profileVersion,
		DataSize:        dataSize,
		DataType:        Signature,
	}
}

// ReadHeader decodes the header at the start of data. The header CRC is
// not checked; see CheckCRC.
func ReadHeader(data []byte) (Header, error) {
	if len(data) < ShortHeaderSize {
		return Header{}, fmt.Errorf("%w: fit header truncated: %d bytes", ErrFraming, len(data))
	}
	size := data[0]
	if size != ShortHeaderSize && size != HeaderSize {
		return Header{}, fmt.Errorf("%w: invalid fit header size: %d", ErrFormat, size)
	}
	if len(data) < int(size) {
		return Header{}, fmt.Errorf("%w: truncated fit header: need %d bytes", ErrFraming, size)
	}
	h := Header{
		Size:            size,
		ProtocolVersion: data[1],
		ProfileVersion:  binary.LittleEndian.Uint16(data[2:4]),
		DataSize:        binary.LittleEndian.Uint32(data[4:8]),
		DataType:        string(data[8:12]),
	}
	if h.DataType != Signature {
		return Header{}, fmt.Errorf("%w: invalid fit data type in header: %q", ErrFormat, h.DataType)
	}
	if size == HeaderSize {
		h.CRC = binary.LittleEndian.Uint16(data[12:14])
	}
	return h, nil
}

// HasCRC reports whether the header carries a computed CRC. A 14 byte
// header may store zero to say the CRC was not computed.
func (h Header) HasCRC() bool {
	return h.Size == HeaderSize && h.CRC != 0
}

// CheckCRC verifies the header CRC against the first 12 bytes of data.
func (h Header) CheckCRC(data []byte) error {
	if !h.HasCRC() {
		return nil
	}
	if computed := CRC(data[:ShortHeaderSize]); computed != h.CRC {
		return fmt.Errorf("%w: header crc 0x%04X, computed 0x%04X", ErrFraming, h.CRC, computed)
	}
	return nil
}

// Bytes encodes the header. With withCRC the CRC of a 14 byte header is
// recomputed, otherwise h.CRC is written as is.
func (h Header) Bytes(withCRC bool) []byte {
	out := make([]byte, h.Size)
	out[0] = h.Size
	out[1] = h.ProtocolVersion
	binary.LittleEndian.PutUint16(out[2:4], h.ProfileVersion)
	binary.LittleEndian.PutUint32(out[4:8], h.DataSize)
	copy(out[8:12], Signature)
	if h.Size == HeaderSize {
		crc := h.CRC
		if withCRC {
			crc = CRC(out[:ShortHeaderSize])
		}
		binary.LittleEndian.PutUint16(out[12:14], crc)
	}
	return out
}
