package fitstream

import (
	"encoding/binary"

	"github.com/tormoder/fit/dyncrc16"
)

// ChecksumSize is the width of the trailing file checksum.
const ChecksumSize = 2

// CRC computes the FIT CRC-16 of data.
func CRC(data []byte) uint16 {
	return dyncrc16.Checksum(data)
}

// StoredChecksum returns the checksum in the last two bytes of data.
func StoredChecksum(data []byte) (uint16, bool) {
	if len(data) < ChecksumSize {
		return 0, false
	}
	return binary.LittleEndian.Uint16(data[len(data)-ChecksumSize:]), true
}

// ChecksumOK reports whether the last two bytes of data hold the CRC of
// everything before them.
func ChecksumOK(data []byte) bool {
	stored, ok := StoredChecksum(data)
	if !ok {
		return false
	}
	return stored == CRC(data[:len(data)-ChecksumSize])
}
