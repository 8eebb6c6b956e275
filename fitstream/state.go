package fitstream

import (
	"fmt"
	"maps"
	"slices"

	"github.com/lucasjlepore/fitcodec/profile"
)

// State is the decoder state threaded through a token stream. Tokens read
// at an offset depend only on the bytes there and the state before them,
// which is what lets the repair search restart reading from a clone.
type State struct {
	Profile *profile.Profile

	// Timestamp is the last absolute timestamp seen, in FIT seconds.
	Timestamp    uint32
	HasTimestamp bool
	// MaxDeltaT bounds the forward gap between successive timestamps.
	// Zero disables the check.
	MaxDeltaT uint32

	Definitions map[byte]*Definition
	Developers  []DeveloperDataID
	DevFields   []*DeveloperField

	accumulators map[accumulatorKey]*accumulator
}

// DeveloperDataID registers a developer data index.
type DeveloperDataID struct {
	Index         byte
	ApplicationID []byte
	Manufacturer  uint16
}

// DeveloperField is a field_description registered by the stream.
type DeveloperField struct {
	DeveloperIndex byte
	Number         byte
	Name           string
	Base           *profile.BaseType
	Scale          float64
	Offset         float64
	Units          string
	NativeMessage  uint16
	NativeField    byte
	HasNative      bool
	Undocumented   bool
}

type accumulatorKey struct {
	message uint16
	field   byte
}

type accumulator struct {
	bits  int
	last  uint64
	total uint64
}

func bitMask(bits int) uint64 {
	if bits >= 64 {
		return ^uint64(0)
	}
	return 1<<uint(bits) - 1
}

func (a *accumulator) add(raw uint64) uint64 {
	mask := bitMask(a.bits)
	a.total += (raw - a.last) & mask
	a.last = raw & mask
	return a.total
}

// NewState returns an empty state decoding with p.
func NewState(p *profile.Profile) *State {
	return &State{
		Profile:      p,
		Definitions:  make(map[byte]*Definition),
		accumulators: make(map[accumulatorKey]*accumulator),
	}
}

// Clone returns a copy that evolves independently of s. Definitions and
// developer fields are immutable once registered and are shared.
func (s *State) Clone() *State {
	c := *s
	c.Definitions = maps.Clone(s.Definitions)
	c.Developers = slices.Clip(s.Developers)
	c.DevFields = slices.Clip(s.DevFields)
	c.accumulators = make(map[accumulatorKey]*accumulator, len(s.accumulators))
	for k, a := range s.accumulators {
		dup := *a
		c.accumulators[k] = &dup
	}
	return &c
}

func (s *State) setTimestamp(ts uint32) error {
	if s.HasTimestamp && s.MaxDeltaT > 0 {
		if ts < s.Timestamp {
			return fmt.Errorf("%w: timestamp %d precedes %d", ErrValue, ts, s.Timestamp)
		}
		if ts-s.Timestamp > s.MaxDeltaT {
			return fmt.Errorf("%w: timestamp %d is %ds after %d, limit %ds", ErrValue, ts, ts-s.Timestamp, s.Timestamp, s.MaxDeltaT)
		}
	}
	s.Timestamp = ts
	s.HasTimestamp = true
	return nil
}

// compressedTimestamp expands the 5-bit offset of a compressed timestamp
// header against the current timestamp.
func (s *State) compressedTimestamp(offset byte) (uint32, error) {
	if !s.HasTimestamp {
		return 0, fmt.Errorf("%w: compressed timestamp before any absolute timestamp", ErrValue)
	}
	offset &= compressedTimeMask
	prev := s.Timestamp
	return prev + uint32((offset-byte(prev&compressedTimeMask))&compressedTimeMask), nil
}

// accumulate folds raw into the running total for (message, field). The
// first value seen seeds the total.
func (s *State) accumulate(message uint16, field byte, raw uint64, bits int) uint64 {
	key := accumulatorKey{message: message, field: field}
	a, ok := s.accumulators[key]
	if !ok {
		mask := bitMask(bits)
		s.accumulators[key] = &accumulator{bits: bits, last: raw & mask, total: raw}
		return raw
	}
	return a.add(raw)
}

// resetAccumulator restarts an existing total at an explicitly recorded
// value of its target field.
func (s *State) resetAccumulator(message uint16, field byte, v uint64) {
	a, ok := s.accumulators[accumulatorKey{message: message, field: field}]
	if !ok {
		return
	}
	a.total = v
	a.last = v & bitMask(a.bits)
}

// developerField returns the latest description of (index, number).
func (s *State) developerField(index, number byte) (*DeveloperField, bool) {
	for i := len(s.DevFields) - 1; i >= 0; i-- {
		f := s.DevFields[i]
		if f.DeveloperIndex == index && f.Number == number {
			return f, true
		}
	}
	return nil, false
}
