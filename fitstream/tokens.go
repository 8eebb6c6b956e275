// Package fitstream reads FIT files as a stream of tokens (header,
// definition messages, data messages and checksum) and decodes data
// messages into records with raw, value and names views.
package fitstream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

type phase uint8

const (
	phaseHeader phase = iota
	phaseRecords
	phaseChecksum
	phaseDone
)

// Tokens reads a FIT file token by token: the header, definition and data
// messages in file order, then the checksum.
type Tokens struct {
	data   []byte
	opts   Options
	state  *State
	offset int
	phase  phase
	header Header
	err    error
}

// NewTokens starts reading data.
func NewTokens(data []byte, opts Options) *Tokens {
	return &Tokens{data: data, opts: opts, state: opts.NewState()}
}

// State exposes the decoder state reached so far.
func (t *Tokens) State() *State {
	return t.state
}

// Offset is where the next token starts.
func (t *Tokens) Offset() int {
	return t.offset
}

// Header returns the file header once it has been read.
func (t *Tokens) Header() Header {
	return t.header
}

// Next returns the next token, or io.EOF after the checksum. After an
// error every call returns the same error.
func (t *Tokens) Next() (Token, error) {
	if t.err != nil {
		return nil, t.err
	}
	tok, err := t.next()
	if err != nil {
		t.err = err
		return nil, err
	}
	return tok, nil
}

func (t *Tokens) next() (Token, error) {
	switch t.phase {
	case phaseHeader:
		return t.readHeader()
	case phaseRecords:
		remaining := len(t.data) - t.offset
		switch {
		case remaining == ChecksumSize:
			t.phase = phaseChecksum
			return t.readChecksum()
		case remaining < ChecksumSize:
			return nil, parseError(t.offset, KindChecksum, fmt.Errorf("%w: %d bytes left where checksum expected", ErrFraming, remaining))
		}
		tok, err := ReadToken(t.data[:len(t.data)-ChecksumSize], t.offset, t.state, t.opts)
		if err != nil {
			return nil, err
		}
		t.offset += tok.Len()
		return tok, nil
	case phaseChecksum:
		return t.readChecksum()
	default:
		return nil, io.EOF
	}
}

func (t *Tokens) readHeader() (Token, error) {
	h, err := ReadHeader(t.data)
	if err != nil {
		return nil, parseError(0, KindFileHeader, err)
	}
	if !t.opts.IgnoreChecksums {
		if err := h.CheckCRC(t.data); err != nil {
			return nil, parseError(0, KindFileHeader, err)
		}
	}
	size := int(h.Size)
	if len(t.data) < size+ChecksumSize {
		return nil, parseError(0, KindFileHeader, fmt.Errorf("%w: %d bytes cannot hold header and checksum", ErrFraming, len(t.data)))
	}
	if t.opts.Strict {
		if want := len(t.data) - size - ChecksumSize; int(h.DataSize) != want {
			return nil, parseError(0, KindFileHeader, fmt.Errorf("%w: header data size %d, file holds %d", ErrFormat, h.DataSize, want))
		}
	}
	t.header = h
	t.offset = size
	t.phase = phaseRecords
	return &FileHeader{span: span{offset: 0, raw: t.data[:size]}, Header: h}, nil
}

func (t *Tokens) readChecksum() (Token, error) {
	end := len(t.data) - ChecksumSize
	stored := binary.LittleEndian.Uint16(t.data[end:])
	if computed := CRC(t.data[:end]); computed != stored && !t.opts.IgnoreChecksums {
		return nil, parseError(end, KindChecksum, fmt.Errorf("%w: checksum 0x%04X, computed 0x%04X", ErrFraming, stored, computed))
	}
	t.phase = phaseDone
	t.offset = len(t.data)
	return newChecksum(t.data, end), nil
}

// All reads every remaining token.
func (t *Tokens) All() ([]Token, error) {
	var out []Token
	for {
		tok, err := t.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, tok)
	}
}

// Records parses data and returns its data records in stream order.
func Records(data []byte, opts Options) ([]*Record, error) {
	tokens := NewTokens(data, opts)
	var out []*Record
	for {
		tok, err := tokens.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		if !tok.Kind().IsData() {
			continue
		}
		rec, err := tok.Parse(opts.Warn)
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}

// Validate reads data end to end with header data size checking and
// returns the number of data records.
func Validate(data []byte, opts Options) (int, error) {
	opts.Strict = true
	recs, err := Records(data, opts)
	return len(recs), err
}
