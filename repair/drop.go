package repair

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/lucasjlepore/fitcodec/fitstream"
)

var errBacktrack = errors.New("backtrack")

// snapshot is a restart point: an offset, the state before the token
// there, the data records read before it and the slices kept so far.
type snapshot struct {
	offset  int
	state   *fitstream.State
	records int
	kept    []Slice
	from    int
}

// searcher runs the bounded drop search over the record area of a file.
type searcher struct {
	records  []byte
	end      int
	opts     Options
	stream   fitstream.Options
	log      logrus.FieldLogger
	furthest int
	firstErr error
}

// embeddedHeader reports how many bytes to skip at pos when another file
// starts there, either directly or after the stale two byte checksum of
// the file before it.
func (s *searcher) embeddedHeader(pos int) (int, bool) {
	for _, at := range []int{pos, pos + fitstream.ChecksumSize} {
		if at >= s.end {
			break
		}
		h, err := fitstream.ReadHeader(s.records[at:])
		if err != nil || h.CheckCRC(s.records[at:]) != nil {
			continue
		}
		return at - pos + int(h.Size), true
	}
	return 0, false
}

// attempt reads tokens from offset, cutting out the headers of
// concatenated files as it meets them. When the read stops short of the
// end it retries from the failure point and from the starts of the last
// MaxBackCnt tokens, skipping ahead 1 to MaxFwdLen-1 bytes, newest
// candidate first and shortest skip first. Nested attempts must read
// MinSyncCnt tokens before they may drop again; reaching the end always
// succeeds.
func (s *searcher) attempt(offset int, state *fitstream.State, depth int, nested bool) ([]Slice, int, error) {
	history := make([]snapshot, 0, s.opts.MaxBackCnt)
	pos, count, records := offset, 0, 0
	var kept []Slice
	from := offset
	var failed snapshot
	for pos < s.end {
		if skip, ok := s.embeddedHeader(pos); ok {
			s.log.WithFields(logrus.Fields{"offset": pos, "bytes": skip}).Debug("dropped embedded header")
			kept = appendSlice(kept, from, pos)
			pos += skip
			from = pos
			s.furthest = max(s.furthest, pos)
			continue
		}
		before := snapshot{offset: pos, state: state.Clone(), records: records, kept: kept[:len(kept):len(kept)], from: from}
		tok, err := fitstream.ReadToken(s.records, pos, state, s.stream)
		if err != nil {
			if s.firstErr == nil {
				s.firstErr = err
			}
			failed = before
			break
		}
		if len(history) == cap(history) {
			history = append(history[:0], history[1:]...)
		}
		history = append(history, before)
		pos += tok.Len()
		count++
		if tok.Kind().IsData() {
			records++
		}
		s.furthest = max(s.furthest, pos)
	}
	if pos >= s.end {
		return appendSlice(kept, from, s.end), records, nil
	}
	if (nested && count < s.opts.MinSyncCnt) || depth >= s.opts.MaxDropCnt {
		return nil, 0, errBacktrack
	}

	for _, c := range restartPoints(failed, history) {
		for skip := 1; skip < s.opts.MaxFwdLen && c.offset+skip <= s.end; skip++ {
			sub, n, err := s.attempt(c.offset+skip, c.state.Clone(), depth+1, true)
			if err != nil {
				continue
			}
			s.log.WithFields(logrus.Fields{
				"offset": c.offset,
				"bytes":  skip,
				"depth":  depth + 1,
			}).Debug("dropped bytes")
			return append(appendSlice(c.kept, c.from, c.offset), sub...), c.records + n, nil
		}
	}
	return nil, 0, errBacktrack
}

// restartPoints orders the drop candidates: the failure point, then every
// remembered token start, newest first.
func restartPoints(failed snapshot, history []snapshot) []snapshot {
	points := make([]snapshot, 0, len(history)+1)
	points = append(points, failed)
	for i := len(history) - 1; i >= 0; i-- {
		points = append(points, history[i])
	}
	return points
}

func appendSlice(slices []Slice, start, stop int) []Slice {
	if stop <= start {
		return slices
	}
	return append(slices, Slice{Start: start, Stop: stop})
}

// drop searches data for slices of the record area that read cleanly and
// returns the header, those slices and the trailing two bytes.
func drop(data []byte, o Options) ([]byte, []Slice, error) {
	h, err := fitstream.ReadHeader(data)
	if err != nil {
		return nil, nil, err
	}
	start := int(h.Size)
	end := len(data) - fitstream.ChecksumSize
	if end < start {
		return nil, nil, fmt.Errorf("%w: %d bytes cannot hold header and checksum", fitstream.ErrFraming, len(data))
	}
	stream := o.streamOptions()
	s := &searcher{
		records:  data[:end],
		end:      end,
		opts:     o,
		stream:   stream,
		log:      o.logger(),
		furthest: start,
	}
	slices, records, err := s.attempt(start, stream.NewState(), 0, false)
	if err == nil && records == 0 {
		err = errBacktrack
	}
	if err != nil {
		cause := s.firstErr
		if cause == nil {
			cause = fmt.Errorf("%w: no data records recovered", fitstream.ErrFraming)
		}
		return nil, nil, &BacktrackError{Offset: s.furthest, Err: cause}
	}

	out := make([]byte, 0, len(data))
	out = append(out, data[:start]...)
	for _, sl := range slices {
		out = append(out, data[sl.Start:sl.Stop]...)
	}
	out = append(out, data[end:]...)
	return out, slices, nil
}
