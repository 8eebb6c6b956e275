// Package repair rebuilds damaged FIT files: it adds or rewrites headers,
// drops unreadable byte ranges, splices explicit slices, shifts
// timestamps and recomputes checksums.
package repair

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/lucasjlepore/fitcodec/fitstream"
)

// Result describes a repaired buffer.
type Result struct {
	Data []byte
	// Slices kept by the drop search or the explicit slice list.
	Slices []Slice
	// Delta is the shift applied by the start time, in seconds.
	Delta   int64
	Shifted bool
	// Records counts the data records of the validated output.
	Records      int
	DroppedBytes int
	// Appended is set when a checksum slot was added.
	Appended bool
}

// Fix applies the operations selected in o to a copy of data, in order:
// add header, drop, slices, set start, fix header, fix checksum and
// validate.
func Fix(data []byte, o Options) (*Result, error) {
	if err := o.check(); err != nil {
		return nil, err
	}
	log := o.logger()
	buf := append([]byte(nil), data...)
	res := &Result{}

	if o.AddHeader {
		buf = addHeader(buf, o)
	}

	switch {
	case o.Drop:
		out, slices, err := drop(buf, o)
		if err != nil {
			return nil, err
		}
		res.Slices = slices
		res.DroppedBytes = len(buf) - len(out)
		buf = out
		log.WithFields(logrus.Fields{
			"slices":  FormatSlices(slices),
			"dropped": res.DroppedBytes,
		}).Debug("drop search finished")
	case len(o.Slices) > 0:
		out, slices, err := applySlices(buf, o.Slices)
		if err != nil {
			return nil, err
		}
		res.Slices = slices
		res.DroppedBytes = len(buf) - len(out)
		buf = out
	}

	if o.Start != nil {
		delta, err := setStart(buf, *o.Start, o)
		if err != nil {
			return nil, fmt.Errorf("set start: %w", err)
		}
		res.Delta, res.Shifted = delta, true
		log.WithField("delta", delta).Debug("timestamps shifted")
	}

	var err error
	if o.FixHeader {
		if buf, err = fixHeader(buf, o); err != nil {
			return nil, fmt.Errorf("fix header: %w", err)
		}
	}
	if o.FixChecksum {
		if buf, res.Appended, err = fixChecksum(buf, o); err != nil {
			return nil, fmt.Errorf("fix checksum: %w", err)
		}
		if res.Appended && o.FixHeader {
			if buf, err = fixHeader(buf, o); err != nil {
				return nil, fmt.Errorf("fix header: %w", err)
			}
			if buf, _, err = fixChecksum(buf, o); err != nil {
				return nil, fmt.Errorf("fix checksum: %w", err)
			}
		}
	}

	if o.Validate {
		n, err := Validate(buf, o)
		if err != nil {
			return nil, err
		}
		res.Records = n
	}
	res.Data = buf
	return res, nil
}

// Validate reads data end to end in strict mode, honouring MaxDeltaT, and
// returns the number of data records.
func Validate(data []byte, o Options) (int, error) {
	n, err := fitstream.Validate(data, o.streamOptions())
	if err != nil {
		return n, fmt.Errorf("validate: %w", err)
	}
	return n, nil
}
