package repair

import (
	"fmt"
	"strconv"
	"strings"
)

// Open marks an omitted slice stop.
const Open = -1

// Slice is a half-open byte range [Start, Stop).
type Slice struct {
	Start int
	Stop  int
}

func (s Slice) String() string {
	if s.Stop == Open {
		return fmt.Sprintf("%d:", s.Start)
	}
	return fmt.Sprintf("%d:%d", s.Start, s.Stop)
}

// Len is the number of bytes in a closed slice.
func (s Slice) Len() int {
	return s.Stop - s.Start
}

// FormatSlices renders slices in the notation ParseSlices reads.
func FormatSlices(slices []Slice) string {
	parts := make([]string, len(slices))
	for i, s := range slices {
		parts[i] = s.String()
	}
	return strings.Join(parts, ",")
}

// ParseSlices reads "start:stop[,start:stop...]". An omitted start is 0
// and an omitted stop is Open.
func ParseSlices(s string) ([]Slice, error) {
	if strings.TrimSpace(s) == "" {
		return nil, configError("empty slice list")
	}
	var out []Slice
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		lo, hi, ok := strings.Cut(part, ":")
		if !ok {
			return nil, configError("slice %q has no ':'", part)
		}
		sl := Slice{Stop: Open}
		if lo = strings.TrimSpace(lo); lo != "" {
			v, err := strconv.Atoi(lo)
			if err != nil || v < 0 {
				return nil, configError("slice %q has invalid start", part)
			}
			sl.Start = v
		}
		if hi = strings.TrimSpace(hi); hi != "" {
			v, err := strconv.Atoi(hi)
			if err != nil || v < 0 {
				return nil, configError("slice %q has invalid stop", part)
			}
			sl.Stop = v
		}
		if sl.Stop != Open && sl.Stop < sl.Start {
			return nil, configError("slice %q ends before it starts", part)
		}
		out = append(out, sl)
	}
	return out, nil
}

// applySlices concatenates the slices of data. An open stop means the end
// of data, except on the final slice where it stops before the trailing
// checksum and the checksum bytes are appended after the slices.
func applySlices(data []byte, slices []Slice) ([]byte, []Slice, error) {
	resolved := make([]Slice, len(slices))
	keepChecksum := false
	for i, s := range slices {
		if s.Stop == Open {
			s.Stop = len(data)
			if i == len(slices)-1 {
				s.Stop = max(len(data)-2, 0)
				keepChecksum = len(data) >= 2
			}
		}
		if s.Start > s.Stop || s.Stop > len(data) {
			return nil, nil, configError("slice %d:%d outside %d bytes", s.Start, s.Stop, len(data))
		}
		resolved[i] = s
	}
	var out []byte
	for _, s := range resolved {
		out = append(out, data[s.Start:s.Stop]...)
	}
	if keepChecksum {
		out = append(out, data[len(data)-2:]...)
	}
	return out, resolved, nil
}
