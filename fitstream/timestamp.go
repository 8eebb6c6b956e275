package fitstream

import (
	"fmt"
	"math"
	"time"
)

// Epoch is the zero of FIT timestamps.
var Epoch = time.Date(1989, time.December, 31, 0, 0, 0, 0, time.UTC)

// MinAbsoluteTime is the smallest date_time value that is an absolute
// time. Smaller values count seconds from a device-relative origin.
const MinAbsoluteTime = 0x10000000

// Time converts FIT seconds to a UTC time.
func Time(ts uint32) time.Time {
	return Epoch.Add(time.Duration(ts) * time.Second)
}

// FITTime converts t to FIT seconds, truncating fractions of a second.
func FITTime(t time.Time) (uint32, error) {
	secs := t.Unix() - Epoch.Unix()
	if secs < 0 || secs > math.MaxUint32 {
		return 0, fmt.Errorf("%s is outside the fit time range", t.UTC().Format(time.RFC3339))
	}
	return uint32(secs), nil
}
