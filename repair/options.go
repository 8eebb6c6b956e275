package repair

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lucasjlepore/fitcodec/fitstream"
	"github.com/lucasjlepore/fitcodec/profile"
)

// Options select the repair operations and bound the drop search.
type Options struct {
	AddHeader bool
	// Header overrides. Zero keeps the existing value, or the default when
	// a header is added.
	HeaderSize      int
	ProtocolVersion int
	ProfileVersion  int

	Drop   bool
	Slices []Slice
	// Start shifts every timestamp so the first equals it.
	Start *time.Time

	FixHeader   bool
	FixChecksum bool

	MinSyncCnt   int
	MaxDropCnt   int
	MaxBackCnt   int
	MaxFwdLen    int
	MaxRecordLen int
	MaxDeltaT    uint32

	Force    bool
	Validate bool
	Warn     bool

	Profile *profile.Profile
	Logger  logrus.FieldLogger
}

// DefaultOptions enables record decoding and final validation with the
// default search bounds.
func DefaultOptions() Options {
	return Options{
		MinSyncCnt: 3,
		MaxDropCnt: 1,
		MaxBackCnt: 3,
		MaxFwdLen:  200,
		Force:      true,
		Validate:   true,
	}
}

// Modifies reports whether any operation would change the input.
func (o Options) Modifies() bool {
	return o.AddHeader || o.Drop || len(o.Slices) > 0 || o.Start != nil || o.FixHeader || o.FixChecksum
}

func (o Options) check() error {
	switch {
	case o.Drop && len(o.Slices) > 0:
		return configError("drop and slices are mutually exclusive")
	case o.Drop && o.Start != nil:
		return configError("drop and start are mutually exclusive")
	}
	if o.Drop {
		for name, v := range map[string]int{
			"min sync count": o.MinSyncCnt,
			"max drop count": o.MaxDropCnt,
			"max back count": o.MaxBackCnt,
			"max fwd length": o.MaxFwdLen,
		} {
			if v <= 0 {
				return configError("%s must be positive, got %d", name, v)
			}
		}
	}
	if o.MaxRecordLen < 0 {
		return configError("max record length must not be negative")
	}
	switch o.HeaderSize {
	case 0, fitstream.ShortHeaderSize, fitstream.HeaderSize:
	default:
		return configError("header size must be %d or %d, got %d", fitstream.ShortHeaderSize, fitstream.HeaderSize, o.HeaderSize)
	}
	if o.ProtocolVersion < 0 || o.ProtocolVersion > 0xFF {
		return configError("protocol version %d out of range", o.ProtocolVersion)
	}
	if o.ProfileVersion < 0 || o.ProfileVersion > 0xFFFF {
		return configError("profile version %d out of range", o.ProfileVersion)
	}
	return nil
}

func (o Options) logger() logrus.FieldLogger {
	if o.Logger != nil {
		return o.Logger
	}
	return logrus.WithField("package", "repair")
}

// streamOptions are the options the drop search and walks read with.
func (o Options) streamOptions() fitstream.Options {
	return fitstream.Options{
		Warn:         o.Warn,
		Force:        o.Force,
		MaxDeltaT:    o.MaxDeltaT,
		MaxRecordLen: o.MaxRecordLen,
		Profile:      o.Profile,
		Logger:       o.Logger,
	}
}
