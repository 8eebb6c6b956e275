package fitstream

import (
	"github.com/sirupsen/logrus"

	"github.com/lucasjlepore/fitcodec/profile"
)

// Options control how a stream is read.
type Options struct {
	// Warn demotes recoverable problems to logged warnings.
	Warn bool
	// Force decodes every data record as soon as it is read, so decode
	// failures surface as stream errors.
	Force bool
	// Strict checks the header data size against the actual file length.
	Strict bool
	// IgnoreChecksums skips the header CRC and file checksum checks.
	IgnoreChecksums bool
	// MaxDeltaT bounds the gap between successive timestamps in seconds.
	MaxDeltaT uint32
	// MaxRecordLen rejects tokens longer than this many bytes when positive.
	MaxRecordLen int
	// Profile decodes messages; nil selects profile.Default().
	Profile *profile.Profile
	Logger  logrus.FieldLogger
}

// DefaultOptions returns the options used by the command line tools.
func DefaultOptions() Options {
	return Options{Force: true}
}

// NewState returns an empty state for reading with o.
func (o Options) NewState() *State {
	s := NewState(o.profile())
	s.MaxDeltaT = o.MaxDeltaT
	return s
}

func (o Options) logger() logrus.FieldLogger {
	if o.Logger != nil {
		return o.Logger
	}
	return logrus.WithField("package", "fitstream")
}

func (o Options) profile() *profile.Profile {
	if o.Profile != nil {
		return o.Profile
	}
	return profile.Default()
}
