package repair

import (
	"bytes"
	"errors"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lucasjlepore/fitcodec/fitstream"
	"github.com/lucasjlepore/fitcodec/internal/fittest"
)

const (
	mesgFileID = 0
	mesgRecord = 20

	// header, file_id definition and data message
	s1DefinitionEnd = 14 + 15
)

func fileIDBuilder(serial uint64) *fittest.Builder {
	return fittest.New().
		Define(0, mesgFileID, fittest.F(0, fittest.Enum), fittest.F(1, fittest.Uint16), fittest.F(3, fittest.Uint32z)).
		Data(0, 4, 1, serial)
}

func s1() []byte {
	return fileIDBuilder(12345).Bytes()
}

func opts(mutate func(*Options)) Options {
	o := DefaultOptions()
	if mutate != nil {
		mutate(&o)
	}
	return o
}

func insert(data []byte, at int, extra []byte) []byte {
	out := append([]byte(nil), data[:at]...)
	out = append(out, extra...)
	return append(out, data[at:]...)
}

func repeat(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

func TestStrictParseOfMinimalFile(t *testing.T) {
	n, err := Validate(s1(), DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestFixChecksumRestoresFlippedByte(t *testing.T) {
	good := s1()
	bad := append([]byte(nil), good...)
	bad[len(bad)-1] ^= 0x01

	res, err := Fix(bad, opts(func(o *Options) { o.FixChecksum = true }))
	require.NoError(t, err)
	require.Equal(t, good, res.Data)
	require.False(t, res.Appended)
	require.Equal(t, 1, res.Records)
}

func TestDropRemovesUnframeableGarbage(t *testing.T) {
	good := s1()
	damaged := insert(good, s1DefinitionEnd, repeat(0xFF, 50))

	o := opts(func(o *Options) {
		o.Drop, o.FixHeader, o.FixChecksum = true, true, true
		o.MaxFwdLen = 100
	})
	res, err := Fix(damaged, o)
	require.NoError(t, err)
	require.Len(t, res.Data, len(damaged)-50)
	require.Equal(t, good, res.Data)
	require.Equal(t, 50, res.DroppedBytes)
	require.Equal(t, []Slice{{14, s1DefinitionEnd}, {s1DefinitionEnd + 50, len(damaged) - 2}}, res.Slices)
	require.Equal(t, 1, res.Records)

	again, err := Fix(damaged, o)
	require.NoError(t, err)
	require.Equal(t, res.Data, again.Data)
	require.Equal(t, res.Slices, again.Slices)
}

func TestDropRemovesRandomGarbage(t *testing.T) {
	good := s1()
	o := opts(func(o *Options) {
		o.Drop, o.FixHeader, o.FixChecksum = true, true, true
		o.MaxFwdLen = 100
	})

	// Garbage that happens to frame as tokens ending where the real record
	// starts is indistinguishable from data and is kept.
	const seeds = 50
	exact := 0
	for seed := int64(1); seed <= seeds; seed++ {
		junk := make([]byte, 50)
		rand.New(rand.NewSource(seed)).Read(junk)
		damaged := insert(good, s1DefinitionEnd, junk)

		res, err := Fix(damaged, o)
		require.NoError(t, err, "seed %d", seed)
		require.Equal(t, len(damaged)-res.DroppedBytes, len(res.Data), "seed %d", seed)
		require.Equal(t, good[14:s1DefinitionEnd], res.Data[14:s1DefinitionEnd], "seed %d", seed)
		require.Positive(t, res.Records, "seed %d", seed)
		require.True(t, fitstream.ChecksumOK(res.Data), "seed %d", seed)
		if bytes.Equal(res.Data, good) {
			require.Equal(t, 1, res.Records, "seed %d", seed)
			require.Equal(t, 50, res.DroppedBytes, "seed %d", seed)
			exact++
		}
	}
	t.Logf("%d of %d seeds restored exactly", exact, seeds)
	require.GreaterOrEqual(t, exact, seeds*4/5)
}

func TestDropExhaustsBounds(t *testing.T) {
	damaged := insert(s1(), s1DefinitionEnd, repeat(0xFF, 50))
	_, err := Fix(damaged, opts(func(o *Options) {
		o.Drop, o.FixHeader, o.FixChecksum = true, true, true
		o.MaxFwdLen = 10
	}))
	require.ErrorIs(t, err, ErrBacktrackExhausted)
	require.ErrorIs(t, err, fitstream.ErrFraming)

	var be *BacktrackError
	require.True(t, errors.As(err, &be))
	require.Equal(t, s1DefinitionEnd, be.Offset)
}

func TestFixHeaderRestoresDataSize(t *testing.T) {
	good := s1()
	bad := append([]byte(nil), good...)
	copy(bad[4:8], []byte{0, 0, 0, 0})

	_, err := Validate(bad, DefaultOptions())
	require.Error(t, err)

	res, err := Fix(bad, opts(func(o *Options) { o.FixHeader = true }))
	require.NoError(t, err)
	require.Equal(t, good, res.Data)
	h, err := fitstream.ReadHeader(res.Data)
	require.NoError(t, err)
	require.Equal(t, uint32(len(good)-16), h.DataSize)
}

func TestSetStartShiftsEveryTimestamp(t *testing.T) {
	base, err := fitstream.FITTime(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	target := time.Date(2021, 6, 15, 10, 0, 0, 0, time.UTC)
	want, err := fitstream.FITTime(target)
	require.NoError(t, err)

	data := fittest.New().
		Define(2, mesgFileID, fittest.F(0, fittest.Enum), fittest.F(4, fittest.Uint32)).
		Data(2, 4, uint64(base-100)).
		Define(0, mesgRecord, fittest.F(253, fittest.Uint32), fittest.F(3, fittest.Uint8)).
		Data(0, uint64(base), 100).
		Data(0, uint64(base+10), 101).
		Define(1, mesgRecord, fittest.F(3, fittest.Uint8)).
		Compressed(1, byte((base+15)&0x1F), 102).
		Bytes()

	res, err := Fix(data, opts(func(o *Options) {
		o.Start = &target
		o.FixChecksum = true
	}))
	require.NoError(t, err)
	require.True(t, res.Shifted)
	require.Equal(t, int64(want)-int64(base), res.Delta)
	require.Len(t, res.Data, len(data))

	recs, err := fitstream.Records(res.Data, fitstream.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, recs, 4)

	created, ok := recs[0].Get("time_created")
	require.True(t, ok)
	require.Equal(t, uint64(want-100), created.Value())
	for i, offset := range []uint32{0, 10, 15} {
		ts, ok := recs[i+1].RawTimestamp()
		require.True(t, ok)
		require.Equal(t, want+offset, ts, "record %d", i+1)
	}
	when, ok := recs[1].Timestamp()
	require.True(t, ok)
	require.True(t, when.Equal(target))
}

func TestSetStartToOwnFirstTimestampIsIdentity(t *testing.T) {
	data := fittest.New().
		Define(0, mesgRecord, fittest.F(253, fittest.Uint32), fittest.F(3, fittest.Uint8)).
		Data(0, 1000000010, 100).
		Define(1, mesgRecord, fittest.F(3, fittest.Uint8)).
		Compressed(1, 20, 101).
		Bytes()
	first := fitstream.Time(1000000010)
	res, err := Fix(data, opts(func(o *Options) { o.Start = &first }))
	require.NoError(t, err)
	require.Zero(t, res.Delta)
	require.Equal(t, data, res.Data)
}

func TestDropSplitsConcatenatedFiles(t *testing.T) {
	o := opts(func(o *Options) {
		o.Drop, o.FixHeader, o.FixChecksum = true, true, true
	})
	for name, short := range map[string]bool{"header crc": false, "short header": true} {
		t.Run(name, func(t *testing.T) {
			build := func(serial uint64) []byte {
				b := fileIDBuilder(serial)
				if short {
					b = b.Short()
				}
				return b.Bytes()
			}
			second := build(999)
			hs := int(second[0])
			for serial := uint64(1); serial <= 64; serial++ {
				first := build(serial)
				joined := append(append([]byte(nil), first...), second...)

				res, err := Fix(joined, o)
				require.NoError(t, err, "serial %d", serial)
				require.Len(t, res.Data, len(first)-2+len(second)-hs, "serial %d", serial)
				require.Equal(t, 2, res.Records, "serial %d", serial)
				require.Equal(t, []Slice{{hs, len(first) - 2}, {len(first) + hs, len(joined) - 2}}, res.Slices, "serial %d", serial)

				body := append(append([]byte(nil), first[hs:len(first)-2]...), second[hs:len(second)-2]...)
				require.Equal(t, body, res.Data[hs:len(res.Data)-2], "serial %d", serial)
				require.True(t, fitstream.ChecksumOK(res.Data), "serial %d", serial)
				h, err := fitstream.ReadHeader(res.Data)
				require.NoError(t, err)
				require.Equal(t, uint32(len(body)), h.DataSize)

				recs, err := fitstream.Records(res.Data, fitstream.DefaultOptions())
				require.NoError(t, err)
				require.Len(t, recs, 2)
				serialA, ok := recs[0].Get("serial_number")
				require.True(t, ok)
				require.Equal(t, serial, serialA.Value())
				serialB, ok := recs[1].Get("serial_number")
				require.True(t, ok)
				require.Equal(t, uint64(999), serialB.Value())
			}
		})
	}
}

func TestDropSplitsThreeFiles(t *testing.T) {
	parts := [][]byte{fileIDBuilder(1).Bytes(), fileIDBuilder(2).Short().Bytes(), fileIDBuilder(3).Bytes()}
	var joined []byte
	for _, p := range parts {
		joined = append(joined, p...)
	}
	res, err := Fix(joined, opts(func(o *Options) {
		o.Drop, o.FixHeader, o.FixChecksum = true, true, true
	}))
	require.NoError(t, err)
	require.Equal(t, 3, res.Records)
	require.Len(t, res.Data, len(joined)-2*2-12-14)
}

func TestRestartPointsIncludeEveryRememberedToken(t *testing.T) {
	history := []snapshot{{offset: 14}, {offset: 29}, {offset: 37}}
	var offsets []int
	for _, p := range restartPoints(snapshot{offset: 45}, history) {
		offsets = append(offsets, p.offset)
	}
	require.Equal(t, []int{45, 37, 29, 14}, offsets)
}

func TestFixHeaderAndChecksumAreIdempotent(t *testing.T) {
	withoutCRC := fileIDBuilder(7)
	withoutCRC.HeaderCRC = false
	sdk, err := fittest.Activity()
	require.NoError(t, err)

	for name, data := range map[string][]byte{
		"header crc":    s1(),
		"no header crc": withoutCRC.Bytes(),
		"short header":  fileIDBuilder(7).Short().Bytes(),
		"sdk encoded":   sdk,
	} {
		t.Run(name, func(t *testing.T) {
			res, err := Fix(data, opts(func(o *Options) { o.FixHeader, o.FixChecksum = true, true }))
			require.NoError(t, err)
			require.Equal(t, data, res.Data)
		})
	}
}

func TestWholeFileSliceIsIdentity(t *testing.T) {
	data := s1()
	slices, err := ParseSlices("0:" + strconv.Itoa(len(data)))
	require.NoError(t, err)
	res, err := Fix(data, opts(func(o *Options) { o.Slices = slices }))
	require.NoError(t, err)
	require.Equal(t, data, res.Data)
}

func TestSlicesCutOutGarbage(t *testing.T) {
	good := s1()
	damaged := insert(good, s1DefinitionEnd, repeat(0xAA, 5))
	slices, err := ParseSlices(":" + strconv.Itoa(s1DefinitionEnd) + "," + strconv.Itoa(s1DefinitionEnd+5) + ":")
	require.NoError(t, err)

	res, err := Fix(damaged, opts(func(o *Options) {
		o.Slices = slices
		o.FixHeader, o.FixChecksum = true, true
	}))
	require.NoError(t, err)
	require.Equal(t, good, res.Data)
	require.Equal(t, 5, res.DroppedBytes)
}

func TestParseSlices(t *testing.T) {
	got, err := ParseSlices("0:10, 20:, :5")
	require.NoError(t, err)
	require.Equal(t, []Slice{{0, 10}, {20, Open}, {0, 5}}, got)
	require.Equal(t, "0:10,20:,0:5", FormatSlices(got))

	for _, bad := range []string{"", "10", "a:b", "5:2", "-1:4"} {
		_, err := ParseSlices(bad)
		require.ErrorIs(t, err, ErrConfig, bad)
	}

	_, _, err = applySlices(make([]byte, 8), []Slice{{0, 9}})
	require.ErrorIs(t, err, ErrConfig)
	out, _, err := applySlices([]byte{1, 2, 3, 4, 5}, []Slice{{0, Open}, {3, Open}})
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4, 5, 4, 5}, out)
}

func TestAddHeaderAndChecksum(t *testing.T) {
	good := s1()
	records := good[14 : len(good)-2]

	res, err := Fix(records, opts(func(o *Options) {
		o.AddHeader, o.FixHeader, o.FixChecksum = true, true, true
	}))
	require.NoError(t, err)
	require.True(t, res.Appended)
	require.Equal(t, 1, res.Records)
	h, err := fitstream.ReadHeader(res.Data)
	require.NoError(t, err)
	require.Equal(t, byte(14), h.Size)
	require.Equal(t, byte(0x10), h.ProtocolVersion)
	require.Equal(t, uint16(0x07de), h.ProfileVersion)
	require.Equal(t, uint32(len(records)), h.DataSize)
}

func TestAppendedChecksumRefixesHeader(t *testing.T) {
	good := s1()
	res, err := Fix(good[:len(good)-2], opts(func(o *Options) { o.FixHeader, o.FixChecksum = true, true }))
	require.NoError(t, err)
	require.True(t, res.Appended)
	require.Equal(t, good, res.Data)
}

func TestHeaderSizeOverride(t *testing.T) {
	good := fileIDBuilder(3).Short().Bytes()
	res, err := Fix(good, opts(func(o *Options) {
		o.HeaderSize = 14
		o.FixHeader, o.FixChecksum = true, true
	}))
	require.NoError(t, err)
	require.Len(t, res.Data, len(good)+2)
	h, err := fitstream.ReadHeader(res.Data)
	require.NoError(t, err)
	require.True(t, h.HasCRC())
	require.NoError(t, h.CheckCRC(res.Data))
}

func TestOptionConflicts(t *testing.T) {
	now := time.Now()
	cases := map[string]func(*Options){
		"drop and slices":   func(o *Options) { o.Drop, o.Slices = true, []Slice{{0, 1}} },
		"drop and start":    func(o *Options) { o.Drop, o.Start = true, &now },
		"zero forward len":  func(o *Options) { o.Drop, o.MaxFwdLen = true, 0 },
		"bad header size":   func(o *Options) { o.HeaderSize = 13 },
		"negative record":   func(o *Options) { o.MaxRecordLen = -1 },
		"protocol overflow": func(o *Options) { o.ProtocolVersion = 300 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Fix(s1(), opts(mutate))
			require.ErrorIs(t, err, ErrConfig)
		})
	}
}

func TestValidateEnforcesMaxDeltaT(t *testing.T) {
	data := fittest.New().
		Define(0, mesgRecord, fittest.F(253, fittest.Uint32)).
		Data(0, 1000000000).
		Data(0, 1000000100).
		Bytes()
	_, err := Fix(data, opts(func(o *Options) { o.MaxDeltaT = 60 }))
	require.ErrorIs(t, err, fitstream.ErrValue)
	_, err = Fix(data, opts(func(o *Options) { o.MaxDeltaT = 100 }))
	require.NoError(t, err)
}

func fuzzConfig(t *testing.T) (int64, int) {
	t.Helper()
	seed := time.Now().UnixNano()
	if v := os.Getenv("FUZZ_SEED"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		require.NoError(t, err)
		seed = parsed
	}
	rounds := 200
	if v := os.Getenv("FUZZ_ROUNDS"); v != "" {
		parsed, err := strconv.Atoi(v)
		require.NoError(t, err)
		rounds = parsed
	}
	return seed, rounds
}

func TestDropRecoversFromRandomDamage(t *testing.T) {
	seed, rounds := fuzzConfig(t)
	t.Logf("FUZZ_SEED=%d FUZZ_ROUNDS=%d", seed, rounds)
	rng := rand.New(rand.NewSource(seed))

	sdk, err := fittest.Activity()
	require.NoError(t, err)
	sources := [][]byte{s1(), sdk}

	o := opts(func(o *Options) {
		o.Drop, o.FixHeader, o.FixChecksum = true, true, true
		o.MaxFwdLen = 64
	})
	for round := 0; round < rounds; round++ {
		src := sources[rng.Intn(len(sources))]
		damaged := append([]byte(nil), src...)
		hs := int(damaged[0])
		switch rng.Intn(3) {
		case 0:
			junk := make([]byte, 1+rng.Intn(40))
			rng.Read(junk)
			damaged = insert(damaged, hs+rng.Intn(len(damaged)-hs-1), junk)
		case 1:
			for i := 0; i < 1+rng.Intn(4); i++ {
				damaged[hs+rng.Intn(len(damaged)-hs-2)] = byte(rng.Intn(256))
			}
		default:
			cut := hs + rng.Intn(len(damaged)-hs-2)
			damaged = append(damaged[:cut], damaged[cut+1+rng.Intn(3):]...)
		}

		res, err := Fix(damaged, o)
		if err != nil {
			continue
		}
		n, err := fitstream.Validate(res.Data, fitstream.DefaultOptions())
		require.NoError(t, err, "round %d", round)
		require.Positive(t, n, "round %d", round)
	}
}
