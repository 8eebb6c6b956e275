package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lucasjlepore/fitcodec/internal/config"
	"github.com/lucasjlepore/fitcodec/internal/metrics"
	"github.com/lucasjlepore/fitcodec/profile"
	"github.com/lucasjlepore/fitcodec/repair"
)

const (
	exitOK      = 0
	exitAborted = 1
	exitFailed  = 2
)

var errAborted = errors.New("interrupted")

type flags struct {
	output  string
	discard bool
	raw     bool

	addHeader       bool
	headerSize      int
	protocolVersion int
	profileVersion  int

	drop        bool
	slices      string
	start       string
	fixHeader   bool
	fixChecksum bool

	minSyncCnt   int
	maxRecordLen int
	maxDropCnt   int
	maxBackCnt   int
	maxFwdLen    int
	maxDeltaT    uint32

	noForce    bool
	noValidate bool
	nameGood   bool
	nameBad    bool
	warn       bool

	configPath  string
	logLevel    string
	metricsFile string
	profilePath string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(execute(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	if args == nil {
		// cobra falls back to os.Args on nil
		args = []string{}
	}
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errAborted):
		fmt.Fprintln(stderr, "fix-fit: interrupted")
		return exitAborted
	default:
		fmt.Fprintf(stderr, "fix-fit: %v\n", err)
		return exitFailed
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	f := &flags{}
	defaults := repair.DefaultOptions()
	cmd := &cobra.Command{
		Use:   "fix-fit [flags] PATH...",
		Short: "Repair damaged FIT files",
		Long: `fix-fit reads FIT files, optionally rebuilds their header, drops
unreadable byte ranges, splices slices, shifts timestamps and recomputes the
checksum, then validates the result with a strict parse.

Output goes to stdout as hex unless --raw, --output or --discard is given.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, f, args, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	fl := cmd.Flags()
	fl.StringVar(&f.output, "output", "", "write the repaired file to `PATH`")
	fl.BoolVar(&f.discard, "discard", false, "discard the repaired file")
	fl.BoolVar(&f.raw, "raw", false, "write raw bytes to stdout instead of hex")

	fl.BoolVar(&f.addHeader, "add-header", false, "prepend a new header")
	fl.IntVar(&f.headerSize, "header-size", 0, "header size, 12 or 14")
	fl.IntVar(&f.protocolVersion, "protocol-version", 0, "header protocol version")
	fl.IntVar(&f.profileVersion, "profile-version", 0, "header profile version")

	fl.BoolVar(&f.drop, "drop", false, "search for and drop unreadable byte ranges")
	fl.StringVar(&f.slices, "slices", "", "keep only the byte ranges `A:B,C:D`")
	fl.StringVar(&f.start, "start", "", "shift timestamps so the first equals `TIME`")
	fl.BoolVar(&f.fixHeader, "fix-header", false, "rewrite the header data size and CRC")
	fl.BoolVar(&f.fixChecksum, "fix-checksum", false, "rewrite or append the trailing checksum")

	fl.IntVar(&f.minSyncCnt, "min-sync-cnt", defaults.MinSyncCnt, "tokens needed to accept a resync")
	fl.IntVar(&f.maxRecordLen, "max-record-len", defaults.MaxRecordLen, "longest accepted token in bytes, 0 for no limit")
	fl.IntVar(&f.maxDropCnt, "max-drop-cnt", defaults.MaxDropCnt, "most dropped ranges")
	fl.IntVar(&f.maxBackCnt, "max-back-cnt", defaults.MaxBackCnt, "most tokens to backtrack over")
	fl.IntVar(&f.maxFwdLen, "max-fwd-len", defaults.MaxFwdLen, "most bytes skipped per drop")
	fl.Uint32Var(&f.maxDeltaT, "max-delta-t", defaults.MaxDeltaT, "largest gap between timestamps in seconds, 0 for no limit")

	fl.BoolVar(&f.noForce, "no-force", false, "skip record decoding while reading")
	fl.BoolVar(&f.noValidate, "no-validate", false, "skip the final strict parse")
	fl.BoolVar(&f.nameGood, "name-good", false, "print the names of good files")
	fl.BoolVar(&f.nameBad, "name-bad", false, "print the names of bad files")
	fl.BoolVarP(&f.warn, "warn", "w", false, "warn about recoverable problems")

	fl.StringVar(&f.configPath, "config", "", "YAML configuration `PATH`")
	fl.StringVar(&f.logLevel, "log-level", "", "log level, overrides the configuration")
	fl.StringVar(&f.metricsFile, "metrics-file", "", "write prometheus counters to `PATH`")
	fl.StringVar(&f.profilePath, "profile", "", "CBOR profile artifact `PATH`")
	return cmd
}

func run(cmd *cobra.Command, f *flags, paths []string, stdout, stderr io.Writer) error {
	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.Load(f.configPath); err != nil {
			return fmt.Errorf("%w: %v", repair.ErrConfig, err)
		}
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.metricsFile != "" {
		cfg.Metrics.File = f.metricsFile
	}
	if f.profilePath != "" {
		cfg.Profile = f.profilePath
	}

	log, closer, err := cfg.Log.NewLogger(stderr)
	if err != nil {
		return fmt.Errorf("%w: %v", repair.ErrConfig, err)
	}
	defer closer.Close()

	o, err := repairOptions(cmd, f, cfg)
	if err != nil {
		return err
	}
	o.Logger = log
	if err := checkFlags(f, o, len(paths)); err != nil {
		return err
	}
	if cfg.Profile != "" {
		if o.Profile, err = profile.Read(cfg.Profile); err != nil {
			return err
		}
	}

	m := metrics.New("fix-fit")
	failed := 0
	for _, path := range paths {
		if err := cmd.Context().Err(); err != nil {
			return errAborted
		}
		start := time.Now()
		err := fixFile(path, f, o, m, stdout)
		m.Done(start, err)
		if err == nil || f.nameGood || f.nameBad {
			continue
		}
		failed++
		log.WithError(err).WithField("file", path).Error("repair failed")
		log.WithField("file", path).Debugf("%+v", err)
	}

	if cfg.Metrics.File != "" {
		if err := m.WriteFile(cfg.Metrics.File); err != nil {
			log.WithError(err).Warn("write metrics")
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(paths))
	}
	return nil
}

func repairOptions(cmd *cobra.Command, f *flags, cfg config.Config) (repair.Options, error) {
	o := cfg.Repair.Options()
	changed := cmd.Flags().Changed

	o.AddHeader = f.addHeader
	o.HeaderSize = f.headerSize
	o.ProtocolVersion = f.protocolVersion
	o.ProfileVersion = f.profileVersion
	o.Drop = f.drop
	o.FixHeader = f.fixHeader
	o.FixChecksum = f.fixChecksum

	if changed("slices") {
		slices, err := repair.ParseSlices(f.slices)
		if err != nil {
			return o, err
		}
		o.Slices = slices
	}
	if changed("start") {
		t, err := parseTime(f.start)
		if err != nil {
			return o, err
		}
		o.Start = &t
	}

	for name, set := range map[string]func(){
		"min-sync-cnt":   func() { o.MinSyncCnt = f.minSyncCnt },
		"max-record-len": func() { o.MaxRecordLen = f.maxRecordLen },
		"max-drop-cnt":   func() { o.MaxDropCnt = f.maxDropCnt },
		"max-back-cnt":   func() { o.MaxBackCnt = f.maxBackCnt },
		"max-fwd-len":    func() { o.MaxFwdLen = f.maxFwdLen },
		"max-delta-t":    func() { o.MaxDeltaT = f.maxDeltaT },
	} {
		if changed(name) {
			set()
		}
	}
	if f.noForce {
		o.Force = false
	}
	if f.noValidate {
		o.Validate = false
	}
	if f.warn {
		o.Warn = true
	}
	return o, nil
}

func checkFlags(f *flags, o repair.Options, inputs int) error {
	destinations := 0
	for _, set := range []bool{f.output != "", f.discard, f.raw} {
		if set {
			destinations++
		}
	}
	switch {
	case destinations > 1:
		return fmt.Errorf("%w: --output, --discard and --raw are mutually exclusive", repair.ErrConfig)
	case f.output != "" && inputs > 1:
		return fmt.Errorf("%w: --output takes a single input file", repair.ErrConfig)
	case f.nameGood && f.nameBad:
		return fmt.Errorf("%w: --name-good and --name-bad are mutually exclusive", repair.ErrConfig)
	case (f.nameGood || f.nameBad) && (o.Modifies() || destinations > 0):
		return fmt.Errorf("%w: name checks cannot be combined with repairs or output", repair.ErrConfig)
	}
	return nil
}

// parseTime reads RFC 3339 times or a UTC date and time without a zone.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: cannot parse start time %q", repair.ErrConfig, s)
}

func fixFile(path string, f *flags, o repair.Options, m *metrics.Metrics, stdout io.Writer) error {
	log := o.Logger.WithField("file", path)
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if f.nameGood || f.nameBad {
		o.Validate = true
		_, err := repair.Fix(data, o)
		if (err == nil) == f.nameGood {
			fmt.Fprintln(stdout, path)
		}
		if err != nil {
			log.WithError(err).Debug("file is bad")
		}
		return err
	}

	res, err := repair.Fix(data, o)
	if err != nil {
		return err
	}
	m.Repaired(res)
	log.WithFields(logrus.Fields{
		"records": res.Records,
		"dropped": res.DroppedBytes,
		"slices":  repair.FormatSlices(res.Slices),
	}).Info("repaired")

	switch {
	case f.discard:
		return nil
	case f.output != "":
		return os.WriteFile(f.output, res.Data, 0o644)
	case f.raw:
		_, err = stdout.Write(res.Data)
		return err
	default:
		_, err = fmt.Fprintln(stdout, hex.EncodeToString(res.Data))
		return err
	}
}
