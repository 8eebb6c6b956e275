package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lucasjlepore/fitcodec/export"
	"github.com/lucasjlepore/fitcodec/fitstream"
	"github.com/lucasjlepore/fitcodec/internal/config"
	"github.com/lucasjlepore/fitcodec/internal/metrics"
	"github.com/lucasjlepore/fitcodec/profile"
)

type flags struct {
	outDir      string
	format      string
	view        string
	warn        bool
	overwrite   bool
	copySource  bool
	configPath  string
	logLevel    string
	metricsFile string
	profilePath string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fitexport: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:   "fitexport [flags] FILE",
		Short: "Export a FIT file as a JSONL or Parquet bundle",
		Long: `fitexport writes manifest.json with header and checksum checks next to
records.jsonl (one line per token) or records.parquet (one row per data
field element).`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(f, args[0], stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	fl := cmd.Flags()
	fl.StringVar(&f.outDir, "out-dir", "", "output directory for the bundle")
	fl.StringVar(&f.format, "format", string(export.FormatJSONL), "records format, jsonl or parquet")
	fl.StringVar(&f.view, "view", "value", "record view, raw, value or names")
	fl.BoolVarP(&f.warn, "warn", "w", false, "drop undecodable fields with a warning")
	fl.BoolVar(&f.overwrite, "overwrite", true, "allow writing to non-empty output directories")
	fl.BoolVar(&f.copySource, "copy-source", true, "copy the FIT file into the bundle as source.fit")
	fl.StringVar(&f.configPath, "config", "", "YAML configuration `PATH`")
	fl.StringVar(&f.logLevel, "log-level", "", "log level, overrides the configuration")
	fl.StringVar(&f.metricsFile, "metrics-file", "", "write prometheus counters to `PATH`")
	fl.StringVar(&f.profilePath, "profile", "", "CBOR profile artifact `PATH`")
	return cmd
}

func parseView(s string) (fitstream.View, error) {
	for _, v := range []fitstream.View{fitstream.ViewRaw, fitstream.ViewValue, fitstream.ViewNames} {
		if v.String() == s {
			return v, nil
		}
	}
	return 0, fmt.Errorf("unknown view %q (expected raw|value|names)", s)
}

func run(f *flags, input string, stdout, stderr io.Writer) error {
	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.Load(f.configPath); err != nil {
			return err
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
		return err
	}
	defer closer.Close()

	view, err := parseView(f.view)
	if err != nil {
		return err
	}
	opts := export.Options{
		Format:         export.Format(f.format),
		View:           view,
		Warn:           f.warn || cfg.Repair.Warn,
		Overwrite:      f.overwrite,
		CopySourceFile: f.copySource,
		Logger:         log,
	}
	if cfg.Profile != "" {
		if opts.Profile, err = profile.Read(cfg.Profile); err != nil {
			return err
		}
	}

	outDir := f.outDir
	if strings.TrimSpace(outDir) == "" {
		base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
		outDir = filepath.Join(".", "exports", base+"_"+export.FormatVersion)
	}

	m := metrics.New("fitexport")
	start := time.Now()
	result, err := export.ExportFile(input, outDir, opts)
	m.Done(start, err)
	if result != nil {
		m.Tokens.Add(float64(result.TokenCount))
		m.Records.Add(float64(result.DataRecordCount))
	}
	if cfg.Metrics.File != "" {
		if werr := m.WriteFile(cfg.Metrics.File); werr != nil {
			log.WithError(werr).Warn("write metrics")
		}
	}
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	fmt.Fprintf(stdout, "Export complete\n")
	fmt.Fprintf(stdout, "Output dir: %s\n", result.OutputDir)
	fmt.Fprintf(stdout, "Manifest:   %s\n", result.ManifestPath)
	fmt.Fprintf(stdout, "Records:    %s\n", result.RecordsPath)
	if result.SourceCopyPath != "" {
		fmt.Fprintf(stdout, "Source fit: %s\n", result.SourceCopyPath)
	}
	fmt.Fprintf(stdout, "Tokens:     %d (%d definitions, %d data messages)\n", result.TokenCount, result.DefinitionCount, result.DataRecordCount)
	fmt.Fprintf(stdout, "CRC valid:  header=%t file=%t\n", result.HeaderCRCValid, result.FileCRCValid)
	return nil
}
