// Package export writes a FIT file as a lossless bundle for downstream
// tools: manifest.json with header and checksum checks, plus every token
// as a JSONL line or the data fields as Parquet rows.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ExportFile parses a FIT file and writes an export bundle.
// Output files:
//   - manifest.json
//   - records.jsonl or records.parquet
//   - source.fit (optional)
func ExportFile(inputPath, outputDir string, opts Options) (*Result, error) {
	if strings.TrimSpace(inputPath) == "" {
		return nil, fmt.Errorf("input path is required")
	}
	if strings.TrimSpace(outputDir) == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if opts.Format == "" {
		opts.Format = FormatJSONL
	}
	if opts.Format != FormatJSONL && opts.Format != FormatParquet {
		return nil, fmt.Errorf("unsupported format %q (expected jsonl|parquet)", opts.Format)
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, fmt.Errorf("read fit file: %w", err)
	}
	bundle, err := Parse(data, opts)
	if err != nil {
		return nil, err
	}
	if err := ensureOutputDir(outputDir, opts.Overwrite); err != nil {
		return nil, err
	}

	var recordsPath string
	switch opts.Format {
	case FormatParquet:
		recordsPath = filepath.Join(outputDir, ParquetName)
		out, err := MarshalParquet(bundle.Records)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", ParquetName, err)
		}
		if err := os.WriteFile(recordsPath, out, 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", ParquetName, err)
		}
	default:
		recordsPath = filepath.Join(outputDir, RecordsName)
		if err := writeRecordsFile(recordsPath, bundle.Records); err != nil {
			return nil, fmt.Errorf("write %s: %w", RecordsName, err)
		}
	}

	manifest := NewManifest(inputPath, bundle, opts)
	manifest.RecordsPath = filepath.Base(recordsPath)
	manifestPath := filepath.Join(outputDir, ManifestName)
	if err := writeJSON(manifestPath, manifest); err != nil {
		return nil, fmt.Errorf("write %s: %w", ManifestName, err)
	}

	sourceCopyPath := ""
	if opts.CopySourceFile {
		sourceCopyPath = filepath.Join(outputDir, SourceName)
		if err := copyFile(inputPath, sourceCopyPath); err != nil {
			return nil, fmt.Errorf("copy source fit file: %w", err)
		}
	}

	opts.logger().WithField("dir", outputDir).Info("export written")
	return &Result{
		OutputDir:       outputDir,
		ManifestPath:    manifestPath,
		RecordsPath:     recordsPath,
		SourceCopyPath:  sourceCopyPath,
		TokenCount:      bundle.TokenCount,
		DefinitionCount: bundle.DefinitionCount,
		DataRecordCount: bundle.DataRecordCount,
		SourceSHA256:    bundle.SourceSHA256,
		SourceSizeBytes: bundle.SourceSizeBytes,
		FileCRCValid:    bundle.FileCRC.Valid,
		HeaderCRCValid:  bundle.HeaderCRC.Valid,
	}, nil
}

// NewManifest describes bundle, read from the file at source.
func NewManifest(source string, bundle *Bundle, opts Options) Manifest {
	format := opts.Format
	if format == "" {
		format = FormatJSONL
	}
	records := RecordsName
	if format == FormatParquet {
		records = ParquetName
	}
	return Manifest{
		FormatVersion:   FormatVersion,
		GeneratedAt:     time.Now().UTC(),
		SourceFile:      source,
		SourceFileName:  filepath.Base(source),
		SourceSHA256:    bundle.SourceSHA256,
		SourceSizeBytes: bundle.SourceSizeBytes,
		Header:          bundle.Header,
		HeaderCRC:       bundle.HeaderCRC,
		FileCRC:         bundle.FileCRC,
		RecordsPath:     records,
		RecordsFormat:   format,
		View:            opts.View.String(),
		TokenCount:      bundle.TokenCount,
		DefinitionCount: bundle.DefinitionCount,
		DataRecordCount: bundle.DataRecordCount,
		DecodeErrors:    bundle.DecodeErrors,
		LeftoverBytes:   bundle.LeftoverBytes,
		FileID:          bundle.FileID,
		Warnings:        Warnings(bundle),
		Schema: SchemaDetails{
			RecordType: "JSONL line-per-FIT-token preserving original order and byte offsets",
			Notes: []string{
				"Lossless: every token is exported with its raw bytes as hex.",
				"Definition tokens are kept so undocumented messages remain interpretable.",
				"Data fields follow the selected view; raw keeps invalid sentinels as {\"invalid\": raw}.",
				"Records that fail to decode keep raw_record_hex and carry decode_error.",
				"Parquet exports hold one row per data field element.",
			},
		},
	}
}

func ensureOutputDir(path string, overwrite bool) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("read output directory: %w", err)
	}
	if len(entries) > 0 && !overwrite {
		return fmt.Errorf("output directory is not empty: %s (set overwrite to allow)", path)
	}
	return nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeRecordsFile(path string, records []RecordLine) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := writeJSONL(f, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
