package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	parquetbuffer "github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/reader"

	"github.com/lucasjlepore/fitcodec/fitstream"
	"github.com/lucasjlepore/fitcodec/internal/fittest"
)

func activity(t *testing.T) []byte {
	t.Helper()
	data, err := fittest.Activity()
	require.NoError(t, err)
	return data
}

func TestParseActivity(t *testing.T) {
	b, err := Parse(activity(t), Options{View: fitstream.ViewNames})
	require.NoError(t, err)

	require.Equal(t, ".FIT", b.Header.DataType)
	require.True(t, b.HeaderCRC.Valid)
	require.True(t, b.FileCRC.Valid)
	require.Zero(t, b.DecodeErrors)
	require.Zero(t, b.LeftoverBytes)
	require.Greater(t, b.DefinitionCount, 0)
	require.Greater(t, b.DataRecordCount, 3)
	require.Equal(t, b.TokenCount, len(b.Records))
	require.Equal(t, "file_header", b.Records[0].Kind)
	require.Equal(t, "checksum", b.Records[len(b.Records)-1].Kind)

	require.NotNil(t, b.FileID)
	require.Equal(t, "activity", b.FileID.Type)

	var sample *RecordLine
	for i := range b.Records {
		if b.Records[i].Message == "record" && b.Records[i].Kind == "data" {
			sample = &b.Records[i]
		}
	}
	require.NotNil(t, sample)
	require.Equal(t, "2026-02-26T23:00:30Z", sample.Timestamp)
	values := make(map[string]any)
	for _, f := range sample.Fields {
		values[f.Name] = f.Value
	}
	require.Equal(t, uint64(135), values["heart_rate"])
	require.Equal(t, "2026-02-26T23:00:30Z", values["timestamp"])
	require.Empty(t, Warnings(b))
}

func TestParseReportsChecksumMismatch(t *testing.T) {
	data := fittest.New().
		Define(0, 0, fittest.F(0, fittest.Enum), fittest.F(3, fittest.Uint32z)).
		Data(0, 4, 0).
		Bytes()
	data[len(data)-1] ^= 0xFF

	b, err := Parse(data, Options{})
	require.NoError(t, err)
	require.True(t, b.FileCRC.Present)
	require.False(t, b.FileCRC.Valid)
	require.True(t, b.HeaderCRC.Valid)
	require.Contains(t, Warnings(b), "file CRC mismatch")

	// raw view keeps the invalid serial number
	line := b.Records[2]
	require.Equal(t, "file_id", line.Message)
	require.Len(t, line.Fields, 2)
	require.Equal(t, map[string]any{"invalid": uint64(0)}, line.Fields[1].Value)
}

func TestParseFailsOnStreamErrors(t *testing.T) {
	// a compressed timestamp with no earlier timestamp cannot be placed
	data := fittest.New().
		Define(0, 20, fittest.F(3, fittest.Uint8)).
		Compressed(0, 5, 120).
		Bytes()

	_, err := Parse(data, Options{})
	require.ErrorIs(t, err, fitstream.ErrValue)

	_, err = Parse([]byte("not a fit file"), Options{})
	require.Error(t, err)
}

func TestExportFileWritesJSONLBundle(t *testing.T) {
	tmp := t.TempDir()
	input := filepath.Join(tmp, "sample.fit")
	require.NoError(t, os.WriteFile(input, activity(t), 0o644))

	outDir := filepath.Join(tmp, "export")
	res, err := ExportFile(input, outDir, Options{View: fitstream.ViewValue, CopySourceFile: true})
	require.NoError(t, err)
	require.FileExists(t, res.ManifestPath)
	require.FileExists(t, res.SourceCopyPath)
	require.True(t, res.FileCRCValid)

	raw, err := os.ReadFile(res.ManifestPath)
	require.NoError(t, err)
	var manifest Manifest
	require.NoError(t, json.Unmarshal(raw, &manifest))
	require.Equal(t, FormatVersion, manifest.FormatVersion)
	require.Equal(t, RecordsName, manifest.RecordsPath)
	require.Equal(t, "value", manifest.View)
	require.Equal(t, res.TokenCount, manifest.TokenCount)
	require.Len(t, manifest.SourceSHA256, 64)

	lines, err := os.ReadFile(res.RecordsPath)
	require.NoError(t, err)
	split := strings.Split(strings.TrimSpace(string(lines)), "\n")
	require.Len(t, split, res.TokenCount)
	var first RecordLine
	require.NoError(t, json.Unmarshal([]byte(split[0]), &first))
	require.Equal(t, "file_header", first.Kind)
	require.Zero(t, first.Offset)

	// a second export needs overwrite
	_, err = ExportFile(input, outDir, Options{})
	require.Error(t, err)
	_, err = ExportFile(input, outDir, Options{Overwrite: true, Format: "csv"})
	require.Error(t, err)
}

func TestExportFileWritesParquet(t *testing.T) {
	tmp := t.TempDir()
	input := filepath.Join(tmp, "sample.fit")
	require.NoError(t, os.WriteFile(input, activity(t), 0o644))

	res, err := ExportFile(input, filepath.Join(tmp, "pq"), Options{Format: FormatParquet, View: fitstream.ViewValue})
	require.NoError(t, err)
	require.Equal(t, ParquetName, filepath.Base(res.RecordsPath))

	raw, err := os.ReadFile(res.RecordsPath)
	require.NoError(t, err)
	fr := parquetbuffer.NewBufferFileFromBytes(raw)
	pr, err := reader.NewParquetReader(fr, new(fieldRow), 1)
	require.NoError(t, err)
	defer pr.ReadStop()

	rows := make([]fieldRow, pr.GetNumRows())
	require.NoError(t, pr.Read(&rows))
	require.NotEmpty(t, rows)

	found := false
	for _, row := range rows {
		if row.Message == "record" && row.Field == "power" {
			found = true
			require.Equal(t, 245.0, row.Number)
			require.True(t, row.Valid)
			require.Equal(t, "2026-02-26T23:00:30Z", row.TimestampUTC)
		}
	}
	require.True(t, found)
}
