package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lucasjlepore/fitcodec/internal/fittest"
)

func TestExportCommand(t *testing.T) {
	data, err := fittest.Activity()
	require.NoError(t, err)
	tmp := t.TempDir()
	input := filepath.Join(tmp, "ride.fit")
	require.NoError(t, os.WriteFile(input, data, 0o644))
	outDir := filepath.Join(tmp, "bundle")
	metricsPath := filepath.Join(tmp, "fitexport.prom")

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs([]string{"--out-dir", outDir, "--view", "names", "--metrics-file", metricsPath, input})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	require.Contains(t, stdout.String(), "Export complete")
	require.Contains(t, stdout.String(), "CRC valid:  header=true file=true")
	require.FileExists(t, filepath.Join(outDir, "manifest.json"))
	require.FileExists(t, filepath.Join(outDir, "records.jsonl"))
	require.FileExists(t, filepath.Join(outDir, "source.fit"))

	prom, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	require.Contains(t, string(prom), `fitcodec_files_total{outcome="ok",tool="fitexport"} 1`)
}

func TestExportCommandRejectsBadFlags(t *testing.T) {
	for _, args := range [][]string{
		{"--view", "pretty", "x.fit"},
		{"--format", "csv", filepath.Join(t.TempDir(), "missing.fit")},
		{},
	} {
		var stdout, stderr bytes.Buffer
		cmd := newRootCmd(&stdout, &stderr)
		cmd.SetArgs(args)
		require.Error(t, cmd.ExecuteContext(context.Background()), "%v", args)
	}
}
