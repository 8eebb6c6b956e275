package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestBuildAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.cbor")
	out, err := execute(t, "build", "--out", path)
	require.NoError(t, err)
	require.Contains(t, out, "Wrote "+path)

	out, err = execute(t, "show", "--artifact", path)
	require.NoError(t, err)
	require.Contains(t, out, "file_id")
	require.Contains(t, out, "record")

	out, err = execute(t, "show", "--artifact", path, "record")
	require.NoError(t, err)
	require.Contains(t, out, "record(20)")
	require.Contains(t, out, "heart_rate")

	out, err = execute(t, "show", "0")
	require.NoError(t, err)
	require.Contains(t, out, "file_id(0)")
}

func TestShowErrors(t *testing.T) {
	_, err := execute(t, "show", "no_such_message")
	require.Error(t, err)

	_, err = execute(t, "show", "--artifact", filepath.Join(t.TempDir(), "absent.cbor"))
	require.Error(t, err)

	_, err = execute(t, "build")
	require.Error(t, err)
}
