package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const counterDoc = `
namespace: world
tables:
  Counter: uint32
  Position:
    schema:
      player: address
      x: int32
    key: [player]
`

const brokenDoc = `
tables:
  Owner:
    schema:
      owner: address
    key: [missing]
  Other:
    schema:
      value: notAType
`

func writeInput(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mud.config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	var stdout, stderr bytes.Buffer
	err := run(args, &stdout, &stderr)
	return stdout.String(), err
}

func TestRun_Version(t *testing.T) {
	out, err := runCLI(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, "storecfg dev (none)\n", out)
}

func TestRun_Help(t *testing.T) {
	out, err := runCLI(t, "--help")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRun_UnknownFlag(t *testing.T) {
	_, err := runCLI(t, "--no-such-flag")
	assert.Error(t, err)
}

func TestRun_MissingInput(t *testing.T) {
	_, err := runCLI(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")
}

func TestRun_ResolveToStdout(t *testing.T) {
	out, err := runCLI(t, writeInput(t, counterDoc))
	require.NoError(t, err)

	var doc struct {
		Tables map[string]struct {
			Key []string `json:"key"`
		} `json:"tables"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.Contains(t, doc.Tables, "world__Counter")
	assert.Equal(t, []string{"value"}, doc.Tables["world__Counter"].Key)
	assert.Equal(t, []string{"player"}, doc.Tables["world__Position"].Key)
}

func TestRun_CompactJSON(t *testing.T) {
	out, err := runCLI(t, "--output.compact", writeInput(t, counterDoc))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestRun_FormatFlag(t *testing.T) {
	out, err := runCLI(t, "--output.format", "yaml", "--input.path", writeInput(t, counterDoc))
	require.NoError(t, err)
	assert.Contains(t, out, "world__Counter:")
	assert.False(t, json.Valid([]byte(out)))
}

func TestRun_ResolveToFile(t *testing.T) {
	input := writeInput(t, counterDoc)
	output := filepath.Join(t.TempDir(), "store.yaml")

	out, err := runCLI(t, "-o", output, input)
	require.NoError(t, err)
	assert.Empty(t, out)

	written, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(written), "world__Position:")
}

func TestRun_ResolveErrors(t *testing.T) {
	out, err := runCLI(t, writeInput(t, brokenDoc))
	require.ErrorIs(t, err, errResolveFailed)
	assert.Empty(t, out)
}

func TestRun_UnreadableInput(t *testing.T) {
	_, err := runCLI(t, filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read store document")
}
