package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns what it wrote to
// stdout. Diagnostics are discarded.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeContext(t, context.Background(), args...)
}

func executeContext(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

// seededDB returns a fresh database loaded with testdata/fixture.yaml.
func seededDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nbhd.db")
	_, err := execute(t, "seed", "--db", path, filepath.Join("testdata", "fixture.yaml"))
	require.NoError(t, err)
	return path
}

// decodeResponse parses a CLIResponse whose data is decoded into data.
func decodeResponse(t *testing.T, raw string, data any) CLIResponse {
	t.Helper()
	var envelope struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &envelope), "output: %s", raw)
	if data != nil && len(envelope.Data) > 0 {
		require.NoError(t, json.Unmarshal(envelope.Data, data))
	}
	return CLIResponse{Status: envelope.Status, Error: envelope.Error}
}
