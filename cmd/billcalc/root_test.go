package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/phonebill/internal/billing"
)

const phoneLog = `420774567454,13-01-2025 08:05:10,13-01-2025 08:10:20
420776562353,13-01-2025 15:55:00,13-01-2025 16:05:30
420774567453,14-01-2025 09:00:00,14-01-2025 09:07:45
`

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(strings.NewReader(stdin), &stdout, &stderr)
	cmd.SetArgs(append([]string{"--no-color"}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestBillFromStdin(t *testing.T) {
	out, _, err := execute(t, phoneLog)
	require.NoError(t, err)
	require.Contains(t, out, "Total: 17.0 CZK")
	require.Contains(t, out, "Calls: 3 (3 billed)")
	require.NotContains(t, out, "Free destination")
}

func TestBillFromFileAsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calls.csv")
	withRepeat := phoneLog + "420774567454,15-01-2025 20:00:00,15-01-2025 20:00:30\n"
	require.NoError(t, os.WriteFile(path, []byte(withRepeat), 0o600))

	out, _, err := execute(t, "", "--json", path)
	require.NoError(t, err)

	var bill billOutput
	require.NoError(t, json.Unmarshal([]byte(out), &bill))
	require.Equal(t, "11.8", bill.Total)
	require.Equal(t, "420774567454", bill.FreeDestination)
	require.Equal(t, 4, bill.Calls)
	require.Equal(t, 2, bill.BilledCalls)
}

func TestBillRejectsInvalidLog(t *testing.T) {
	_, _, err := execute(t, "just random input")
	require.ErrorIs(t, err, billing.ErrInvalidInput)
}

func TestBillSkipInvalid(t *testing.T) {
	input := phoneLog + "not,a,call\n"
	_, _, err := execute(t, input)
	require.Error(t, err)

	out, stderr, err := execute(t, input, "--skip-invalid")
	require.NoError(t, err)
	require.Contains(t, out, "Total: 17.0 CZK")
	require.Contains(t, out, "Skipped 1 invalid line(s)")
	require.Contains(t, stderr, "skipping invalid call record")
}

func TestBillMissingFile(t *testing.T) {
	_, _, err := execute(t, "", filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
}
