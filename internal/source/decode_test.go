package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "funds.json")
	body := `{"payload": {"rows": [
		{"Fund_ID": 101, "Fund_Name": "Alpha Bluechip", "Category": "large cap", "NAV": "45.2"},
		"garbage"
	]}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	batch, err := ReadFile(path, "$.payload.rows")
	require.NoError(t, err)
	require.Len(t, batch.Records, 1)
	assert.Equal(t, "101", batch.Records[0].FundID)
	assert.Equal(t, 1, batch.Skipped)

	_, err = ReadFile(path, "")
	assert.ErrorIs(t, err, ErrUnsupportedPayload)
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.json"), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDecodeBareArray(t *testing.T) {
	batch, err := Decode([]byte(`[{"Fund_ID":"MF1","Fund_Name":"A","Category":"Mid Cap"}]`), "")
	require.NoError(t, err)
	assert.Len(t, batch.Records, 1)
	assert.Empty(t, batch.Warnings)
}
