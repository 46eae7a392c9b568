package logger

import (
	"os"
	"path/filepath"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contract-hooks/internal/types"
)

func TestNewWritesLogFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	log, err := New(Options{Debug: true, Dir: dir})
	require.NoError(t, err)
	log.Debug("debug line")
	_ = log.Sync()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), "debug line")
}

func TestTransactionFields(t *testing.T) {
	tx := &types.Transaction{Name: "Orders > 201", Request: types.Request{Method: "POST", URI: "/api/orders"}}
	fields := TransactionFields(tx, types.OutcomeSuccess)
	require.Len(t, fields, 4)
	assert.Equal(t, "transaction", fields[0].Key)
	assert.Equal(t, "Orders > 201", fields[0].String)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "abc", Preview("abc", 5))
	assert.Equal(t, "abcde...", Preview("abcdefgh", 5))

	cut := Preview("tökén-日本語-secret", 8)
	assert.Equal(t, "tökén-日本...", cut)
	assert.True(t, utf8.ValidString(cut))
	assert.Equal(t, "日本語", Preview("日本語", 3))
}
