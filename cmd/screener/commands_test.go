package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePairs(t *testing.T) {
	file := filepath.Join(t.TempDir(), "case.txt")
	require.NoError(t, os.WriteFile(file, []byte("Female, 40"), 0o644))

	got, err := parsePairs([]string{"path=protocol.pdf", "pages=4", "limit=10", "target=case", "text=@" + file})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"path":   "protocol.pdf",
		"pages":  "4",
		"limit":  10,
		"target": "case",
		"text":   "Female, 40",
	}, got)

	_, err = parsePairs([]string{"novalue"})
	assert.ErrorContains(t, err, "key=value")
}

func TestDialAddr(t *testing.T) {
	assert.Equal(t, "localhost:8080", dialAddr(":8080"))
	assert.Equal(t, "10.0.0.2:9000", dialAddr("10.0.0.2:9000"))
}
