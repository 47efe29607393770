package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressRoundTrip(t *testing.T) {
	original := []byte("<html><body>" + string(bytes.Repeat([]byte("staticsnap "), 500)) + "</body></html>")

	compressed, err := Compress(original)
	require.NoError(t, err)
	assert.Less(t, len(compressed), len(original), "repetitive markup should shrink")

	restored, err := Decompress(compressed)
	require.NoError(t, err)
	assert.Equal(t, original, restored)
}

func TestDecompressRejectsGarbage(t *testing.T) {
	_, err := Decompress([]byte("not gzip"))
	assert.Error(t, err)
}
