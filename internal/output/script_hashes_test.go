package output

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractScriptHashes(t *testing.T) {
	markup := []byte(`<html><head>
<script>window.__DATA__ = {"a": 1};</script>
<script src="/app.js"></script>
</head><body>
<script>console.log("hi");</script>
</body></html>`)

	hashes, err := ExtractScriptHashes(markup)
	require.NoError(t, err)
	require.Len(t, hashes, 2, "one digest per inline block, src scripts skipped")

	// Recomputing the digest of each recovered block reproduces the sidecar
	// entry.
	assert.Equal(t, ScriptDigest(`window.__DATA__ = {"a": 1};`), hashes[0])
	assert.Equal(t, ScriptDigest(`console.log("hi");`), hashes[1])
	assert.NotEqual(t, hashes[0], hashes[1])
}

func TestExtractScriptHashesNoScripts(t *testing.T) {
	hashes, err := ExtractScriptHashes([]byte("<html><body><p>static</p></body></html>"))
	require.NoError(t, err)
	assert.Empty(t, hashes)
}

func TestScriptDigestFormat(t *testing.T) {
	digest := ScriptDigest("var x = 1;")
	assert.Regexp(t, `^sha256-[A-Za-z0-9+/]+={0,2}$`, digest)
}
