package output

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapPath(t *testing.T) {
	cases := []struct {
		name       string
		subfolder  string
		identifier string
		want       string
	}{
		{"root", "", "/", "rendered/index.html"},
		{"directory-like", "", "/blog", "rendered/blog/index.html"},
		{"trailing slash", "", "/blog/", "rendered/blog/index.html"},
		{"exact html", "", "/blog.html", "rendered/blog.html"},
		{"nested", "", "/docs/guide", "rendered/docs/guide/index.html"},
		{"absolute url", "", "https://example.org/about", "rendered/about/index.html"},
		{"absolute url root", "", "https://example.org/", "rendered/index.html"},
		{"query ignored", "", "/search?q=x", "rendered/search/index.html"},
		{"subfolder root", "dev", "/", "rendered/dev/index.html"},
		{"subfolder directory", "dev", "/blog", "rendered/dev/blog/index.html"},
		{"subfolder exact html", "dev", "/blog.html", "rendered/dev/blog.html"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := MapPath("rendered", tc.subfolder, tc.identifier)
			require.NoError(t, err)
			assert.Equal(t, filepath.FromSlash(tc.want), got)
		})
	}
}

func TestMapPathIsDeterministic(t *testing.T) {
	first, err := MapPath("rendered", "dev", "/blog")
	require.NoError(t, err)
	second, err := MapPath("rendered", "dev", "/blog")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSidecarPath(t *testing.T) {
	assert.Equal(t, "rendered/blog.json", SidecarPath("rendered/blog.html"))
	assert.Equal(t, filepath.FromSlash("rendered/blog/index.json"), SidecarPath(filepath.FromSlash("rendered/blog/index.html")))
}
