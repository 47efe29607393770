package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListProviderResolvesRelativeIdentifiers(t *testing.T) {
	p, err := NewListProvider("https://example.org", []string{"/", "/about", "https://other.org/page"})
	require.NoError(t, err)

	pages, err := p.Pages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://example.org/",
		"https://example.org/about",
		"https://other.org/page",
	}, pages)
}

func TestListProviderDeduplicates(t *testing.T) {
	p, err := NewListProvider("https://example.org", []string{"/a", "/b", "/a", "https://example.org/b"})
	require.NoError(t, err)

	pages, err := p.Pages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.org/a", "https://example.org/b"}, pages)
}

func TestListProviderRelativeWithoutBase(t *testing.T) {
	p, err := NewListProvider("", []string{"/about"})
	require.NoError(t, err)

	_, err = p.Pages(context.Background())
	assert.Error(t, err)
}

func TestListProviderRejectsBadBase(t *testing.T) {
	_, err := NewListProvider("example.org", nil)
	assert.Error(t, err, "base without scheme is not absolute")
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases host", "https://Example.ORG/Path", "https://example.org/Path"},
		{"drops default https port", "https://example.org:443/x", "https://example.org/x"},
		{"drops default http port", "http://example.org:80/x", "http://example.org/x"},
		{"drops fragment", "https://example.org/x#frag", "https://example.org/x"},
		{"sorts query", "https://example.org/x?b=2&a=1", "https://example.org/x?a=1&b=2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Normalize(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
