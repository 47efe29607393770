package output

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSSInlinerInlinesLinkedStylesheets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/main.css":
			_, _ = w.Write([]byte("body { color: red; }"))
		case "/print.css":
			_, _ = w.Write([]byte("body { display: none; }"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	markup := []byte(`<html><head>
<link rel="stylesheet" href="/main.css">
<link rel="stylesheet" href="/print.css" media="print">
</head><body></body></html>`)

	inliner := NewCSSInliner(nil)
	result, err := inliner.Inline(markup, srv.URL+"/")
	require.NoError(t, err)

	html := string(result)
	assert.Contains(t, html, "body { color: red; }")
	assert.Contains(t, html, `<style media="print">body { display: none; }</style>`)
	assert.NotContains(t, html, `rel="stylesheet"`, "links replaced by style elements")
}

func TestCSSInlinerNeutralizesEmbeddedCloseTag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`p::after { content: "</style><script>alert(1)</script>"; }`))
	}))
	defer srv.Close()

	markup := []byte(`<html><head><link rel="stylesheet" href="/evil.css"></head><body><p>hi</p></body></html>`)

	inliner := NewCSSInliner(nil)
	result, err := inliner.Inline(markup, srv.URL+"/")
	require.NoError(t, err)

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(result))
	require.NoError(t, err)
	assert.Zero(t, doc.Find("script").Length(), "stylesheet content must stay inside the style element")
	assert.Equal(t, 1, doc.Find("style").Length())
	assert.Contains(t, doc.Find("style").Text(), "content:")
}

func TestCSSInlinerLeavesUnfetchableLinks(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	markup := []byte(`<html><head><link rel="stylesheet" href="/missing.css"></head><body></body></html>`)

	inliner := NewCSSInliner(nil)
	result, err := inliner.Inline(markup, srv.URL+"/")
	require.NoError(t, err)

	assert.Contains(t, string(result), `href="/missing.css"`, "unfetchable stylesheet stays linked")
}
