// Package output maps render outcomes onto the output tree and applies the
// configured transforms before writing.
package output

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// MapPath resolves a page identifier to its file path under root. The path
// component of the identifier mirrors into the tree; directory-like
// identifiers gain an index.html leaf:
//
//	"/"          -> root/index.html
//	"/blog"      -> root/blog/index.html
//	"/blog.html" -> root/blog.html
//
// A non-empty subfolder is inserted between root and the mirrored path. The
// mapping is total and idempotent per identifier.
func MapPath(root, subfolder, identifier string) (string, error) {
	u, err := url.Parse(identifier)
	if err != nil {
		return "", fmt.Errorf("parse identifier %q: %w", identifier, err)
	}
	rel := strings.Trim(u.Path, "/")
	switch {
	case rel == "":
		rel = "index.html"
	case strings.HasSuffix(rel, ".html"):
	default:
		rel = rel + "/index.html"
	}
	parts := []string{root}
	if subfolder != "" {
		parts = append(parts, subfolder)
	}
	parts = append(parts, filepath.FromSlash(rel))
	return filepath.Join(parts...), nil
}

// SidecarPath swaps the file suffix for .json, holding page metadata next to
// the page content.
func SidecarPath(htmlPath string) string {
	return strings.TrimSuffix(htmlPath, filepath.Ext(htmlPath)) + ".json"
}
