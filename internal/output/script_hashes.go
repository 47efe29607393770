package output

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

// ScriptHashSidecar is the JSON shape of the hash sidecar file. Digest order
// matches document order so the list can feed a content-security policy.
type ScriptHashSidecar struct {
	ScriptHashes []string `json:"scriptHashes"`
}

// ScriptDigest computes the CSP source expression for one inline script body.
func ScriptDigest(script string) string {
	sum := sha256.Sum256([]byte(script))
	return "sha256-" + base64.StdEncoding.EncodeToString(sum[:])
}

// ExtractScriptHashes scans markup for inline script blocks and returns one
// digest per block, in document order. Scripts loaded via src carry no inline
// body and are skipped.
func ExtractScriptHashes(markup []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}
	var hashes []string
	doc.Find("script").Each(func(_ int, sel *goquery.Selection) {
		if _, external := sel.Attr("src"); external {
			return
		}
		body := sel.Text()
		if body == "" {
			return
		}
		hashes = append(hashes, ScriptDigest(body))
	})
	return hashes, nil
}
