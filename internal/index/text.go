package index

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/kamusis/cerebro/internal/registry"
)

// contentPrefixRunes bounds how much of an item's content is embedded.
const contentPrefixRunes = 500

// CanonicalText returns the text embedded for an item: its title, then the
// first 500 runes of its content.
func CanonicalText(it registry.IntelligenceItem) string {
	content := it.Content
	if r := []rune(content); len(r) > contentPrefixRunes {
		content = string(r[:contentPrefixRunes])
	}
	title := strings.TrimSpace(it.Title)
	if title == "" {
		return content
	}
	return title + ". " + content
}

// TextHash returns a sha256 hash (hex) of text.
func TextHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
