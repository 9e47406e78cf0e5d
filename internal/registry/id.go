package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// ShortIDLen is the display width of an item ID.
const ShortIDLen = 16

// GenerateID returns the full SHA-256 hex digest of content.
func GenerateID(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// ShortID truncates id for display. IDs are always stored and compared in full.
func ShortID(id string) string {
	if len(id) <= ShortIDLen {
		return id
	}
	return id[:ShortIDLen]
}

// StatusFromCommit derives a lifecycle status from the age of the last commit.
func StatusFromCommit(lastCommit *time.Time, now time.Time) ProjectStatus {
	if lastCommit == nil || lastCommit.IsZero() {
		return StatusUnknown
	}
	days := int(now.Sub(*lastCommit).Hours() / 24)
	switch {
	case days < 30:
		return StatusActive
	case days < 90:
		return StatusMaintenance
	case days < 365:
		return StatusDeprecated
	default:
		return StatusArchived
	}
}
