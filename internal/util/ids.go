package util

import (
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const nanoidLength = 21

// NewCorrelationID returns a fresh id used to follow one ingest request from
// the HTTP handler through the queue and worker logs.
func NewCorrelationID() string {
	id, err := gonanoid.New()
	if err != nil {
		return ""
	}
	return id
}

// CorrelationIDOrNew returns id when it looks like a nanoid and a fresh id
// otherwise.
func CorrelationIDOrNew(id string) string {
	id = strings.TrimSpace(id)
	if isNanoid(id) {
		return id
	}
	return NewCorrelationID()
}

// IsCorrelationID reports whether s has the length and alphabet of a
// generated correlation id.
func IsCorrelationID(s string) bool {
	return isNanoid(s)
}

func isNanoid(s string) bool {
	if len(s) != nanoidLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}
