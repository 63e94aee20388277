// Package slug derives account slugs from display names.
package slug

import (
	"fmt"
	"strings"
)

const maxSlugLen = 64

// Normalize turns a display name into a slug.
// Rules:
// - Always lower-case
// - Spaces, underscores and dots become hyphens; runs of hyphens collapse
// - Allowed characters: a-z, 0-9, -
// - Must start and end with [a-z0-9]
// - Max length: 64 bytes
func Normalize(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("slug cannot be empty")
	}

	s = strings.ToLower(s)

	var result strings.Builder
	lastHyphen := false
	for _, r := range s {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			result.WriteRune(r)
			lastHyphen = false
		case r == ' ' || r == '_' || r == '.' || r == '-':
			if !lastHyphen {
				result.WriteRune('-')
				lastHyphen = true
			}
		}
	}
	s = strings.Trim(result.String(), "-")

	if s == "" {
		return "", fmt.Errorf("slug must contain at least one letter or digit")
	}
	if len(s) > maxSlugLen {
		s = strings.TrimRight(s[:maxSlugLen], "-")
	}
	return s, nil
}
