// Package cursor encodes opaque keyset-pagination cursors for list commands.
package cursor

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Cursor marks the last row of a page. Lists are ordered by friendly ID,
// so the next page starts after LastID.
type Cursor struct {
	Kind   string `json:"kind"`
	LastID string `json:"last_id"`
}

// New returns a cursor positioned after lastID.
func New(kind, lastID string) *Cursor {
	return &Cursor{Kind: kind, LastID: lastID}
}

// Encode serializes the cursor to an opaque base64 string
func (c *Cursor) Encode() (string, error) {
	if c.Kind == "" || c.LastID == "" {
		return "", fmt.Errorf("cursor requires kind and last ID")
	}
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// Decode parses an encoded cursor and checks that it was issued for kind.
func Decode(encoded, kind string) (*Cursor, error) {
	if encoded == "" {
		return nil, fmt.Errorf("empty cursor string")
	}
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor encoding: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("invalid cursor format: %w", err)
	}
	if c.LastID == "" {
		return nil, fmt.Errorf("cursor missing last ID")
	}
	if c.Kind != kind {
		return nil, fmt.Errorf("cursor was issued for %q, not %q", c.Kind, kind)
	}
	return &c, nil
}
