package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// ErrInvalidToken is returned for tokens this package did not produce.
var ErrInvalidToken = errors.New("invalid pagination token")

// Cursor is the opaque position in a (created_at, id) ordered listing.
type Cursor struct {
	ID              string `cbor:"1,keyasint"`
	CreatedUnixNano int64  `cbor:"2,keyasint,omitempty"`
}

// After builds the cursor positioned on a row.
func After(id string, created time.Time) Cursor {
	return Cursor{ID: id, CreatedUnixNano: created.UnixNano()}
}

// IsZero reports a first-page cursor.
func (c Cursor) IsZero() bool { return c.ID == "" && c.CreatedUnixNano == 0 }

// Time returns the creation timestamp in UTC.
func (c Cursor) Time() time.Time { return time.Unix(0, c.CreatedUnixNano).UTC() }

// Encode packs a Cursor as URL-safe base64 over CBOR.
func Encode(c Cursor) (string, error) {
	b, err := cbor.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Decode parses a token produced by Encode.
// Empty token → empty cursor (first page).
func Decode(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, nil
	}

	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, ErrInvalidToken
	}

	var c Cursor
	if err := cbor.Unmarshal(b, &c); err != nil || c.ID == "" {
		return Cursor{}, ErrInvalidToken
	}
	return c, nil
}
