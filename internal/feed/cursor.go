package feed

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Cursor is the resume point for a timeline page: the sort key of the last
// item on the previous page. It is opaque to callers but carries no MAC,
// because unlike the session token it crosses no trust boundary.
type Cursor struct {
	CreatedAt time.Time
	ID        uint64
}

// EncodeCursor renders the cursor as base64url("createdAt|id").
func EncodeCursor(cursor Cursor) string {
	raw := cursor.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + strconv.FormatUint(cursor.ID, 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses an opaque cursor value. Malformed input reports ok=false
// and callers treat it as "no cursor" rather than an error.
func DecodeCursor(value string) (Cursor, bool) {
	if value == "" {
		return Cursor{}, false
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return Cursor{}, false
	}
	createdPart, idPart, found := strings.Cut(string(raw), "|")
	if !found {
		return Cursor{}, false
	}
	createdAt, err := time.Parse(time.RFC3339Nano, createdPart)
	if err != nil {
		return Cursor{}, false
	}
	id, err := strconv.ParseUint(idPart, 10, 64)
	if err != nil {
		return Cursor{}, false
	}
	return Cursor{CreatedAt: createdAt, ID: id}, true
}

// cursorForPost derives the next-page cursor from the last row of a full page.
func cursorForPost(post Post) string {
	return EncodeCursor(Cursor{CreatedAt: post.CreatedAt, ID: post.ID})
}

// String aids log output; the decoded form is never shown to clients.
func (c Cursor) String() string {
	return fmt.Sprintf("%s|%d", c.CreatedAt.UTC().Format(time.RFC3339Nano), c.ID)
}
