// Package cursor encodes keyset pagination cursors for message history.
// A cursor is the (created_at, id) of the last message on a page, packed
// as base64("us|id") so clients treat it as opaque. Microsecond precision
// matches the store's timestamp resolution; coarser encodings can skip
// rows spaced closer than the encoding step.
package cursor

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

func Encode(createdAt time.Time, id string) string {
	raw := fmt.Sprintf("%d|%s", createdAt.UnixMicro(), id)
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

func Decode(cursor string) (time.Time, string, error) {
	raw, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("malformed cursor: %w", err)
	}

	us, id, ok := strings.Cut(string(raw), "|")
	if !ok || id == "" {
		return time.Time{}, "", fmt.Errorf("malformed cursor")
	}

	micros, err := strconv.ParseInt(us, 10, 64)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("malformed cursor timestamp: %w", err)
	}
	return time.UnixMicro(micros).UTC(), id, nil
}
