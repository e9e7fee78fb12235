package handler

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/444radio/radio-be/internal/api/storage"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// DecodeCursor parses the opaque base64 "unixnano|id" cursor handed out by EncodeCursor
func DecodeCursor(cursorStr string) (*storage.Cursor, error) {
	if cursorStr == "" {
		return nil, nil
	}

	decoded, err := base64.URLEncoding.DecodeString(cursorStr)
	if err != nil {
		return nil, err
	}

	createdPart, id, ok := strings.Cut(string(decoded), "|")
	if !ok || id == "" {
		return nil, fmt.Errorf("invalid cursor format")
	}

	var createdAt int64
	if _, err := fmt.Sscanf(createdPart, "%d", &createdAt); err != nil {
		return nil, fmt.Errorf("invalid createdAt in cursor: %w", err)
	}

	return &storage.Cursor{
		CreatedAt: time.Unix(0, createdAt),
		ID:        id,
	}, nil
}

func EncodeCursor(createdAt time.Time, id string) string {
	cs := fmt.Sprintf("%d|%s", createdAt.UnixNano(), id)
	return base64.URLEncoding.EncodeToString([]byte(cs))
}

// pageFrom clamps the page size and decodes the cursor
func pageFrom(size int, cursor string) (storage.Page, error) {
	if size <= 0 {
		size = defaultPageSize
	}
	size = min(size, maxPageSize)

	c, err := DecodeCursor(cursor)
	if err != nil {
		return storage.Page{}, err
	}
	return storage.Page{Size: size, Cursor: c}, nil
}

// trimPage drops the lookahead row and returns the cursor of the last kept row, if more exist
func trimPage[T any](rows []T, size int, key func(T) (time.Time, string)) ([]T, string) {
	if len(rows) <= size {
		return rows, ""
	}
	rows = rows[:size]
	createdAt, id := key(rows[len(rows)-1])
	return rows, EncodeCursor(createdAt, id)
}
