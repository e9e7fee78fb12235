package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/444radio/radio-be/internal/domain"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Storage is the api-service view of the managed Postgres database
type Storage struct {
	db *sqlx.DB
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{
		db: db,
	}
}

// Cursor points at the last row of a page ordered by (created_at DESC, id DESC)
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// Page is a keyset page request. Queries fetch Size+1 rows so callers can tell whether more exist.
type Page struct {
	Size   int
	Cursor *Cursor
}

// keyset appends the cursor predicate, ordering and limit to query
func (p Page) keyset(query string, args []any, createdCol, idCol string) (string, []any) {
	argIdx := len(args) + 1
	if p.Cursor != nil {
		query += fmt.Sprintf(" AND (%s, %s) < ($%d, $%d)", createdCol, idCol, argIdx, argIdx+1)
		args = append(args, p.Cursor.CreatedAt, p.Cursor.ID)
		argIdx += 2
	}

	query += fmt.Sprintf(" ORDER BY %s DESC, %s DESC", createdCol, idCol)
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, p.Size+1)
	return query, args
}

// notFound turns sql.ErrNoRows into domain.ErrNotFound
func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
