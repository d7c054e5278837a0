package store

import (
	"errors"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/goliatone/basic-memory/pkg/interfaces"
)

// isUniqueViolation recognizes the unique-constraint errors both the
// sqlite3 and lib/pq drivers surface, so CreateEntity/UpdateFilePath can
// turn them into an *interfaces.ConflictError the way content/errors.go
// turns slug collisions into ErrSlugConflict.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key value")
}

func conflictError(projectID, permalink string) error {
	return &interfaces.ConflictError{ProjectID: projectID, Permalink: permalink}
}

func notFoundError(resource, key string) error {
	return &interfaces.NotFoundError{Resource: resource, Key: key}
}
