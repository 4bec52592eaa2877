package sqlxrepos

import (
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
)

// psql builds postgres flavoured queries.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const (
	uniqueViolation           = "23505"
	invalidTextRepresentation = "22P02" // e.g. a malformed UUID
)

func isUniqueViolation(err error, constraint string) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == uniqueViolation && (constraint == "" || pqErr.Constraint == constraint)
}

func notFound(err error, notFoundErr error) error {
	if err == sql.ErrNoRows {
		return notFoundErr
	}
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == invalidTextRepresentation {
		return notFoundErr
	}
	return err
}
