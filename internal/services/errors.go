package services

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation    = "23505"
	mysqlDuplicateEntry  = 1062
	sqliteUniqueFragment = "unique constraint failed"
)

// isUniqueConstraintError detects uniqueness violations across the supported
// drivers. Registration relies on it to tell member-id collisions apart from
// username and email conflicts.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == pgUniqueViolation {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == mysqlDuplicateEntry {
		return true
	}

	// The sqlite driver surfaces constraint failures as plain strings.
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, sqliteUniqueFragment) ||
		strings.Contains(lower, "duplicate") ||
		strings.Contains(lower, "unique")
}
