// Package gorm provides GORM-based database operations for promptvault.
package gorm

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	litedriver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// nullStringPtr creates a sql.NullString from an optional string. A non-nil
// empty string is stored as "".
func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// stringPtr converts a sql.NullString back to an optional string.
func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// fromNanos converts a stored unix-nanosecond timestamp to time.Time.
func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

// isRecordNotFound reports whether err is GORM's not-found error.
func isRecordNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// isUniqueViolation reports whether err is a unique or primary key constraint
// failure from either supported driver.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *litedriver.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

// likeEscaper escapes LIKE wildcards; patterns built from it must use ESCAPE '\'.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a case-folded substring LIKE pattern. The column side
// must be folded with foldFunc so both sides use the same rules.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}

// unicodeLowerFunc lowercases with Go's Unicode rules. SQLite's built-in
// LOWER only folds ASCII.
const unicodeLowerFunc = "unicode_lower"

func init() {
	litedriver.MustRegisterDeterministicScalarFunction(unicodeLowerFunc, 1,
		func(_ *litedriver.FunctionContext, args []driver.Value) (driver.Value, error) {
			switch v := args[0].(type) {
			case nil:
				return nil, nil
			case string:
				return strings.ToLower(v), nil
			case []byte:
				return strings.ToLower(string(v)), nil
			default:
				return v, nil
			}
		})
}

// foldFunc names the SQL function that lowercases text like strings.ToLower.
func foldFunc(db *gorm.DB) string {
	if db.Dialector.Name() == DriverSQLite {
		return unicodeLowerFunc
	}
	return "LOWER"
}

// tagMatchSQL is a condition true when the prompt's JSON tag array holds an
// element equal to the single bound argument. The comparison is exact.
func tagMatchSQL(db *gorm.DB) string {
	if db.Dialector.Name() == DriverSQLite {
		return `EXISTS (SELECT 1 FROM json_each(prompts.tags) WHERE json_each.value = ?)`
	}
	return `EXISTS (SELECT 1 FROM jsonb_array_elements_text(prompts.tags::jsonb) AS t(tag) WHERE t.tag = ?)`
}

// clampLimit bounds a caller-supplied page size.
func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
