// Package repository defines the persistence layer for templates, users
// and workbook instances, together with error values shared across the
// repositories. These sentinel values allow higher layers such as the
// services to distinguish between different failure scenarios without
// inspecting driver errors: ErrNotFound means the row does not exist (or
// is not owned by the caller), while ErrDuplicate signals that a unique
// index rejected an insert, e.g. a second instance for the same template
// and user.
package repository

import (
    "errors"

    "github.com/go-sql-driver/mysql"
    "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a lookup or ownership-scoped write matches
// no row.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a unique index.
var ErrDuplicate = errors.New("duplicate")

// isDuplicate recognises unique-key violations from either driver.
func isDuplicate(err error) bool {
    var me *mysql.MySQLError
    if errors.As(err, &me) {
        return me.Number == 1062
    }
    var se sqlite3.Error
    if errors.As(err, &se) {
        return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
    }
    return false
}
