// Package sqlxrepos implements the repositories over Postgres with sqlx.
// Every method accepts an optional core.DBExecutor (a *sql.Tx, *sql.Conn, ...) overriding the repository's DB.
package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
)

type base struct {
	exec core.DBExecutor
}

func (b base) getExec(exec []core.DBExecutor) core.DBExecutor {
	if len(exec) > 0 && exec[0] != nil {
		return exec[0]
	}
	return b.exec
}

// selectAll runs a query and scans every row into dest, a pointer to a slice of structs.
func selectAll(ctx context.Context, exec core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return sqlx.StructScan(rows, dest) // closes rows
}

// selectIn is selectAll for queries holding an IN (?) list; query uses ? bindvars.
func selectIn(ctx context.Context, exec core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	q, qArgs, err := sqlx.In(query, args...)
	if err != nil {
		return errors.Wrap(err, "expanding IN query")
	}
	return selectAll(ctx, exec, dest, sqlx.Rebind(sqlx.DOLLAR, q), qArgs...)
}

// execNamed runs a statement using :name parameters bound from arg's db tags.
func execNamed(ctx context.Context, exec core.DBExecutor, query string, arg interface{}) (int64, error) {
	q, args, err := sqlx.Named(query, arg)
	if err != nil {
		return 0, errors.Wrap(err, "binding named query")
	}
	res, err := exec.ExecContext(ctx, sqlx.Rebind(sqlx.DOLLAR, q), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func orderBy(ordering []core.DBOrdering, allowed map[string]string, fallback string) string {
	clauses := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		col, ok := allowed[ord.Field]
		if !ok {
			continue
		}
		clauses = append(clauses, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
	}
	if len(clauses) == 0 {
		return " ORDER BY " + fallback
	}
	out := " ORDER BY "
	for i, c := range clauses {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}
