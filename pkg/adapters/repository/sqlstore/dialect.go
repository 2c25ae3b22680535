package sqlstore

import (
	"strconv"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
)

// Dialect selects the database/sql driver and its SQL quirks.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectLibSQL   Dialect = "libsql"
	DialectPostgres Dialect = "postgres"
)

// DetectDialect guesses the dialect from a connection URL.
func DetectDialect(dbURL string) Dialect {
	switch {
	case strings.Contains(dbURL, "libsql://") || strings.Contains(dbURL, "wss://"):
		return DialectLibSQL
	case strings.HasPrefix(dbURL, "postgres://") || strings.HasPrefix(dbURL, "postgresql://"):
		return DialectPostgres
	default:
		return DialectSQLite
	}
}

func (d Dialect) driverName() string {
	switch d {
	case DialectLibSQL:
		return "libsql"
	case DialectPostgres:
		return "pgx"
	default:
		return "sqlite"
	}
}

func (d Dialect) gooseDialect() goose.Dialect {
	switch d {
	case DialectLibSQL:
		return goose.DialectTurso
	case DialectPostgres:
		return goose.DialectPostgres
	default:
		return goose.DialectSQLite3
	}
}

// rebind rewrites ? placeholders as $n for postgres.
func (d Dialect) rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Fixed-width UTC so text timestamps sort chronologically.
const sortableTime = "2006-01-02T15:04:05.000000000Z07:00"

// Postgres takes native values; sqlite flavours store text and integers.
func (d Dialect) timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	if d == DialectPostgres {
		return t.UTC()
	}
	return t.UTC().Format(sortableTime)
}

func (d Dialect) boolArg(b bool) any {
	if d == DialectPostgres {
		return b
	}
	if b {
		return 1
	}
	return 0
}
