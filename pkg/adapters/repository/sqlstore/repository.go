// Package sqlstore keeps mapping records in a SQL database: embedded SQLite,
// remote libSQL (Turso) or PostgreSQL.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"

	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"

	_ "github.com/jackc/pgx/v5/stdlib"                   // Postgres driver
	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso driver
	_ "modernc.org/sqlite"                               // Local SQLite driver

	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

//go:embed migrations/*.sql
var migrations embed.FS

const mappingColumns = `short_code, original_url, created_at, click_count, is_active, created_by_ip, expires_at`

type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLRepository opens dbURL with the dialect's driver, checks the
// connection and applies pending migrations.
func NewSQLRepository(ctx context.Context, dialect Dialect, dbURL string, log logrus.FieldLogger) (*SQLRepository, error) {
	db, err := sql.Open(dialect.driverName(), dbURL)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s database", dialect)
	}
	if dialect == DialectSQLite {
		// One connection serialises writers and keeps :memory: databases whole.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "ping %s database", dialect)
	}

	if err := migrate(ctx, db, dialect, log); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLRepository{db: db, dialect: dialect}, nil
}

func migrate(ctx context.Context, db *sql.DB, dialect Dialect, log logrus.FieldLogger) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return errors.Wrap(err, "load migrations")
	}
	provider, err := goose.NewProvider(dialect.gooseDialect(), db, fsys)
	if err != nil {
		return errors.Wrap(err, "init migrations")
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return errors.Wrap(err, "run migrations")
	}
	for _, res := range results {
		log.WithFields(logrus.Fields{
			"version":  res.Source.Version,
			"duration": res.Duration,
		}).Info("applied migration")
	}
	return nil
}

func (r *SQLRepository) Exists(ctx context.Context, code string) (bool, error) {
	query := r.dialect.rebind(`SELECT 1 FROM url_mappings WHERE short_code = ?`)

	var one int
	err := r.db.QueryRowContext(ctx, query, code).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "check mapping")
	}
	return true, nil
}

func (r *SQLRepository) Create(ctx context.Context, m *domain.Mapping) error {
	query := r.dialect.rebind(`INSERT INTO url_mappings (` + mappingColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT (short_code) DO NOTHING`)

	var createdByIP sql.NullString
	if m.CreatedByIP != "" {
		createdByIP = sql.NullString{String: m.CreatedByIP, Valid: true}
	}

	res, err := r.db.ExecContext(ctx, query,
		m.ShortCode, m.OriginalURL, r.dialect.timeArg(&m.CreatedAt), m.ClickCount,
		r.dialect.boolArg(m.IsActive), createdByIP, r.dialect.timeArg(m.ExpiresAt),
	)
	if err != nil {
		return errors.Wrap(err, "insert mapping")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "insert mapping")
	}
	if n == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

func (r *SQLRepository) Get(ctx context.Context, code string) (*domain.Mapping, error) {
	query := r.dialect.rebind(`SELECT ` + mappingColumns + ` FROM url_mappings WHERE short_code = ?`)

	m, err := scanMapping(r.db.QueryRowContext(ctx, query, code))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get mapping")
	}
	return m, nil
}

func (r *SQLRepository) State(ctx context.Context, code string) (*domain.MappingState, error) {
	query := r.dialect.rebind(`SELECT click_count, is_active FROM url_mappings WHERE short_code = ?`)

	var state domain.MappingState
	err := r.db.QueryRowContext(ctx, query, code).Scan(&state.ClickCount, &state.IsActive)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get mapping state")
	}
	return &state, nil
}

// IncrementClicks relies on the database applying the read-modify-write
// of a single UPDATE atomically.
func (r *SQLRepository) IncrementClicks(ctx context.Context, code string) error {
	query := r.dialect.rebind(`UPDATE url_mappings SET click_count = click_count + 1 WHERE short_code = ?`)
	return r.updateOne(ctx, query, "increment clicks", code)
}

func (r *SQLRepository) Deactivate(ctx context.Context, code string) error {
	query := r.dialect.rebind(`UPDATE url_mappings SET is_active = ? WHERE short_code = ?`)
	return r.updateOne(ctx, query, "deactivate mapping", r.dialect.boolArg(false), code)
}

func (r *SQLRepository) updateOne(ctx context.Context, query, op string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, op)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, op)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *SQLRepository) Dump(ctx context.Context) ([]domain.Mapping, error) {
	query := `SELECT ` + mappingColumns + ` FROM url_mappings ORDER BY created_at, short_code`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "dump mappings")
	}
	defer rows.Close()

	var mappings []domain.Mapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan mapping")
		}
		mappings = append(mappings, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "dump mappings")
	}
	return mappings, nil
}

// Ping runs a trivial read rather than a bare connection check.
func (r *SQLRepository) Ping(ctx context.Context) error {
	var one int
	return r.db.QueryRowContext(ctx, `SELECT 1`).Scan(&one)
}

func (r *SQLRepository) Close() error {
	return r.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMapping(row scanner) (*domain.Mapping, error) {
	var (
		m           domain.Mapping
		createdAt   timestamp
		expiresAt   timestamp
		createdByIP sql.NullString
	)
	err := row.Scan(
		&m.ShortCode, &m.OriginalURL, &createdAt, &m.ClickCount,
		&m.IsActive, &createdByIP, &expiresAt,
	)
	if err != nil {
		return nil, err
	}
	m.CreatedAt = createdAt.Time
	m.CreatedByIP = createdByIP.String
	m.ExpiresAt = expiresAt.ptr()
	return &m, nil
}

// Ensure interface compliance
var _ ports.MappingStore = (*SQLRepository)(nil)
