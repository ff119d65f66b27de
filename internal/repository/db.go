package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	DialectPostgres = dialect.Postgres
	DialectSQLite   = dialect.SQLite
)

type Config struct {
	DSN         string // postgres://... or a sqlite file DSN
	MaxConns    int32
	DialTimeout time.Duration
}

// DB is an Ent SQL driver plus the pgx pool behind it for postgres.
type DB struct {
	Dialect string
	drv     *entsql.Driver
	pool    *pgxpool.Pool
}

func isPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// sqliteDSN turns on the pragmas the schema migrator expects.
func sqliteDSN(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	if !strings.Contains(dsn, "foreign_keys") {
		dsn += sep + "_pragma=foreign_keys(1)"
		sep = "&"
	}
	if !strings.Contains(dsn, "busy_timeout") {
		dsn += sep + "_pragma=busy_timeout(5000)"
	}
	return dsn
}

// Open connects, pings and migrates the run table.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}

	var d *DB
	if isPostgres(cfg.DSN) {
		logger.Info("store.connect", "dialect", DialectPostgres)
		pc, err := pgxpool.ParseConfig(cfg.DSN)
		if err != nil {
			logger.Error("store.connect_failed", "error", err)
			return nil, err
		}
		if cfg.MaxConns > 0 {
			pc.MaxConns = cfg.MaxConns
		}
		pc.ConnConfig.RuntimeParams["application_name"] = "trial-screener"

		dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
		pool, err := pgxpool.NewWithConfig(dialCtx, pc)
		if err != nil {
			logger.Error("store.connect_failed", "error", err)
			return nil, err
		}
		// Wrap pool as *sql.DB for Ent
		d = &DB{Dialect: DialectPostgres, drv: entsql.OpenDB(dialect.Postgres, stdlib.OpenDBFromPool(pool)), pool: pool}
	} else {
		dsn := sqliteDSN(cfg.DSN)
		logger.Info("store.connect", "dialect", DialectSQLite, "dsn", dsn)
		sqlDB, err := sql.Open("sqlite", dsn)
		if err != nil {
			logger.Error("store.connect_failed", "error", err)
			return nil, err
		}
		d = &DB{Dialect: DialectSQLite, drv: entsql.OpenDB(dialect.SQLite, sqlDB)}
	}

	if err := d.HealthCheck(ctx, cfg.DialTimeout); err != nil {
		d.Close(logger)
		return nil, fmt.Errorf("ping store: %w", err)
	}
	if err := d.Migrate(ctx); err != nil {
		d.Close(logger)
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	logger.Info("store.ready", "dialect", d.Dialect)
	return d, nil
}

// Close closes the database connections gracefully
func (d *DB) Close(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := d.drv.Close(); err != nil {
		logger.Error("store.close_failed", "error", err)
	}
	if d.pool != nil {
		d.pool.Close()
	}
}

// HealthCheck pings the pool for postgres and the sql handle for sqlite.
func (d *DB) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if d.pool != nil {
		return d.pool.Ping(ctx)
	}
	return d.drv.DB().PingContext(ctx)
}

// Migrate creates or updates the run table. It is safe to call repeatedly.
func (d *DB) Migrate(ctx context.Context) error {
	m, err := schema.NewMigrate(d.drv)
	if err != nil {
		return err
	}
	return m.Create(ctx, runsTable)
}

func (d *DB) builder() *entsql.DialectBuilder {
	return entsql.Dialect(d.Dialect)
}

const runsTableName = "screening_runs"

var (
	runsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "criteria_path", Type: field.TypeString},
		{Name: "criteria_pages", Type: field.TypeString},
		{Name: "case_path", Type: field.TypeString},
		{Name: "criteria_text", Type: field.TypeString, Size: 2147483647},
		{Name: "case_text", Type: field.TypeString, Size: 2147483647},
		{Name: "verdict", Type: field.TypeString, Size: 2147483647},
		{Name: "success", Type: field.TypeBool},
		{Name: "notices", Type: field.TypeString, Size: 2147483647},
		{Name: "model", Type: field.TypeString},
		{Name: "request_id", Type: field.TypeString},
	}
	runsTable = &schema.Table{
		Name:       runsTableName,
		Columns:    runsColumns,
		PrimaryKey: []*schema.Column{runsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "screeningrun_created_at", Columns: []*schema.Column{runsColumns[1]}},
		},
	}
)

// runColumns lists the column names in table order.
func runColumns() []string {
	names := make([]string, len(runsColumns))
	for i, c := range runsColumns {
		names[i] = c.Name
	}
	return names
}
