package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"mortgage-rate-alerts/internal/store"
)

// ErrNotConfigured indicates the archive pool was not initialised.
var ErrNotConfigured = errors.New("archive: pool not configured")

const (
	createSchemaSQL = `CREATE TABLE IF NOT EXISTS observations (
        id                BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
        observed_date     DATE NOT NULL,
        observed_at       TIMESTAMPTZ NOT NULL,
        rate              NUMERIC NOT NULL,
        source            TEXT NOT NULL,
        target_rate       NUMERIC NOT NULL,
        state             TEXT NOT NULL,
        alert_sent        BOOLEAN NOT NULL DEFAULT FALSE,
        daily_report_sent BOOLEAN NOT NULL DEFAULT FALSE,
        notes             TEXT NOT NULL DEFAULT '',
        created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
    );`

	insertObservationSQL = `INSERT INTO observations (
        observed_date,
        observed_at,
        rate,
        source,
        target_rate,
        state,
        alert_sent,
        daily_report_sent,
        notes
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9
    );`

	listRecentObservationsSQL = `SELECT
        observed_date,
        observed_at,
        rate,
        source,
        target_rate,
        state,
        alert_sent,
        daily_report_sent,
        notes
    FROM observations
    ORDER BY observed_at DESC
    LIMIT $1;`

	countObservationsSQL = `SELECT COUNT(*) FROM observations;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// ObservationArchive defines the optional durable mirror of the CSV log.
type ObservationArchive interface {
	InsertObservation(ctx context.Context, obs store.Observation) error
	ListRecentObservations(ctx context.Context, limit int) ([]store.Observation, error)
	CountObservations(ctx context.Context) (int64, error)
}

// Locker exposes cross-process advisory lock helpers for overlapping
// scheduled runs.
type Locker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Options configure the archive connection pool.
type Options struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Archive mirrors observations into PostgreSQL.
type Archive struct {
	pool *pgxpool.Pool
}

// Open configures the pool and ensures the schema exists.
func Open(ctx context.Context, opts Options) (*Archive, error) {
	if opts.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = opts.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	archive := &Archive{pool: pool}
	if _, err := pool.Exec(ctx, createSchemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure archive schema: %w", err)
	}
	return archive, nil
}

// Close releases the underlying pool resources.
func (a *Archive) Close() {
	if a == nil || a.pool == nil {
		return
	}
	a.pool.Close()
}

func (a *Archive) getPool() (*pgxpool.Pool, error) {
	if a == nil || a.pool == nil {
		return nil, ErrNotConfigured
	}
	return a.pool, nil
}

// InsertObservation mirrors one observation row.
func (a *Archive) InsertObservation(ctx context.Context, obs store.Observation) error {
	pool, err := a.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, insertObservationSQL,
		obs.Date,
		obs.Timestamp,
		obs.Rate.String(),
		obs.Source,
		obs.TargetRate.String(),
		obs.State,
		obs.AlertSent,
		obs.DailyReportSent,
		obs.Notes,
	)
	if execErr != nil {
		return fmt.Errorf("insert observation: %w", execErr)
	}
	return nil
}

// ListRecentObservations lists the newest mirrored observations.
func (a *Archive) ListRecentObservations(ctx context.Context, limit int) ([]store.Observation, error) {
	pool, err := a.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentObservationsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent observations: %w", queryErr)
	}
	defer rows.Close()

	observations := make([]store.Observation, 0, limit)
	for rows.Next() {
		obs, scanErr := scanObservation(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		observations = append(observations, obs)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return observations, nil
}

// CountObservations counts mirrored rows.
func (a *Archive) CountObservations(ctx context.Context) (int64, error) {
	pool, err := a.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countObservationsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count observations: %w", scanErr)
	}
	return count, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and
// returns a release func.
func (a *Archive) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := a.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// unlock is best effort; the lock is released when the
		// connection closes anyway.
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func scanObservation(rows pgx.Rows) (store.Observation, error) {
	var (
		obs       store.Observation
		rateStr   string
		targetStr string
	)

	if err := rows.Scan(
		&obs.Date,
		&obs.Timestamp,
		&rateStr,
		&obs.Source,
		&targetStr,
		&obs.State,
		&obs.AlertSent,
		&obs.DailyReportSent,
		&obs.Notes,
	); err != nil {
		return store.Observation{}, err
	}

	rate, err := decimal.NewFromString(rateStr)
	if err != nil {
		return store.Observation{}, fmt.Errorf("parse rate: %w", err)
	}
	target, err := decimal.NewFromString(targetStr)
	if err != nil {
		return store.Observation{}, fmt.Errorf("parse target rate: %w", err)
	}

	obs.Rate = rate
	obs.TargetRate = target
	return obs, nil
}

var (
	_ ObservationArchive = (*Archive)(nil)
	_ Locker             = (*Archive)(nil)
)
