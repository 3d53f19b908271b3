package coefficients

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema creates the coefficient tables.
const Schema = `
CREATE TABLE IF NOT EXISTS model_coefficients (
	name  TEXT PRIMARY KEY,
	value DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS station_traffic_means (
	station_id  TEXT PRIMARY KEY,
	mean_signal DOUBLE PRECISION NOT NULL CHECK (mean_signal > 0)
);
`

// Querier is the subset of *pgxpool.Pool used by PostgresStore.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore loads coefficients from PostgreSQL.
type PostgresStore struct {
	db Querier
}

// NewPostgresStore creates a new PostgreSQL coefficient store.
func NewPostgresStore(db Querier) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the coefficient tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create coefficient schema: %w", err)
	}
	return nil
}

// Load implements Store. Scalars are rows of model_coefficients named beta,
// intercept, hour, weekend, month and signal.
func (s *PostgresStore) Load(ctx context.Context) (*Set, error) {
	query := `
		SELECT name, value
		FROM model_coefficients
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query coefficients: %w", err)
	}
	scalars, err := scanPairs(rows)
	if err != nil {
		return nil, fmt.Errorf("scan coefficients: %w", err)
	}
	if len(scalars) == 0 {
		return nil, ErrNotFound
	}

	query = `
		SELECT station_id, mean_signal
		FROM station_traffic_means
		ORDER BY station_id
	`

	rows, err = s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query traffic means: %w", err)
	}
	means, err := scanPairs(rows)
	if err != nil {
		return nil, fmt.Errorf("scan traffic means: %w", err)
	}

	beta, ok := scalars["beta"]
	if !ok {
		beta = DefaultBeta
	}

	return NewSet(beta, Regression{
		Intercept: scalars["intercept"],
		Hour:      scalars["hour"],
		Weekend:   scalars["weekend"],
		Month:     scalars["month"],
		Signal:    scalars["signal"],
	}, means, "postgres")
}

func scanPairs(rows pgx.Rows) (map[string]float64, error) {
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var (
			key   string
			value float64
		)
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		out[key] = value
	}
	return out, rows.Err()
}
