package coefficients_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cityview/urbanimpact/internal/coefficients"
)

type pair struct {
	key   string
	value float64
}

// fakeRows iterates over (text, double) pairs.
type fakeRows struct {
	pairs []pair
	pos   int
}

func (r *fakeRows) Close() {}
func (r *fakeRows) Err() error { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error) { return nil, nil }
func (r *fakeRows) RawValues() [][]byte { return nil }
func (r *fakeRows) Conn() *pgx.Conn { return nil }

func (r *fakeRows) Next() bool {
	r.pos++
	return r.pos <= len(r.pairs)
}

func (r *fakeRows) Scan(dest ...any) error {
	if len(dest) != 2 {
		return fmt.Errorf("expected 2 destinations, got %d", len(dest))
	}
	p := r.pairs[r.pos-1]
	*dest[0].(*string) = p.key
	*dest[1].(*float64) = p.value
	return nil
}

type fakeDB struct {
	scalars []pair
	means   []pair
	err     error
	execSQL string
}

func (db *fakeDB) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	if db.err != nil {
		return nil, db.err
	}
	if strings.Contains(sql, "station_traffic_means") {
		return &fakeRows{pairs: db.means}, nil
	}
	return &fakeRows{pairs: db.scalars}, nil
}

func (db *fakeDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	db.execSQL = sql
	return pgconn.CommandTag{}, db.err
}

func TestPostgresStore_Load(t *testing.T) {
	db := &fakeDB{
		scalars: []pair{{"beta", 0.35}, {"intercept", -0.5}, {"signal", 0.45}, {"hour", 0.002}},
		means:   []pair{{"bopal", 1.1e6}, {"naroda", 3.3e6}},
	}

	set, err := coefficients.NewPostgresStore(db).Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0.35, set.Beta())
	assert.Equal(t, coefficients.Regression{Intercept: -0.5, Hour: 0.002, Signal: 0.45}, set.Regression())
	assert.Equal(t, []string{"bopal", "naroda"}, set.StationIDs())
	assert.Equal(t, "postgres", set.Source())
}

func TestPostgresStore_Load_MissingBeta(t *testing.T) {
	db := &fakeDB{scalars: []pair{{"signal", 0.4}}}

	set, err := coefficients.NewPostgresStore(db).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, coefficients.DefaultBeta, set.Beta())
}

func TestPostgresStore_Load_Empty(t *testing.T) {
	_, err := coefficients.NewPostgresStore(&fakeDB{}).Load(context.Background())
	assert.ErrorIs(t, err, coefficients.ErrNotFound)
}

func TestPostgresStore_Load_QueryError(t *testing.T) {
	_, err := coefficients.NewPostgresStore(&fakeDB{err: errors.New("no connection")}).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no connection")
}

func TestPostgresStore_EnsureSchema(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, coefficients.NewPostgresStore(db).EnsureSchema(context.Background()))
	assert.Contains(t, db.execSQL, "CREATE TABLE IF NOT EXISTS model_coefficients")
	assert.Contains(t, db.execSQL, "station_traffic_means")
}
