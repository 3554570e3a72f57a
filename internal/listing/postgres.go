package listing

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/kjstillabower/rent-lookup-service/internal/models"
)

const (
	neighborhoodsQuery = `SELECT id, name, lat, lon FROM neighborhoods ORDER BY position, id`
	propertiesQuery    = `SELECT neighborhood_id, type, avg_price, min_price, max_price, trend FROM properties ORDER BY neighborhood_id, position, id`
)

// PostgresSource reads the dataset from the read-only neighborhoods and properties tables.
// properties.trend is a numeric[] of four points, oldest first.
type PostgresSource struct {
	db *sql.DB
}

// NewPostgresSource wraps an open database handle.
func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

// OpenPostgres opens dsn with the lib/pq driver and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresSource, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &PostgresSource{db: db}, nil
}

// Close closes the database handle.
func (s *PostgresSource) Close() error {
	return s.db.Close()
}

// Load implements Source.
func (s *PostgresSource) Load(ctx context.Context) ([]models.Neighborhood, error) {
	rows, err := s.db.QueryContext(ctx, neighborhoodsQuery)
	if err != nil {
		return nil, fmt.Errorf("postgres: query neighborhoods: %w", err)
	}
	defer rows.Close()

	var ns []models.Neighborhood
	index := make(map[int64]int)
	for rows.Next() {
		var (
			id int64
			n  models.Neighborhood
		)
		if err := rows.Scan(&id, &n.Name, &n.Coordinates.Lat, &n.Coordinates.Lon); err != nil {
			return nil, fmt.Errorf("postgres: scan neighborhood: %w", err)
		}
		index[id] = len(ns)
		ns = append(ns, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: neighborhoods: %w", err)
	}

	prows, err := s.db.QueryContext(ctx, propertiesQuery)
	if err != nil {
		return nil, fmt.Errorf("postgres: query properties: %w", err)
	}
	defer prows.Close()

	for prows.Next() {
		var (
			nid   int64
			p     models.Property
			trend pq.Float64Array
		)
		if err := prows.Scan(&nid, &p.Type, &p.AvgPrice, &p.Min, &p.Max, &trend); err != nil {
			return nil, fmt.Errorf("postgres: scan property: %w", err)
		}
		i, ok := index[nid]
		if !ok {
			return nil, fmt.Errorf("postgres: property %q references unknown neighborhood %d", p.Type, nid)
		}
		p.Trend = []float64(trend)
		ns[i].Properties = append(ns[i].Properties, p)
	}
	if err := prows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: properties: %w", err)
	}
	return ns, nil
}
