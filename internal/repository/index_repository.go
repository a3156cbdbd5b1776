package repository

import (
	"context"
	"fmt"

	"gitlab.com/yelinaung/lease-engine/internal/database"
	"gitlab.com/yelinaung/lease-engine/internal/models"
)

// IndexRepository handles published reference index values.
type IndexRepository struct {
	db database.PGXDB
}

// NewIndexRepository creates a new IndexRepository.
func NewIndexRepository(db database.PGXDB) *IndexRepository {
	return &IndexRepository{db: db}
}

// Upsert stores or corrects the value of one quarter.
func (r *IndexRepository) Upsert(ctx context.Context, series string, point models.IndexPoint) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO index_values (series, year, quarter, value)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (series, year, quarter) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = NOW()
	`, series, point.Year, point.Quarter, point.Value)
	if err != nil {
		return fmt.Errorf("failed to upsert index value %d-Q%d: %w", point.Year, point.Quarter, err)
	}
	return nil
}

// Get retrieves the value of one quarter.
func (r *IndexRepository) Get(ctx context.Context, series string, year, quarter int) (*models.IndexPoint, error) {
	p := models.IndexPoint{Year: year, Quarter: quarter}
	err := r.db.QueryRow(ctx, `
		SELECT value FROM index_values WHERE series = $1 AND year = $2 AND quarter = $3
	`, series, year, quarter).Scan(&p.Value)
	if err != nil {
		return nil, notFound(err, "index value")
	}
	return &p, nil
}

// List returns every stored quarter of a series in chronological order.
func (r *IndexRepository) List(ctx context.Context, series string) ([]models.IndexPoint, error) {
	rows, err := r.db.Query(ctx, `
		SELECT year, quarter, value FROM index_values
		WHERE series = $1
		ORDER BY year, quarter
	`, series)
	if err != nil {
		return nil, fmt.Errorf("failed to query index values: %w", err)
	}
	defer rows.Close()

	var points []models.IndexPoint
	for rows.Next() {
		var p models.IndexPoint
		if err := rows.Scan(&p.Year, &p.Quarter, &p.Value); err != nil {
			return nil, fmt.Errorf("failed to scan index value: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating index values: %w", err)
	}
	return points, nil
}
