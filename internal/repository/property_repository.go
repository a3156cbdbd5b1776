package repository

import (
	"context"
	"fmt"

	"gitlab.com/yelinaung/lease-engine/internal/database"
	"gitlab.com/yelinaung/lease-engine/internal/models"
)

// PropertyRepository handles property database operations.
type PropertyRepository struct {
	db database.PGXDB
}

// NewPropertyRepository creates a new PropertyRepository.
func NewPropertyRepository(db database.PGXDB) *PropertyRepository {
	return &PropertyRepository{db: db}
}

// Create adds a new property.
func (r *PropertyRepository) Create(ctx context.Context, property *models.Property) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO properties (owner_id, name) VALUES ($1, $2)
		RETURNING id, created_at
	`, property.OwnerID, property.Name).Scan(&property.ID, &property.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create property: %w", err)
	}
	return nil
}

// GetByID retrieves a property by ID.
func (r *PropertyRepository) GetByID(ctx context.Context, id int64) (*models.Property, error) {
	var p models.Property
	err := r.db.QueryRow(ctx, `
		SELECT id, owner_id, name, created_at FROM properties WHERE id = $1
	`, id).Scan(&p.ID, &p.OwnerID, &p.Name, &p.CreatedAt)
	if err != nil {
		return nil, notFound(err, "property")
	}
	return &p, nil
}
