package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vaidashi/restaurant-pos/internal/database"
	"github.com/vaidashi/restaurant-pos/internal/models"
	"github.com/vaidashi/restaurant-pos/pkg/logger"
)

// StockRepository reads inventory; quantities are written by database triggers
type StockRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewStockRepository creates a new StockRepository
func NewStockRepository(db *database.Database, logger logger.Logger) *StockRepository {
	return &StockRepository{
		db:     db,
		logger: logger,
	}
}

// List returns every stock item ordered by name
func (r *StockRepository) List(ctx context.Context) ([]*models.StockItem, error) {
	var items []*models.StockItem

	err := r.db.DB.SelectContext(ctx, &items, `
		SELECT id, name, unit, quantity, min_quantity, updated_at, version
		FROM stock_items
		ORDER BY name`)
	if err != nil {
		r.logger.Error("Failed to list stock items", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrDatabase, err)
	}

	return items, nil
}

// GetByID retrieves a single stock item
func (r *StockRepository) GetByID(ctx context.Context, id string) (*models.StockItem, error) {
	var item models.StockItem

	err := r.db.DB.GetContext(ctx, &item, `
		SELECT id, name, unit, quantity, min_quantity, updated_at, version
		FROM stock_items
		WHERE id = $1`,
		id,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get stock item", "error", err, "stockID", id)
		return nil, fmt.Errorf("%w: %w", ErrDatabase, err)
	}

	return &item, nil
}
