package models

import "time"

// StockItem is an inventory line; quantities are maintained by database triggers
type StockItem struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Unit        string    `db:"unit" json:"unit"`
	Quantity    float64   `db:"quantity" json:"quantity"`
	MinQuantity float64   `db:"min_quantity" json:"min_quantity"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
	Version     int64     `db:"version" json:"version"`
}

// Low reports whether the item is at or below its reorder level
func (s StockItem) Low() bool {
	return s.Quantity <= s.MinQuantity
}
