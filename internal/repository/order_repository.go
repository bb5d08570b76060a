package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/vaidashi/restaurant-pos/internal/database"
	"github.com/vaidashi/restaurant-pos/internal/models"
	"github.com/vaidashi/restaurant-pos/pkg/logger"
)

const orderColumns = `
	id, order_number, type, status, subtotal, discount, tax, total, table_id,
	customer_name, customer_phone, customer_initials,
	payment_method, payment_transaction_id, payment_status, cash_received, change_amount,
	created_by, created_at, updated_at, version`

// orderRow flattens the payment record into nullable columns
type orderRow struct {
	models.Order
	PaymentMethod        sql.NullString `db:"payment_method"`
	PaymentTransactionID sql.NullString `db:"payment_transaction_id"`
	PaymentStatus        sql.NullString `db:"payment_status"`
	CashReceived         sql.NullInt64  `db:"cash_received"`
	ChangeAmount         sql.NullInt64  `db:"change_amount"`
}

func (r *orderRow) toModel() *models.Order {
	o := r.Order
	if r.PaymentMethod.Valid {
		o.Payment = &models.Payment{
			Method:        models.PaymentMethod(r.PaymentMethod.String),
			TransactionID: r.PaymentTransactionID.String,
			Status:        models.PaymentStatus(r.PaymentStatus.String),
			CashReceived:  r.CashReceived.Int64,
			Change:        r.ChangeAmount.Int64,
		}
	}
	return &o
}

// OrderRepository handles database operations for orders
type OrderRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewOrderRepository creates a new OrderRepository
func NewOrderRepository(db *database.Database, logger logger.Logger) *OrderRepository {
	return &OrderRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts the order header, its items and the order_created event in one transaction
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		var (
			method, txnID, payStatus sql.NullString
			received, change         sql.NullInt64
		)
		if p := order.Payment; p != nil {
			method = sql.NullString{String: string(p.Method), Valid: true}
			txnID = sql.NullString{String: p.TransactionID, Valid: p.TransactionID != ""}
			payStatus = sql.NullString{String: string(p.Status), Valid: true}
			if p.Method == models.PaymentMethodCash {
				received = sql.NullInt64{Int64: p.CashReceived, Valid: true}
				change = sql.NullInt64{Int64: p.Change, Valid: true}
			}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO orders (
				id, order_number, type, status, subtotal, discount, tax, total, table_id,
				customer_name, customer_phone, customer_initials,
				payment_method, payment_transaction_id, payment_status, cash_received, change_amount,
				created_by, created_at, updated_at, version
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
			order.ID, order.OrderNumber, order.Type, order.Status,
			order.Subtotal, order.Discount, order.Tax, order.Total, order.TableID,
			order.CustomerName, order.CustomerPhone, order.CustomerInitials,
			method, txnID, payStatus, received, change,
			order.CreatedBy, order.CreatedAt, order.UpdatedAt, order.Version,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: order number %s already used", ErrConflict, order.OrderNumber)
			}
			return fmt.Errorf("%w: %w", ErrDatabase, err)
		}

		for i := range order.Items {
			item := &order.Items[i]
			_, err := tx.ExecContext(ctx, `
				INSERT INTO order_items (id, order_id, position, product_id, name, quantity, unit_price, notes)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				item.ID, order.ID, i, item.ProductID, item.Name, item.Quantity, item.UnitPrice, item.Notes,
			)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrDatabase, err)
			}
		}

		event, err := models.NewOrderCreatedEvent(order)
		if err != nil {
			return fmt.Errorf("failed to build order event: %w", err)
		}

		return insertOutbox(ctx, tx, event)
	})

	if err != nil {
		r.logger.Error("Failed to create order", "error", err, "orderID", order.ID)
		return err
	}

	return nil
}

// UpdateStatus moves the order from one status to another only if it is still in
// the expected status, bumping its version. It returns the new version.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus) (int64, error) {
	var version int64

	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		now := models.GetCurrentTime()

		err := tx.QueryRowxContext(ctx, `
			UPDATE orders
			SET status = $3, updated_at = $4, version = version + 1
			WHERE id = $1 AND status = $2
			RETURNING version`,
			id, from, to, now,
		).Scan(&version)

		if errors.Is(err, sql.ErrNoRows) {
			var exists bool
			if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, id); err != nil {
				return fmt.Errorf("%w: %w", ErrDatabase, err)
			}
			if !exists {
				return ErrNotFound
			}
			return fmt.Errorf("%w: order %s is no longer %s", ErrConflict, id, from)
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDatabase, err)
		}

		event, err := models.NewOrderStatusChangedEvent(&models.Order{
			ID:        id,
			Status:    to,
			Version:   version,
			UpdatedAt: now,
		}, from)
		if err != nil {
			return fmt.Errorf("failed to build order event: %w", err)
		}

		return insertOutbox(ctx, tx, event)
	})

	if err != nil {
		r.logger.Error("Failed to update order status", "error", err, "orderID", id, "from", from, "to", to)
		return 0, err
	}

	return version, nil
}

// GetByID retrieves an order with its items
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var row orderRow

	err := r.db.DB.GetContext(ctx, &row, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get order by ID", "error", err, "orderID", id)
		return nil, fmt.Errorf("%w: %w", ErrDatabase, err)
	}

	orders := []*models.Order{row.toModel()}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}

	return orders[0], nil
}

// ListSince returns orders created at or after since, newest first, with embedded items
func (r *OrderRepository) ListSince(ctx context.Context, since time.Time, limit int) ([]*models.Order, error) {
	var rows []orderRow

	err := r.db.DB.SelectContext(ctx, &rows, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE created_at >= $1
		ORDER BY created_at DESC
		LIMIT $2`,
		since, limit,
	)
	if err != nil {
		r.logger.Error("Failed to list orders", "error", err, "since", since, "limit", limit)
		return nil, fmt.Errorf("%w: %w", ErrDatabase, err)
	}

	orders := make([]*models.Order, 0, len(rows))
	for i := range rows {
		orders = append(orders, rows[i].toModel())
	}

	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}

	return orders, nil
}

func (r *OrderRepository) attachItems(ctx context.Context, orders []*models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, 0, len(orders))
	byID := make(map[string]*models.Order, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
		byID[o.ID] = o
		o.Items = []models.OrderItem{}
	}

	var items []models.OrderItem
	err := r.db.DB.SelectContext(ctx, &items, `
		SELECT id, order_id, product_id, name, quantity, unit_price, notes
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position`,
		pq.Array(ids),
	)
	if err != nil {
		r.logger.Error("Failed to load order items", "error", err, "orders", len(ids))
		return fmt.Errorf("%w: %w", ErrDatabase, err)
	}

	for _, item := range items {
		if o, ok := byID[item.OrderID]; ok {
			o.Items = append(o.Items, item)
		}
	}

	return nil
}
