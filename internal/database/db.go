package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq" // PostgreSQL driver

	"github.com/vaidashi/restaurant-pos/internal/config"
	"github.com/vaidashi/restaurant-pos/pkg/logger"
)

// Database represents a database connection
type Database struct {
	DB            *sqlx.DB
	notifyChannel string
	logger        logger.Logger
}

// New creates a new database connection
func New(cfg *config.Config, logger logger.Logger) (*Database, error) {
	db, err := sqlx.Connect("postgres", cfg.GetDBConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	logger.Info("Connected to database", "host", cfg.DB.Host, "database", cfg.DB.Name)

	return &Database{
		DB:            db,
		notifyChannel: cfg.DB.NotifyChannel,
		logger:        logger,
	}, nil
}

// Ping checks the database connection
func (d *Database) Ping(ctx context.Context) error {
	return d.DB.PingContext(ctx)
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.DB.Close()
}

// WithTx runs fn inside a transaction, committing only when fn returns nil
func (d *Database) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := d.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			d.logger.Error("Failed to roll back transaction", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// RunMigrations creates the tables the POS core reads and writes, plus the
// NOTIFY triggers that feed the realtime change feed
func (d *Database) RunMigrations() error {
	schema := `
	CREATE TABLE IF NOT EXISTS orders (
		id VARCHAR(50) PRIMARY KEY,
		order_number VARCHAR(32) NOT NULL UNIQUE,
		type VARCHAR(20) NOT NULL,
		status VARCHAR(20) NOT NULL,
		subtotal BIGINT NOT NULL CHECK (subtotal >= 0),
		discount BIGINT NOT NULL DEFAULT 0 CHECK (discount >= 0 AND discount <= subtotal),
		tax BIGINT NOT NULL CHECK (tax >= 0),
		total BIGINT NOT NULL CHECK (total >= 0),
		table_id VARCHAR(50),
		customer_name TEXT,
		customer_phone VARCHAR(32),
		customer_initials VARCHAR(4),
		payment_method VARCHAR(10),
		payment_transaction_id VARCHAR(64),
		payment_status VARCHAR(10),
		cash_received BIGINT,
		change_amount BIGINT,
		created_by VARCHAR(50) NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		version BIGINT NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
	CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at DESC);

	CREATE TABLE IF NOT EXISTS order_items (
		id VARCHAR(50) PRIMARY KEY,
		order_id VARCHAR(50) NOT NULL REFERENCES orders(id),
		position INT NOT NULL DEFAULT 0,
		product_id VARCHAR(50),
		name TEXT NOT NULL,
		quantity INT NOT NULL CHECK (quantity >= 1),
		unit_price BIGINT NOT NULL CHECK (unit_price >= 0),
		notes TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items(order_id);

	CREATE TABLE IF NOT EXISTS order_sequences (
		day CHAR(6) PRIMARY KEY,
		last_value INT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS shifts (
		id VARCHAR(50) PRIMARY KEY,
		operator_id VARCHAR(50) NOT NULL,
		start_cash BIGINT NOT NULL CHECK (start_cash >= 0),
		status VARCHAR(10) NOT NULL,
		opened_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		closed_at TIMESTAMPTZ,
		expected_cash BIGINT,
		actual_cash BIGINT,
		difference BIGINT
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_shifts_one_open_per_operator
		ON shifts(operator_id) WHERE status = 'open';

	CREATE TABLE IF NOT EXISTS cash_logs (
		id VARCHAR(50) PRIMARY KEY,
		shift_id VARCHAR(50) NOT NULL REFERENCES shifts(id),
		direction VARCHAR(3) NOT NULL CHECK (direction IN ('in', 'out')),
		amount BIGINT NOT NULL CHECK (amount > 0),
		description TEXT NOT NULL DEFAULT '',
		created_by VARCHAR(50) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_cash_logs_shift_id ON cash_logs(shift_id);

	CREATE TABLE IF NOT EXISTS stock_items (
		id VARCHAR(50) PRIMARY KEY,
		name TEXT NOT NULL,
		unit VARCHAR(16) NOT NULL,
		quantity NUMERIC(12, 3) NOT NULL DEFAULT 0,
		min_quantity NUMERIC(12, 3) NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		version BIGINT NOT NULL DEFAULT 1
	);

	-- Outbox table for message publishing
	CREATE TABLE IF NOT EXISTS outbox_messages (
		id SERIAL PRIMARY KEY,
		aggregate_type VARCHAR(50) NOT NULL,
		aggregate_id VARCHAR(50) NOT NULL,
		event_type VARCHAR(50) NOT NULL,
		payload JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		processed_at TIMESTAMPTZ,
		processing_attempts INT NOT NULL DEFAULT 0,
		last_error TEXT,
		status VARCHAR(20) NOT NULL DEFAULT 'pending'
	);

	CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox_messages(status);
	CREATE INDEX IF NOT EXISTS idx_outbox_aggregate ON outbox_messages(aggregate_type, aggregate_id);

	CREATE TABLE IF NOT EXISTS dead_letter_messages (
		id SERIAL PRIMARY KEY,
		original_message_id INT NOT NULL,
		aggregate_type VARCHAR(50) NOT NULL,
		aggregate_id VARCHAR(50) NOT NULL,
		event_type VARCHAR(50) NOT NULL,
		payload JSONB NOT NULL,
		error_message TEXT NOT NULL,
		failure_reason TEXT NOT NULL,
		retry_count INT NOT NULL DEFAULT 0,
		last_retry_at TIMESTAMPTZ,
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		resolved_at TIMESTAMPTZ
	);

	CREATE INDEX IF NOT EXISTS idx_dead_letter_status ON dead_letter_messages(status);

	CREATE OR REPLACE FUNCTION pos_bump_stock_version() RETURNS trigger AS $$
	BEGIN
		NEW.version := OLD.version + 1;
		NEW.updated_at := NOW();
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql;

	DROP TRIGGER IF EXISTS stock_items_version ON stock_items;
	CREATE TRIGGER stock_items_version BEFORE UPDATE ON stock_items
		FOR EACH ROW EXECUTE FUNCTION pos_bump_stock_version();

	CREATE OR REPLACE FUNCTION pos_notify_change() RETURNS trigger AS $$
	BEGIN
		PERFORM pg_notify(` + pq.QuoteLiteral(d.notifyChannel) + `, json_build_object(
			'table', TG_TABLE_NAME,
			'op', TG_OP,
			'id', NEW.id,
			'version', NEW.version
		)::text);
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql;

	DROP TRIGGER IF EXISTS orders_notify ON orders;
	CREATE TRIGGER orders_notify AFTER INSERT OR UPDATE ON orders
		FOR EACH ROW EXECUTE FUNCTION pos_notify_change();

	DROP TRIGGER IF EXISTS stock_items_notify ON stock_items;
	CREATE TRIGGER stock_items_notify AFTER INSERT OR UPDATE ON stock_items
		FOR EACH ROW EXECUTE FUNCTION pos_notify_change();
	`

	if _, err := d.DB.Exec(schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.logger.Info("Database migrations completed successfully")
	return nil
}
