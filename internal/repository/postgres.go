// Package repository содержит реализации шлюза хранения чеков в PostgreSQL и SQLite.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/pos-billing/internal/format"
	"github.com/mmeshcher/pos-billing/internal/model"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// PostgresRepository хранит чеки в PostgreSQL.
type PostgresRepository struct {
	pool      *pgxpool.Pool
	retryBase time.Duration
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool, retryBase: time.Second}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations/postgres"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет только чтения: запись чека никогда не повторяется автоматически.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	b := retry.WithMaxRetries(3, retry.NewFibonacci(r.retryBase))

	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && isTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}

	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// AppendReceipt сохраняет чек и возвращает назначенный базой идентификатор.
func (r *PostgresRepository) AppendReceipt(ctx context.Context, rc model.Receipt) (string, error) {
	items, err := encodeItems(rc.Items)
	if err != nil {
		return "", err
	}

	var id string
	err = r.pool.QueryRow(ctx,
		`INSERT INTO receipts (receipt_number, receipt_date, items, discount, payment_mode, subtotal, grand_total)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id::text`,
		rc.ReceiptNumber, rc.ReceiptDate, items, rc.Discount, string(rc.PaymentMode), rc.Subtotal, rc.GrandTotal,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert receipt: %w", err)
	}

	return id, nil
}

// ListReceipts возвращает все чеки, начиная с самых новых.
func (r *PostgresRepository) ListReceipts(ctx context.Context) ([]model.Receipt, error) {
	var res []model.Receipt

	err := r.withRetry(ctx, func(ctx context.Context) error {
		res = nil

		rows, err := r.pool.Query(ctx,
			`SELECT id::text, receipt_number, receipt_date, items, discount, payment_mode, subtotal, grand_total
			 FROM receipts
			 ORDER BY receipt_date DESC`,
		)
		if err != nil {
			return fmt.Errorf("select receipts: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				rc          model.Receipt
				receiptDate time.Time
				items       []byte
				paymentMode string
				discount    decimal.Decimal
				subtotal    decimal.Decimal
				grandTotal  decimal.Decimal
			)
			if err := rows.Scan(&rc.ID, &rc.ReceiptNumber, &receiptDate, &items, &discount, &paymentMode, &subtotal, &grandTotal); err != nil {
				return fmt.Errorf("scan receipt: %w", err)
			}

			rc.Items, err = decodeItems(items)
			if err != nil {
				return err
			}
			rc.ReceiptDate = format.NormalizeTime(receiptDate)
			rc.PaymentMode = model.PaymentMode(paymentMode)
			rc.Discount = discount
			rc.Subtotal = subtotal
			rc.GrandTotal = grandTotal

			res = append(res, rc)
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows error: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}
