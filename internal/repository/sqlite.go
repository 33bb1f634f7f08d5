package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/mmeshcher/pos-billing/internal/format"
	"github.com/mmeshcher/pos-billing/internal/model"
)

// SQLiteRepository хранит чеки в локальном файле SQLite.
// Дата чека хранится в миллисекундах Unix и при чтении приводится через format.FromUnixMilli.
type SQLiteRepository struct {
	db *sqlx.DB
}

type sqliteReceiptRow struct {
	ID            string          `db:"id"`
	ReceiptNumber string          `db:"receipt_number"`
	ReceiptDateMS int64           `db:"receipt_date_ms"`
	Items         string          `db:"items"`
	Discount      decimal.Decimal `db:"discount"`
	PaymentMode   string          `db:"payment_mode"`
	Subtotal      decimal.Decimal `db:"subtotal"`
	GrandTotal    decimal.Decimal `db:"grand_total"`
}

// NewSQLiteRepository открывает базу по dsn и применяет миграции.
func NewSQLiteRepository(ctx context.Context, dsn string) (*SQLiteRepository, error) {
	db, err := sqlx.ConnectContext(ctx, "sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db.DB, "migrations/sqlite"); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// Close закрывает базу.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// AppendReceipt сохраняет чек под новым UUID.
func (r *SQLiteRepository) AppendReceipt(ctx context.Context, rc model.Receipt) (string, error) {
	items, err := encodeItems(rc.Items)
	if err != nil {
		return "", err
	}

	row := sqliteReceiptRow{
		ID:            uuid.NewString(),
		ReceiptNumber: rc.ReceiptNumber,
		ReceiptDateMS: rc.ReceiptDate.UnixMilli(),
		Items:         string(items),
		Discount:      rc.Discount,
		PaymentMode:   string(rc.PaymentMode),
		Subtotal:      rc.Subtotal,
		GrandTotal:    rc.GrandTotal,
	}

	_, err = r.db.NamedExecContext(ctx,
		`INSERT INTO receipts (id, receipt_number, receipt_date_ms, items, discount, payment_mode, subtotal, grand_total)
		 VALUES (:id, :receipt_number, :receipt_date_ms, :items, :discount, :payment_mode, :subtotal, :grand_total)`,
		row,
	)
	if err != nil {
		return "", fmt.Errorf("insert receipt: %w", err)
	}

	return row.ID, nil
}

// ListReceipts возвращает все чеки, начиная с самых новых.
func (r *SQLiteRepository) ListReceipts(ctx context.Context) ([]model.Receipt, error) {
	var rows []sqliteReceiptRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT id, receipt_number, receipt_date_ms, items, discount, payment_mode, subtotal, grand_total
		 FROM receipts
		 ORDER BY receipt_date_ms DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select receipts: %w", err)
	}

	res := make([]model.Receipt, 0, len(rows))
	for _, row := range rows {
		items, err := decodeItems([]byte(row.Items))
		if err != nil {
			return nil, err
		}

		res = append(res, model.Receipt{
			ID:            row.ID,
			ReceiptNumber: row.ReceiptNumber,
			ReceiptDate:   format.FromUnixMilli(row.ReceiptDateMS),
			Items:         items,
			Discount:      row.Discount,
			PaymentMode:   model.PaymentMode(row.PaymentMode),
			Subtotal:      row.Subtotal,
			GrandTotal:    row.GrandTotal,
		})
	}

	return res, nil
}
