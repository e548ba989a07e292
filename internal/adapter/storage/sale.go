package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/samuelvillalba090-commits/farmacia-3hermanas/internal/core/domain"
)

// CreateSale records a sale in one transaction, checking and decrementing the
// aggregate stock of each line. Lots are not consulted. An unknown code or a
// short stock aborts the whole sale.
//
// The stock check is a plain read followed by an update; two concurrent sales
// of the same product are only kept honest by the store's isolation and the
// stock >= 0 constraint.
func (a *SQLAdapter) CreateSale(ctx context.Context, req domain.SaleRequest) (int64, error) {
	if err := req.Validate(); err != nil {
		return 0, err
	}
	total := domain.SaleTotal(req.Lines)

	var saleID int64
	err := a.provider.withTx(ctx, func(tx *sqlx.Tx) error {
		startedAt := now()

		number := req.DocumentNumber
		if number == "" {
			var err error
			if number, err = nextDocumentNumber(ctx, tx, SaleSequence); err != nil {
				return err
			}
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO sales (created_at, document_number, customer_id, total, operator_id)
			VALUES (?, ?, ?, ?, ?)`,
			startedAt, number, req.CustomerID, total, req.OperatorID,
		)
		if err != nil {
			return fmt.Errorf("insert sale: %w", err)
		}
		if saleID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("sale id: %w", err)
		}

		for i, line := range req.Lines {
			code := strings.TrimSpace(line.Code)

			var product struct {
				ID    int64 `db:"id"`
				Stock int   `db:"stock"`
			}
			err := tx.GetContext(ctx, &product, `SELECT id, stock FROM products WHERE code = ?`, code)
			if errors.Is(err, sql.ErrNoRows) {
				return &domain.UnknownCodeError{Code: code}
			}
			if err != nil {
				return fmt.Errorf("line %d: query product %s: %w", i+1, code, err)
			}
			if product.Stock < line.Quantity {
				return &domain.InsufficientStockError{Code: code, Available: product.Stock, Requested: line.Quantity}
			}

			if _, err := tx.ExecContext(ctx,
				`UPDATE products SET stock = stock - ? WHERE id = ?`, line.Quantity, product.ID,
			); err != nil {
				return fmt.Errorf("line %d: decrement stock: %w", i+1, err)
			}

			if _, err := tx.ExecContext(ctx, `
				INSERT INTO sale_lines (sale_id, product_id, quantity, unit_price)
				VALUES (?, ?, ?, ?)`,
				saleID, product.ID, line.Quantity, line.UnitPrice,
			); err != nil {
				return fmt.Errorf("line %d: insert sale line: %w", i+1, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return saleID, nil
}

func (a *SQLAdapter) GetSale(ctx context.Context, id int64) (*domain.Sale, error) {
	var (
		head  documentRow
		lines []domain.DocumentLine
	)
	err := a.provider.withConn(ctx, func(conn *sqlx.Conn) error {
		err := conn.GetContext(ctx, &head, `
			SELECT id, created_at, document_number, customer_id AS party_id, total, operator_id
			FROM sales WHERE id = ?`, id)
		if err != nil {
			return err
		}
		return conn.SelectContext(ctx, &lines, `
			SELECT sl.product_id, p.code, sl.quantity, sl.unit_price
			FROM sale_lines sl
			JOIN products p ON p.id = sl.product_id
			WHERE sl.sale_id = ?
			ORDER BY sl.id`, id)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Entity: "venta", Key: fmt.Sprint(id)}
	}
	if err != nil {
		return nil, fmt.Errorf("get sale: %w", err)
	}

	sale := &domain.Sale{
		ID:             head.ID,
		CreatedAt:      head.CreatedAt.Time,
		DocumentNumber: head.DocumentNumber,
		Total:          head.Total,
		OperatorID:     head.OperatorID,
		Lines:          lines,
	}
	if head.PartyID.Valid {
		customer := head.PartyID.Int64
		sale.CustomerID = &customer
	}
	return sale, nil
}
