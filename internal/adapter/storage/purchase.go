package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/samuelvillalba090-commits/farmacia-3hermanas/internal/core/domain"
)

// CreatePurchase records a purchase order in one transaction: header, product
// creation or repricing, stock increments, optional lots and lines. Nothing
// survives a failure at any step.
func (a *SQLAdapter) CreatePurchase(ctx context.Context, req domain.PurchaseRequest) (int64, error) {
	if err := req.Validate(); err != nil {
		return 0, err
	}
	total := domain.PurchaseTotal(req.Lines)

	var purchaseID int64
	err := a.provider.withTx(ctx, func(tx *sqlx.Tx) error {
		startedAt := now()

		number := req.DocumentNumber
		if number == "" {
			var err error
			if number, err = nextDocumentNumber(ctx, tx, PurchaseSequence); err != nil {
				return err
			}
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO purchases (created_at, document_number, supplier_id, total, operator_id)
			VALUES (?, ?, ?, ?, ?)`,
			startedAt, number, req.SupplierID, total, req.OperatorID,
		)
		if err != nil {
			return fmt.Errorf("insert purchase: %w", err)
		}
		if purchaseID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("purchase id: %w", err)
		}

		lotsPerCode := make(map[string]int)
		for i, line := range req.Lines {
			code := strings.TrimSpace(line.Code)

			productID, err := ensurePurchasedProduct(ctx, tx, code, line.Description, line.UnitPrice)
			if err != nil {
				return fmt.Errorf("line %d: %w", i+1, err)
			}

			if _, err := tx.ExecContext(ctx,
				`UPDATE products SET stock = stock + ? WHERE id = ?`, line.Quantity, productID,
			); err != nil {
				return fmt.Errorf("line %d: increment stock: %w", i+1, err)
			}

			if line.Expiry != nil {
				lotsPerCode[code]++
				label := domain.LotLabel(purchaseID, code, lotsPerCode[code])
				if err := openLot(ctx, tx, productID, label, *line.Expiry, line.Quantity); err != nil {
					return fmt.Errorf("line %d: %w", i+1, err)
				}
			}

			if _, err := tx.ExecContext(ctx, `
				INSERT INTO purchase_lines (purchase_id, product_id, quantity, unit_price)
				VALUES (?, ?, ?, ?)`,
				purchaseID, productID, line.Quantity, line.UnitPrice,
			); err != nil {
				return fmt.Errorf("line %d: insert purchase line: %w", i+1, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return purchaseID, nil
}

// ensurePurchasedProduct is the implicit catalog step of a purchase: an
// unknown code becomes a new product with zero stock, a known one takes the
// line's unit price as its list price.
func ensurePurchasedProduct(ctx context.Context, tx *sqlx.Tx, code, description string, unitPrice decimal.Decimal) (int64, error) {
	var id int64
	err := tx.GetContext(ctx, &id, `SELECT id FROM products WHERE code = ?`, code)
	if err == nil {
		if _, err := tx.ExecContext(ctx, `UPDATE products SET price = ? WHERE id = ?`, unitPrice, id); err != nil {
			return 0, fmt.Errorf("reprice product %s: %w", code, err)
		}
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("query product %s: %w", code, err)
	}

	description = strings.TrimSpace(description)
	if description == "" {
		description = code
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO products (code, description, price, stock, min_stock, requires_prescription)
		VALUES (?, ?, ?, 0, 0, ?)`,
		code, description, unitPrice, false,
	)
	if err != nil {
		return 0, fmt.Errorf("create product %s: %w", code, err)
	}
	return res.LastInsertId()
}

func openLot(ctx context.Context, tx *sqlx.Tx, productID int64, label string, expiry time.Time, quantity int) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO lots (product_id, label, expires_on, stock)
		VALUES (?, ?, ?, ?)`,
		productID, label, expiry.Format(time.DateOnly), quantity,
	)
	if err != nil {
		return fmt.Errorf("open lot %s: %w", label, err)
	}
	return nil
}

type documentRow struct {
	ID             int64           `db:"id"`
	CreatedAt      sqlTime         `db:"created_at"`
	DocumentNumber string          `db:"document_number"`
	PartyID        sql.NullInt64   `db:"party_id"`
	Total          decimal.Decimal `db:"total"`
	OperatorID     int64           `db:"operator_id"`
}

func (a *SQLAdapter) GetPurchase(ctx context.Context, id int64) (*domain.Purchase, error) {
	var (
		head  documentRow
		lines []domain.DocumentLine
	)
	err := a.provider.withConn(ctx, func(conn *sqlx.Conn) error {
		err := conn.GetContext(ctx, &head, `
			SELECT id, created_at, document_number, supplier_id AS party_id, total, operator_id
			FROM purchases WHERE id = ?`, id)
		if err != nil {
			return err
		}
		return conn.SelectContext(ctx, &lines, `
			SELECT pl.product_id, p.code, pl.quantity, pl.unit_price
			FROM purchase_lines pl
			JOIN products p ON p.id = pl.product_id
			WHERE pl.purchase_id = ?
			ORDER BY pl.id`, id)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Entity: "compra", Key: fmt.Sprint(id)}
	}
	if err != nil {
		return nil, fmt.Errorf("get purchase: %w", err)
	}

	return &domain.Purchase{
		ID:             head.ID,
		CreatedAt:      head.CreatedAt.Time,
		DocumentNumber: head.DocumentNumber,
		SupplierID:     head.PartyID.Int64,
		Total:          head.Total,
		OperatorID:     head.OperatorID,
		Lines:          lines,
	}, nil
}
