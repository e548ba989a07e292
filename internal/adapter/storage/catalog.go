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

const productColumns = `id, code, description, price, stock, min_stock, requires_prescription`

func (a *SQLAdapter) ListProducts(ctx context.Context, term string) ([]domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products`
	var args []any
	if term != "" {
		query += ` WHERE LOWER(code) LIKE ? ESCAPE '!' OR LOWER(description) LIKE ? ESCAPE '!'`
		like := "%" + escapeLike(strings.ToLower(term)) + "%"
		args = append(args, like, like)
	}
	query += ` ORDER BY description, id`

	products := []domain.Product{}
	err := a.provider.withConn(ctx, func(conn *sqlx.Conn) error {
		return conn.SelectContext(ctx, &products, query, args...)
	})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

func (a *SQLAdapter) GetProductByCode(ctx context.Context, code string) (*domain.Product, error) {
	var p domain.Product
	err := a.provider.withConn(ctx, func(conn *sqlx.Conn) error {
		return conn.GetContext(ctx, &p, `SELECT `+productColumns+` FROM products WHERE code = ?`, code)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}

// UpsertProduct updates the product with in.Code in place or creates it with
// zero stock. Stock is never touched by this operation.
func (a *SQLAdapter) UpsertProduct(ctx context.Context, in domain.ProductInput) (int64, error) {
	code := strings.TrimSpace(in.Code)
	if code == "" {
		return 0, &domain.ValidationError{Msg: "el código es obligatorio"}
	}
	if in.Price.IsNegative() {
		return 0, &domain.ValidationError{Msg: "el precio no puede ser negativo"}
	}
	if in.MinStock < 0 {
		return 0, &domain.ValidationError{Msg: "el stock mínimo no puede ser negativo"}
	}
	description := strings.TrimSpace(in.Description)
	if description == "" {
		description = code
	}

	var id int64
	err := a.provider.withTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &id, `SELECT id FROM products WHERE code = ?`, code)
		switch {
		case err == nil:
			_, err = tx.ExecContext(ctx, `
				UPDATE products
				SET description = ?, price = ?, min_stock = ?, requires_prescription = ?
				WHERE id = ?`,
				description, in.Price, in.MinStock, in.RequiresPrescription, id,
			)
			if err != nil {
				return fmt.Errorf("update product: %w", err)
			}
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("query product: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO products (code, description, price, stock, min_stock, requires_prescription)
			VALUES (?, ?, ?, 0, ?, ?)`,
			code, description, in.Price, in.MinStock, in.RequiresPrescription,
		)
		if err != nil {
			return fmt.Errorf("insert product: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (a *SQLAdapter) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	suppliers := []domain.Supplier{}
	err := a.provider.withConn(ctx, func(conn *sqlx.Conn) error {
		return conn.SelectContext(ctx, &suppliers, `SELECT id, name FROM suppliers ORDER BY name, id`)
	})
	if err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	return suppliers, nil
}

// SuggestProducts asks the store-side routine first. Any failure of the
// routine, including its absence, switches to the fallback query: code prefix
// or description substring, ordered by description, at most 10 rows.
func (a *SQLAdapter) SuggestProducts(ctx context.Context, term string) ([]domain.Suggestion, error) {
	rows := []domain.Suggestion{}
	err := a.provider.withConn(ctx, func(conn *sqlx.Conn) error {
		if a.suggestRoutine != "" {
			err := conn.SelectContext(ctx, &rows, `CALL `+a.suggestRoutine+`(?)`, term)
			if err == nil {
				return nil
			}
			rows = rows[:0]
		}
		lower := escapeLike(strings.ToLower(term))
		return conn.SelectContext(ctx, &rows, `
			SELECT code, description, price, stock
			FROM products
			WHERE LOWER(code) LIKE ? ESCAPE '!' OR LOWER(description) LIKE ? ESCAPE '!'
			ORDER BY description, id
			LIMIT 10`,
			lower+"%", "%"+lower+"%",
		)
	})
	if err != nil {
		return nil, fmt.Errorf("suggest products: %w", err)
	}
	return rows, nil
}

type lotRow struct {
	ID        int64   `db:"id"`
	ProductID int64   `db:"product_id"`
	Label     string  `db:"label"`
	ExpiresOn sqlTime `db:"expires_on"`
	Stock     int     `db:"stock"`
}

// ListLots returns the lots opened for code, soonest expiry first.
func (a *SQLAdapter) ListLots(ctx context.Context, code string) ([]domain.Lot, error) {
	var rows []lotRow
	err := a.provider.withConn(ctx, func(conn *sqlx.Conn) error {
		return conn.SelectContext(ctx, &rows, `
			SELECT l.id, l.product_id, l.label, l.expires_on, l.stock
			FROM lots l
			JOIN products p ON p.id = l.product_id
			WHERE p.code = ?
			ORDER BY l.expires_on, l.id`, code)
	})
	if err != nil {
		return nil, fmt.Errorf("list lots: %w", err)
	}

	lots := make([]domain.Lot, len(rows))
	for i, r := range rows {
		lots[i] = domain.Lot{
			ID:        r.ID,
			ProductID: r.ProductID,
			Label:     r.Label,
			ExpiresOn: r.ExpiresOn.Time,
			Stock:     r.Stock,
		}
	}
	return lots, nil
}

// ListLowStock returns products at or below their minimum stock.
func (a *SQLAdapter) ListLowStock(ctx context.Context) ([]domain.Product, error) {
	products := []domain.Product{}
	err := a.provider.withConn(ctx, func(conn *sqlx.Conn) error {
		return conn.SelectContext(ctx, &products,
			`SELECT `+productColumns+` FROM products WHERE stock <= min_stock ORDER BY description, id`)
	})
	if err != nil {
		return nil, fmt.Errorf("list low stock: %w", err)
	}
	return products, nil
}
