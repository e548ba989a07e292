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

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS roles (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(50) NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		username VARCHAR(50) NOT NULL UNIQUE,
		password_hash CHAR(64) NOT NULL,
		active TINYINT(1) NOT NULL DEFAULT 1,
		role_id BIGINT NOT NULL,
		FOREIGN KEY (role_id) REFERENCES roles(id)
	)`,
	`CREATE TABLE IF NOT EXISTS suppliers (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(150) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		code VARCHAR(50) NOT NULL UNIQUE,
		description VARCHAR(200) NOT NULL,
		price DECIMAL(12,2) NOT NULL,
		stock INT NOT NULL DEFAULT 0,
		min_stock INT NOT NULL DEFAULT 0,
		requires_prescription TINYINT(1) NOT NULL DEFAULT 0,
		CONSTRAINT chk_products_stock CHECK (stock >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS lots (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		product_id BIGINT NOT NULL,
		label VARCHAR(80) NOT NULL,
		expires_on DATE NOT NULL,
		stock INT NOT NULL,
		FOREIGN KEY (product_id) REFERENCES products(id)
	)`,
	`CREATE TABLE IF NOT EXISTS purchases (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		created_at DATETIME(6) NOT NULL,
		document_number VARCHAR(30) NOT NULL UNIQUE,
		supplier_id BIGINT NOT NULL,
		total DECIMAL(14,2) NOT NULL,
		operator_id BIGINT NOT NULL,
		FOREIGN KEY (supplier_id) REFERENCES suppliers(id),
		FOREIGN KEY (operator_id) REFERENCES users(id)
	)`,
	`CREATE TABLE IF NOT EXISTS purchase_lines (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		purchase_id BIGINT NOT NULL,
		product_id BIGINT NOT NULL,
		quantity INT NOT NULL,
		unit_price DECIMAL(12,2) NOT NULL,
		CONSTRAINT chk_purchase_lines_quantity CHECK (quantity > 0),
		FOREIGN KEY (purchase_id) REFERENCES purchases(id),
		FOREIGN KEY (product_id) REFERENCES products(id)
	)`,
	`CREATE TABLE IF NOT EXISTS sales (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		created_at DATETIME(6) NOT NULL,
		document_number VARCHAR(30) NOT NULL UNIQUE,
		customer_id BIGINT NULL,
		total DECIMAL(14,2) NOT NULL,
		operator_id BIGINT NOT NULL,
		FOREIGN KEY (operator_id) REFERENCES users(id)
	)`,
	`CREATE TABLE IF NOT EXISTS sale_lines (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		sale_id BIGINT NOT NULL,
		product_id BIGINT NOT NULL,
		quantity INT NOT NULL,
		unit_price DECIMAL(12,2) NOT NULL,
		CONSTRAINT chk_sale_lines_quantity CHECK (quantity > 0),
		FOREIGN KEY (sale_id) REFERENCES sales(id),
		FOREIGN KEY (product_id) REFERENCES products(id)
	)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS roles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		role_id INTEGER NOT NULL REFERENCES roles(id)
	)`,
	`CREATE TABLE IF NOT EXISTS suppliers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL,
		price REAL NOT NULL,
		stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
		min_stock INTEGER NOT NULL DEFAULT 0,
		requires_prescription INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS lots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id INTEGER NOT NULL REFERENCES products(id),
		label TEXT NOT NULL,
		expires_on DATE NOT NULL,
		stock INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS purchases (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at DATETIME NOT NULL,
		document_number TEXT NOT NULL UNIQUE,
		supplier_id INTEGER NOT NULL REFERENCES suppliers(id),
		total REAL NOT NULL,
		operator_id INTEGER NOT NULL REFERENCES users(id)
	)`,
	`CREATE TABLE IF NOT EXISTS purchase_lines (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		purchase_id INTEGER NOT NULL REFERENCES purchases(id),
		product_id INTEGER NOT NULL REFERENCES products(id),
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		unit_price REAL NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sales (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at DATETIME NOT NULL,
		document_number TEXT NOT NULL UNIQUE,
		customer_id INTEGER,
		total REAL NOT NULL,
		operator_id INTEGER NOT NULL REFERENCES users(id)
	)`,
	`CREATE TABLE IF NOT EXISTS sale_lines (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sale_id INTEGER NOT NULL REFERENCES sales(id),
		product_id INTEGER NOT NULL REFERENCES products(id),
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		unit_price REAL NOT NULL
	)`,
}

// suggestRoutineBody is the MySQL routine preferred by SuggestProducts. It
// mirrors the fallback query.
const suggestRoutineBody = `(IN term VARCHAR(100))
BEGIN
	SELECT code, description, price, stock
	FROM products
	WHERE code LIKE CONCAT(term, '%') OR description LIKE CONCAT('%', term, '%')
	ORDER BY description
	LIMIT 10;
END`

// Migrate creates the schema if it does not exist. On MySQL it also recreates
// the product suggestion routine.
func (a *SQLAdapter) Migrate(ctx context.Context) error {
	return a.provider.withConn(ctx, func(conn *sqlx.Conn) error {
		for _, stmt := range a.provider.dialect.schema {
			if _, err := conn.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}
		if a.provider.dialect.driver != MySQL.driver || a.suggestRoutine == "" {
			return nil
		}
		if _, err := conn.ExecContext(ctx, "DROP PROCEDURE IF EXISTS "+a.suggestRoutine); err != nil {
			return fmt.Errorf("drop suggest routine: %w", err)
		}
		if _, err := conn.ExecContext(ctx, "CREATE PROCEDURE "+a.suggestRoutine+suggestRoutineBody); err != nil {
			return fmt.Errorf("create suggest routine: %w", err)
		}
		return nil
	})
}

// EnsureRole returns the id of the named role, creating it if needed.
func (a *SQLAdapter) EnsureRole(ctx context.Context, name string) (int64, error) {
	var id int64
	err := a.provider.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		id, err = ensureRole(ctx, tx, name)
		return err
	})
	return id, err
}

func ensureRole(ctx context.Context, tx *sqlx.Tx, name string) (int64, error) {
	var id int64
	err := tx.GetContext(ctx, &id, `SELECT id FROM roles WHERE name = ?`, name)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("query role: %w", err)
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO roles (name) VALUES (?)`, name)
	if err != nil {
		return 0, fmt.Errorf("insert role: %w", err)
	}
	return res.LastInsertId()
}

// CreateUser adds an active user. The password hash is computed by the store.
func (a *SQLAdapter) CreateUser(ctx context.Context, username, password, role string) (int64, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" || strings.TrimSpace(role) == "" {
		return 0, &domain.ValidationError{Msg: "usuario, contraseña y rol son obligatorios"}
	}

	var id int64
	err := a.provider.withTx(ctx, func(tx *sqlx.Tx) error {
		roleID, err := ensureRole(ctx, tx, role)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO users (username, password_hash, active, role_id)
			VALUES (?, SHA2(?, 256), 1, ?)`,
			username, password, roleID,
		)
		if err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// SetUserActive enables or disables a login without touching its credentials.
func (a *SQLAdapter) SetUserActive(ctx context.Context, username string, active bool) error {
	return a.provider.withConn(ctx, func(conn *sqlx.Conn) error {
		res, err := conn.ExecContext(ctx, `UPDATE users SET active = ? WHERE username = ?`, active, username)
		if err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return &domain.NotFoundError{Entity: "usuario", Key: username}
		}
		return nil
	})
}

func (a *SQLAdapter) CreateSupplier(ctx context.Context, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, &domain.ValidationError{Msg: "la razón social es obligatoria"}
	}

	var id int64
	err := a.provider.withConn(ctx, func(conn *sqlx.Conn) error {
		res, err := conn.ExecContext(ctx, `INSERT INTO suppliers (name) VALUES (?)`, name)
		if err != nil {
			return fmt.Errorf("insert supplier: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}
