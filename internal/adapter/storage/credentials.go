package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/samuelvillalba090-commits/farmacia-3hermanas/internal/core/domain"
)

// ValidateCredentials compares the store-computed hash of password with the
// stored one and requires the account to be active. An unknown username and a
// wrong password produce the same result.
func (a *SQLAdapter) ValidateCredentials(ctx context.Context, username, password string) (domain.CredentialCheck, error) {
	var row struct {
		UserID int64  `db:"user_id"`
		Role   string `db:"role"`
		OK     int    `db:"ok"`
	}
	err := a.provider.withConn(ctx, func(conn *sqlx.Conn) error {
		return conn.GetContext(ctx, &row, `
			SELECT u.id AS user_id,
			       r.name AS role,
			       CASE WHEN u.password_hash = SHA2(?, 256) AND u.active = 1 THEN 1 ELSE 0 END AS ok
			FROM users u
			JOIN roles r ON r.id = u.role_id
			WHERE u.username = ?`,
			password, username,
		)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CredentialCheck{}, nil
	}
	if err != nil {
		return domain.CredentialCheck{}, fmt.Errorf("validate credentials: %w", err)
	}
	if row.OK != 1 {
		return domain.CredentialCheck{}, nil
	}
	return domain.CredentialCheck{OK: true, Role: row.Role, UserID: row.UserID}, nil
}
