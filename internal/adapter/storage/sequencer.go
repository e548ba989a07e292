package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/samuelvillalba090-commits/farmacia-3hermanas/internal/core/domain"
)

// Sequence pairs a document table with its number prefix.
type Sequence struct {
	table  string
	prefix string
}

var (
	PurchaseSequence = Sequence{table: "purchases", prefix: domain.PurchasePrefix}
	SaleSequence     = Sequence{table: "sales", prefix: domain.SalePrefix}
)

// nextDocumentNumber derives max(id)+1 from the document table. Nothing is
// reserved: two writers running concurrently can compute the same number, and
// the unique index on document_number rejects the later commit.
func nextDocumentNumber(ctx context.Context, q sqlx.QueryerContext, seq Sequence) (string, error) {
	var next int64
	if err := sqlx.GetContext(ctx, q, &next, `SELECT COALESCE(MAX(id), 0) + 1 FROM `+seq.table); err != nil {
		return "", fmt.Errorf("next %s number: %w", seq.table, err)
	}
	return domain.FormatDocumentNumber(seq.prefix, next), nil
}

// NextDocumentNumber previews the number the next document of seq would get.
func (a *SQLAdapter) NextDocumentNumber(ctx context.Context, seq Sequence) (string, error) {
	var number string
	err := a.provider.withConn(ctx, func(conn *sqlx.Conn) error {
		var err error
		number, err = nextDocumentNumber(ctx, conn, seq)
		return err
	})
	return number, err
}
