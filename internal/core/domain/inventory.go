package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID                   int64           `db:"id" json:"id"`
	Code                 string          `db:"code" json:"code"`
	Description          string          `db:"description" json:"description"`
	Price                decimal.Decimal `db:"price" json:"price"`
	Stock                int             `db:"stock" json:"stock"`
	MinStock             int             `db:"min_stock" json:"min_stock"`
	RequiresPrescription bool            `db:"requires_prescription" json:"requires_prescription"`
}

// ProductInput is the editable part of a product, keyed by Code.
type ProductInput struct {
	Code                 string          `json:"code"`
	Description          string          `json:"description"`
	Price                decimal.Decimal `json:"price"`
	MinStock             int             `json:"min_stock"`
	RequiresPrescription bool            `json:"requires_prescription"`
}

// Suggestion is the compact row returned by product autocomplete.
type Suggestion struct {
	Code        string          `db:"code" json:"code"`
	Description string          `db:"description" json:"description"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Stock       int             `db:"stock" json:"stock"`
}

type Supplier struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Lot is a dated batch of incoming stock. Sales never consume lots.
type Lot struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"product_id"`
	Label     string    `json:"label"`
	ExpiresOn time.Time `json:"expires_on"`
	Stock     int       `json:"stock"`
}
