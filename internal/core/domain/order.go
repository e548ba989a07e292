package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	PurchasePrefix = "OC-"
	SalePrefix     = "FAC-"
)

// PurchaseLine is one incoming line of a purchase order. Expiry, when set,
// opens a lot for the received quantity.
type PurchaseLine struct {
	Code        string          `json:"code"`
	Description string          `json:"description,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Expiry      *time.Time      `json:"expiry,omitempty"`
}

type SaleLine struct {
	Code      string          `json:"code"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type PurchaseRequest struct {
	RequestID      string         `json:"request_id,omitempty"`
	OperatorID     int64          `json:"operator_id"`
	SupplierID     int64          `json:"supplier_id"`
	DocumentNumber string         `json:"document_number,omitempty"`
	Lines          []PurchaseLine `json:"lines"`
}

type SaleRequest struct {
	RequestID      string     `json:"request_id,omitempty"`
	OperatorID     int64      `json:"operator_id"`
	CustomerID     *int64     `json:"customer_id,omitempty"`
	DocumentNumber string     `json:"document_number,omitempty"`
	Lines          []SaleLine `json:"lines"`
}

// DocumentLine is a persisted purchase or sale line joined with its product code.
type DocumentLine struct {
	ProductID int64           `db:"product_id" json:"product_id"`
	Code      string          `db:"code" json:"code"`
	Quantity  int             `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
}

type Purchase struct {
	ID             int64           `json:"id"`
	CreatedAt      time.Time       `json:"created_at"`
	DocumentNumber string          `json:"document_number"`
	SupplierID     int64           `json:"supplier_id"`
	Total          decimal.Decimal `json:"total"`
	OperatorID     int64           `json:"operator_id"`
	Lines          []DocumentLine  `json:"lines"`
}

type Sale struct {
	ID             int64           `json:"id"`
	CreatedAt      time.Time       `json:"created_at"`
	DocumentNumber string          `json:"document_number"`
	CustomerID     *int64          `json:"customer_id,omitempty"`
	Total          decimal.Decimal `json:"total"`
	OperatorID     int64           `json:"operator_id"`
	Lines          []DocumentLine  `json:"lines"`
}

func (l PurchaseLine) Amount() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func (l SaleLine) Amount() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func PurchaseTotal(lines []PurchaseLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Amount())
	}
	return total
}

func SaleTotal(lines []SaleLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Amount())
	}
	return total
}

// Validate checks the caller-correctable shape of a purchase before any SQL runs.
func (r PurchaseRequest) Validate() error {
	if len(r.Lines) == 0 {
		return &ValidationError{Msg: "la compra debe tener al menos un ítem"}
	}
	for i, l := range r.Lines {
		if err := validateLine(i, l.Code, l.Quantity, l.UnitPrice); err != nil {
			return err
		}
	}
	return nil
}

func (r SaleRequest) Validate() error {
	if len(r.Lines) == 0 {
		return &ValidationError{Msg: "la venta debe tener al menos un ítem"}
	}
	for i, l := range r.Lines {
		if err := validateLine(i, l.Code, l.Quantity, l.UnitPrice); err != nil {
			return err
		}
	}
	return nil
}

func validateLine(i int, code string, quantity int, price decimal.Decimal) error {
	if strings.TrimSpace(code) == "" {
		return &ValidationError{Msg: fmt.Sprintf("ítem %d: el código es obligatorio", i+1)}
	}
	if quantity <= 0 {
		return &ValidationError{Msg: fmt.Sprintf("ítem %d: la cantidad debe ser mayor que cero", i+1)}
	}
	if price.IsNegative() {
		return &ValidationError{Msg: fmt.Sprintf("ítem %d: el precio no puede ser negativo", i+1)}
	}
	return nil
}

// FormatDocumentNumber renders a sequence as prefix + 6-digit zero padding.
// Sequences wider than six digits are kept whole.
func FormatDocumentNumber(prefix string, seq int64) string {
	return fmt.Sprintf("%s%06d", prefix, seq)
}

// LotLabel names the n-th lot (1-based) opened for code by one purchase.
func LotLabel(purchaseID int64, code string, n int) string {
	label := fmt.Sprintf("L-%d-%s", purchaseID, code)
	if n > 1 {
		label = fmt.Sprintf("%s-%d", label, n)
	}
	return label
}
