package handler

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/samuelvillalba090-commits/farmacia-3hermanas/internal/core/domain"
)

// Request and reply bodies shared by the HTTP and gRPC transports.

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginReply struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Token   string          `json:"token,omitempty"`
	User    domain.Identity `json:"user"`
}

// PurchaseLineInput carries the expiry as a YYYY-MM-DD string.
type PurchaseLineInput struct {
	Code        string          `json:"code"`
	Description string          `json:"description,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Expiry      string          `json:"expiry,omitempty"`
}

type PurchaseRequest struct {
	RequestID      string              `json:"request_id,omitempty"`
	SupplierID     int64               `json:"supplier_id"`
	DocumentNumber string              `json:"document_number,omitempty"`
	Lines          []PurchaseLineInput `json:"lines"`
}

type SaleRequest struct {
	RequestID      string            `json:"request_id,omitempty"`
	CustomerID     *int64            `json:"customer_id,omitempty"`
	DocumentNumber string            `json:"document_number,omitempty"`
	Lines          []domain.SaleLine `json:"lines"`
}

type DocumentReply struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      int64  `json:"id,omitempty"`
}

type SuggestRequest struct {
	Term string `json:"term"`
}

type SuggestReply struct {
	Items []domain.Suggestion `json:"items"`
}

func (r PurchaseRequest) domainLines() ([]domain.PurchaseLine, error) {
	lines := make([]domain.PurchaseLine, len(r.Lines))
	for i, l := range r.Lines {
		lines[i] = domain.PurchaseLine{
			Code:        l.Code,
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
		}
		raw := strings.TrimSpace(l.Expiry)
		if raw == "" {
			continue
		}
		expiry, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return nil, &domain.ValidationError{Msg: fmt.Sprintf("fecha de vencimiento inválida en el ítem %d (use AAAA-MM-DD)", i+1)}
		}
		lines[i].Expiry = &expiry
	}
	return lines, nil
}
