package port

import (
	"context"

	"github.com/samuelvillalba090-commits/farmacia-3hermanas/internal/core/domain"
)

type CatalogRepository interface {
	// ListProducts returns every product when term is empty, otherwise those
	// whose code or description contains term, ordered by description.
	ListProducts(ctx context.Context, term string) ([]domain.Product, error)

	// GetProductByCode returns nil, nil when the code does not exist.
	GetProductByCode(ctx context.Context, code string) (*domain.Product, error)

	// UpsertProduct creates or updates a product keyed by code and returns its id.
	UpsertProduct(ctx context.Context, in domain.ProductInput) (int64, error)

	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)

	// SuggestProducts prefers the store-side routine and falls back to a query.
	SuggestProducts(ctx context.Context, term string) ([]domain.Suggestion, error)

	ListLots(ctx context.Context, code string) ([]domain.Lot, error)
	ListLowStock(ctx context.Context) ([]domain.Product, error)
}

type DocumentRepository interface {
	// CreatePurchase records a purchase and its stock effects atomically.
	CreatePurchase(ctx context.Context, req domain.PurchaseRequest) (int64, error)

	// CreateSale records a sale and decrements stock atomically.
	CreateSale(ctx context.Context, req domain.SaleRequest) (int64, error)

	GetPurchase(ctx context.Context, id int64) (*domain.Purchase, error)
	GetSale(ctx context.Context, id int64) (*domain.Sale, error)
}

type CredentialRepository interface {
	ValidateCredentials(ctx context.Context, username, password string) (domain.CredentialCheck, error)
}

type StoreProbe interface {
	// Ping returns the name of the database the store is connected to.
	Ping(ctx context.Context) (string, error)
}
