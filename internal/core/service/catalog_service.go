package service

import (
	"context"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/samuelvillalba090-commits/farmacia-3hermanas/internal/core/domain"
	"github.com/samuelvillalba090-commits/farmacia-3hermanas/internal/port"
)

type CatalogService struct {
	repo   port.CatalogRepository
	probe  port.StoreProbe
	logger log.Logger
}

func NewCatalogService(repo port.CatalogRepository, probe port.StoreProbe, logger log.Logger) *CatalogService {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &CatalogService{repo: repo, probe: probe, logger: log.With(logger, "component", "catalog")}
}

func (s *CatalogService) ListProducts(ctx context.Context, term string) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx, strings.TrimSpace(term))
}

// GetProduct returns a NotFoundError for an unknown code.
func (s *CatalogService) GetProduct(ctx context.Context, code string) (*domain.Product, error) {
	code = strings.TrimSpace(code)
	p, err := s.repo.GetProductByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ProductNotFound(code)
	}
	return p, nil
}

func (s *CatalogService) UpsertProduct(ctx context.Context, in domain.ProductInput) (int64, error) {
	id, err := s.repo.UpsertProduct(ctx, in)
	if err != nil {
		return 0, err
	}
	level.Info(s.logger).Log("msg", "product saved", "id", id, "code", in.Code, "price", in.Price)
	return id, nil
}

func (s *CatalogService) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	return s.repo.ListSuppliers(ctx)
}

// SuggestProducts answers an empty term with no rows.
func (s *CatalogService) SuggestProducts(ctx context.Context, term string) ([]domain.Suggestion, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []domain.Suggestion{}, nil
	}
	return s.repo.SuggestProducts(ctx, term)
}

func (s *CatalogService) ListLots(ctx context.Context, code string) ([]domain.Lot, error) {
	return s.repo.ListLots(ctx, strings.TrimSpace(code))
}

func (s *CatalogService) ListLowStock(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListLowStock(ctx)
}

// Ping reports the name of the database behind the store.
func (s *CatalogService) Ping(ctx context.Context) (string, error) {
	return s.probe.Ping(ctx)
}
