package service

import (
	"context"
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/samuelvillalba090-commits/farmacia-3hermanas/internal/core/domain"
	"github.com/samuelvillalba090-commits/farmacia-3hermanas/internal/port"
)

// OrderService records purchases and sales. Each call runs to commit or
// rollback before returning; there is no queue behind it.
type OrderService struct {
	docs   port.DocumentRepository
	idem   port.IdempotencyStore
	logger log.Logger
}

// NewOrderService wires the document store. idem may be nil, in which case
// request ids are ignored.
func NewOrderService(docs port.DocumentRepository, idem port.IdempotencyStore, logger log.Logger) *OrderService {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &OrderService{docs: docs, idem: idem, logger: log.With(logger, "component", "orders")}
}

func (s *OrderService) CreatePurchase(ctx context.Context, req domain.PurchaseRequest) (int64, error) {
	release, err := s.claim(ctx, "purchase", req.RequestID)
	if err != nil {
		return 0, err
	}

	id, err := s.docs.CreatePurchase(ctx, req)
	if err != nil {
		release()
		level.Warn(s.logger).Log("msg", "purchase rejected", "operator", req.OperatorID, "supplier", req.SupplierID, "lines", len(req.Lines), "err", err)
		return 0, err
	}

	level.Info(s.logger).Log("msg", "purchase recorded", "id", id, "operator", req.OperatorID, "total", domain.PurchaseTotal(req.Lines))
	return id, nil
}

func (s *OrderService) CreateSale(ctx context.Context, req domain.SaleRequest) (int64, error) {
	release, err := s.claim(ctx, "sale", req.RequestID)
	if err != nil {
		return 0, err
	}

	id, err := s.docs.CreateSale(ctx, req)
	if err != nil {
		release()
		level.Warn(s.logger).Log("msg", "sale rejected", "operator", req.OperatorID, "lines", len(req.Lines), "err", err)
		return 0, err
	}

	level.Info(s.logger).Log("msg", "sale recorded", "id", id, "operator", req.OperatorID, "total", domain.SaleTotal(req.Lines))
	return id, nil
}

func (s *OrderService) GetPurchase(ctx context.Context, id int64) (*domain.Purchase, error) {
	return s.docs.GetPurchase(ctx, id)
}

func (s *OrderService) GetSale(ctx context.Context, id int64) (*domain.Sale, error) {
	return s.docs.GetSale(ctx, id)
}

// claim reserves requestID for kind so a resubmitted document is rejected
// instead of recorded twice. The returned func frees the claim after a failed
// attempt.
func (s *OrderService) claim(ctx context.Context, kind, requestID string) (func(), error) {
	if s.idem == nil || requestID == "" {
		return func() {}, nil
	}

	key := fmt.Sprintf("%s:%s", kind, requestID)
	ok, err := s.idem.SetIdempotency(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("idempotency check failed: %w", err)
	}
	if !ok {
		level.Info(s.logger).Log("msg", "duplicate request", "key", key)
		return nil, domain.ErrDuplicateRequest
	}

	return func() {
		if err := s.idem.ReleaseIdempotency(context.WithoutCancel(ctx), key); err != nil {
			level.Error(s.logger).Log("msg", "release idempotency failed", "key", key, "err", err)
		}
	}, nil
}
