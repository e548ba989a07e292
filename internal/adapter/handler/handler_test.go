package handler

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/samuelvillalba090-commits/farmacia-3hermanas/internal/adapter/storage"
	"github.com/samuelvillalba090-commits/farmacia-3hermanas/internal/config"
	"github.com/samuelvillalba090-commits/farmacia-3hermanas/internal/core/domain"
	"github.com/samuelvillalba090-commits/farmacia-3hermanas/internal/core/service"
)

const (
	adminUser    = "admin"
	adminPass    = "admin123"
	sellerUser   = "caja"
	sellerPass   = "caja123"
	testSecret   = "test-secret"
	supplierName = "Droguería Central"
)

// memIdem is an in-process idempotency store for handler tests.
type memIdem struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (m *memIdem) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memIdem) ReleaseIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

type stack struct {
	adapter    *storage.SQLAdapter
	catalog    *service.CatalogService
	orders     *service.OrderService
	auth       *service.AuthService
	supplierID int64
}

func newStack(t *testing.T) *stack {
	t.Helper()
	ctx := context.Background()

	cfg := config.Store{
		Driver:         config.DriverSQLite,
		Path:           filepath.Join(t.TempDir(), "farmacia.db"),
		ConnectTimeout: 5 * time.Second,
		SuggestRoutine: "sp_suggest_products",
	}
	p, err := storage.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })

	adapter, err := storage.NewSQLAdapter(p, cfg.SuggestRoutine)
	require.NoError(t, err)
	require.NoError(t, adapter.Migrate(ctx))

	_, err = adapter.CreateUser(ctx, adminUser, adminPass, domain.RoleAdmin)
	require.NoError(t, err)
	_, err = adapter.CreateUser(ctx, sellerUser, sellerPass, domain.RoleSeller)
	require.NoError(t, err)
	supplierID, err := adapter.CreateSupplier(ctx, supplierName)
	require.NoError(t, err)

	return &stack{
		adapter:    adapter,
		catalog:    service.NewCatalogService(adapter, adapter, nil),
		orders:     service.NewOrderService(adapter, &memIdem{keys: make(map[string]bool)}, nil),
		auth:       service.NewAuthService(adapter, testSecret, time.Hour, nil),
		supplierID: supplierID,
	}
}
