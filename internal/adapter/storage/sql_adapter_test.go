package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samuelvillalba090-commits/farmacia-3hermanas/internal/config"
	"github.com/samuelvillalba090-commits/farmacia-3hermanas/internal/core/domain"
)

type fixture struct {
	adapter    *SQLAdapter
	operatorID int64
	supplierID int64
}

func newSQLiteAdapter(t *testing.T) *SQLAdapter {
	t.Helper()

	cfg := config.Store{
		Driver:         config.DriverSQLite,
		Path:           filepath.Join(t.TempDir(), "farmacia.db"),
		ConnectTimeout: 5 * time.Second,
		SuggestRoutine: "sp_suggest_products",
	}
	p, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })

	a, err := NewSQLAdapter(p, cfg.SuggestRoutine)
	require.NoError(t, err)
	require.NoError(t, a.Migrate(context.Background()))
	return a
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	a := newSQLiteAdapter(t)

	operatorID, err := a.CreateUser(ctx, "caja1", "secreto", domain.RoleSeller)
	require.NoError(t, err)
	supplierID, err := a.CreateSupplier(ctx, "Droguería Central")
	require.NoError(t, err)

	return &fixture{adapter: a, operatorID: operatorID, supplierID: supplierID}
}

func (f *fixture) stock(t *testing.T, code string) int {
	t.Helper()
	p, err := f.adapter.GetProductByCode(context.Background(), code)
	require.NoError(t, err)
	require.NotNil(t, p, "product %s", code)
	return p.Stock
}

func (f *fixture) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, f.adapter.provider.db.Get(&n, "SELECT COUNT(*) FROM "+table))
	return n
}

func (f *fixture) purchase(t *testing.T, lines ...domain.PurchaseLine) int64 {
	t.Helper()
	id, err := f.adapter.CreatePurchase(context.Background(), domain.PurchaseRequest{
		OperatorID: f.operatorID,
		SupplierID: f.supplierID,
		Lines:      lines,
	})
	require.NoError(t, err)
	return id
}

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(s string) *time.Time {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return &d
}

func TestUpsertProduct_IdempotentOnCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id1, err := f.adapter.UpsertProduct(ctx, domain.ProductInput{
		Code: "AX1", Description: "Aspirina", Price: price("10.0"), MinStock: 5,
	})
	require.NoError(t, err)

	id2, err := f.adapter.UpsertProduct(ctx, domain.ProductInput{
		Code: "AX1", Description: "Aspirina 500mg", Price: price("12.5"), MinStock: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	products, err := f.adapter.ListProducts(ctx, "AX1")
	require.NoError(t, err)
	require.Len(t, products, 1)

	p := products[0]
	assert.Equal(t, "Aspirina 500mg", p.Description)
	assert.True(t, p.Price.Equal(price("12.5")), "price %s", p.Price)
	assert.Equal(t, 0, p.Stock)
	assert.Equal(t, 5, p.MinStock)
	assert.False(t, p.RequiresPrescription)
}

func TestUpsertProduct_KeepsStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.purchase(t, domain.PurchaseLine{Code: "AMX", Quantity: 4, UnitPrice: price("2")})

	_, err := f.adapter.UpsertProduct(ctx, domain.ProductInput{
		Code: "AMX", Description: "Amoxicilina", Price: price("2.5"), RequiresPrescription: true,
	})
	require.NoError(t, err)

	p, err := f.adapter.GetProductByCode(ctx, "AMX")
	require.NoError(t, err)
	assert.Equal(t, 4, p.Stock)
	assert.True(t, p.RequiresPrescription)
}

func TestUpsertProduct_Validation(t *testing.T) {
	f := newFixture(t)
	var ve *domain.ValidationError

	_, err := f.adapter.UpsertProduct(context.Background(), domain.ProductInput{Code: "  "})
	require.ErrorAs(t, err, &ve)

	_, err = f.adapter.UpsertProduct(context.Background(), domain.ProductInput{Code: "X", Price: price("-1")})
	require.ErrorAs(t, err, &ve)
}

func TestGetProductByCode_NotFound(t *testing.T) {
	f := newFixture(t)

	p, err := f.adapter.GetProductByCode(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestListProducts_Filter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, in := range []domain.ProductInput{
		{Code: "PAR500", Description: "Paracetamol 500", Price: price("1")},
		{Code: "IBU400", Description: "Ibuprofeno 400", Price: price("1")},
		{Code: "ZZ1", Description: "Jarabe para la tos", Price: price("1")},
		{Code: "PCT", Description: "Descuento 10%", Price: price("1")},
	} {
		_, err := f.adapter.UpsertProduct(ctx, in)
		require.NoError(t, err)
	}

	all, err := f.adapter.ListProducts(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, []string{"PCT", "IBU400", "ZZ1", "PAR500"}, codes(all))

	byDesc, err := f.adapter.ListProducts(ctx, "PARA")
	require.NoError(t, err)
	assert.Equal(t, []string{"ZZ1", "PAR500"}, codes(byDesc))

	byCode, err := f.adapter.ListProducts(ctx, "ibu")
	require.NoError(t, err)
	assert.Equal(t, []string{"IBU400"}, codes(byCode))

	literal, err := f.adapter.ListProducts(ctx, "10%")
	require.NoError(t, err)
	assert.Equal(t, []string{"PCT"}, codes(literal))
}

func codes(products []domain.Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.Code
	}
	return out
}

func TestListSuppliers_OrderedByName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.adapter.CreateSupplier(ctx, "Bayer")
	require.NoError(t, err)

	suppliers, err := f.adapter.ListSuppliers(ctx)
	require.NoError(t, err)
	require.Len(t, suppliers, 2)
	assert.Equal(t, "Bayer", suppliers[0].Name)
	assert.Equal(t, "Droguería Central", suppliers[1].Name)
}

func TestSearch_AccentedTextIgnoresCase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, in := range []domain.ProductInput{
		{Code: "ACF5", Description: "Ácido fólico 5 mg", Price: price("1")},
		{Code: "ENA10", Description: "ENALAPRIL 10 MG", Price: price("1")},
	} {
		_, err := f.adapter.UpsertProduct(ctx, in)
		require.NoError(t, err)
	}

	for _, term := range []string{"Ácido", "ácido", "ÁCIDO", "FÓLICO", "fólico"} {
		products, err := f.adapter.ListProducts(ctx, term)
		require.NoError(t, err, term)
		assert.Equal(t, []string{"ACF5"}, codes(products), term)

		suggestions, err := f.adapter.SuggestProducts(ctx, term)
		require.NoError(t, err, term)
		require.Len(t, suggestions, 1, term)
		assert.Equal(t, "ACF5", suggestions[0].Code, term)
	}

	products, err := f.adapter.ListProducts(ctx, "enalapril")
	require.NoError(t, err)
	assert.Equal(t, []string{"ENA10"}, codes(products))
}

func TestSuggestProducts_FallsBackWhenRoutineMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		_, err := f.adapter.UpsertProduct(ctx, domain.ProductInput{
			Code:        fmt.Sprintf("VIT%02d", i),
			Description: fmt.Sprintf("Vitamina %02d", i),
			Price:       price("3"),
		})
		require.NoError(t, err)
	}
	_, err := f.adapter.UpsertProduct(ctx, domain.ProductInput{Code: "XVIT", Description: "Complejo B", Price: price("3")})
	require.NoError(t, err)

	rows, err := f.adapter.SuggestProducts(ctx, "vit")
	require.NoError(t, err)
	assert.Len(t, rows, 10)
	assert.Equal(t, "VIT00", rows[0].Code)
	for _, r := range rows {
		assert.NotEqual(t, "XVIT", r.Code, "code match must be a prefix match")
	}

	rows, err = f.adapter.SuggestProducts(ctx, "plejo")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "XVIT", rows[0].Code)
}

func TestCreatePurchase_NewProductOpensLot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.purchase(t, domain.PurchaseLine{
		Code: "NEW1", Quantity: 5, UnitPrice: price("3.0"), Expiry: date("2026-01-01"),
	})

	p, err := f.adapter.GetProductByCode(ctx, "NEW1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 5, p.Stock)
	assert.Equal(t, "NEW1", p.Description)
	assert.True(t, p.Price.Equal(price("3")))
	assert.Equal(t, 0, p.MinStock)
	assert.False(t, p.RequiresPrescription)

	lots, err := f.adapter.ListLots(ctx, "NEW1")
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.Equal(t, fmt.Sprintf("L-%d-NEW1", id), lots[0].Label)
	assert.Equal(t, 5, lots[0].Stock)
	assert.Equal(t, p.ID, lots[0].ProductID)
	assert.Equal(t, "2026-01-01", lots[0].ExpiresOn.Format(time.DateOnly))

	purchase, err := f.adapter.GetPurchase(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "OC-000001", purchase.DocumentNumber)
	assert.Equal(t, f.supplierID, purchase.SupplierID)
	assert.Equal(t, f.operatorID, purchase.OperatorID)
	assert.True(t, purchase.Total.Equal(price("15")), "total %s", purchase.Total)
	assert.False(t, purchase.CreatedAt.IsZero())
	require.Len(t, purchase.Lines, 1)
	assert.Equal(t, "NEW1", purchase.Lines[0].Code)
	assert.Equal(t, 5, purchase.Lines[0].Quantity)
}

func TestCreatePurchase_StockSumsPerCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.purchase(t, domain.PurchaseLine{Code: "AX1", Description: "Aspirina", Quantity: 10, UnitPrice: price("10")})
	require.Equal(t, 10, f.stock(t, "AX1"))

	id := f.purchase(t,
		domain.PurchaseLine{Code: "AX1", Quantity: 2, UnitPrice: price("11")},
		domain.PurchaseLine{Code: "IBU", Quantity: 4, UnitPrice: price("1.2")},
		domain.PurchaseLine{Code: "AX1", Quantity: 3, UnitPrice: price("12.5")},
	)

	assert.Equal(t, 15, f.stock(t, "AX1"))
	assert.Equal(t, 4, f.stock(t, "IBU"))

	p, err := f.adapter.GetProductByCode(ctx, "AX1")
	require.NoError(t, err)
	assert.Equal(t, "Aspirina", p.Description)
	assert.True(t, p.Price.Equal(price("12.5")), "last line's price wins, got %s", p.Price)

	lots, err := f.adapter.ListLots(ctx, "AX1")
	require.NoError(t, err)
	assert.Empty(t, lots, "lines without expiry open no lot")

	purchase, err := f.adapter.GetPurchase(ctx, id)
	require.NoError(t, err)
	assert.Len(t, purchase.Lines, 3)
	assert.True(t, purchase.Total.Equal(price("64.3")), "total %s", purchase.Total)
}

func TestCreatePurchase_RepeatedCodeGetsSequencedLots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.purchase(t,
		domain.PurchaseLine{Code: "INS", Quantity: 2, UnitPrice: price("40"), Expiry: date("2027-03-01")},
		domain.PurchaseLine{Code: "INS", Quantity: 1, UnitPrice: price("40"), Expiry: date("2026-11-30")},
	)

	lots, err := f.adapter.ListLots(ctx, "INS")
	require.NoError(t, err)
	require.Len(t, lots, 2)
	assert.Equal(t, fmt.Sprintf("L-%d-INS-2", id), lots[0].Label)
	assert.Equal(t, fmt.Sprintf("L-%d-INS", id), lots[1].Label)
	assert.Equal(t, 3, f.stock(t, "INS"))
}

func TestCreatePurchase_EmptyLines(t *testing.T) {
	f := newFixture(t)

	_, err := f.adapter.CreatePurchase(context.Background(), domain.PurchaseRequest{
		OperatorID: f.operatorID, SupplierID: f.supplierID,
	})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 0, f.count(t, "purchases"))
}

func TestCreatePurchase_FailureLeavesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.adapter.CreatePurchase(ctx, domain.PurchaseRequest{
		OperatorID: f.operatorID, SupplierID: f.supplierID, DocumentNumber: "OC-EXT-1",
		Lines: []domain.PurchaseLine{{Code: "AX1", Quantity: 10, UnitPrice: price("10")}},
	})
	require.NoError(t, err)

	_, err = f.adapter.CreatePurchase(ctx, domain.PurchaseRequest{
		OperatorID: f.operatorID, SupplierID: f.supplierID, DocumentNumber: "OC-EXT-1",
		Lines: []domain.PurchaseLine{
			{Code: "AX1", Quantity: 5, UnitPrice: price("99")},
			{Code: "NEW9", Quantity: 1, UnitPrice: price("1"), Expiry: date("2026-06-01")},
		},
	})
	require.Error(t, err)

	assert.Equal(t, 10, f.stock(t, "AX1"))
	p, err := f.adapter.GetProductByCode(ctx, "AX1")
	require.NoError(t, err)
	assert.True(t, p.Price.Equal(price("10")))

	missing, err := f.adapter.GetProductByCode(ctx, "NEW9")
	require.NoError(t, err)
	assert.Nil(t, missing)

	assert.Equal(t, 1, f.count(t, "purchases"))
	assert.Equal(t, 1, f.count(t, "purchase_lines"))
	assert.Equal(t, 0, f.count(t, "lots"))
}

func TestCreatePurchase_UnknownSupplierRollsBack(t *testing.T) {
	f := newFixture(t)

	_, err := f.adapter.CreatePurchase(context.Background(), domain.PurchaseRequest{
		OperatorID: f.operatorID, SupplierID: 9999,
		Lines: []domain.PurchaseLine{{Code: "NEW2", Quantity: 1, UnitPrice: price("1")}},
	})
	require.Error(t, err)
	assert.Equal(t, 0, f.count(t, "products"))
	assert.Equal(t, 0, f.count(t, "purchases"))
}

func TestCreateSale_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.adapter.UpsertProduct(ctx, domain.ProductInput{Code: "AX1", Description: "Aspirina", Price: price("12.5")})
	require.NoError(t, err)
	f.purchase(t, domain.PurchaseLine{Code: "AX1", Quantity: 10, UnitPrice: price("12.5")})

	id, err := f.adapter.CreateSale(ctx, domain.SaleRequest{
		OperatorID: f.operatorID,
		Lines:      []domain.SaleLine{{Code: "AX1", Quantity: 3, UnitPrice: price("12.5")}},
	})
	require.NoError(t, err)
	assert.Equal(t, 7, f.stock(t, "AX1"))

	sale, err := f.adapter.GetSale(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "FAC-000001", sale.DocumentNumber)
	assert.True(t, sale.Total.Equal(price("37.5")), "total %s", sale.Total)
	assert.Nil(t, sale.CustomerID)
	require.Len(t, sale.Lines, 1)
	assert.Equal(t, 3, sale.Lines[0].Quantity)
	assert.True(t, sale.Lines[0].UnitPrice.Equal(price("12.5")))

	lots, err := f.adapter.ListLots(ctx, "AX1")
	require.NoError(t, err)
	assert.Empty(t, lots)
}

func TestCreateSale_InsufficientStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.purchase(t, domain.PurchaseLine{Code: "AX1", Quantity: 7, UnitPrice: price("12.5")})

	_, err := f.adapter.CreateSale(ctx, domain.SaleRequest{
		OperatorID: f.operatorID,
		Lines:      []domain.SaleLine{{Code: "AX1", Quantity: 20, UnitPrice: price("12.5")}},
	})
	var se *domain.InsufficientStockError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 7, se.Available)
	assert.Contains(t, err.Error(), "7")

	assert.Equal(t, 7, f.stock(t, "AX1"))
	assert.Equal(t, 0, f.count(t, "sales"))
	assert.Equal(t, 0, f.count(t, "sale_lines"))
}

func TestCreateSale_UnknownCodeRollsBackEarlierLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.purchase(t, domain.PurchaseLine{Code: "AX1", Quantity: 10, UnitPrice: price("12.5")})

	customer := int64(42)
	_, err := f.adapter.CreateSale(ctx, domain.SaleRequest{
		OperatorID: f.operatorID,
		CustomerID: &customer,
		Lines: []domain.SaleLine{
			{Code: "AX1", Quantity: 4, UnitPrice: price("12.5")},
			{Code: "NOPE", Quantity: 1, UnitPrice: price("1")},
		},
	})
	var ue *domain.UnknownCodeError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "código NOPE no existe", err.Error())

	assert.Equal(t, 10, f.stock(t, "AX1"))
	assert.Equal(t, 0, f.count(t, "sales"))
	assert.Equal(t, 0, f.count(t, "sale_lines"))
}

func TestCreateSale_CustomerAndCallerNumber(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.purchase(t, domain.PurchaseLine{Code: "AX1", Quantity: 10, UnitPrice: price("1")})

	customer := int64(7)
	id, err := f.adapter.CreateSale(ctx, domain.SaleRequest{
		OperatorID:     f.operatorID,
		CustomerID:     &customer,
		DocumentNumber: "FAC-MANUAL-9",
		Lines:          []domain.SaleLine{{Code: "AX1", Quantity: 1, UnitPrice: price("1")}},
	})
	require.NoError(t, err)

	sale, err := f.adapter.GetSale(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "FAC-MANUAL-9", sale.DocumentNumber)
	require.NotNil(t, sale.CustomerID)
	assert.Equal(t, int64(7), *sale.CustomerID)
}

func TestGetDocuments_NotFound(t *testing.T) {
	f := newFixture(t)
	var ne *domain.NotFoundError

	_, err := f.adapter.GetSale(context.Background(), 404)
	require.ErrorAs(t, err, &ne)

	_, err = f.adapter.GetPurchase(context.Background(), 404)
	require.ErrorAs(t, err, &ne)
}

func TestNextDocumentNumber_Sequential(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	format := regexp.MustCompile(`^OC-\d{6}$`)

	previous := ""
	for i := 0; i < 3; i++ {
		next, err := f.adapter.NextDocumentNumber(ctx, PurchaseSequence)
		require.NoError(t, err)
		assert.Regexp(t, format, next)
		assert.GreaterOrEqual(t, next, previous)
		previous = next

		id := f.purchase(t, domain.PurchaseLine{Code: "AX1", Quantity: 1, UnitPrice: price("1")})
		purchase, err := f.adapter.GetPurchase(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, next, purchase.DocumentNumber)
	}

	sale, err := f.adapter.NextDocumentNumber(ctx, SaleSequence)
	require.NoError(t, err)
	assert.Equal(t, "FAC-000001", sale)
}

func TestListLowStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.adapter.UpsertProduct(ctx, domain.ProductInput{Code: "LOW", Description: "Alcohol", Price: price("1"), MinStock: 5})
	require.NoError(t, err)
	_, err = f.adapter.UpsertProduct(ctx, domain.ProductInput{Code: "OK", Description: "Gasas", Price: price("1"), MinStock: 1})
	require.NoError(t, err)
	f.purchase(t, domain.PurchaseLine{Code: "OK", Quantity: 3, UnitPrice: price("1")})

	low, err := f.adapter.ListLowStock(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"LOW"}, codes(low))
}

func TestValidateCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	adminID, err := f.adapter.CreateUser(ctx, "admin", "clave-segura", domain.RoleAdmin)
	require.NoError(t, err)

	check, err := f.adapter.ValidateCredentials(ctx, "admin", "clave-segura")
	require.NoError(t, err)
	assert.Equal(t, domain.CredentialCheck{OK: true, Role: domain.RoleAdmin, UserID: adminID}, check)

	wrong, err := f.adapter.ValidateCredentials(ctx, "admin", "otra")
	require.NoError(t, err)
	unknown, err := f.adapter.ValidateCredentials(ctx, "nadie", "clave-segura")
	require.NoError(t, err)
	assert.Equal(t, domain.CredentialCheck{}, wrong)
	assert.Equal(t, wrong, unknown)

	require.NoError(t, f.adapter.SetUserActive(ctx, "admin", false))
	inactive, err := f.adapter.ValidateCredentials(ctx, "admin", "clave-segura")
	require.NoError(t, err)
	assert.False(t, inactive.OK)
}

func TestCreateUser_StoresHashNotPassword(t *testing.T) {
	f := newFixture(t)

	var stored string
	require.NoError(t, f.adapter.provider.db.Get(&stored, `SELECT password_hash FROM users WHERE username = 'caja1'`))
	// sha256("secreto")
	assert.Len(t, stored, 64)
	assert.NotContains(t, stored, "secreto")
}

func TestPing(t *testing.T) {
	f := newFixture(t)

	name, err := f.adapter.Ping(context.Background())
	require.NoError(t, err)
	assert.Contains(t, name, "farmacia.db")
}

func TestAcquire_UnreachableStore(t *testing.T) {
	p, err := Open(config.Store{
		Driver:         config.DriverSQLite,
		Path:           filepath.Join(t.TempDir(), "missing", "dir", "farmacia.db"),
		ConnectTimeout: time.Second,
	})
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Acquire(context.Background())
	var ce *domain.ConnectivityError
	require.ErrorAs(t, err, &ce)
}

func TestNewSQLAdapter_RejectsRoutineInjection(t *testing.T) {
	_, err := NewSQLAdapter(nil, "sp_x; DROP TABLE products")
	require.Error(t, err)
}
