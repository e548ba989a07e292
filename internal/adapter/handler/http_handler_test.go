package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-kit/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samuelvillalba090-commits/farmacia-3hermanas/internal/core/domain"
)

type httpClient struct {
	t      *testing.T
	router http.Handler
}

func newHTTPClient(t *testing.T) (*httpClient, *stack) {
	s := newStack(t)
	h := NewHTTPHandler(s.catalog, s.orders, s.auth, nil)
	return &httpClient{t: t, router: h.Router()}, s
}

func (c *httpClient) do(method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	c.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, req)
	return rec
}

func (c *httpClient) login(username, password string) string {
	c.t.Helper()
	rec := c.do(http.MethodPost, "/auth/login", "", LoginRequest{Username: username, Password: password})
	require.Equal(c.t, http.StatusOK, rec.Code, rec.Body.String())

	var resp loginHTTPResponse
	require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Token
}

func decodeReply(t *testing.T, rec *httptest.ResponseRecorder) DocumentReply {
	t.Helper()
	var reply DocumentReply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply), rec.Body.String())
	return reply
}

func saleBody(code string, qty int) SaleRequest {
	return SaleRequest{Lines: []domain.SaleLine{{Code: code, Quantity: qty, UnitPrice: decimal.RequireFromString("3.0")}}}
}

func TestHealthCheck(t *testing.T) {
	c, _ := newHTTPClient(t)

	rec := c.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Contains(t, body["database"], "farmacia.db")
}

func TestLogin(t *testing.T) {
	c, _ := newHTTPClient(t)

	rec := c.do(http.MethodPost, "/auth/login", "", LoginRequest{Username: adminUser, Password: adminPass})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp loginHTTPResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, domain.RoleAdmin, resp.User.Role)

	rec = c.do(http.MethodPost, "/auth/login", "", LoginRequest{Username: adminUser, Password: "mala"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "usuario o contraseña incorrectos", decodeReply(t, rec).Message)

	rec = c.do(http.MethodPost, "/auth/login", "", LoginRequest{Username: "", Password: ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(http.MethodPost, "/auth/login", "", map[string]string{"user": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	c, _ := newHTTPClient(t)

	for _, path := range []string{"/products", "/suppliers", "/sales/1"} {
		rec := c.do(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}

	rec := c.do(http.MethodGet, "/products", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpsertProduct_AdminOnly(t *testing.T) {
	c, _ := newHTTPClient(t)
	admin := c.login(adminUser, adminPass)
	seller := c.login(sellerUser, sellerPass)

	body := map[string]any{"description": "Aspirina", "price": "10.0", "min_stock": 5}
	rec := c.do(http.MethodPut, "/products/AX1", seller, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = c.do(http.MethodPut, "/products/AX1", admin, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body["price"] = 12.5
	rec = c.do(http.MethodPut, "/products/AX1", admin, body)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = c.do(http.MethodGet, "/products/AX1", seller, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var p domain.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.True(t, p.Price.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, 0, p.Stock)

	rec = c.do(http.MethodGet, "/products?q=aspi", seller, nil)
	var list []domain.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = c.do(http.MethodGet, "/products/ZZ9", seller, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "código ZZ9 no existe", decodeReply(t, rec).Message)
}

func TestPurchaseAndSaleFlow(t *testing.T) {
	c, s := newHTTPClient(t)
	admin := c.login(adminUser, adminPass)
	seller := c.login(sellerUser, sellerPass)

	purchase := PurchaseRequest{
		SupplierID: s.supplierID,
		Lines: []PurchaseLineInput{
			{Code: "NEW1", Quantity: 5, UnitPrice: decimal.RequireFromString("3.0"), Expiry: "2026-01-01"},
		},
	}
	rec := c.do(http.MethodPost, "/purchases", seller, purchase)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = c.do(http.MethodPost, "/purchases", admin, purchase)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	purchaseID := decodeReply(t, rec).ID

	rec = c.do(http.MethodGet, fmt.Sprintf("/purchases/%d", purchaseID), seller, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.Purchase
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "OC-000001", got.DocumentNumber)
	assert.True(t, got.Total.Equal(decimal.NewFromInt(15)))

	rec = c.do(http.MethodGet, "/products/NEW1/lots", seller, nil)
	var lots []domain.Lot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lots))
	require.Len(t, lots, 1)
	assert.Equal(t, fmt.Sprintf("L-%d-NEW1", purchaseID), lots[0].Label)

	rec = c.do(http.MethodPost, "/sales", seller, saleBody("NEW1", 3))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	saleID := decodeReply(t, rec).ID

	rec = c.do(http.MethodGet, fmt.Sprintf("/sales/%d", saleID), seller, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sale domain.Sale
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sale))
	assert.Equal(t, "FAC-000001", sale.DocumentNumber)
	assert.True(t, sale.Total.Equal(decimal.NewFromInt(9)))

	rec = c.do(http.MethodPost, "/sales", seller, saleBody("NEW1", 20))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "stock insuficiente para NEW1, disponible: 2", decodeReply(t, rec).Message)

	rec = c.do(http.MethodPost, "/sales", seller, saleBody("NOPE", 1))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "código NOPE no existe", decodeReply(t, rec).Message)

	rec = c.do(http.MethodPost, "/sales", seller, SaleRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "la venta debe tener al menos un ítem", decodeReply(t, rec).Message)

	rec = c.do(http.MethodGet, "/products/low-stock", seller, nil)
	var low []domain.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &low))
	assert.Empty(t, low)

	rec = c.do(http.MethodGet, "/products/suggest?term=NE", seller, nil)
	var suggestions []domain.Suggestion
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &suggestions))
	require.Len(t, suggestions, 1)
	assert.Equal(t, 2, suggestions[0].Stock)
}

func TestCreatePurchase_BadExpiry(t *testing.T) {
	c, s := newHTTPClient(t)
	admin := c.login(adminUser, adminPass)

	rec := c.do(http.MethodPost, "/purchases", admin, PurchaseRequest{
		SupplierID: s.supplierID,
		Lines:      []PurchaseLineInput{{Code: "X", Quantity: 1, UnitPrice: decimal.NewFromInt(1), Expiry: "01/01/2026"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeReply(t, rec).Message, "fecha de vencimiento inválida en el ítem 1")
}

func TestCreateSale_DuplicateIdempotencyKey(t *testing.T) {
	c, s := newHTTPClient(t)
	admin := c.login(adminUser, adminPass)

	rec := c.do(http.MethodPost, "/purchases", admin, PurchaseRequest{
		SupplierID: s.supplierID,
		Lines:      []PurchaseLineInput{{Code: "AX1", Quantity: 10, UnitPrice: decimal.NewFromInt(1)}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = c.do(http.MethodPost, "/sales", admin, saleBody("AX1", 1), "Idempotency-Key", "ticket-42")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = c.do(http.MethodPost, "/sales", admin, saleBody("AX1", 1), "Idempotency-Key", "ticket-42")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "la solicitud ya fue procesada", decodeReply(t, rec).Message)

	p, err := s.adapter.GetProductByCode(context.Background(), "AX1")
	require.NoError(t, err)
	assert.Equal(t, 9, p.Stock)
}

func TestCreateSale_DuplicateDocumentNumber(t *testing.T) {
	c, s := newHTTPClient(t)
	admin := c.login(adminUser, adminPass)

	rec := c.do(http.MethodPost, "/purchases", admin, PurchaseRequest{
		SupplierID: s.supplierID,
		Lines:      []PurchaseLineInput{{Code: "AX1", Quantity: 10, UnitPrice: decimal.NewFromInt(1)}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	body := saleBody("AX1", 1)
	body.DocumentNumber = "FAC-MANUAL"
	rec = c.do(http.MethodPost, "/sales", admin, body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = c.do(http.MethodPost, "/sales", admin, body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Dato duplicado: ya existe un registro con ese valor único.", decodeReply(t, rec).Message)
}

func TestGetSale_BadAndMissingID(t *testing.T) {
	c, _ := newHTTPClient(t)
	seller := c.login(sellerUser, sellerPass)

	rec := c.do(http.MethodGet, "/sales/abc", seller, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(http.MethodGet, "/sales/999", seller, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "venta 999 no existe", decodeReply(t, rec).Message)
}

func TestListSuppliers(t *testing.T) {
	c, _ := newHTTPClient(t)
	seller := c.login(sellerUser, sellerPass)

	rec := c.do(http.MethodGet, "/suppliers", seller, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var suppliers []domain.Supplier
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &suppliers))
	require.Len(t, suppliers, 1)
	assert.Equal(t, supplierName, suppliers[0].Name)
}

type brokenWriter struct {
	header http.Header
	status int
}

func (w *brokenWriter) Header() http.Header       { return w.header }
func (w *brokenWriter) WriteHeader(status int)    { w.status = status }
func (w *brokenWriter) Write([]byte) (int, error) { return 0, errors.New("client went away") }

func TestWriteJSON_LogsEncodeFailure(t *testing.T) {
	var logs bytes.Buffer
	h := NewHTTPHandler(nil, nil, nil, log.NewLogfmtLogger(&logs))

	w := &brokenWriter{header: http.Header{}}
	h.writeJSON(w, http.StatusOK, DocumentReply{Success: true, Message: "venta registrada"})

	assert.Equal(t, http.StatusOK, w.status)
	assert.Contains(t, logs.String(), "encode response failed")
	assert.Contains(t, logs.String(), "client went away")
}
