package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/shopspring/decimal"

	"github.com/samuelvillalba090-commits/farmacia-3hermanas/internal/classifier"
	"github.com/samuelvillalba090-commits/farmacia-3hermanas/internal/core/domain"
	"github.com/samuelvillalba090-commits/farmacia-3hermanas/internal/core/service"
)

type ctxKey string

const ctxIdentity ctxKey = "identity"

type HTTPHandler struct {
	catalog *service.CatalogService
	orders  *service.OrderService
	auth    *service.AuthService
	logger  log.Logger
}

type loginHTTPResponse struct {
	Token string          `json:"token"`
	User  domain.Identity `json:"user"`
}

type productHTTPRequest struct {
	Description          string          `json:"description"`
	Price                decimal.Decimal `json:"price"`
	MinStock             int             `json:"min_stock"`
	RequiresPrescription bool            `json:"requires_prescription"`
}

func NewHTTPHandler(catalog *service.CatalogService, orders *service.OrderService, auth *service.AuthService, logger log.Logger) *HTTPHandler {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &HTTPHandler{
		catalog: catalog,
		orders:  orders,
		auth:    auth,
		logger:  log.With(logger, "component", "http"),
	}
}

// Router wires up the HTTP API. Everything except health and login needs a
// bearer token; purchases and product edits need the admin role.
func (h *HTTPHandler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.HealthCheck)
	r.Post("/auth/login", h.Login)

	r.Group(func(pr chi.Router) {
		pr.Use(h.authMiddleware)

		pr.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Get("/suggest", h.SuggestProducts)
			r.Get("/low-stock", h.ListLowStock)
			r.Get("/{code}", h.GetProduct)
			r.With(h.requireRole(domain.RoleAdmin)).Put("/{code}", h.UpsertProduct)
			r.Get("/{code}/lots", h.ListLots)
		})

		pr.Get("/suppliers", h.ListSuppliers)

		pr.Route("/purchases", func(r chi.Router) {
			r.With(h.requireRole(domain.RoleAdmin)).Post("/", h.CreatePurchase)
			r.Get("/{id}", h.GetPurchase)
		})

		pr.Route("/sales", func(r chi.Router) {
			r.Post("/", h.CreateSale)
			r.Get("/{id}", h.GetSale)
		})
	})

	return r
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	name, err := h.catalog.Ping(r.Context())
	if err != nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "down", "message": classifier.Message(err)})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": name})
}

func (h *HTTPHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	token, id, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, loginHTTPResponse{Token: token, User: id})
}

func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListProducts(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, products)
}

func (h *HTTPHandler) SuggestProducts(w http.ResponseWriter, r *http.Request) {
	rows, err := h.catalog.SuggestProducts(r.Context(), r.URL.Query().Get("term"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rows)
}

func (h *HTTPHandler) ListLowStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListLowStock(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, products)
}

func (h *HTTPHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.GetProduct(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

func (h *HTTPHandler) UpsertProduct(w http.ResponseWriter, r *http.Request) {
	var req productHTTPRequest
	if !h.decode(w, r, &req) {
		return
	}

	id, err := h.catalog.UpsertProduct(r.Context(), domain.ProductInput{
		Code:                 chi.URLParam(r, "code"),
		Description:          req.Description,
		Price:                req.Price,
		MinStock:             req.MinStock,
		RequiresPrescription: req.RequiresPrescription,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, DocumentReply{Success: true, Message: "producto guardado", ID: id})
}

func (h *HTTPHandler) ListLots(w http.ResponseWriter, r *http.Request) {
	lots, err := h.catalog.ListLots(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, lots)
}

func (h *HTTPHandler) ListSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := h.catalog.ListSuppliers(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, suppliers)
}

func (h *HTTPHandler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	var req PurchaseRequest
	if !h.decode(w, r, &req) {
		return
	}

	lines, err := req.domainLines()
	if err != nil {
		h.writeError(w, err)
		return
	}

	id, err := h.orders.CreatePurchase(r.Context(), domain.PurchaseRequest{
		RequestID:      requestID(r, req.RequestID),
		OperatorID:     identityFrom(r.Context()).UserID,
		SupplierID:     req.SupplierID,
		DocumentNumber: req.DocumentNumber,
		Lines:          lines,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, DocumentReply{Success: true, Message: "compra registrada", ID: id})
}

func (h *HTTPHandler) GetPurchase(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	purchase, err := h.orders.GetPurchase(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, purchase)
}

func (h *HTTPHandler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var req SaleRequest
	if !h.decode(w, r, &req) {
		return
	}

	id, err := h.orders.CreateSale(r.Context(), domain.SaleRequest{
		RequestID:      requestID(r, req.RequestID),
		OperatorID:     identityFrom(r.Context()).UserID,
		CustomerID:     req.CustomerID,
		DocumentNumber: req.DocumentNumber,
		Lines:          req.Lines,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, DocumentReply{Success: true, Message: "venta registrada", ID: id})
}

func (h *HTTPHandler) GetSale(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	sale, err := h.orders.GetSale(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sale)
}

func (h *HTTPHandler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			h.writeJSON(w, http.StatusUnauthorized, DocumentReply{Message: "falta el token de acceso"})
			return
		}

		id, err := h.auth.ParseToken(strings.TrimSpace(header[len("Bearer "):]))
		if err != nil {
			h.writeJSON(w, http.StatusUnauthorized, DocumentReply{Message: err.Error()})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxIdentity, id)))
	})
}

func (h *HTTPHandler) requireRole(allowed ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := identityFrom(r.Context()).Role
			for _, a := range allowed {
				if role == a {
					next.ServeHTTP(w, r)
					return
				}
			}
			h.writeJSON(w, http.StatusForbidden, DocumentReply{Message: "permisos insuficientes"})
		})
	}
}

func identityFrom(ctx context.Context) domain.Identity {
	id, _ := ctx.Value(ctxIdentity).(domain.Identity)
	return id
}

// requestID prefers the body's request_id and falls back to the
// Idempotency-Key header.
func requestID(r *http.Request, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	return r.Header.Get("Idempotency-Key")
}

func (h *HTTPHandler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeJSON(w, http.StatusBadRequest, DocumentReply{Message: "id inválido"})
		return 0, false
	}
	return id, true
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		h.writeJSON(w, http.StatusBadRequest, DocumentReply{Message: "cuerpo de la solicitud inválido"})
		return false
	}
	return true
}

// writeError renders err through the classifier; the raw error is only logged.
func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	res := classifier.Classify(err)
	status := statusFor(err, res)
	if status >= http.StatusInternalServerError {
		level.Error(h.logger).Log("msg", "request failed", "category", res.Category, "retryable", res.Retryable, "err", err)
	}
	h.writeJSON(w, status, DocumentReply{Message: res.Message})
}

func statusFor(err error, res classifier.Result) int {
	var stockErr *domain.InsufficientStockError
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrDuplicateRequest):
		return http.StatusConflict
	case errors.As(err, &stockErr):
		return http.StatusUnprocessableEntity
	}

	switch res.Category {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindIntegrity:
		return http.StatusConflict
	case domain.KindConnectivity:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(data); err != nil {
		level.Error(h.logger).Log("msg", "encode response failed", "status", status, "err", err)
	}
}
