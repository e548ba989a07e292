package handler

import (
	"context"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/samuelvillalba090-commits/farmacia-3hermanas/internal/classifier"
	"github.com/samuelvillalba090-commits/farmacia-3hermanas/internal/core/domain"
	"github.com/samuelvillalba090-commits/farmacia-3hermanas/internal/core/service"
)

// GRPCHandler answers business failures inside the reply with the classified
// message. Transport-level problems such as a missing token are gRPC errors.
type GRPCHandler struct {
	catalog *service.CatalogService
	orders  *service.OrderService
	auth    *service.AuthService
	logger  log.Logger
}

func NewGRPCHandler(catalog *service.CatalogService, orders *service.OrderService, auth *service.AuthService, logger log.Logger) *GRPCHandler {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &GRPCHandler{
		catalog: catalog,
		orders:  orders,
		auth:    auth,
		logger:  log.With(logger, "component", "grpc"),
	}
}

func (h *GRPCHandler) Login(ctx context.Context, req *LoginRequest) (*LoginReply, error) {
	token, id, err := h.auth.Login(ctx, req.Username, req.Password)
	if err != nil {
		return &LoginReply{Success: false, Message: h.message(err)}, nil
	}
	return &LoginReply{Success: true, Message: "bienvenido", Token: token, User: id}, nil
}

func (h *GRPCHandler) CreatePurchase(ctx context.Context, req *PurchaseRequest) (*DocumentReply, error) {
	if identityFrom(ctx).Role != domain.RoleAdmin {
		return nil, status.Error(codes.PermissionDenied, "permisos insuficientes")
	}

	lines, err := req.domainLines()
	if err != nil {
		return &DocumentReply{Success: false, Message: h.message(err)}, nil
	}

	id, err := h.orders.CreatePurchase(ctx, domain.PurchaseRequest{
		RequestID:      req.RequestID,
		OperatorID:     identityFrom(ctx).UserID,
		SupplierID:     req.SupplierID,
		DocumentNumber: req.DocumentNumber,
		Lines:          lines,
	})
	if err != nil {
		return &DocumentReply{Success: false, Message: h.message(err)}, nil
	}
	return &DocumentReply{Success: true, Message: "compra registrada", ID: id}, nil
}

func (h *GRPCHandler) CreateSale(ctx context.Context, req *SaleRequest) (*DocumentReply, error) {
	id, err := h.orders.CreateSale(ctx, domain.SaleRequest{
		RequestID:      req.RequestID,
		OperatorID:     identityFrom(ctx).UserID,
		CustomerID:     req.CustomerID,
		DocumentNumber: req.DocumentNumber,
		Lines:          req.Lines,
	})
	if err != nil {
		return &DocumentReply{Success: false, Message: h.message(err)}, nil
	}
	return &DocumentReply{Success: true, Message: "venta registrada", ID: id}, nil
}

func (h *GRPCHandler) SuggestProducts(ctx context.Context, req *SuggestRequest) (*SuggestReply, error) {
	rows, err := h.catalog.SuggestProducts(ctx, req.Term)
	if err != nil {
		res := classifier.Classify(err)
		return nil, status.Error(grpcCode(res), res.Message)
	}
	return &SuggestReply{Items: rows}, nil
}

func (h *GRPCHandler) message(err error) string {
	res := classifier.Classify(err)
	if res.Category == domain.KindConnectivity || res.Category == domain.KindUnclassified {
		level.Error(h.logger).Log("msg", "request failed", "category", res.Category, "err", err)
	}
	return res.Message
}

func grpcCode(res classifier.Result) codes.Code {
	switch res.Category {
	case domain.KindValidation:
		return codes.InvalidArgument
	case domain.KindNotFound:
		return codes.NotFound
	case domain.KindIntegrity:
		return codes.FailedPrecondition
	case domain.KindConnectivity:
		return codes.Unavailable
	}
	return codes.Internal
}

// AuthInterceptor requires a bearer token in the "authorization" metadata for
// every method except Login, and puts the caller's identity in the context.
func AuthInterceptor(auth *service.AuthService) grpc.UnaryServerInterceptor {
	loginMethod := "/" + InventoryServiceName + "/Login"
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if info.FullMethod == loginMethod {
			return handler(ctx, req)
		}

		md, _ := metadata.FromIncomingContext(ctx)
		values := md.Get("authorization")
		if len(values) == 0 || !strings.HasPrefix(strings.ToLower(values[0]), "bearer ") {
			return nil, status.Error(codes.Unauthenticated, "falta el token de acceso")
		}

		id, err := auth.ParseToken(strings.TrimSpace(values[0][len("bearer "):]))
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
		return handler(context.WithValue(ctx, ctxIdentity, id), req)
	}
}
