package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/samuelvillalba090-commits/farmacia-3hermanas/internal/core/domain"
	"github.com/samuelvillalba090-commits/farmacia-3hermanas/internal/port"
)

var ErrInvalidToken = errors.New("token inválido o expirado")

type authClaims struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// AuthService checks credentials against the store and issues session tokens
// carrying the operator's id and role.
type AuthService struct {
	creds  port.CredentialRepository
	secret []byte
	ttl    time.Duration
	logger log.Logger
	now    func() time.Time
}

func NewAuthService(creds port.CredentialRepository, secret string, ttl time.Duration, logger log.Logger) *AuthService {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &AuthService{
		creds:  creds,
		secret: []byte(secret),
		ttl:    ttl,
		logger: log.With(logger, "component", "auth"),
		now:    time.Now,
	}
}

// Login returns a signed token and the identity it carries. Blank input is a
// ValidationError; any credential mismatch is ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, domain.Identity, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", domain.Identity{}, &domain.ValidationError{Msg: "ingrese usuario y contraseña"}
	}

	check, err := s.creds.ValidateCredentials(ctx, username, password)
	if err != nil {
		return "", domain.Identity{}, err
	}
	if !check.OK {
		level.Info(s.logger).Log("msg", "login rejected", "user", username)
		return "", domain.Identity{}, domain.ErrInvalidCredentials
	}

	id := domain.Identity{UserID: check.UserID, Username: username, Role: check.Role}
	token, err := s.issue(id)
	if err != nil {
		return "", domain.Identity{}, err
	}

	level.Info(s.logger).Log("msg", "login", "user", username, "role", check.Role)
	return token, id, nil
}

func (s *AuthService) issue(id domain.Identity) (string, error) {
	issuedAt := s.now()
	claims := authClaims{
		UserID: id.UserID,
		Role:   id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id.Username,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ParseToken validates a token issued by Login and returns its identity.
func (s *AuthService) ParseToken(tokenString string) (domain.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &authClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return domain.Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*authClaims)
	if !ok {
		return domain.Identity{}, ErrInvalidToken
	}
	return domain.Identity{UserID: claims.UserID, Username: claims.Subject, Role: claims.Role}, nil
}
