package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/noah-isme/studio-adp-api/internal/models"
	appErrors "github.com/noah-isme/studio-adp-api/pkg/errors"
)

// AuthConfig defines configuration for access tokens.
type AuthConfig struct {
	AccessTokenSecret string
	AccessTokenExpiry time.Duration
	Issuer            string
	Audience          []string
}

// AuthService verifies bearer tokens issued by the account service and mints tokens for tooling.
type AuthService struct {
	logger *zap.Logger
	config AuthConfig
	now    func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = 24 * time.Hour
	}
	return &AuthService{logger: logger, config: config, now: time.Now}
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	if claims.UserID == "" || claims.TenantID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token is missing account or tenant")
	}
	return claims, nil
}

// IssueTokenInput describes the account a token is minted for.
type IssueTokenInput struct {
	UserID   string
	TenantID string
	Role     models.UserRole
	Email    string
	FullName string
	TTL      time.Duration
}

// IssueToken signs an access token. Account login lives in a separate service; this is used by studioctl and tests.
func (s *AuthService) IssueToken(in IssueTokenInput) (string, time.Time, error) {
	if strings.TrimSpace(in.UserID) == "" || strings.TrimSpace(in.TenantID) == "" {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrValidation, "user and tenant are required")
	}
	switch in.Role {
	case models.RoleAdmin, models.RoleTeacher, models.RoleGuardian, models.RoleStudent:
	default:
		return "", time.Time{}, appErrors.Clone(appErrors.ErrValidation, "unknown role "+string(in.Role))
	}
	ttl := in.TTL
	if ttl <= 0 {
		ttl = s.config.AccessTokenExpiry
	}
	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(ttl)
	claims := &models.JWTClaims{
		UserID:   in.UserID,
		TenantID: in.TenantID,
		Role:     in.Role,
		Email:    in.Email,
		FullName: in.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   in.UserID,
			Audience:  s.config.Audience,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.AccessTokenSecret))
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign token")
	}
	s.logger.Debug("access token issued", zap.String("user_id", in.UserID), zap.String("tenant_id", in.TenantID), zap.String("role", string(in.Role)))
	return signed, expiresAt, nil
}
