package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seu-repo/parkflow/internal/domain"
	"github.com/seu-repo/parkflow/internal/ports"
)

// ErrUnauthenticated is returned for missing, malformed, expired or revoked tokens
var ErrUnauthenticated = errors.New("unauthenticated")

const tokenTypeAccess = "access"

// Claims represents the custom JWT claims used by the application.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
	Type string `json:"type"`
}

// Principal is the authenticated caller of a request
type Principal struct {
	UserID    string
	Role      domain.UserRole
	TokenID   string
	ExpiresAt time.Time
}

// JWTService issues, verifies and revokes bearer tokens. Revocations are kept
// in the cache until the token would have expired anyway.
type JWTService struct {
	secret         []byte
	accessDuration time.Duration
	cache          ports.Cache
	now            func() time.Time
	log            *zap.Logger
}

// NewJWTService creates a new JWTService instance. cache may be nil, in which
// case revocation is disabled.
func NewJWTService(secret string, accessDuration time.Duration, cache ports.Cache, log *zap.Logger) *JWTService {
	log.Info("JWT service initialized",
		zap.Duration("access_duration", accessDuration),
		zap.Bool("revocation", cache != nil),
	)

	return &JWTService{
		secret:         []byte(secret),
		accessDuration: accessDuration,
		cache:          cache,
		now:            time.Now,
		log:            log,
	}
}

// GenerateAccessToken creates a signed access token carrying the user id as
// subject and the user's role.
func (s *JWTService) GenerateAccessToken(user *domain.User) (string, error) {
	jti := uuid.New().String()
	now := s.now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        jti,
		},
		Role: string(user.Role),
		Type: tokenTypeAccess,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		s.log.Error("failed to sign access token",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses an access token and rejects it when it was revoked
func (s *JWTService) ValidateToken(ctx context.Context, tokenString string) (*Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		s.log.Debug("token validation failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Type != tokenTypeAccess || claims.Subject == "" {
		return nil, fmt.Errorf("%w: invalid token claims", ErrUnauthenticated)
	}

	if s.isRevoked(ctx, claims.ID) {
		return nil, fmt.Errorf("%w: token revoked", ErrUnauthenticated)
	}

	p := &Principal{
		UserID:  claims.Subject,
		Role:    domain.UserRole(claims.Role),
		TokenID: claims.ID,
	}
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time
	}
	if p.Role == "" {
		p.Role = domain.UserRoleUser
	}
	return p, nil
}

// RevokeToken denylists the principal's token for the rest of its lifetime
func (s *JWTService) RevokeToken(ctx context.Context, p *Principal) error {
	if s.cache == nil || p.TokenID == "" {
		return nil
	}

	ttl := p.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}

	if err := s.cache.Set(ctx, revokedKey(p.TokenID), "revoked", ttl); err != nil {
		s.log.Error("failed to revoke token",
			zap.String("token_id", p.TokenID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	s.log.Info("token revoked",
		zap.String("user_id", p.UserID),
		zap.String("token_id", p.TokenID),
	)
	return nil
}

func (s *JWTService) isRevoked(ctx context.Context, tokenID string) bool {
	if s.cache == nil || tokenID == "" {
		return false
	}
	val, err := s.cache.Get(ctx, revokedKey(tokenID))
	if err != nil {
		// Fail open: the cache only carries revocations.
		s.log.Warn("revocation lookup failed", zap.String("token_id", tokenID), zap.Error(err))
		return false
	}
	return val == "revoked"
}

func revokedKey(tokenID string) string {
	return "revoked_token:" + tokenID
}
