package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/campus-events-api/internal/models"
	appErrors "github.com/noah-isme/campus-events-api/pkg/errors"
)

// TokenConfig configures credential verification.
type TokenConfig struct {
	Secret string
	Issuer string
	Expiry time.Duration
}

// TokenService verifies credentials issued by the identity provider and turns
// them into principals. Issue exists for tooling and tests.
type TokenService struct {
	cfg   TokenConfig
	clock Clock
}

func NewTokenService(cfg TokenConfig, clock Clock) *TokenService {
	if clock == nil {
		clock = SystemClock()
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = 24 * time.Hour
	}
	return &TokenService{cfg: cfg, clock: clock}
}

// Validate parses an HS256 credential and returns the principal it carries.
func (s *TokenService) Validate(tokenString string) (*models.Principal, error) {
	claims := &models.JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	}, jwt.WithTimeFunc(s.clock.Now))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}
	if !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	principal := claims.Principal()
	if strings.TrimSpace(principal.ID) == "" || !principal.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return &principal, nil
}

// Issue signs a credential for the principal.
func (s *TokenService) Issue(p models.Principal) (string, time.Time, error) {
	issuedAt := s.clock.Now().UTC()
	expiresAt := issuedAt.Add(s.cfg.Expiry)
	claims := &models.JWTClaims{
		SubjectID: p.ID,
		Role:      p.Role,
		Name:      p.Name,
		Email:     p.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   p.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}
