package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/campus-events-api/internal/models"
	appErrors "github.com/noah-isme/campus-events-api/pkg/errors"
)

const qrTokenAudience = "event-attendance"

// QRTokenService signs and verifies short-lived attendance tokens. A token
// names an event; the scanning student is always taken from their credential.
type QRTokenService struct {
	secret []byte
	ttl    time.Duration
	clock  Clock
}

func NewQRTokenService(secret string, ttl time.Duration, clock Clock) *QRTokenService {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &QRTokenService{secret: []byte(secret), ttl: ttl, clock: clock}
}

// Sign issues a token for eventID valid for the configured TTL.
func (s *QRTokenService) Sign(eventID string) (string, time.Time, error) {
	if strings.TrimSpace(eventID) == "" {
		return "", time.Time{}, fmt.Errorf("event id required")
	}
	issuedAt := s.clock.Now().UTC()
	expiresAt := issuedAt.Add(s.ttl).Truncate(time.Second)
	claims := &models.QRClaims{
		EventID: eventID,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{qrTokenAudience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign qr token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks signature and expiry and returns the event id. Every failure
// maps to ErrInvalidQRCode.
func (s *QRTokenService) Verify(tokenString string) (string, error) {
	claims := &models.QRClaims{}
	token, err := jwt.ParseWithClaims(strings.TrimSpace(tokenString), claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithTimeFunc(s.clock.Now),
		jwt.WithAudience(qrTokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid || strings.TrimSpace(claims.EventID) == "" {
		return "", appErrors.Wrap(err, appErrors.ErrInvalidQRCode.Code, appErrors.ErrInvalidQRCode.Status, appErrors.ErrInvalidQRCode.Message)
	}
	return claims.EventID, nil
}
