package auth

import (
	"errors"
	"fmt"
	"time"

	"settlement-platform/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrMissingClaim = errors.New("auth: user_id and role are required")
	ErrTTLTooLong   = errors.New("auth: token lifetime exceeds the configured maximum")
)

const clockSkew = 30 * time.Second

// Manager verifies API tokens. Tokens are minted by the identity provider in front of the
// API or by settlectl for operators; nothing here runs a login flow.
type Manager struct {
	secret    []byte
	issuer    string
	audience  string
	accessTTL time.Duration
	maxTTL    time.Duration
}

func NewManager(cfg config.AuthConfig) (*Manager, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	m := &Manager{
		secret:    []byte(cfg.JWTSecret),
		issuer:    cfg.JWTIssuer,
		audience:  cfg.JWTAudience,
		accessTTL: cfg.AccessTokenTTL,
		maxTTL:    cfg.MaxTokenTTL,
	}
	if m.accessTTL <= 0 {
		m.accessTTL = 15 * time.Minute
	}
	return m, nil
}

// IssueAccess signs an access token. ttl <= 0 uses the configured access ttl.
func (m *Manager) IssueAccess(now time.Time, userID, partyID, role string, ttl time.Duration) (string, error) {
	if userID == "" || role == "" {
		return "", ErrMissingClaim
	}
	if ttl <= 0 {
		ttl = m.accessTTL
	}
	if m.maxTTL > 0 && ttl > m.maxTTL {
		return "", fmt.Errorf("%w: %s > %s", ErrTTLTooLong, ttl, m.maxTTL)
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		UserID:  userID,
		PartyID: partyID,
		Role:    role,
		Use:     tokenUse,
	}
	if m.audience != "" {
		claims.Audience = jwt.ClaimStrings{m.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Verify checks signature, lifetime, issuer and audience as of now.
func (m *Manager) Verify(raw string, now time.Time) (Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(clockSkew),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	if m.audience != "" {
		opts = append(opts, jwt.WithAudience(m.audience))
	}

	var claims Claims
	if _, err := jwt.NewParser(opts...).ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Use != tokenUse {
		return Claims{}, fmt.Errorf("%w: unexpected use %q", ErrInvalidToken, claims.Use)
	}
	if claims.UserID == "" || claims.Role == "" {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, ErrMissingClaim)
	}
	return claims, nil
}
