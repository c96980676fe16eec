package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/form3tech-oss/jwt-go"
	"github.com/google/uuid"
)

// ErrScorerToken is returned when a scorer token does not grant access to a match.
var ErrScorerToken = errors.New("invalid scorer token")

// ScorerTokenService issues the short-lived tokens a device presents to score a match.
type ScorerTokenService struct {
	secret string
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewScorerTokenService creates a token service. A nil clock uses time.Now.
func NewScorerTokenService(secret, issuer string, ttl time.Duration, now func() time.Time) *ScorerTokenService {
	if now == nil {
		now = time.Now
	}
	return &ScorerTokenService{
		secret: secret,
		issuer: issuer,
		ttl:    ttl,
		now:    now,
	}
}

// Enabled reports whether a signing secret is configured.
func (s *ScorerTokenService) Enabled() bool {
	return s != nil && s.secret != ""
}

// Issue signs a token that lets userID score matchID until the ttl runs out.
func (s *ScorerTokenService) Issue(userID, matchID string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("scorer token service is nil")
	}
	if userID == "" || matchID == "" {
		return "", fmt.Errorf("user and match are required")
	}
	if s.secret == "" || s.issuer == "" || s.ttl <= 0 {
		return "", fmt.Errorf("scorer token config is incomplete")
	}

	now := s.now()
	claims := jwt.MapClaims{
		"iss": s.issuer,
		"sub": userID,
		"mid": matchID,
		"iat": now.Unix(),
		"exp": now.Add(s.ttl).Unix(),
		"jti": uuid.NewString(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.secret))
}

// Verify checks that tokenString was issued by this service to userID for matchID.
func (s *ScorerTokenService) Verify(tokenString, userID, matchID string) error {
	if !s.Enabled() {
		return fmt.Errorf("%w: scorer tokens are disabled", ErrScorerToken)
	}

	parser := &jwt.Parser{
		ValidMethods:         []string{jwt.SigningMethodHS256.Alg()},
		SkipClaimsValidation: true,
	}
	token, err := parser.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.secret), nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrScorerToken, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return fmt.Errorf("%w: unexpected claims", ErrScorerToken)
	}

	if !claims.VerifyExpiresAt(s.now().Unix(), true) {
		return fmt.Errorf("%w: expired", ErrScorerToken)
	}
	if !claims.VerifyIssuer(s.issuer, true) {
		return fmt.Errorf("%w: issuer", ErrScorerToken)
	}
	if sub, _ := claims["sub"].(string); sub != userID {
		return fmt.Errorf("%w: issued to another user", ErrScorerToken)
	}
	if mid, _ := claims["mid"].(string); mid != matchID {
		return fmt.Errorf("%w: issued for another match", ErrScorerToken)
	}
	return nil
}
