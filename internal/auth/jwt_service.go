package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const (
	// VerificationTokenExpiry is how long an email verification link stays valid.
	VerificationTokenExpiry = 24 * time.Hour
	// StateTokenExpiry bounds the OAuth round trip.
	StateTokenExpiry = 10 * time.Minute

	purposeVerifyEmail = "verify-email"
	purposeOAuthState  = "oauth-state"
)

var (
	// ErrInvalidToken is returned for malformed, expired or mis-signed tokens.
	ErrInvalidToken = errors.New("invalid token")
)

// Claims represents JWT claims.
type Claims struct {
	Email       string `json:"email,omitempty"`
	CallbackURL string `json:"callbackURL,omitempty"`
	Purpose     string `json:"purpose"`
	jwt.RegisteredClaims
}

// JWTService signs the stateless tokens used in email links and OAuth state.
type JWTService struct {
	secret []byte
	now    func() time.Time
}

// NewJWTService creates a new JWT service with the given secret.
func NewJWTService(secret string) *JWTService {
	return &JWTService{
		secret: []byte(secret),
		now:    time.Now,
	}
}

// GenerateVerificationToken signs an email verification token for email.
func (s *JWTService) GenerateVerificationToken(email string) (string, error) {
	return s.sign(&Claims{Email: email, Purpose: purposeVerifyEmail}, VerificationTokenExpiry)
}

// ValidateVerificationToken returns the email carried by a verification token.
func (s *JWTService) ValidateVerificationToken(token string) (string, error) {
	claims, err := s.validate(token, purposeVerifyEmail)
	if err != nil {
		return "", err
	}
	if claims.Email == "" {
		return "", ErrInvalidToken
	}
	return claims.Email, nil
}

// GenerateStateToken signs the OAuth state parameter carrying where to
// redirect after the provider callback.
func (s *JWTService) GenerateStateToken(callbackURL string) (string, error) {
	return s.sign(&Claims{CallbackURL: callbackURL, Purpose: purposeOAuthState}, StateTokenExpiry)
}

// ValidateStateToken returns the callback URL carried by a state token.
func (s *JWTService) ValidateStateToken(token string) (string, error) {
	claims, err := s.validate(token, purposeOAuthState)
	if err != nil {
		return "", err
	}
	return claims.CallbackURL, nil
}

func (s *JWTService) sign(claims *Claims, ttl time.Duration) (string, error) {
	now := s.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *JWTService) validate(tokenString, purpose string) (*Claims, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, err := parser.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	// Time checks use the service clock so tests can move it.
	now := s.now()
	if !claims.VerifyExpiresAt(now, true) || !claims.VerifyNotBefore(now, false) {
		return nil, ErrInvalidToken
	}
	if claims.Purpose != purpose {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
