package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/identity"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/logging"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/pkg/interfaces"
)

var (
	ErrSecretRequired = errors.New("auth: signing secret is required")
	ErrInvalidToken   = errors.New("auth: invalid token")
	ErrTokenExpired   = errors.New("auth: token expired")
)

// Claims are the admin token claims.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Verifier issues and verifies HS256 admin tokens.
type Verifier struct {
	secret []byte
	issuer string
	now    func() time.Time
	logger interfaces.Logger
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithClock overrides the clock used for expiry checks and issuance.
func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

// WithLogger sets the logger used by the middleware.
func WithLogger(logger interfaces.Logger) VerifierOption {
	return func(v *Verifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// NewVerifier constructs a verifier. An empty issuer skips the iss check.
func NewVerifier(secret, issuer string, opts ...VerifierOption) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrSecretRequired
	}
	v := &Verifier{secret: []byte(secret), issuer: issuer, now: time.Now, logger: logging.NoOp()}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v, nil
}

// Issue signs a token for subject valid for ttl.
func (v *Verifier) Issue(subject, role string, ttl time.Duration) (string, error) {
	now := v.now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Verify parses token and maps its subject to an editor actor.
func (v *Verifier) Verify(token string) (interfaces.Actor, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return interfaces.Actor{}, ErrTokenExpired
		}
		return interfaces.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return interfaces.Actor{}, ErrInvalidToken
	}
	return interfaces.Actor{
		ID:      identity.EditorUUID(claims.Subject),
		Subject: claims.Subject,
		Role:    claims.Role,
	}, nil
}

// Middleware attaches the actor for requests carrying a valid bearer token.
// Requests without a token pass through anonymously; a bad token is rejected.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			http.Error(w, `{"error":"unauthorized","message":"invalid authorization header"}`, http.StatusUnauthorized)
			return
		}
		actor, err := v.Verify(strings.TrimSpace(token))
		if err != nil {
			v.logger.Debug("auth.token.rejected", "error", err)
			http.Error(w, `{"error":"unauthorized","message":"invalid or expired token"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}
