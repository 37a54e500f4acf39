package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"solation/core/types"
	"solation/observability/logging"
)

type contextKey string

const contextKeyCaller contextKey = "solation.caller"

var (
	errMissingBearer = errors.New("missing bearer token")
	errSecretMissing = errors.New("auth secret not configured")
)

// AuthConfig controls bearer token verification.
type AuthConfig struct {
	HMACSecret string
	Issuer     string
	ClockSkew  time.Duration
}

// Authenticator verifies HS256 bearer tokens whose subject is the caller's
// address.
type Authenticator struct {
	cfg    AuthConfig
	secret []byte
	logger *slog.Logger
}

func NewAuthenticator(cfg AuthConfig, logger *slog.Logger) (*Authenticator, error) {
	secret := []byte(strings.TrimSpace(cfg.HMACSecret))
	if len(secret) == 0 {
		return nil, errSecretMissing
	}
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{cfg: cfg, secret: secret, logger: logger}, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// authenticated address in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, err := a.Authenticate(r.Header.Get("Authorization"))
		if err != nil {
			a.logger.Warn("auth: token rejected",
				"path", r.URL.Path,
				"error", err,
				logging.MaskField("authorization", r.Header.Get("Authorization")))
			writeJSONError(w, http.StatusUnauthorized, "Unauthenticated", "invalid or missing bearer token")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
	})
}

// Authenticate parses an Authorization header value.
func (a *Authenticator) Authenticate(header string) (types.Address, error) {
	tokenString := extractBearer(header)
	if tokenString == "" {
		return types.Address{}, errMissingBearer
	}
	opts := []jwt.ParserOption{
		jwt.WithLeeway(a.cfg.ClockSkew),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.cfg.Issuer))
	}
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return types.Address{}, err
	}
	if !token.Valid {
		return types.Address{}, errors.New("token invalid")
	}
	caller, err := types.ParseAddress(claims.Subject)
	if err != nil {
		return types.Address{}, fmt.Errorf("subject: %w", err)
	}
	return caller, nil
}

// IssueToken signs a bearer token for subject valid for ttl.
func IssueToken(secret, issuer string, subject types.Address, ttl time.Duration, now time.Time) (string, error) {
	key := []byte(strings.TrimSpace(secret))
	if len(key) == 0 {
		return "", errSecretMissing
	}
	if ttl <= 0 {
		return "", fmt.Errorf("token ttl must be positive")
	}
	claims := jwt.RegisteredClaims{
		Subject:   subject.String(),
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

// WithCaller attaches the authenticated address to ctx.
func WithCaller(ctx context.Context, caller types.Address) context.Context {
	return context.WithValue(ctx, contextKeyCaller, caller)
}

// CallerFromContext returns the authenticated address.
func CallerFromContext(ctx context.Context) (types.Address, bool) {
	caller, ok := ctx.Value(contextKeyCaller).(types.Address)
	return caller, ok
}

func extractBearer(header string) string {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
