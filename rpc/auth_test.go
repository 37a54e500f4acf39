package rpc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIssueAndAuthenticate(t *testing.T) {
	auth, err := NewAuthenticator(AuthConfig{HMACSecret: "s3cret", Issuer: "solation"}, nil)
	require.NoError(t, err)
	subject := testAddr(0x42)

	tok, err := IssueToken("s3cret", "solation", subject, time.Hour, time.Now())
	require.NoError(t, err)
	got, err := auth.Authenticate("Bearer " + tok)
	require.NoError(t, err)
	require.Equal(t, subject, got)

	got, err = auth.Authenticate("bearer   " + tok)
	require.NoError(t, err)
	require.Equal(t, subject, got)

	_, err = auth.Authenticate("")
	require.ErrorIs(t, err, errMissingBearer)

	tok, err = IssueToken("s3cret", "other", subject, time.Hour, time.Now())
	require.NoError(t, err)
	_, err = auth.Authenticate("Bearer " + tok)
	require.Error(t, err)

	tok, err = IssueToken("different", "solation", subject, time.Hour, time.Now())
	require.NoError(t, err)
	_, err = auth.Authenticate("Bearer " + tok)
	require.Error(t, err)
}

func TestAuthenticatorWithinClockSkew(t *testing.T) {
	auth, err := NewAuthenticator(AuthConfig{HMACSecret: "s3cret", ClockSkew: time.Minute}, nil)
	require.NoError(t, err)
	tok, err := IssueToken("s3cret", "", testAddr(1), time.Minute, time.Now().Add(-90*time.Second))
	require.NoError(t, err)
	_, err = auth.Authenticate("Bearer " + tok)
	require.NoError(t, err)

	tok, err = IssueToken("s3cret", "", testAddr(1), time.Minute, time.Now().Add(-3*time.Minute))
	require.NoError(t, err)
	_, err = auth.Authenticate("Bearer " + tok)
	require.Error(t, err)
}

func TestAuthConfigValidation(t *testing.T) {
	_, err := NewAuthenticator(AuthConfig{HMACSecret: "  "}, nil)
	require.ErrorIs(t, err, errSecretMissing)

	_, err = IssueToken("", "", testAddr(1), time.Hour, time.Now())
	require.ErrorIs(t, err, errSecretMissing)
	_, err = IssueToken("s3cret", "", testAddr(1), 0, time.Now())
	require.Error(t, err)
}

func TestMiddlewareStoresCaller(t *testing.T) {
	auth, err := NewAuthenticator(AuthConfig{HMACSecret: "s3cret"}, nil)
	require.NoError(t, err)
	var seen bool
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := CallerFromContext(r.Context())
		seen = ok && caller == testAddr(7)
		w.WriteHeader(http.StatusNoContent)
	}))

	tok, err := IssueToken("s3cret", "", testAddr(7), time.Hour, time.Now())
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/v1/intents", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.True(t, seen)

	_, ok := CallerFromContext(context.Background())
	require.False(t, ok)
}
