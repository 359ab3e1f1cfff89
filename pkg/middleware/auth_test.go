package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/fedgate/pkg/auth"
)

func newSigner(t *testing.T) *auth.TokenSigner {
	t.Helper()
	signer, err := auth.NewTokenSigner(auth.SignerConfig{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
	})
	require.NoError(t, err)
	return signer
}

func TestRequireAuth(t *testing.T) {
	signer := newSigner(t)
	pair, err := signer.SignPair(&auth.User{
		ID:       "user-1",
		TenantID: "tenant-1",
		Email:    "user@example.com",
		Role:     auth.RoleUser,
	}, time.Now())
	require.NoError(t, err)

	var gotClaims *auth.Claims
	handler := RequireAuth(signer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		require.True(t, ok)
		gotClaims = claims
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{name: "valid bearer token", authHeader: "Bearer " + pair.AccessToken, wantStatus: http.StatusOK},
		{name: "missing header", authHeader: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", authHeader: "Basic dXNlcjpwYXNz", wantStatus: http.StatusUnauthorized},
		{name: "refresh token on access path", authHeader: "Bearer " + pair.RefreshToken, wantStatus: http.StatusUnauthorized},
		{name: "garbage token", authHeader: "Bearer not.a.token", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}

	require.NotNil(t, gotClaims)
	assert.Equal(t, "user-1", gotClaims.Subject)
	assert.Equal(t, "tenant-1", gotClaims.TenantID)
}
