package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/argus/pkg/config"
)

const (
	testIssuer   = "https://issuer.test"
	testAudience = "argus-api"
)

type jwksFixture struct {
	privateKey *rsa.PrivateKey
	jwksURL    string
}

func newJWKSFixture(t *testing.T) *jwksFixture {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	pub, err := jwk.FromRaw(&key.PublicKey)
	require.NoError(t, err)
	require.NoError(t, pub.Set(jwk.KeyIDKey, "test-key"))
	require.NoError(t, pub.Set(jwk.AlgorithmKey, jwa.RS256))

	set := jwk.NewSet()
	require.NoError(t, set.AddKey(pub))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(set)
	}))
	t.Cleanup(srv.Close)

	return &jwksFixture{
		privateKey: key,
		jwksURL:    srv.URL + "/.well-known/jwks.json",
	}
}

// signToken produces a valid token for the fixture's keys; mutate tweaks
// the claims before signing.
func (f *jwksFixture) signToken(t *testing.T, mutate func(jwt.Token)) string {
	t.Helper()

	token := jwt.New()
	require.NoError(t, token.Set(jwt.IssuerKey, testIssuer))
	require.NoError(t, token.Set(jwt.AudienceKey, testAudience))
	require.NoError(t, token.Set(jwt.SubjectKey, "user-1"))
	require.NoError(t, token.Set(jwt.IssuedAtKey, time.Now()))
	require.NoError(t, token.Set(jwt.ExpirationKey, time.Now().Add(time.Hour)))
	if mutate != nil {
		mutate(token)
	}

	key, err := jwk.FromRaw(f.privateKey)
	require.NoError(t, err)
	require.NoError(t, key.Set(jwk.KeyIDKey, "test-key"))

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.RS256, key))
	require.NoError(t, err)
	return string(signed)
}

func (f *jwksFixture) validator(t *testing.T) *Validator {
	t.Helper()

	v, err := NewValidator(&config.AuthConfig{
		Enabled:  true,
		JWKSURL:  f.jwksURL,
		Issuer:   testIssuer,
		Audience: testAudience,
	})
	require.NoError(t, err)
	require.NotNil(t, v)
	return v
}

func TestNewValidator_DisabledYieldsNil(t *testing.T) {
	v, err := NewValidator(nil)
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = NewValidator(&config.AuthConfig{Enabled: false, JWKSURL: "https://x/jwks.json"})
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestNewValidator_ConfigValidation(t *testing.T) {
	_, err := NewValidator(&config.AuthConfig{Enabled: true})
	assert.ErrorContains(t, err, "invalid auth config")
}

func TestNewValidator_UnreachableJWKSFailsAtStartup(t *testing.T) {
	_, err := NewValidator(&config.AuthConfig{
		Enabled: true,
		JWKSURL: "http://127.0.0.1:1/jwks.json",
		Issuer:  testIssuer,
	})
	assert.ErrorContains(t, err, "fetch jwks")
}

func TestValidateToken_Valid(t *testing.T) {
	f := newJWKSFixture(t)
	v := f.validator(t)

	raw := f.signToken(t, func(token jwt.Token) {
		require.NoError(t, token.Set("email", "user@example.com"))
		require.NoError(t, token.Set("role", "operator"))
		require.NoError(t, token.Set("team", "automation"))
	})

	claims, err := v.ValidateToken(context.Background(), raw)
	require.NoError(t, err)

	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.Equal(t, "operator", claims.Role)
	assert.Equal(t, "automation", claims.GetString("team"))
	assert.True(t, claims.HasRole("operator"))
	assert.False(t, claims.HasRole("admin"))

	// Mapped claims stay out of Custom.
	_, hasEmail := claims.Custom["email"]
	assert.False(t, hasEmail)
}

func TestValidateToken_Rejections(t *testing.T) {
	f := newJWKSFixture(t)
	v := f.validator(t)

	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	other := &jwksFixture{privateKey: otherKey}

	tests := []struct {
		name string
		raw  string
	}{
		{"expired", f.signToken(t, func(token jwt.Token) {
			require.NoError(t, token.Set(jwt.ExpirationKey, time.Now().Add(-time.Hour)))
		})},
		{"wrong issuer", f.signToken(t, func(token jwt.Token) {
			require.NoError(t, token.Set(jwt.IssuerKey, "https://evil.test"))
		})},
		{"wrong audience", f.signToken(t, func(token jwt.Token) {
			require.NoError(t, token.Set(jwt.AudienceKey, "someone-else"))
		})},
		{"wrong signing key", other.signToken(t, nil)},
		{"garbage", "not-a-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.ValidateToken(context.Background(), tt.raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestMiddleware(t *testing.T) {
	f := newJWKSFixture(t)
	v := f.validator(t)

	var gotClaims *Claims
	handler := v.Middleware("/healthz")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClaims = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
		assert.Contains(t, rec.Body.String(), "missing bearer token")
	})

	t.Run("not bearer", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/runs", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/runs", nil)
		req.Header.Set("Authorization", "Bearer junk")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid token")
	})

	t.Run("valid token attaches claims", func(t *testing.T) {
		raw := f.signToken(t, func(token jwt.Token) {
			require.NoError(t, token.Set("role", "operator"))
		})
		req := httptest.NewRequest(http.MethodGet, "/v1/runs", nil)
		req.Header.Set("Authorization", "Bearer "+raw)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, gotClaims)
		assert.Equal(t, "user-1", gotClaims.Subject)
		assert.Equal(t, "operator", gotClaims.Role)
	})

	t.Run("excluded path skips auth", func(t *testing.T) {
		gotClaims = nil
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, gotClaims)
	})
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole("admin", "operator")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("no claims", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong role", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/runs", nil)
		req = req.WithContext(ContextWithClaims(req.Context(), &Claims{Subject: "u", Role: "viewer"}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("allowed role", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/runs", nil)
		req = req.WithContext(ContextWithClaims(req.Context(), &Claims{Subject: "u", Role: "operator"}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestClaimsContextRoundtrip(t *testing.T) {
	assert.Nil(t, ClaimsFromContext(context.Background()))

	claims := &Claims{Subject: "u1", Custom: map[string]interface{}{"plan": "pro"}}
	ctx := ContextWithClaims(context.Background(), claims)
	assert.Same(t, claims, ClaimsFromContext(ctx))
	assert.Equal(t, "pro", claims.GetString("plan"))
	assert.Empty(t, claims.GetString("absent"))
}
