package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthDisabledWhenKeyEmpty(t *testing.T) {
	h := Auth("")(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/broadcast", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthAcceptsValidCredentials(t *testing.T) {
	h := Auth("s3cret")(okHandler())

	bearer := httptest.NewRequest(http.MethodPost, "/api/broadcast", nil)
	bearer.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, bearer)
	assert.Equal(t, http.StatusOK, rec.Code)

	apiKey := httptest.NewRequest(http.MethodPost, "/api/broadcast", nil)
	apiKey.Header.Set("X-API-Key", "s3cret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, apiKey)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRejectsBadCredentials(t *testing.T) {
	h := Auth("s3cret")(okHandler())

	missing := httptest.NewRequest(http.MethodPost, "/api/broadcast", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, missing)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	wrong := httptest.NewRequest(http.MethodPost, "/api/broadcast", nil)
	wrong.Header.Set("X-API-Key", "guess")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, wrong)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
