package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newHandler(t *testing.T, called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		assert.Equal(t, true, r.Context().Value(AdminKey))
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestMiddleware_ValidToken(t *testing.T) {
	var called bool
	handler := NewAdminAuthenticator("s3cret").Middleware(newHandler(t, &called))

	req := httptest.NewRequest("POST", "/licenses", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMiddleware_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		header   string
		expected string
	}{
		{"missing header", "s3cret", "", "Authorization missing"},
		{"wrong scheme", "s3cret", "Token token=\"s3cret\"", "Malformed authorization header"},
		{"no credentials", "s3cret", "Bearer", "Malformed authorization header"},
		{"wrong token", "s3cret", "Bearer guess", "Invalid token"},
		{"prefix of token", "s3cret", "Bearer s3c", "Invalid token"},
		{"unconfigured token", "", "Bearer anything", "Invalid token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var called bool
			handler := NewAdminAuthenticator(tt.token).Middleware(newHandler(t, &called))

			req := httptest.NewRequest("POST", "/licenses", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.False(t, called)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, tt.expected, rec.Body.String())
		})
	}
}

func TestMiddleware_SchemeIsCaseInsensitive(t *testing.T) {
	var called bool
	handler := NewAdminAuthenticator("s3cret").Middleware(newHandler(t, &called))

	req := httptest.NewRequest("GET", "/audit", nil)
	req.Header.Set("Authorization", "bearer s3cret")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.True(t, called)
}
