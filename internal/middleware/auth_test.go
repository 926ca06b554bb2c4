package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/2beens/fittrack/pkg"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthMiddlewareHandler_AuthCheck(t *testing.T) {
	secretHash, err := pkg.HashSecret("ios-app-secret")
	require.NoError(t, err)
	authMiddleware := NewAuthMiddlewareHandler(secretHash)

	testCases := []struct {
		name               string
		path               string
		method             string
		secret             string
		expectedStatusCode int
		expectNextCalled   bool
	}{
		{
			name:               "AllowedPathWithoutSecret",
			path:               "/version",
			method:             "GET",
			expectedStatusCode: http.StatusOK,
			expectNextCalled:   true,
		},
		{
			name:               "Options",
			path:               "/steps",
			method:             "OPTIONS",
			expectedStatusCode: http.StatusOK,
		},
		{
			name:               "MissingSecret",
			path:               "/steps",
			method:             "GET",
			expectedStatusCode: http.StatusUnauthorized,
		},
		{
			name:               "InvalidSecret",
			path:               "/workout/draft",
			method:             "GET",
			secret:             "android-app-secret",
			expectedStatusCode: http.StatusUnauthorized,
		},
		{
			name:               "ValidSecret",
			path:               "/steps/sensor/samples",
			method:             "POST",
			secret:             "ios-app-secret",
			expectedStatusCode: http.StatusOK,
			expectNextCalled:   true,
		},
		{
			name:               "ValidSecretCached",
			path:               "/steps",
			method:             "GET",
			secret:             "ios-app-secret",
			expectedStatusCode: http.StatusOK,
			expectNextCalled:   true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			nextCalled := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				nextCalled = true
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.secret != "" {
				req.Header.Set(AppSecretHeader, tc.secret)
			}
			rr := httptest.NewRecorder()

			authMiddleware.AuthCheck()(next).ServeHTTP(rr, req)

			assert.Equal(t, tc.expectedStatusCode, rr.Code)
			assert.Equal(t, tc.expectNextCalled, nextCalled)
		})
	}
}

func TestAuthMiddlewareHandler_SecretCache(t *testing.T) {
	hashChecks := 0
	authMiddleware := NewAuthMiddlewareHandler("hash")
	authMiddleware.checkHash = func(secret, hash string) bool {
		hashChecks++
		return secret == "good"
	}

	assert.True(t, authMiddleware.secretValid("good"))
	assert.True(t, authMiddleware.secretValid("good"))
	assert.Equal(t, 1, hashChecks)

	assert.False(t, authMiddleware.secretValid("bad"))
	assert.Equal(t, 2, hashChecks)
}
