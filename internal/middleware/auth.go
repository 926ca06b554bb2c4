package middleware

import (
	"crypto/subtle"
	"net/http"
	"sync"

	"github.com/2beens/fittrack/internal/telemetry/tracing"
	"github.com/2beens/fittrack/pkg"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
)

const AppSecretHeader = "X-FITTRACK-SECRET"

type AuthMiddlewareHandler struct {
	appSecretHash string
	allowedPaths  map[string]bool
	checkHash     func(secret, hash string) bool

	// bcrypt is slow on purpose, so the last verified secret is remembered
	verifiedMu     sync.RWMutex
	verifiedSecret []byte
}

func NewAuthMiddlewareHandler(appSecretHash string) *AuthMiddlewareHandler {
	return &AuthMiddlewareHandler{
		appSecretHash: appSecretHash,
		checkHash:     pkg.CheckSecretHash,
		allowedPaths: map[string]bool{
			"/":        true,
			"/version": true,
			"/health":  true,
		},
	}
}

func (h *AuthMiddlewareHandler) AuthCheck() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, span := tracing.GlobalTracer.Start(r.Context(), "middleware.auth")
			defer span.End()

			if r.Method == http.MethodOptions {
				w.Header().Add("Allow", "GET, POST, PUT, DELETE, OPTIONS")
				w.WriteHeader(http.StatusOK)
				span.SetStatus(codes.Ok, "options-ok")
				return
			}

			if h.allowedPaths[r.URL.Path] {
				span.SetStatus(codes.Ok, "ok")
				next.ServeHTTP(w, r)
				return
			}

			secret := r.Header.Get(AppSecretHeader)
			if secret == "" {
				log.Tracef("[missing secret] [auth middleware] unauthorized => %s", r.URL.Path)
				http.Error(w, "no can do", http.StatusUnauthorized)
				span.SetStatus(codes.Error, "missing-secret")
				return
			}

			if !h.secretValid(secret) {
				log.Warnf("[invalid secret] [auth middleware] unauthorized => %s", r.URL.Path)
				http.Error(w, "no can do", http.StatusUnauthorized)
				span.SetStatus(codes.Error, "invalid-secret")
				return
			}

			span.SetStatus(codes.Ok, "ok")
			next.ServeHTTP(w, r)
		})
	}
}

func (h *AuthMiddlewareHandler) secretValid(secret string) bool {
	h.verifiedMu.RLock()
	verified := h.verifiedSecret
	h.verifiedMu.RUnlock()
	if verified != nil && subtle.ConstantTimeCompare(verified, []byte(secret)) == 1 {
		return true
	}

	if !h.checkHash(secret, h.appSecretHash) {
		return false
	}

	h.verifiedMu.Lock()
	h.verifiedSecret = []byte(secret)
	h.verifiedMu.Unlock()
	return true
}
