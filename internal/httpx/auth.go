package httpx

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ariefcatur/def-order-backend/internal/auth"
)

type Authorizer interface {
	Authorize(ctx context.Context, authorizationHeader string) (auth.Actor, error)
}

// RequireActor rejects requests whose bearer token does not resolve to an
// approved administrative profile and stores the actor on the context.
func RequireActor(a Authorizer, log *zap.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			actor, err := a.Authorize(ctx, r.Header.Get("Authorization"))
			cancel()
			if err != nil {
				code, msg := classify(err)
				if code == http.StatusInternalServerError {
					log.Error("authorization lookup failed", zap.Error(err))
				}
				writeError(w, code, msg)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithActor(r.Context(), actor)))
		})
	}
}
