// Package authn guards routes behind a Bearer access token: signature
// and expiry via the token codec, then the logout denylist.
package authn

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	resp "auth_backend/internal/lib/api/response"
	sl "auth_backend/internal/lib/logger"
	"auth_backend/internal/token"

	"github.com/go-chi/render"
)

type contextKey int

const (
	userIDKey contextKey = iota
	rawTokenKey
)

type Denylist interface {
	IsDenied(ctx context.Context, jti string) (bool, error)
}

func New(log *slog.Logger, codec *token.Codec, denylist Denylist) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middleware.authn"

			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || raw == "" {
				unauthorized(w, r)
				return
			}

			tok, err := codec.Decode(raw, true)
			if err != nil || tok.Kind != token.KindAccess {
				unauthorized(w, r)
				return
			}

			if tok.ID != "" {
				denied, err := denylist.IsDenied(r.Context(), tok.ID)
				if err != nil {
					log.Error("denylist check failed", slog.String("op", op), sl.Err(err))

					render.Status(r, http.StatusInternalServerError)
					render.JSON(w, r, resp.Error("Internal error"))

					return
				}
				if denied {
					unauthorized(w, r)
					return
				}
			}

			ctx := context.WithValue(r.Context(), userIDKey, tok.Subject)
			ctx = context.WithValue(ctx, rawTokenKey, raw)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, resp.Error("Unauthorized"))
}

// UserID returns the authenticated subject set by the middleware.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok
}

// RawToken returns the Bearer token exactly as presented; logout uses it
// to denylist the access token it was called with.
func RawToken(ctx context.Context) (string, bool) {
	raw, ok := ctx.Value(rawTokenKey).(string)
	return raw, ok
}
