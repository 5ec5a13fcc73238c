package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/automart/settlement/internal/api"
)

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

// Actor identifies the authenticated caller of a request.
type Actor struct {
	UserID uuid.UUID
	Role   Role
}

type claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

type ctxKeyActor struct{}

// JWTMiddleware authenticates the bearer token and puts the actor into the
// request context. Subject is the user id, the role claim carries the role.
func JWTMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				api.WriteError(w, http.StatusUnauthorized, api.CodePermissionDenied, "missing bearer token")
				return
			}
			tokenStr := strings.TrimPrefix(auth, "Bearer ")

			cl := &claims{}
			token, err := jwt.ParseWithClaims(tokenStr, cl, func(t *jwt.Token) (interface{}, error) {
				return secret, nil
			})
			if err != nil || !token.Valid {
				api.WriteError(w, http.StatusUnauthorized, api.CodePermissionDenied, "invalid token")
				return
			}
			userID, err := uuid.Parse(cl.Subject)
			if err != nil {
				api.WriteError(w, http.StatusUnauthorized, api.CodePermissionDenied, "invalid subject")
				return
			}
			actor := Actor{UserID: userID, Role: Role(cl.Role)}
			next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), actor)))
		})
	}
}

func ActorFromContext(ctx context.Context) Actor {
	return ctx.Value(ctxKeyActor{}).(Actor)
}

func ContextWithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKeyActor{}, a)
}

// RateLimit protects the unauthenticated gateway callback endpoints with a
// fixed-window counter per remote address.
func RateLimit(rdb *redis.Client, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rdb == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			key := "rate_limit:" + r.RemoteAddr

			current, err := rdb.Incr(ctx, key).Result()
			if err != nil {
				// Redis being down must not take the callback path down with it.
				next.ServeHTTP(w, r)
				return
			}
			if current == 1 {
				rdb.Expire(ctx, key, window)
			}
			if current > int64(limit) {
				api.WriteError(w, http.StatusTooManyRequests, api.CodeValidation, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
