// Package auth validates bearer tokens issued by the external identity
// service. This service never mints tokens or stores credentials; it
// only checks signatures and extracts the caller's identity.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/frahmantamala/rentpay/internal"
)

type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Email  string `json:"email"`
	Locale string `json:"preferred_language"`
	jwt.RegisteredClaims
}

type User struct {
	ID     string
	Role   string
	Email  string
	Locale string
}

type ctxKey string

const userContextKey ctxKey = "auth.user"

func UserFromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(userContextKey).(*User)
	return u, ok
}

func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}

// TokenValidator verifies HS256 tokens against the shared secret of
// the identity service.
type TokenValidator struct {
	secret []byte
	logger *slog.Logger
}

func NewTokenValidator(secret string, logger *slog.Logger) *TokenValidator {
	return &TokenValidator{
		secret: []byte(secret),
		logger: logger,
	}
}

func (v *TokenValidator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.ErrTokenExpired
		}
		return nil, apperrors.ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, apperrors.ErrInvalidToken
}

// Middleware rejects requests without a valid bearer token and places
// the caller on the request context.
func (v *TokenValidator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			v.logger.Warn("request without bearer token", "path", r.URL.Path)
			writeUnauthorized(w, apperrors.ErrInvalidToken)
			return
		}

		claims, err := v.ValidateToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			v.logger.Warn("token validation failed", "path", r.URL.Path, "error", err)
			appErr, _ := apperrors.IsAppError(err)
			if appErr == nil {
				appErr = apperrors.ErrInvalidToken
			}
			writeUnauthorized(w, appErr)
			return
		}

		user := &User{
			ID:     claims.UserID,
			Role:   claims.Role,
			Email:  claims.Email,
			Locale: claims.Locale,
		}
		ctx := ContextWithUser(r.Context(), user)
		ctx = apperrors.ContextWithUserID(ctx, user.ID)
		if user.Locale != "" {
			ctx = apperrors.ContextWithLocale(ctx, user.Locale)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeUnauthorized(w http.ResponseWriter, appErr *apperrors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	status, _ := appErr.ToHTTPResponse()
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":{"type":%q,"code":%q,"message":%q}}`, appErr.Type, appErr.Code, appErr.Message)
}
