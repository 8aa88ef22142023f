package auth

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mahaj/streamfeed/pkg/errs"
)

var (
	keyMu  sync.RWMutex
	jwtKey = []byte("my_secret_key")
)

// SetSecret installs the signing secret. Call once at startup before
// serving; defaults to a development key.
func SetSecret(secret string) {
	keyMu.Lock()
	defer keyMu.Unlock()
	jwtKey = []byte(secret)
}

func key() []byte {
	keyMu.RLock()
	defer keyMu.RUnlock()
	return jwtKey
}

type Claims struct {
	UserID    string `json:"user_id"`
	Handle    string `json:"handle"`
	Moderator bool   `json:"moderator,omitempty"`
	jwt.RegisteredClaims
}

type contextKey string

const UserKey contextKey = "user"

// GenerateToken mints a token for a user. Handle rides along so delete
// authorization can match mention targets without a directory lookup.
func GenerateToken(userID, handle string, moderator bool) (string, error) {
	expirationTime := time.Now().Add(24 * time.Hour)
	claims := &Claims{
		UserID:    userID,
		Handle:    handle,
		Moderator: moderator,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(key())
}

// ValidateToken parses and validates a JWT token.
func ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return key(), nil
	})
	if err != nil {
		return nil, errs.Unauthorized("invalid token: %v", err)
	}
	if !token.Valid {
		return nil, errs.Unauthorized("invalid token")
	}

	return claims, nil
}

// TokenFromRequest pulls the bearer token from the Authorization header
// or, for websocket clients that cannot set headers, the token query
// parameter.
func TokenFromRequest(r *http.Request) string {
	tokenString := r.Header.Get("Authorization")
	if tokenString == "" {
		tokenString = r.URL.Query().Get("token")
	}
	if len(tokenString) > 7 && strings.EqualFold(tokenString[:7], "Bearer ") {
		tokenString = tokenString[7:]
	}
	return tokenString
}

// Middleware authenticates the request and stores the claims in the
// request context under UserKey.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := TokenFromRequest(r)
		if tokenString == "" {
			http.Error(w, "Authorization required", http.StatusUnauthorized)
			return
		}

		claims, err := ValidateToken(tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), UserKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClaimsFrom returns the claims the middleware stored, or nil.
func ClaimsFrom(ctx context.Context) *Claims {
	claims, _ := ctx.Value(UserKey).(*Claims)
	return claims
}
