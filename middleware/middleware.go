package middleware

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/julienschmidt/httprouter"
)

// ErrForbidden is returned when a caller acts on behalf of another user.
var ErrForbidden = errors.New("acting user does not match the authenticated user")

// JWT claims
type Claims struct {
	Username string   `json:"username"`
	UserID   string   `json:"userId"`
	Role     []string `json:"role"`
	jwt.RegisteredClaims
}

type ContextKey string

const (
	UserIDKey       ContextKey = "userId"
	authEnforcedKey ContextKey = "authEnforced"
)

// Auth verifies bearer tokens signed with Secret. With an empty Secret every
// request passes through unauthenticated.
type Auth struct {
	Secret []byte
}

func (a Auth) Enabled() bool { return len(a.Secret) > 0 }

// Authenticate rejects requests without a valid bearer token.
func (a Auth) Authenticate(next httprouter.Handle) httprouter.Handle {
	if !a.Enabled() {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		tokenString := r.Header.Get("Authorization")
		if tokenString == "" {
			http.Error(w, "Missing token", http.StatusUnauthorized)
			return
		}
		claims, err := a.ValidateJWT(tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		next(w, r.WithContext(a.withUser(r.Context(), claims.UserID)), ps)
	}
}

// RoleAdmin may run maintenance operations such as reconciliation.
const RoleAdmin = "admin"

// RequireRole is Authenticate plus a check that the token carries role.
func (a Auth) RequireRole(role string, next httprouter.Handle) httprouter.Handle {
	if !a.Enabled() {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		tokenString := r.Header.Get("Authorization")
		if tokenString == "" {
			http.Error(w, "Missing token", http.StatusUnauthorized)
			return
		}
		claims, err := a.ValidateJWT(tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		if !slices.Contains(claims.Role, role) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next(w, r.WithContext(a.withUser(r.Context(), claims.UserID)), ps)
	}
}

// OptionalAuth records the token's user when one is presented but lets
// anonymous requests through. Mutations reached this way are still checked by
// CheckActor.
func (a Auth) OptionalAuth(next http.Handler) http.Handler {
	if !a.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := ""
		if claims, err := a.ValidateJWT(r.Header.Get("Authorization")); err == nil {
			userID = claims.UserID
		}
		next.ServeHTTP(w, r.WithContext(a.withUser(r.Context(), userID)))
	})
}

func (a Auth) withUser(ctx context.Context, userID string) context.Context {
	ctx = context.WithValue(ctx, authEnforcedKey, true)
	return context.WithValue(ctx, UserIDKey, userID)
}

func (a Auth) ValidateJWT(tokenString string) (*Claims, error) {
	raw, ok := strings.CutPrefix(tokenString, "Bearer ")
	if !ok || raw == "" {
		return nil, errors.New("invalid token format")
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		return a.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.UserID == "" {
		return nil, errors.New("token has no userId")
	}
	return claims, nil
}

// Issue signs a token for userID. Useful for tooling and tests; production
// tokens come from the identity provider sharing the secret.
func (a Auth) Issue(userID string, ttl time.Duration, roles ...string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Role:   roles,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.Secret)
}

// UserIDFrom returns the authenticated user in ctx, if any.
func UserIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(UserIDKey).(string)
	return id
}

// CheckActor fails with ErrForbidden when authentication is enforced and the
// user a mutation acts as is not the authenticated one.
func CheckActor(ctx context.Context, actorID string) error {
	if enforced, _ := ctx.Value(authEnforcedKey).(bool); !enforced {
		return nil
	}
	if UserIDFrom(ctx) == "" || UserIDFrom(ctx) != actorID {
		return ErrForbidden
	}
	return nil
}
