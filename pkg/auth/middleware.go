// Package auth authenticates the human operators who drive the public
// approve/reject/admin-cancel operations over HTTP (spec.md §6). It does
// not authenticate agents: agent authority is entirely the Envelope
// Runtime's concern (pkg/envelope), scoped per invocation, never a
// standing credential.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ApproverClaims are the JWT claims a human operator's bearer token
// carries. Role gates the admin-cancel transition (conductor.Cancel) from
// ordinary approve/reject calls.
type ApproverClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

const RoleAdmin = "admin"

// Principal is the authenticated human operator attached to a request
// context after successful validation.
type Principal interface {
	GetID() string
	GetRole() string
}

// BasePrincipal is the default Principal implementation.
type BasePrincipal struct {
	ID   string
	Role string
}

func (p *BasePrincipal) GetID() string   { return p.ID }
func (p *BasePrincipal) GetRole() string { return p.Role }

type principalKey struct{}

// WithPrincipal attaches a Principal to ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// GetPrincipal extracts the Principal a middleware attached to ctx.
func GetPrincipal(ctx context.Context) (Principal, error) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	if !ok || p == nil {
		return nil, fmt.Errorf("auth: no principal in context")
	}
	return p, nil
}

// JWTValidator issues and validates HS256 bearer tokens for human
// approvers. A symmetric secret is sufficient here: unlike the envelope
// runtime's content integrity guarantees, operator auth is a thin outer
// surface, not part of the hash-chained core.
type JWTValidator struct {
	secret []byte
}

// NewJWTValidator builds a validator over a shared secret. A nil or empty
// secret means no validator is configured; NewMiddleware fails closed in
// that case.
func NewJWTValidator(secret []byte) *JWTValidator {
	if len(secret) == 0 {
		return nil
	}
	return &JWTValidator{secret: secret}
}

// Issue mints a bearer token for subject with the given role and TTL.
func (v *JWTValidator) Issue(subject, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := ApproverClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    "orchestrator-core",
		},
		Role: role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// Validate parses and validates a bearer token string.
func (v *JWTValidator) Validate(tokenStr string) (*ApproverClaims, error) {
	claims := &ApproverClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// publicPaths never require authentication.
var publicPaths = map[string]bool{
	"/health": true,
}

func isPublicPath(path string) bool { return publicPaths[path] }

// NewMiddleware builds JWT auth middleware. A nil validator fails closed:
// every non-public request is rejected, never silently let through.
func NewMiddleware(validator *JWTValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "missing Authorization header", http.StatusUnauthorized)
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			if validator == nil {
				http.Error(w, "authentication not configured", http.StatusUnauthorized)
				return
			}

			claims, err := validator.Validate(parts[1])
			if err != nil {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}
			if claims.Subject == "" {
				http.Error(w, "token subject is required", http.StatusUnauthorized)
				return
			}

			principal := &BasePrincipal{ID: claims.Subject, Role: claims.Role}
			ctx := WithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin wraps a handler so only a Principal with RoleAdmin may
// invoke it, used to gate conductor.Cancel over HTTP.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := GetPrincipal(r.Context())
		if err != nil || p.GetRole() != RoleAdmin {
			http.Error(w, "admin role required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
