package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/dennisdiepolder/monti/acw/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// Roles in priority order
const (
	RoleAdmin      = "admin"
	RoleSupervisor = "supervisor"
	RoleAgent      = "agent"
	RoleViewer     = "viewer"
)

var rolePriority = []string{RoleAdmin, RoleSupervisor, RoleAgent, RoleViewer}

type Claims struct {
	Email  string   `json:"email"`
	Name   string   `json:"name"`
	Role   string   `json:"role"`
	Groups []string `json:"groups"`
	jwt.RegisteredClaims
}

type contextKey string

const UserContextKey contextKey = "user"

var errTokenExpired = errors.New("token expired")

// Authenticator validates bearer tokens issued by the OIDC provider
type Authenticator struct {
	skipAuth        bool
	verifySignature bool
	issuerURL       string
	logger          zerolog.Logger

	mu   sync.RWMutex
	jwks keyfunc.Keyfunc
}

// NewAuthenticator creates an Authenticator from config
func NewAuthenticator(cfg *config.Config, logger zerolog.Logger) *Authenticator {
	return &Authenticator{
		skipAuth:        cfg.SkipAuth,
		verifySignature: cfg.VerifySignature(),
		issuerURL:       cfg.OIDCIssuer,
		logger:          logger.With().Str("component", "auth").Logger(),
	}
}

// InitJWKS fetches the provider keys. Call it on startup when signatures
// are verified; otherwise keys are fetched on the first request.
func (a *Authenticator) InitJWKS() error {
	if a.issuerURL == "" {
		return errors.New("OIDC_ISSUER not configured for JWT verification")
	}

	// Keycloak layout
	jwksURL := strings.TrimSuffix(a.issuerURL, "/") + "/protocol/openid-connect/certs"
	a.logger.Info().Str("jwks_url", jwksURL).Msg("fetching JWKS")

	k, err := keyfunc.NewDefault([]string{jwksURL})
	if err != nil {
		return fmt.Errorf("failed to create keyfunc: %w", err)
	}

	a.mu.Lock()
	a.jwks = k
	a.mu.Unlock()

	a.logger.Info().Msg("JWKS loaded")
	return nil
}

func (a *Authenticator) keyfunc() jwt.Keyfunc {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.jwks == nil {
		return nil
	}
	return a.jwks.Keyfunc
}

// Middleware validates JWT tokens from the OIDC provider
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.skipAuth {
			a.logger.Debug().Msg("SKIP_AUTH enabled - bypassing authentication")
			ctx := WithUser(r.Context(), &Claims{
				Email:  "dev@monti.local",
				Name:   "Dev User",
				Role:   RoleAdmin,
				Groups: []string{"developers", "monti-admins"},
			})
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		tokenString := extractToken(r)
		if tokenString == "" {
			a.logger.Debug().Str("path", r.URL.Path).Msg("missing authorization token")
			http.Error(w, "Unauthorized: Missing token", http.StatusUnauthorized)
			return
		}

		claims, err := a.validateToken(tokenString)
		if err != nil {
			a.logger.Warn().Err(err).Str("path", r.URL.Path).Msg("token validation failed")
			http.Error(w, fmt.Sprintf("Unauthorized: %v", err), http.StatusUnauthorized)
			return
		}

		a.logger.Debug().
			Str("email", claims.Email).
			Str("role", claims.Role).
			Msg("user authenticated")

		ctx := WithUser(r.Context(), claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects requests whose user has none of roles
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetUserFromContext(r.Context())
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if !slices.Contains(roles, claims.Role) {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractToken gets the token from Authorization header or query parameter
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString != authHeader {
			return tokenString
		}
	}

	// WebSocket clients cannot set headers from the browser
	return r.URL.Query().Get("token")
}

// validateToken parses the token, verifying the signature when configured
func (a *Authenticator) validateToken(tokenString string) (*Claims, error) {
	var token *jwt.Token
	var err error

	if a.verifySignature {
		token, err = a.parseAndVerifyToken(tokenString)
		if err != nil {
			return nil, err
		}
	} else {
		token, _, err = jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
		if err != nil {
			return nil, fmt.Errorf("failed to parse token: %w", err)
		}
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	claims := &Claims{
		Role:   extractRole(mapClaims),
		Groups: extractGroups(mapClaims),
	}

	if email, ok := mapClaims["email"].(string); ok {
		claims.Email = email
	}
	if name, ok := mapClaims["name"].(string); ok {
		claims.Name = name
	} else if preferredUsername, ok := mapClaims["preferred_username"].(string); ok {
		claims.Name = preferredUsername
	}
	if sub, ok := mapClaims["sub"].(string); ok {
		claims.Subject = sub
	}

	// Verified tokens have exp checked by the parser
	if !a.verifySignature {
		if exp, ok := mapClaims["exp"].(float64); ok {
			expTime := time.Unix(int64(exp), 0)
			claims.ExpiresAt = jwt.NewNumericDate(expTime)
			if expTime.Before(time.Now()) {
				return nil, errTokenExpired
			}
		}
	}

	return claims, nil
}

// parseAndVerifyToken verifies the JWT signature using JWKS
func (a *Authenticator) parseAndVerifyToken(tokenString string) (*jwt.Token, error) {
	if a.keyfunc() == nil {
		if err := a.InitJWKS(); err != nil {
			return nil, fmt.Errorf("failed to initialize JWKS: %w", err)
		}
	}

	token, err := jwt.Parse(tokenString, a.keyfunc(), jwt.WithValidMethods([]string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512"}))
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return token, nil
}

// extractRole picks the highest-priority role from Keycloak realm roles,
// then Cognito or custom groups
func extractRole(mapClaims jwt.MapClaims) string {
	if realmAccess, ok := mapClaims["realm_access"].(map[string]interface{}); ok {
		roles := stringList(realmAccess["roles"])
		for _, priority := range rolePriority {
			if slices.Contains(roles, priority) {
				return priority
			}
		}
	}

	for _, claim := range []string{"cognito:groups", "custom:groups"} {
		for _, group := range stringList(mapClaims[claim]) {
			for _, role := range rolePriority[:3] {
				if strings.Contains(group, role) {
					return role
				}
			}
		}
	}

	return RoleViewer
}

// extractGroups extracts groups from token claims
func extractGroups(mapClaims jwt.MapClaims) []string {
	groups := stringList(mapClaims["groups"])
	return append(groups, stringList(mapClaims["cognito:groups"])...)
}

func stringList(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// WithUser returns ctx carrying claims, as Middleware does
func WithUser(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, UserContextKey, claims)
}

// GetUserFromContext retrieves user claims from request context
func GetUserFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*Claims)
	return claims, ok
}
