package auth

import "context"

// Claims are the validated fields of a bearer token.
type Claims struct {
	// Subject is the user identifier (sub).
	Subject string `json:"sub"`

	// Email of the authenticated user, when the provider includes it.
	Email string `json:"email,omitempty"`

	// Role drives RequireRole checks.
	Role string `json:"role,omitempty"`

	// Custom holds every claim not mapped to a field above.
	Custom map[string]interface{} `json:"-"`
}

// HasRole reports whether the user has exactly the given role.
func (c *Claims) HasRole(role string) bool {
	return c.Role == role
}

// GetString returns a custom claim as a string, or "" when absent or not
// a string.
func (c *Claims) GetString(key string) string {
	if s, ok := c.Custom[key].(string); ok {
		return s
	}
	return ""
}

type contextKey struct{}

var claimsKey contextKey

// ContextWithClaims attaches validated claims to a context.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext returns the claims attached by the middleware, or nil
// on unauthenticated requests.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey).(*Claims)
	return claims
}
