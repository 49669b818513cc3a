package auth

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultPlayerName is used when a token carries no usable name.
const DefaultPlayerName = "Player"

// Validator checks EdDSA-signed JWTs against the JWKS published under a base
// URL. The key set is fetched on first use and refreshed in the background
// by keyfunc; a failed fetch is retried on the next call.
type Validator struct {
	jwksURL string
	issuer  string

	mu      sync.Mutex
	keyfunc jwt.Keyfunc
}

// NewValidator returns a Validator for baseURL (e.g. from AUTH_BASE_URL).
// An empty baseURL returns (nil, nil): auth is disabled.
func NewValidator(baseURL string) (*Validator, error) {
	if baseURL == "" {
		return nil, nil
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid auth base URL %q", baseURL)
	}
	return &Validator{
		jwksURL: strings.TrimRight(baseURL, "/") + "/.well-known/jwks.json",
		issuer:  u.Scheme + "://" + u.Host,
	}, nil
}

func (v *Validator) keys() (jwt.Keyfunc, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.keyfunc != nil {
		return v.keyfunc, nil
	}
	jwks, err := keyfunc.NewDefault([]string{v.jwksURL})
	if err != nil {
		return nil, err
	}
	slog.Info("loaded JWKS", "tag", "auth", "url", v.jwksURL)
	v.keyfunc = jwks.Keyfunc
	return v.keyfunc, nil
}

// Validate parses tokenString and returns its claims when the signature,
// issuer and expiry are valid.
func (v *Validator) Validate(tokenString string) (jwt.MapClaims, error) {
	kf, err := v.keys()
	if err != nil {
		return nil, err
	}
	token, err := jwt.Parse(tokenString, kf,
		jwt.WithIssuer(v.issuer),
		jwt.WithValidMethods([]string{"EdDSA"}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// FirstNameFromClaims returns the first word of the "name" claim, or DefaultPlayerName.
func FirstNameFromClaims(claims jwt.MapClaims) string {
	name, _ := claims["name"].(string)
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return DefaultPlayerName
	}
	return parts[0]
}

// UserIDFromClaims returns the user id from claims ("sub" or "id").
func UserIDFromClaims(claims jwt.MapClaims) string {
	if sub, ok := claims["sub"].(string); ok && sub != "" {
		return sub
	}
	if id, ok := claims["id"].(string); ok && id != "" {
		return id
	}
	return ""
}
