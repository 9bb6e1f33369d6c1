package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Default claim names for identity extraction.
const (
	DefaultUserIDClaim   = "sub"
	DefaultUsernameClaim = "preferred_username"
)

// TokenConfig describes the accepted issuer and claim mapping.
type TokenConfig struct {
	IssuerURL string
	// Audience is the expected aud claim; when empty, ClientID is used.
	Audience      string
	ClientID      string
	UserIDClaim   string
	UsernameClaim string
}

// EffectiveAudience returns Audience, falling back to ClientID.
func (c TokenConfig) EffectiveAudience() string {
	if c.Audience != "" {
		return c.Audience
	}
	return c.ClientID
}

// Identity is the validated subject of a bearer token.
type Identity struct {
	UserID   string
	Username string
}

// TokenValidator verifies RS256 bearer tokens against the issuer's JWKS and
// extracts the configured identity claims. Every failure carries one of the
// distinguished reason codes.
type TokenValidator struct {
	cfg  TokenConfig
	jwks *JWKSCache
}

// NewTokenValidator creates a validator over the shared JWKS cache.
func NewTokenValidator(cfg TokenConfig, jwks *JWKSCache) *TokenValidator {
	if cfg.UserIDClaim == "" {
		cfg.UserIDClaim = DefaultUserIDClaim
	}
	if cfg.UsernameClaim == "" {
		cfg.UsernameClaim = DefaultUsernameClaim
	}
	return &TokenValidator{cfg: cfg, jwks: jwks}
}

// Validate checks signature, expiry, issued-at, issuer and audience, then
// extracts the identity claims.
func (v *TokenValidator) Validate(ctx context.Context, raw string) (Identity, error) {
	kid, err := v.inspectHeader(raw)
	if err != nil {
		return Identity{}, err
	}

	set, err := v.jwks.Keys(ctx, v.cfg.IssuerURL)
	if err != nil {
		return Identity{}, err
	}
	key, ok := set.LookupKeyID(kid)
	if !ok {
		return Identity{}, unauthenticated(ReasonInvalidSignature, fmt.Errorf("no key %q in issuer jwks", kid))
	}
	var pubKey interface{}
	if err := key.Raw(&pubKey); err != nil {
		return Identity{}, unauthenticated(ReasonInvalidSignature, fmt.Errorf("materialize key %q: %w", kid, err))
	}

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (interface{}, error) { return pubKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(v.cfg.IssuerURL),
		jwt.WithAudience(v.cfg.EffectiveAudience()),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Identity{}, unauthenticated(classifyJWTError(err), err)
	}

	return v.extractIdentity(claims)
}

// inspectHeader parses the unverified header to get the key id and rejects
// any algorithm other than RS256 before signature verification.
func (v *TokenValidator) inspectHeader(raw string) (string, error) {
	token, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return "", unauthenticated(ReasonMalformed, err)
	}
	if alg, _ := token.Header["alg"].(string); alg != jwt.SigningMethodRS256.Alg() {
		return "", unauthenticated(ReasonInvalidSignature, fmt.Errorf("algorithm %q is not accepted", token.Header["alg"]))
	}
	kid, _ := token.Header["kid"].(string)
	if kid == "" {
		return "", unauthenticated(ReasonMalformed, errors.New("token header has no kid"))
	}
	return kid, nil
}

func (v *TokenValidator) extractIdentity(claims jwt.MapClaims) (Identity, error) {
	userID, _ := claims[v.cfg.UserIDClaim].(string)
	if strings.TrimSpace(userID) == "" {
		return Identity{}, unauthenticated(ReasonMissingClaim, fmt.Errorf("claim %q is missing", v.cfg.UserIDClaim))
	}
	username, _ := claims[v.cfg.UsernameClaim].(string)
	if username == "" {
		username = userID
	}
	return Identity{UserID: userID, Username: username}, nil
}

func classifyJWTError(err error) Reason {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ReasonExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ReasonInvalidSignature
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ReasonInvalidIssuer
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ReasonInvalidAudience
	case errors.Is(err, jwt.ErrTokenUsedBeforeIssued), errors.Is(err, jwt.ErrTokenNotValidYet):
		return ReasonExpired
	default:
		return ReasonMalformed
	}
}

// BearerToken extracts the token from an Authorization header value,
// reporting false when the header is not a bearer credential.
func BearerToken(header string) (string, bool) {
	return schemeCredential(header, "Bearer")
}

// APIKeyCredential extracts the secret from an "ApiKey <secret>"
// Authorization header value.
func APIKeyCredential(header string) (string, bool) {
	return schemeCredential(header, "ApiKey")
}

// schemeCredential matches the authorization scheme case-insensitively and
// returns the credential that follows it.
func schemeCredential(header, scheme string) (string, bool) {
	prefix := scheme + " "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	credential := strings.TrimSpace(header[len(prefix):])
	return credential, credential != ""
}

// LooksLikeJWT reports whether the string has the three-segment compact JWT
// shape. Used for credential classification, not validation.
func LooksLikeJWT(s string) bool {
	return strings.Count(s, ".") == 2
}
