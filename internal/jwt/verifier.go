// Package jwt verifies identity tokens issued by the user pool.
package jwt

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/dropDatabas3/edgegate/internal/observability/logger"
)

// TokenUseID is the only token class accepted.
const TokenUseID = "id"

// KeyFetcher returns the provider's current key set. *jwks.Fetcher satisfies it.
type KeyFetcher interface {
	Fetch(ctx context.Context, host, issuer string) (jose.JSONWebKeySet, error)
}

// KeySelection picks the verification key out of a fetched set.
type KeySelection string

const (
	// SelectFirst trusts only the first key of the set; the token's kid must match it.
	SelectFirst KeySelection = "first"
	// SelectByKID looks the token's kid up across the set, refetching once on a miss.
	SelectByKID KeySelection = "kid"
)

// IdentityClaims are the claims of a user pool identity token.
type IdentityClaims struct {
	jwtv5.RegisteredClaims
	TokenUse string `json:"token_use"`
}

type Verifier struct {
	keys      KeyFetcher
	selection KeySelection
	now       func() time.Time
}

type VerifierOption func(*Verifier)

// WithClock overrides the clock used for expiry checks.
func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) { v.now = now }
}

func NewVerifier(keys KeyFetcher, selection KeySelection, opts ...VerifierOption) *Verifier {
	if selection == "" {
		selection = SelectFirst
	}
	v := &Verifier{keys: keys, selection: selection, now: time.Now}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Verify checks token against issuer and audience, fetching keys from
// identityHost. The first failing check decides the error.
func (v *Verifier) Verify(ctx context.Context, token, issuer, audience, identityHost string) error {
	_, err := v.VerifyClaims(ctx, token, issuer, audience, identityHost)
	return err
}

// VerifyClaims is Verify returning the verified claims.
func (v *Verifier) VerifyClaims(ctx context.Context, token, issuer, audience, identityHost string) (*IdentityClaims, error) {
	log := logger.From(ctx).With(logger.Component("jwt"), logger.Op("Verify"))

	header, claims, err := Decode(token)
	if err != nil {
		return nil, err
	}
	if claims.Issuer != issuer {
		return nil, fmt.Errorf("%w: %s", ErrInvalidIssuer, claims.Issuer)
	}
	if claims.TokenUse != TokenUseID {
		return nil, fmt.Errorf("%w: %s", ErrWrongTokenClass, claims.TokenUse)
	}
	if len(claims.Audience) != 1 || claims.Audience[0] != audience {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAudience, strings.Join(claims.Audience, ","))
	}

	kid, _ := header["kid"].(string)
	if kid == "" {
		return nil, fmt.Errorf("%w: missing kid header", ErrUnknownSigningKey)
	}
	key, err := v.selectKey(ctx, kid, identityHost, issuer)
	if err != nil {
		return nil, err
	}

	pub, ok := key.Key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported key type %T", ErrInvalidSignature, key.Key)
	}

	verified := &IdentityClaims{}
	_, err = jwtv5.ParseWithClaims(token, verified,
		func(*jwtv5.Token) (any, error) { return pub, nil },
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodRS256.Alg()}),
		jwtv5.WithIssuer(issuer),
		jwtv5.WithTimeFunc(v.now),
	)
	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %s", ErrTokenExpired, expiry(verified))
		}
		log.Debug("signature check failed", logger.KID(kid), logger.Err(err))
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return verified, nil
}

func (v *Verifier) selectKey(ctx context.Context, kid, host, issuer string) (jose.JSONWebKey, error) {
	set, err := v.keys.Fetch(ctx, host, issuer)
	if err != nil {
		return jose.JSONWebKey{}, err
	}

	if v.selection == SelectByKID {
		if found := set.Key(kid); len(found) > 0 {
			return found[0], nil
		}
		// The provider may have rotated since the last fetch.
		if set, err = v.keys.Fetch(ctx, host, issuer); err != nil {
			return jose.JSONWebKey{}, err
		}
		if found := set.Key(kid); len(found) > 0 {
			return found[0], nil
		}
		return jose.JSONWebKey{}, fmt.Errorf("%w: %s", ErrUnknownSigningKey, kid)
	}

	if len(set.Keys) == 0 || set.Keys[0].KeyID != kid {
		return jose.JSONWebKey{}, fmt.Errorf("%w: %s", ErrUnknownSigningKey, kid)
	}
	return set.Keys[0], nil
}

// Decode parses token without verifying its signature. The token must have a
// header, a payload and a non-empty signature segment.
func Decode(token string) (map[string]any, *IdentityClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[2] == "" {
		return nil, nil, ErrMalformedToken
	}
	claims := &IdentityClaims{}
	tok, _, err := jwtv5.NewParser().ParseUnverified(token, claims)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	return tok.Header, claims, nil
}

func expiry(c *IdentityClaims) string {
	if c == nil || c.ExpiresAt == nil {
		return "unknown"
	}
	return c.ExpiresAt.UTC().Format(time.RFC3339)
}
