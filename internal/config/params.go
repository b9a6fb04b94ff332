package config

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"strconv"
	"strings"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/edgegate/internal/keys"
	"github.com/dropDatabas3/edgegate/internal/observability/logger"
	"github.com/dropDatabas3/edgegate/internal/store"
)

// ParamNames are the parameter store names of the operational settings.
type ParamNames struct {
	Domain         string
	PrivateKeyRef  string
	KeyPairID      string
	Region         string
	IdentityPoolID string
	ClientID       string
	CookieLifetime string
}

// Names derives the parameter names for prefix.
func Names(prefix string) ParamNames {
	return ParamNames{
		Domain:         prefix + "-cloudfront-domain",
		PrivateKeyRef:  prefix + "-signing-key-ref",
		KeyPairID:      prefix + "-cloudfront-keypair-id",
		Region:         prefix + "-region",
		IdentityPoolID: prefix + "-user-pool-id",
		ClientID:       prefix + "-client-id",
		// Spelling matches the provisioned parameter.
		CookieLifetime: prefix + "-expiration-time-in-minuits",
	}
}

// LoadError is returned when a parameter cannot be read or parsed. It names
// the parameter and never carries its value.
type LoadError struct {
	Name string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("config: load parameter %s: %v", e.Name, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// cache field keys
const (
	fieldDomain         = "domain"
	fieldPrivateKeyRef  = "private-key-ref"
	fieldKeyPairID      = "key-pair-id"
	fieldRegion         = "region"
	fieldIdentityPoolID = "identity-pool-id"
	fieldClientID       = "client-id"
	fieldCookieLifetime = "cookie-lifetime"
	fieldPrivateKey     = "private-key"
)

// AuthSettings is a read-only snapshot of the settings needed to verify a
// token and sign cookies.
type AuthSettings struct {
	CDNDomain             string
	KeyPairID             string
	Region                string
	IdentityPoolID        string
	ClientID              string
	CookieLifetimeMinutes int
	PrivateKey            *rsa.PrivateKey
}

// IdentityHost is the identity provider host for Region.
func (a AuthSettings) IdentityHost() string {
	return "cognito-idp." + a.Region + ".amazonaws.com"
}

// Issuer is the expected iss claim of identity tokens.
func (a AuthSettings) Issuer() string {
	return "https://" + a.IdentityHost() + "/" + a.IdentityPoolID
}

func (a AuthSettings) String() string {
	return fmt.Sprintf("AuthSettings{domain=%s keyPairID=%s region=%s pool=%s client=%s lifetime=%dm privateKey=[redacted]}",
		a.CDNDomain, a.KeyPairID, a.Region, a.IdentityPoolID, a.ClientID, a.CookieLifetimeMinutes)
}

func (a AuthSettings) GoString() string { return a.String() }

// Params is the process-wide lazily populated cache of operational settings.
// Each field is fetched at most once per successful load; a failed load only
// leaves the failing field (and the ones after it) absent, so the next call
// re-fetches just those. Concurrent loads of the same field share one fetch.
// Values never expire for the life of the process.
type Params struct {
	store  store.Params
	names  ParamNames
	values *gocache.Cache
	sf     singleflight.Group
}

func NewParams(s store.Params, names ParamNames) *Params {
	return &Params{
		store:  s,
		names:  names,
		values: gocache.New(gocache.NoExpiration, 0),
	}
}

// EnsureDomainLoaded loads only the CDN domain.
func (p *Params) EnsureDomainLoaded(ctx context.Context) error {
	return p.ensureString(ctx, fieldDomain, p.names.Domain, false)
}

// EnsureAuthLoaded loads every remaining field. The private key reference is
// loaded before the private key it points to.
func (p *Params) EnsureAuthLoaded(ctx context.Context) error {
	if err := p.EnsureDomainLoaded(ctx); err != nil {
		return err
	}
	steps := []struct{ field, name string }{
		{fieldPrivateKeyRef, p.names.PrivateKeyRef},
		{fieldKeyPairID, p.names.KeyPairID},
		{fieldRegion, p.names.Region},
		{fieldIdentityPoolID, p.names.IdentityPoolID},
		{fieldClientID, p.names.ClientID},
	}
	for _, s := range steps {
		if err := p.ensureString(ctx, s.field, s.name, false); err != nil {
			return err
		}
	}
	if err := p.ensure(ctx, fieldCookieLifetime, p.names.CookieLifetime, false, parseLifetime); err != nil {
		return err
	}
	ref, _ := p.str(fieldPrivateKeyRef)
	return p.ensure(ctx, fieldPrivateKey, ref, true, func(v string) (any, error) {
		return keys.DecodeRSAPrivateKey(v)
	})
}

// Domain returns the CDN domain, or "" before EnsureDomainLoaded succeeded.
func (p *Params) Domain() string {
	v, _ := p.str(fieldDomain)
	return v
}

// Auth returns the auth snapshot once EnsureAuthLoaded succeeded.
func (p *Params) Auth() (AuthSettings, error) {
	var a AuthSettings
	var ok bool
	fields := []struct {
		key string
		dst *string
	}{
		{fieldDomain, &a.CDNDomain},
		{fieldKeyPairID, &a.KeyPairID},
		{fieldRegion, &a.Region},
		{fieldIdentityPoolID, &a.IdentityPoolID},
		{fieldClientID, &a.ClientID},
	}
	for _, f := range fields {
		if *f.dst, ok = p.str(f.key); !ok {
			return AuthSettings{}, errors.New("config: auth settings not loaded")
		}
	}
	lt, ok := p.values.Get(fieldCookieLifetime)
	if !ok {
		return AuthSettings{}, errors.New("config: auth settings not loaded")
	}
	pk, ok := p.values.Get(fieldPrivateKey)
	if !ok {
		return AuthSettings{}, errors.New("config: auth settings not loaded")
	}
	a.CookieLifetimeMinutes = lt.(int)
	a.PrivateKey = pk.(*rsa.PrivateKey)
	return a, nil
}

func (p *Params) str(field string) (string, bool) {
	v, ok := p.values.Get(field)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (p *Params) ensureString(ctx context.Context, field, name string, decrypt bool) error {
	return p.ensure(ctx, field, name, decrypt, func(v string) (any, error) { return v, nil })
}

func (p *Params) ensure(ctx context.Context, field, name string, decrypt bool, parse func(string) (any, error)) error {
	if _, ok := p.values.Get(field); ok {
		return nil
	}
	_, err, _ := p.sf.Do(field, func() (any, error) {
		if v, ok := p.values.Get(field); ok {
			return v, nil
		}
		if name == "" {
			return nil, &LoadError{Name: field, Err: errors.New("parameter name is empty")}
		}
		raw, err := p.store.GetParameter(ctx, name, decrypt)
		if err != nil {
			return nil, &LoadError{Name: name, Err: err}
		}
		v, err := parse(raw)
		if err != nil {
			return nil, &LoadError{Name: name, Err: err}
		}
		p.values.Set(field, v, gocache.NoExpiration)
		logger.From(ctx).Debug("parameter loaded",
			logger.Component("config.params"),
			logger.Parameter(name),
		)
		return v, nil
	})
	return err
}

func parseLifetime(v string) (any, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return nil, errors.New("cookie lifetime is not an integer")
	}
	if n <= 0 {
		return nil, errors.New("cookie lifetime must be positive")
	}
	return n, nil
}
