// Package jwks fetches the identity provider's public signing keys.
// Key sets are not cached; every verification fetches.
package jwks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jose "github.com/go-jose/go-jose/v4"

	"github.com/dropDatabas3/edgegate/internal/metrics"
	"github.com/dropDatabas3/edgegate/internal/observability/logger"
)

// WellKnownPath is appended to the issuer to locate the key set.
const WellKnownPath = "/.well-known/jwks.json"

const maxBody = 1 << 20

var (
	// ErrKeySetFetch reports a network or decoding failure.
	ErrKeySetFetch = errors.New("jwks: fetch failed")
	// ErrKeySetUnavailable reports a non-200 answer in strict mode.
	ErrKeySetUnavailable = errors.New("jwks: key set unavailable")
)

// HTTPDoer is satisfied by *http.Client and allows easy mocking in tests.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

type Fetcher struct {
	client HTTPDoer
	strict bool
}

type Option func(*Fetcher)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c HTTPDoer) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithStrictStatus makes non-200 answers fail with ErrKeySetUnavailable
// instead of yielding an empty set.
func WithStrictStatus(strict bool) Option {
	return func(f *Fetcher) { f.strict = strict }
}

// NewHTTPClient returns the client used for key set fetches.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:    10,
			IdleConnTimeout: 30 * time.Second,
		},
		Timeout: timeout,
	}
}

func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{client: NewHTTPClient(5 * time.Second)}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fetch GETs {issuer}/.well-known/jwks.json from host. An empty host uses the
// issuer's own host. Keys are returned in the order the provider lists them.
func (f *Fetcher) Fetch(ctx context.Context, host, issuer string) (jose.JSONWebKeySet, error) {
	log := logger.From(ctx).With(logger.Component("jwks"), logger.Op("Fetch"))
	start := time.Now()

	set, err := f.fetch(ctx, host, issuer)

	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.JWKSFetchSeconds.WithLabelValues(result).Observe(time.Since(start).Seconds())
	if err != nil {
		log.Warn("key set fetch failed", logger.Err(err))
		return jose.JSONWebKeySet{}, err
	}
	log.Debug("key set fetched", logger.Count(len(set.Keys)), logger.Duration(time.Since(start)))
	return set, nil
}

func (f *Fetcher) fetch(ctx context.Context, host, issuer string) (jose.JSONWebKeySet, error) {
	u, err := url.Parse(strings.TrimRight(issuer, "/") + WellKnownPath)
	if err != nil {
		return jose.JSONWebKeySet{}, fmt.Errorf("%w: bad issuer: %v", ErrKeySetFetch, err)
	}
	if host != "" {
		u.Host = host
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return jose.JSONWebKeySet{}, fmt.Errorf("%w: %v", ErrKeySetFetch, err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := f.client.Do(req)
	if err != nil {
		return jose.JSONWebKeySet{}, fmt.Errorf("%w: %v", ErrKeySetFetch, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		if f.strict {
			return jose.JSONWebKeySet{}, fmt.Errorf("%w: %s", ErrKeySetUnavailable, res.Status)
		}
		logger.From(ctx).Warn("key set endpoint returned non-200, using empty key set",
			logger.Component("jwks"),
			logger.Status(res.StatusCode),
		)
		return jose.JSONWebKeySet{}, nil
	}

	var set jose.JSONWebKeySet
	if err := json.NewDecoder(io.LimitReader(res.Body, maxBody)).Decode(&set); err != nil {
		return jose.JSONWebKeySet{}, fmt.Errorf("%w: decode: %v", ErrKeySetFetch, err)
	}
	return set, nil
}
