// Package jwkstest serves key sets and mints identity tokens for tests.
package jwkstest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// PoolID is the identity pool path segment the server answers under.
const PoolID = "us-east-1_TESTPOOL"

// Key is a signing key published by the server.
type Key struct {
	KID     string
	Private *rsa.PrivateKey
}

// NewKey generates an RSA-2048 key. Tests share keys where they can since
// generation is slow.
func NewKey(t testing.TB, kid string) Key {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return Key{KID: kid, Private: priv}
}

// Server publishes a JWKS at {Issuer}/.well-known/jwks.json.
type Server struct {
	*httptest.Server

	mu     sync.Mutex
	keys   []Key
	status int
	hits   atomic.Int64
}

func NewServer(t testing.TB, keys ...Key) *Server {
	t.Helper()
	s := &Server{keys: keys, status: http.StatusOK}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.hits.Add(1)
	if !strings.HasSuffix(r.URL.Path, "/"+PoolID+"/.well-known/jwks.json") {
		http.NotFound(w, r)
		return
	}
	s.mu.Lock()
	status := s.status
	set := jose.JSONWebKeySet{}
	for _, k := range s.keys {
		set.Keys = append(set.Keys, jose.JSONWebKey{Key: &k.Private.PublicKey, KeyID: k.KID, Algorithm: "RS256", Use: "sig"})
	}
	s.mu.Unlock()

	if status != http.StatusOK {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(set)
}

// Issuer is the issuer URL tokens must carry.
func (s *Server) Issuer() string { return s.URL + "/" + PoolID }

// Host is the host:port of the server.
func (s *Server) Host() string {
	u, _ := url.Parse(s.URL)
	return u.Host
}

// Hits counts requests served.
func (s *Server) Hits() int64 { return s.hits.Load() }

// SetStatus makes the server answer status with no body.
func (s *Server) SetStatus(status int) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// SetKeys replaces the published keys.
func (s *Server) SetKeys(keys ...Key) {
	s.mu.Lock()
	s.keys = keys
	s.mu.Unlock()
}

// Claims are the identity token claims used by tests.
type Claims struct {
	Issuer   string
	Audience string
	TokenUse string
	Expires  time.Time
}

// ValidClaims returns claims that pass verification against s.
func (s *Server) ValidClaims(clientID string) Claims {
	return Claims{Issuer: s.Issuer(), Audience: clientID, TokenUse: "id", Expires: time.Now().Add(time.Hour)}
}

// Mint signs an RS256 identity token with k.
func Mint(t testing.TB, k Key, c Claims) string {
	t.Helper()
	claims := jwtv5.MapClaims{
		"iss":       c.Issuer,
		"aud":       c.Audience,
		"token_use": c.TokenUse,
		"sub":       "user-1",
		"exp":       c.Expires.Unix(),
		"iat":       time.Now().Add(-time.Minute).Unix(),
	}
	tok := jwtv5.NewWithClaims(jwtv5.SigningMethodRS256, claims)
	if k.KID != "" {
		tok.Header["kid"] = k.KID
	}
	signed, err := tok.SignedString(k.Private)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}
