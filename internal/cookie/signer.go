// Package cookie mints CloudFront signed-cookie triplets.
package cookie

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/cloudfront/sign"
)

// Cookie names CloudFront validates.
const (
	PolicyName    = sign.CookiePolicyName
	SignatureName = sign.CookieSignatureName
	KeyPairIDName = sign.CookieKeyIDName
)

var ErrInvalidInput = errors.New("cookie: invalid signing input")

// SignedCookieSet holds the three cookie values and the policy expiry.
type SignedCookieSet struct {
	Policy    string
	KeyPairID string
	Signature string
	Expires   time.Time
}

type Signer struct {
	now func() time.Time
}

type Option func(*Signer)

// WithClock overrides the clock read when computing the expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) { s.now = now }
}

func NewSigner(opts ...Option) *Signer {
	s := &Signer{now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ResourceFor is the policy resource granted for a distribution domain.
func ResourceFor(cdnDomain string) string {
	return "https://" + cdnDomain + "/*"
}

// Sign builds a custom policy over https://{cdnDomain}/* expiring lifetimeMinutes
// from now (floored to the second) and signs it with privateKey.
func (s *Signer) Sign(keyPairID string, privateKey *rsa.PrivateKey, cdnDomain string, lifetimeMinutes int) (SignedCookieSet, error) {
	switch {
	case keyPairID == "":
		return SignedCookieSet{}, fmt.Errorf("%w: empty key pair id", ErrInvalidInput)
	case privateKey == nil:
		return SignedCookieSet{}, fmt.Errorf("%w: nil private key", ErrInvalidInput)
	case cdnDomain == "":
		return SignedCookieSet{}, fmt.Errorf("%w: empty domain", ErrInvalidInput)
	case lifetimeMinutes <= 0:
		return SignedCookieSet{}, fmt.Errorf("%w: lifetime %d", ErrInvalidInput, lifetimeMinutes)
	}

	expires := time.Unix(s.now().Unix(), 0).Add(time.Duration(lifetimeMinutes) * time.Minute)
	policy := &sign.Policy{
		Statements: []sign.Statement{{
			Resource: ResourceFor(cdnDomain),
			Condition: sign.Condition{
				DateLessThan: sign.NewAWSEpochTime(expires),
			},
		}},
	}

	cookies, err := sign.NewCookieSigner(keyPairID, privateKey).SignWithPolicy(policy)
	if err != nil {
		return SignedCookieSet{}, fmt.Errorf("cookie: sign policy: %w", err)
	}

	set := SignedCookieSet{Expires: expires}
	for _, c := range cookies {
		switch c.Name {
		case PolicyName:
			set.Policy = c.Value
		case SignatureName:
			set.Signature = c.Value
		case KeyPairIDName:
			set.KeyPairID = c.Value
		}
	}
	if set.Policy == "" || set.Signature == "" || set.KeyPairID == "" {
		return SignedCookieSet{}, errors.New("cookie: signer returned an incomplete cookie set")
	}
	return set, nil
}
