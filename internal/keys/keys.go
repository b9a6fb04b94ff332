// Package keys generates and decodes the RSA key material used to sign
// CloudFront cookies.
package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"time"
)

// Bits is the modulus length CloudFront accepts for trusted public keys.
const Bits = 2048

// KeyPair is a freshly generated signing key in PEM form.
// PrivatePEM is PKCS#8 and PublicPEM is SPKI ("PUBLIC KEY").
type KeyPair struct {
	Private    *rsa.PrivateKey
	PrivatePEM string
	PublicPEM  string
	CreatedAt  time.Time
}

// String keeps PEM material out of logs and fmt verbs.
func (k *KeyPair) String() string {
	return fmt.Sprintf("KeyPair{bits=%d created=%s}", k.Private.N.BitLen(), k.CreatedAt.Format(time.RFC3339))
}

// Generate creates a new RSA-2048 key pair.
func Generate() (*KeyPair, error) {
	priv, err := rsa.GenerateKey(rand.Reader, Bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}
	return FromPrivateKey(priv)
}

// FromPrivateKey encodes an existing key.
func FromPrivateKey(priv *rsa.PrivateKey) (*KeyPair, error) {
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}
	return &KeyPair{
		Private:    priv,
		PrivatePEM: string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})),
		PublicPEM:  string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})),
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// DecodeRSAPrivateKey parses a PEM encoded RSA private key in PKCS#8 or
// PKCS#1 form. Errors never include key material.
func DecodeRSAPrivateKey(p string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(p))
	if block == nil {
		return nil, errors.New("failed to decode PEM block")
	}
	if k, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rk, ok := k.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("PKCS#8 key is not RSA")
		}
		return rk, nil
	}
	rk, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, errors.New("failed to parse private key: not PKCS#8 or PKCS#1 RSA")
	}
	return rk, nil
}

// DecodeRSAPublicKey parses a PEM encoded SPKI RSA public key.
func DecodeRSAPublicKey(p string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(p))
	if block == nil {
		return nil, errors.New("failed to decode PEM block")
	}
	k, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	rk, ok := k.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not RSA")
	}
	return rk, nil
}
