// Package cdn manages the CloudFront public keys and the trusted key group
// that validate signed cookies.
package cdn

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound           = errors.New("cdn: not found")
	ErrPreconditionFailed = errors.New("cdn: etag does not match")
	ErrInUse              = errors.New("cdn: public key is referenced by a key group")
	ErrAlreadyExists      = errors.New("cdn: public key already exists")
	ErrEmptyKeyGroup      = errors.New("cdn: key group needs at least one key")
)

// PublicKey is a registered signing public key.
type PublicKey struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// KeyGroup is the set of public keys the distribution trusts.
type KeyGroup struct {
	ID      string
	Name    string
	Comment string
	Items   []string
}

// Registry is the key API of the CDN. Mutations of existing objects require
// the ETag returned by the matching Get call.
type Registry interface {
	ListPublicKeys(ctx context.Context) ([]PublicKey, error)
	GetPublicKey(ctx context.Context, id string) (PublicKey, string, error)
	CreatePublicKey(ctx context.Context, name, callerReference, encodedKey string) (PublicKey, error)
	DeletePublicKey(ctx context.Context, id, etag string) error
	GetKeyGroup(ctx context.Context, id string) (KeyGroup, string, error)
	UpdateKeyGroup(ctx context.Context, group KeyGroup, etag string) (string, error)
}
