// Package store holds the parameter and secret store collaborators.
//
// Backends:
//   - aws: SSM Parameter Store + Secrets Manager (production)
//   - redis: shared store for local stacks
//   - memory: in-process, for tests and single-process development
package store

import (
	"context"
	"errors"
	"strings"
)

// SecretReferencePrefix lets a parameter name point at a secret, the way SSM
// resolves /aws/reference/secretsmanager/<secret-id>. Non-AWS backends honor it
// so the authorizer can read the private key the rotator wrote.
const SecretReferencePrefix = "/aws/reference/secretsmanager/"

var ErrNotFound = errors.New("store: not found")

// Params reads and writes named parameters.
type Params interface {
	// GetParameter returns the value of name. decrypt asks for the plaintext
	// of encrypted parameters and secret references.
	GetParameter(ctx context.Context, name string, decrypt bool) (string, error)

	// PutParameter creates or overwrites name.
	PutParameter(ctx context.Context, name, value string) error
}

// Secrets replaces secret values.
type Secrets interface {
	// PutSecret fully replaces the value of the secret identified by id.
	PutSecret(ctx context.Context, id, value string) error
}

// SecretIDFromReference returns the secret id referenced by name, if any.
func SecretIDFromReference(name string) (string, bool) {
	if !strings.HasPrefix(name, SecretReferencePrefix) {
		return "", false
	}
	id := strings.TrimPrefix(name, SecretReferencePrefix)
	return id, id != ""
}
