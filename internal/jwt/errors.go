package jwt

import "errors"

// Verification failures. Each is returned wrapped with the offending value so
// callers can surface the specific reason.
var (
	ErrMalformedToken    = errors.New("not a valid jwt token")
	ErrInvalidIssuer     = errors.New("invalid issuer")
	ErrWrongTokenClass   = errors.New("invalid token_use")
	ErrInvalidAudience   = errors.New("invalid aud")
	ErrUnknownSigningKey = errors.New("invalid kid")
	ErrTokenExpired      = errors.New("jwt token expired")
	ErrInvalidSignature  = errors.New("invalid jwt token")
)

var verificationErrors = []error{
	ErrMalformedToken,
	ErrInvalidIssuer,
	ErrWrongTokenClass,
	ErrInvalidAudience,
	ErrUnknownSigningKey,
	ErrTokenExpired,
	ErrInvalidSignature,
}

// IsVerification reports whether err is one of the token verification failures.
func IsVerification(err error) bool {
	for _, target := range verificationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
