package logger

import (
	"time"

	"go.uber.org/zap"
)

// =================================================================================
// REQUEST FIELDS
// =================================================================================

// RequestID is the invocation or request id.
func RequestID(v string) zap.Field {
	return zap.String("request_id", v)
}

// Method is the HTTP method of the viewer request.
func Method(v string) zap.Field {
	return zap.String("method", v)
}

// URI is the viewer request uri.
func URI(v string) zap.Field {
	return zap.String("uri", v)
}

// Origin is the CORS origin of the viewer request.
func Origin(v string) zap.Field {
	return zap.String("origin", v)
}

// Status is the HTTP status code returned.
func Status(v int) zap.Field {
	return zap.Int("status", v)
}

// Duration is the elapsed time of an operation.
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// =================================================================================
// KEY FIELDS
// =================================================================================

// KeyID is a CDN public key identifier. Identifiers are public.
func KeyID(v string) zap.Field {
	return zap.String("key_id", v)
}

// KeyName is the registry name of a public key slot.
func KeyName(v string) zap.Field {
	return zap.String("key_name", v)
}

// KeyGroupID is the trusted key group identifier.
func KeyGroupID(v string) zap.Field {
	return zap.String("key_group_id", v)
}

// KeyIDs lists public key identifiers, e.g. trusted key group items.
func KeyIDs(v []string) zap.Field {
	return zap.Strings("key_ids", v)
}

// KID is the key id claimed by a bearer token header.
func KID(v string) zap.Field {
	return zap.String("kid", v)
}

// Parameter is the name of a parameter store entry. Never pass the value.
func Parameter(v string) zap.Field {
	return zap.String("parameter", v)
}

// =================================================================================
// SYSTEM FIELDS
// =================================================================================

// Component identifies the module emitting the entry.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Op is the current operation.
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Layer is handler, service or adapter.
func Layer(v string) zap.Field {
	return zap.String("layer", v)
}

// Err wraps an error.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// Count is a generic counter.
func Count(v int) zap.Field {
	return zap.Int("count", v)
}

// String is a generic string field.
func String(key, v string) zap.Field {
	return zap.String(key, v)
}

// Bool is a generic bool field.
func Bool(key string, v bool) zap.Field {
	return zap.Bool(key, v)
}

// Any is a generic field of any type.
func Any(key string, v any) zap.Field {
	return zap.Any(key, v)
}
