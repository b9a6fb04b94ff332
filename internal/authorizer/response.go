package authorizer

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dropDatabas3/edgegate/internal/cookie"
)

const (
	allowMethods = "GET,HEAD,OPTIONS"
	allowHeaders = "accept,content-type,access-control-allow-credentials,access-control-allow-headers,access-control-allow-origin,authorization,origin,access-control-max-age"
	cacheControl = "no-cache,no-store,must-revalidate"
)

// removalExpiry renders as "Thu, 01 Jan 1970 00:00:01 GMT".
var removalExpiry = time.Unix(1, 0).UTC()

// appError is a failure already mapped to a viewer-facing status.
type appError struct {
	Status      int
	Description string
	Message     string
	Err         error
}

func (e *appError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Status, e.Message)
}

func (e *appError) Unwrap() error { return e.Err }

func forbidden(msg string) *appError {
	return &appError{Status: http.StatusForbidden, Description: "Forbidden", Message: msg}
}

func unauthorized(err error) *appError {
	return &appError{Status: http.StatusUnauthorized, Description: "Unauthorized", Message: messageOf(err), Err: err}
}

func badRequest(err error) *appError {
	return &appError{Status: http.StatusBadRequest, Description: "Bad Request", Message: messageOf(err), Err: err}
}

func messageOf(err error) string {
	if err == nil || err.Error() == "" {
		return "Undefined error"
	}
	return err.Error()
}

// corsPolicy decides the Access-Control-Allow-Origin value.
type corsPolicy struct {
	allowed []string
}

func newCORSPolicy(allowed []string) corsPolicy {
	out := make([]string, 0, len(allowed))
	for _, a := range allowed {
		if a = trimOrigin(a); a != "" {
			out = append(out, a)
		}
	}
	return corsPolicy{allowed: out}
}

func trimOrigin(s string) string { return strings.TrimRight(strings.TrimSpace(s), "/") }

// allow reflects origin when no allowlist is configured, or when origin is
// listed or the list contains "*".
func (p corsPolicy) allow(origin string) string {
	origin = trimOrigin(origin)
	if len(p.allowed) == 0 {
		return origin
	}
	for _, a := range p.allowed {
		if a == "*" || (origin != "" && strings.EqualFold(origin, a)) {
			return origin
		}
	}
	return ""
}

func sharedHeaders(origin string) Headers {
	h := Headers{}
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Methods", allowMethods)
	h.Set("Access-Control-Allow-Headers", allowHeaders)
	h.Set("Cache-Control", cacheControl)
	h.Set("Access-Control-Allow-Credentials", "true")
	return h
}

func newResponse(status int, description, origin string) *Response {
	return &Response{
		Status:            strconv.Itoa(status),
		StatusDescription: description,
		Headers:           sharedHeaders(origin),
	}
}

func preflightResponse(origin string) *Response {
	return newResponse(http.StatusNoContent, "No Content", origin)
}

func errorResponse(origin string, e *appError) *Response {
	r := newResponse(e.Status, e.Description, origin)
	r.Body = e.Message
	r.BodyEncoding = "text"
	return r
}

// cookieResponse sets the three CloudFront cookies scoped to domain.
func cookieResponse(origin, domain string, set cookie.SignedCookieSet) *Response {
	r := newResponse(http.StatusOK, "OK", origin)
	for _, c := range []struct{ name, value string }{
		{cookie.PolicyName, set.Policy},
		{cookie.KeyPairIDName, set.KeyPairID},
		{cookie.SignatureName, set.Signature},
	} {
		r.Headers.Add("Set-Cookie", buildCookie(c.name, c.value, domain, set.Expires).String())
	}
	return r
}

// removalResponse expires the three cookies on the client.
func removalResponse(origin, domain string) *Response {
	return cookieResponse(origin, domain, cookie.SignedCookieSet{Expires: removalExpiry})
}

func buildCookie(name, value, domain string, expires time.Time) *http.Cookie {
	ck := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
		Expires:  expires.UTC(),
	}
	if d := strings.TrimSpace(domain); d != "" {
		ck.Domain = d
	}
	return ck
}
