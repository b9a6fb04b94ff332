// Package authorizer turns a viewer request into a terminal CloudFront
// response: a CORS preflight, a cookie removal, an error, or a freshly signed
// cookie triplet.
package authorizer

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/edgegate/internal/config"
	"github.com/dropDatabas3/edgegate/internal/cookie"
	"github.com/dropDatabas3/edgegate/internal/metrics"
	"github.com/dropDatabas3/edgegate/internal/observability/logger"
)

// DefaultRemovePath is the uri suffix that clears the cookies.
const DefaultRemovePath = "/remove"

var ErrNoRecords = errors.New("authorizer: event has no records")

// Settings is the lazily loaded operational configuration. *config.Params
// satisfies it.
type Settings interface {
	EnsureDomainLoaded(ctx context.Context) error
	Domain() string
	EnsureAuthLoaded(ctx context.Context) error
	Auth() (config.AuthSettings, error)
}

type TokenVerifier interface {
	Verify(ctx context.Context, token, issuer, audience, identityHost string) error
}

type CookieSigner interface {
	Sign(keyPairID string, privateKey *rsa.PrivateKey, cdnDomain string, lifetimeMinutes int) (cookie.SignedCookieSet, error)
}

type Options struct {
	// RemovePath defaults to DefaultRemovePath.
	RemovePath string
	// AllowedOrigins restricts the reflected origin. Empty reflects any origin.
	AllowedOrigins []string
}

type Handler struct {
	settings   Settings
	verifier   TokenVerifier
	signer     CookieSigner
	removePath string
	cors       corsPolicy
}

func New(settings Settings, verifier TokenVerifier, signer CookieSigner, opts Options) *Handler {
	removePath := opts.RemovePath
	if removePath == "" {
		removePath = DefaultRemovePath
	}
	return &Handler{
		settings:   settings,
		verifier:   verifier,
		signer:     signer,
		removePath: removePath,
		cors:       newCORSPolicy(opts.AllowedOrigins),
	}
}

// HandleEvent is the Lambda@Edge entry point. Only a malformed event returns
// an error; every request outcome is a response.
func (h *Handler) HandleEvent(ctx context.Context, ev Event) (*Response, error) {
	if len(ev.Records) == 0 {
		return nil, ErrNoRecords
	}
	cf := ev.Records[0].CF
	if id := cf.Config.RequestID; id != "" {
		ctx = logger.ToContext(ctx, logger.From(ctx).With(logger.RequestID(id)))
	}
	return h.Handle(ctx, cf.Request), nil
}

// Handle resolves one viewer request.
func (h *Handler) Handle(ctx context.Context, req Request) *Response {
	start := time.Now()
	origin := h.cors.allow(req.Headers.Get("origin"))
	log := logger.From(ctx).With(
		logger.Layer("authorizer"),
		logger.Method(req.Method),
		logger.URI(req.URI),
		logger.Origin(origin),
	)
	ctx = logger.ToContext(ctx, log)

	resp := h.handle(ctx, req, origin)

	status := resp.StatusCode()
	metrics.ObserveResponse(status)
	log.Info("request handled", logger.Status(status), logger.Duration(time.Since(start)))
	return resp
}

func (h *Handler) handle(ctx context.Context, req Request, origin string) (resp *Response) {
	if req.Method == http.MethodOptions {
		return preflightResponse(origin)
	}

	defer func() {
		if rec := recover(); rec != nil {
			logger.From(ctx).Error("panic recovered", logger.Op("handle"), logger.Any("panic", rec))
			resp = errorResponse(origin, badRequest(fmt.Errorf("internal error: %v", rec)))
		}
	}()

	resp, appErr := h.authorize(ctx, req, origin)
	if appErr != nil {
		lvl := logger.From(ctx).Info
		if appErr.Status == http.StatusBadRequest {
			lvl = logger.From(ctx).Warn
		}
		lvl("request rejected", logger.Status(appErr.Status), logger.String("reason", appErr.Message))
		return errorResponse(origin, appErr)
	}
	return resp
}

func (h *Handler) authorize(ctx context.Context, req Request, origin string) (*Response, *appError) {
	if err := h.settings.EnsureDomainLoaded(ctx); err != nil {
		return nil, badRequest(err)
	}
	domain := h.settings.Domain()

	if strings.HasSuffix(req.URI, h.removePath) {
		return removalResponse(origin, domain), nil
	}

	token, appErr := bearerToken(req.Headers)
	if appErr != nil {
		return nil, appErr
	}

	if err := h.settings.EnsureAuthLoaded(ctx); err != nil {
		return nil, badRequest(err)
	}
	auth, err := h.settings.Auth()
	if err != nil {
		return nil, badRequest(err)
	}

	if err := h.verifier.Verify(ctx, token, auth.Issuer(), auth.ClientID, auth.IdentityHost()); err != nil {
		return nil, unauthorized(err)
	}

	set, err := h.signer.Sign(auth.KeyPairID, auth.PrivateKey, domain, auth.CookieLifetimeMinutes)
	if err != nil {
		return nil, badRequest(err)
	}
	logger.From(ctx).Debug("cookies signed", logger.KeyID(auth.KeyPairID))
	return cookieResponse(origin, domain, set), nil
}

// bearerToken requires exactly one authorization header of the form
// "Bearer <token>".
func bearerToken(h Headers) (string, *appError) {
	values := h["authorization"]
	if len(values) != 1 {
		return "", forbidden("Missing authorization header")
	}
	parts := strings.Split(values[0].Value, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", forbidden("Incorrect authorization header")
	}
	return parts[1], nil
}
