package authorizer

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dropDatabas3/edgegate/internal/observability/logger"
)

// NewRouter serves the authorizer over plain HTTP for local use. Every path
// except /metrics and /healthz is treated as a viewer request.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Heartbeat("/healthz"))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)

	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/*", h.ServeHTTP)
	return r
}

// ServeHTTP adapts an HTTP request to a viewer request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := h.Handle(r.Context(), FromHTTPRequest(r))
	WriteHTTP(w, resp)
}

// FromHTTPRequest converts r into the viewer request shape.
func FromHTTPRequest(r *http.Request) Request {
	hdrs := Headers{}
	for k, vs := range r.Header {
		for _, v := range vs {
			hdrs.Add(k, v)
		}
	}
	return Request{
		ClientIP:    r.RemoteAddr,
		Method:      r.Method,
		URI:         r.URL.Path,
		QueryString: r.URL.RawQuery,
		Headers:     hdrs,
	}
}

// WriteHTTP writes resp to w.
func WriteHTTP(w http.ResponseWriter, resp *Response) {
	for _, vs := range resp.Headers {
		for _, v := range vs {
			w.Header().Add(v.Key, v.Value)
		}
	}
	if resp.Body != "" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	status := resp.StatusCode()
	if status == 0 {
		status = http.StatusInternalServerError
	}
	w.WriteHeader(status)
	if resp.Body != "" {
		_, _ = w.Write([]byte(resp.Body))
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		log := logger.From(r.Context()).With(
			logger.RequestID(middleware.GetReqID(r.Context())),
			logger.String("remote", r.RemoteAddr),
		)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			if strings.HasPrefix(r.URL.Path, "/metrics") {
				return
			}
			log.Debug("http request served",
				logger.Method(r.Method),
				logger.URI(r.URL.Path),
				logger.Status(ww.Status()),
				logger.Duration(time.Since(startedAt)),
			)
		}()

		next.ServeHTTP(ww, r.WithContext(logger.ToContext(r.Context(), log)))
	})
}
