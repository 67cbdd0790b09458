package web

import (
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/csrf"
	"github.com/rs/cors"
	"github.com/samber/lo"

	"github.com/mpapenbr/portion-tracker-go/log"
)

const requestIDHeader = "X-Request-Id"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// logRequests attaches a request scoped logger to the context and logs each
// request once it is done.
func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		l := h.log.With(log.String("requestId", id))
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(log.AddToContext(r.Context(), l)))
		l.Debug("request",
			log.String("method", r.Method),
			log.String("path", r.URL.Path),
			log.Int("status", rec.status),
			log.Duration("took", time.Since(start)))
	})
}

// markPlaintext tells the csrf middleware about requests not served via TLS so
// that it skips the https referer checks.
func markPlaintext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.TLS == nil {
			r = csrf.PlaintextHTTPRequest(r)
		}
		next.ServeHTTP(w, r)
	})
}

// originAllowed accepts the serving host itself and the configured API origins.
func (h *Handler) originAllowed(r *http.Request, origin string) bool {
	if u, err := url.Parse(origin); err == nil && u.Host != "" && u.Host == r.Host {
		return true
	}
	return lo.Contains(h.apiOrigins, "*") || lo.Contains(h.apiOrigins, origin)
}

// guardAPI rejects state changing API calls from foreign origins and bodies
// that are not JSON. The latter forces browsers to send a preflight.
func (h *Handler) guardAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}
		if origin := r.Header.Get("Origin"); origin != "" && !h.originAllowed(r, origin) {
			log.GetFromContext(r.Context()).Warn("api call from foreign origin rejected",
				log.String("origin", origin), log.String("path", r.URL.Path))
			jsonError(w, "origin not allowed", http.StatusForbidden)
			return
		}
		if r.Method != http.MethodDelete && !isJSON(r.Header.Get("Content-Type")) {
			jsonError(w, "content type must be application/json",
				http.StatusUnsupportedMediaType)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/json"
}

func newCORS(allowed func(r *http.Request, origin string) bool) *cors.Cors {
	return cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
		},
		AllowOriginVaryRequestFunc: func(r *http.Request, origin string) (bool, []string) {
			return allowed(r, origin), nil
		},
		AllowedHeaders: []string{"Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         7200,
	})
}
