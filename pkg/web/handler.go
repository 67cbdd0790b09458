// Package web serves the tracker form and its JSON API.
package web

import (
	"crypto/rand"
	"html/template"
	"net/http"

	"github.com/gorilla/csrf"

	"github.com/mpapenbr/portion-tracker-go/log"
	"github.com/mpapenbr/portion-tracker-go/pkg/race"
	"github.com/mpapenbr/portion-tracker-go/pkg/tracker"
)

const csrfFieldName = "csrf_token"

type Option func(*Handler)

func WithService(svc *tracker.Service) Option {
	return func(h *Handler) {
		h.svc = svc
	}
}

func WithRaces(races *race.Tracker) Option {
	return func(h *Handler) {
		h.races = races
	}
}

func WithLogger(l *log.Logger) Option {
	return func(h *Handler) {
		h.log = l
	}
}

// WithCSRFKey sets the 32 byte key used to sign csrf tokens.
// A random key is used if none is given.
func WithCSRFKey(key []byte) Option {
	return func(h *Handler) {
		h.csrfKey = key
	}
}

// WithAPIOrigins lists the browser origins besides the serving host that may
// call the JSON API. "*" allows any origin.
func WithAPIOrigins(origins []string) Option {
	return func(h *Handler) {
		h.apiOrigins = origins
	}
}

// WithSecureCookies marks the csrf cookie as https only.
func WithSecureCookies(arg bool) Option {
	return func(h *Handler) {
		h.secure = arg
	}
}

// Handler holds everything the http handlers need.
type Handler struct {
	svc        *tracker.Service
	races      *race.Tracker
	tmpl       *template.Template
	log        *log.Logger
	csrfKey    []byte
	secure     bool
	apiOrigins []string
}

func NewHandler(opts ...Option) (*Handler, error) {
	ret := &Handler{
		log: log.Default().Named("web"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.svc == nil {
		ret.svc = tracker.NewService()
	}
	if ret.races == nil {
		ret.races = race.NewTracker()
	}
	if len(ret.csrfKey) == 0 {
		ret.csrfKey = make([]byte, 32)
		if _, err := rand.Read(ret.csrfKey); err != nil {
			return nil, err
		}
	}
	var err error
	if ret.tmpl, err = loadTemplates(); err != nil {
		return nil, err
	}
	return ret, nil
}

// Routes returns the root handler for the server.
func (h *Handler) Routes() http.Handler {
	pages := http.NewServeMux()
	pages.HandleFunc("GET /{$}", h.HandleIndex)
	pages.HandleFunc("POST /races", h.HandleAddRace)
	pages.HandleFunc("POST /races/delete", h.HandleRemoveRace)
	pages.HandleFunc("POST /tracker", h.HandleTracker)
	pages.HandleFunc("POST /records", h.HandleSaveRecord)
	pages.HandleFunc("POST /records/delete", h.HandleDeleteRecord)
	pages.HandleFunc("GET /records/download", h.HandleDownload)

	api := http.NewServeMux()
	api.HandleFunc("GET /api/races", h.HandleAPIListRaces)
	api.HandleFunc("POST /api/races", h.HandleAPIAddRace)
	api.HandleFunc("DELETE /api/races/{name}", h.HandleAPIRemoveRace)
	api.HandleFunc("GET /api/day-types", h.HandleAPIDayTypes)
	api.HandleFunc("POST /api/compliance", h.HandleAPICompliance)
	api.HandleFunc("GET /api/records", h.HandleAPIListRecords)
	api.HandleFunc("POST /api/records", h.HandleAPISaveRecord)
	api.HandleFunc("DELETE /api/records/today", h.HandleAPIDeleteToday)

	protect := csrf.Protect(h.csrfKey,
		csrf.Secure(h.secure),
		csrf.Path("/"),
		csrf.FieldName(csrfFieldName),
		csrf.ErrorHandler(http.HandlerFunc(h.csrfFailed)),
	)

	root := http.NewServeMux()
	root.Handle("/api/", newCORS(h.originAllowed).Handler(h.guardAPI(api)))
	root.Handle("/", markPlaintext(protect(pages)))
	return h.logRequests(root)
}

func (h *Handler) csrfFailed(w http.ResponseWriter, r *http.Request) {
	log.GetFromContext(r.Context()).Warn("csrf check failed",
		log.ErrorField(csrf.FailureReason(r)))
	http.Error(w, "Forbidden - CSRF token invalid", http.StatusForbidden)
}
