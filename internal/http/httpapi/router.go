// Package httpapi assembles the public HTTP surface.
package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"studio/internal/http/handlers"
	"studio/internal/infra"
	"studio/internal/middleware"
)

type Options struct {
	AllowedOrigins  []string
	RateLimitPerMin int
	CountryLookup   middleware.CountryLookup
	DefaultLocale   string
	// StaticDir, when set, is served under /static so file-backed artifacts
	// resolve.
	StaticDir string
	Logger    *infra.Logger
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	logger := infra.OrDiscard(opts.Logger)
	locale := opts.DefaultLocale
	if locale == "" {
		locale = "en"
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(*logger),
		middleware.CORS(opts.AllowedOrigins),
		middleware.I18N(locale, opts.CountryLookup),
	)

	r.Get("/healthz", app.Health)
	r.With(middleware.RateLimit(opts.RateLimitPerMin, time.Minute)).Post("/generate", app.Generate)
	r.Get("/status/{orderID}", app.OrderStatus)
	r.Post("/admin/mark-completed/{orderID}", app.MarkCompleted)

	if dir := strings.TrimSpace(opts.StaticDir); dir != "" {
		fs := http.StripPrefix("/static/", http.FileServer(http.Dir(dir)))
		r.Handle("/static/*", fs)
	}
	return r
}
