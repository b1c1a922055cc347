// Package web implements the job board http server: listing and detail pages,
// admin login with the posting form, health check and read-only JSON API
package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/didip/tollbooth/v8"
	"github.com/didip/tollbooth/v8/limiter"
	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"
	"github.com/robfig/cron/v3"

	"github.com/umputun/jobboard/app/web/enums"
	"github.com/umputun/jobboard/app/web/persistence"
	"github.com/umputun/jobboard/app/web/request"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

// pages rendered inside base.html
var pages = []string{"index", "detail", "login", "post_job"}

// Store defines storage operations used by the server
type Store interface {
	List(ctx context.Context, f persistence.Filter) ([]persistence.Posting, error)
	Get(ctx context.Context, id int64) (persistence.Posting, error)
	Create(ctx context.Context, p persistence.Posting) (persistence.Posting, error)
}

// Notifier is informed about newly created postings
type Notifier interface {
	PostingCreated(ctx context.Context, p persistence.Posting) error
}

// Server represents the web server
type Server struct {
	store          Store
	auth           *Authenticator
	sessions       *sessionStore
	sweeper        *cron.Cron
	notifier       Notifier
	notifyTimeout  time.Duration
	templates      map[string]*template.Template
	baseURL        string // base URL path for reverse proxy (e.g., /jobs), empty for root
	version        string
	loginRateLimit float64
	csrfProtection *http.CrossOriginProtection
}

// Config holds server configuration
type Config struct {
	Store          Store
	BaseURL        string // base URL path for reverse proxy (e.g., /jobs), empty for root
	Version        string
	AdminUser      string        // admin login, defaults to "admin"
	PasswordHash   string        // bcrypt hash of admin password, empty disables login
	SessionSecret  string        // key for session cookie signature, random if empty
	LoginTTL       time.Duration // session TTL, defaults to 24h if not set
	LoginRateLimit float64       // login attempts per second per client ip, 0 disables the limit
	SessionSweep   string        // cron spec for expired sessions cleanup, defaults to "@every 10m"
	Notifier       Notifier      // optional, called after a posting is created
	NotifyTimeout  time.Duration // notifier call limit, defaults to 30s
}

// TemplateData holds data for templates
type TemplateData struct {
	Postings    []persistence.Posting
	Posting     persistence.Posting
	JobTypes    []enums.JobType
	Query       string // echoed search query
	Type        string // echoed job type filter
	Form        request.NewPosting
	Username    string
	Error       string // inline error notice
	Flash       flash
	IsAdmin     bool
	BaseURL     string
	Version     string
	CurrentYear int
}

// New creates a new web server
func New(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("web server initialization failed: store is required")
	}

	loginTTL := cfg.LoginTTL
	if loginTTL == 0 {
		loginTTL = 24 * time.Hour
	}
	sweepSpec := cfg.SessionSweep
	if sweepSpec == "" {
		sweepSpec = "@every 10m"
	}
	notifyTimeout := cfg.NotifyTimeout
	if notifyTimeout == 0 {
		notifyTimeout = 30 * time.Second
	}

	sessions, err := newSessionStore(cfg.SessionSecret, loginTTL)
	if err != nil {
		return nil, fmt.Errorf("web server initialization failed: %w", err)
	}

	s := &Server{
		store:          cfg.Store,
		auth:           NewAuthenticator(cfg.AdminUser, cfg.PasswordHash),
		sessions:       sessions,
		sweeper:        cron.New(),
		notifier:       cfg.Notifier,
		notifyTimeout:  notifyTimeout,
		baseURL:        cfg.BaseURL,
		version:        cfg.Version,
		loginRateLimit: cfg.LoginRateLimit,
		csrfProtection: http.NewCrossOriginProtection(),
	}

	if _, err := s.sweeper.AddFunc(sweepSpec, s.sweepSessions); err != nil {
		return nil, fmt.Errorf("web server initialization failed: invalid session sweep spec %q: %w", sweepSpec, err)
	}

	templates, err := s.parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("web server initialization failed: failed to parse HTML templates: %w", err)
	}
	s.templates = templates

	if !s.auth.Enabled() {
		log.Printf("[WARN] admin password hash not set, posting form is not accessible")
	}
	return s, nil
}

// Run starts the web server and blocks until ctx is canceled
func (s *Server) Run(ctx context.Context, address string) error {
	s.sweeper.Start()
	defer s.sweeper.Stop()

	server := &http.Server{
		Addr:              address,
		Handler:           s.handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] failed to shutdown server: %v", err)
		}
	}()

	log.Printf("[INFO] starting web server on %s", address)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web server failed: %w", err)
	}
	return nil
}

// handler returns the http.Handler with base URL wrapping applied
func (s *Server) handler() http.Handler {
	routes := s.routes()
	if s.baseURL == "" {
		return routes
	}

	mux := http.NewServeMux()
	// base URL without trailing slash redirects to the one with slash
	mux.HandleFunc(s.baseURL, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, s.baseURL+"/", http.StatusMovedPermanently)
	})
	mux.Handle(s.baseURL+"/", http.StripPrefix(s.baseURL, routes))
	return mux
}

// routes returns the http.Handler with all routes configured
func (s *Server) routes() http.Handler {
	router := routegroup.New(http.NewServeMux())

	router.Use(
		rest.RealIP,
		rest.Recoverer(log.Default()),
		rest.Throttle(1000),
		rest.AppInfo("jobboard", "umputun", s.version),
		rest.Ping,
		rest.Trace,
		rest.SizeLimit(64*1024), // 64KB max request size
		logger.New(logger.Log(log.Default()), logger.Prefix("[DEBUG]")).Handler,
	)

	// public pages
	router.HandleFunc("GET /{$}", s.handleIndex)
	router.HandleFunc("GET /job/{id}", s.handleJobDetail)
	router.HandleFunc("GET /health", s.handleHealth)

	// login/logout
	router.HandleFunc("GET /login", s.handleLoginForm)
	router.With(s.loginMiddlewares()...).HandleFunc("POST /login", s.handleLogin)
	router.HandleFunc("GET /logout", s.handleLogout)

	// admin pages, guarded by session
	router.Mount("/admin").Route(func(admin *routegroup.Bundle) {
		admin.Use(s.csrfProtection.Handler, s.requireAdmin)
		admin.HandleFunc("GET /post", s.handlePostForm)
		admin.HandleFunc("POST /post", s.handleCreatePosting)
	})

	// JSON API
	router.Mount("/api/v1").Route(func(api *routegroup.Bundle) {
		api.Use(rest.NoCache)
		api.HandleFunc("GET /jobs", s.handleAPIJobs)
		api.HandleFunc("GET /jobs/{id}", s.handleAPIJob)
	})

	fsys, err := fs.Sub(staticFS, "static")
	if err != nil {
		log.Printf("[ERROR] failed to create static file system: %v", err)
		router.Handle("GET /static/", http.FileServer(http.FS(staticFS)))
	} else {
		router.HandleFiles("/static/", http.FS(fsys))
	}

	return router
}

// loginMiddlewares returns csrf protection and, if enabled, per-ip rate limiter for login submissions
func (s *Server) loginMiddlewares() []func(http.Handler) http.Handler {
	res := []func(http.Handler) http.Handler{s.csrfProtection.Handler}
	if s.loginRateLimit <= 0 {
		return res
	}
	lmt := tollbooth.NewLimiter(s.loginRateLimit, &limiter.ExpirableOptions{DefaultExpirationTTL: time.Hour})
	lmt.SetIPLookup(limiter.IPLookup{Name: "RemoteAddr"})
	lmt.SetMessage("Too many login attempts, try again later.")
	return append(res, tollbooth.HTTPMiddleware(lmt))
}

// newTemplateData creates TemplateData with common fields populated from request.
// Pending flash notice is consumed, so it must be called before anything is written to w.
func (s *Server) newTemplateData(w http.ResponseWriter, r *http.Request) TemplateData {
	_, isAdmin := s.sessions.lookup(r)
	return TemplateData{
		JobTypes:    enums.JobTypeValues,
		Flash:       s.popFlash(w, r),
		IsAdmin:     isAdmin,
		BaseURL:     s.baseURL,
		Version:     shortVersion(s.version),
		CurrentYear: time.Now().Year(),
	}
}

// render executes page template into a buffer and writes it with the given status
func (s *Server) render(w http.ResponseWriter, status int, page string, data TemplateData) {
	tmpl, ok := s.templates[page]
	if !ok {
		log.Printf("[WARN] template %s not found", page)
		http.Error(w, "Template not found", http.StatusInternalServerError)
		return
	}

	buf := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(buf, "base", data); err != nil {
		log.Printf("[WARN] failed to execute template %s: %v", page, err)
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("[WARN] failed to write response: %v", err)
	}
}

// parseTemplates parses every page together with the base layout
func (s *Server) parseTemplates() (map[string]*template.Template, error) {
	templates := make(map[string]*template.Template, len(pages))

	funcMap := template.FuncMap{
		"url":       s.url,
		"humanDate": humanDate,
		"truncate":  truncate,
	}

	for _, page := range pages {
		tmpl, err := template.New("base.html").Funcs(funcMap).ParseFS(templatesFS,
			"templates/base.html", "templates/"+page+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", page, err)
		}
		templates[page] = tmpl
	}
	return templates, nil
}

// sweepSessions is called by cron to drop expired sessions
func (s *Server) sweepSessions() {
	if n := s.sessions.sweep(time.Now()); n > 0 {
		log.Printf("[DEBUG] removed %d expired sessions", n)
	}
}

// template helper functions

func humanDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("January 2, 2006")
}

func truncate(str string, n int) string {
	if utf8.RuneCountInString(str) <= n {
		return str
	}
	return string([]rune(str)[:n]) + "..."
}

// url prepends the base URL to a path for reverse proxy support
func (s *Server) url(path string) string {
	return s.baseURL + path
}

// cookiePath returns the cookie path with base URL support
func (s *Server) cookiePath() string {
	if s.baseURL == "" {
		return "/"
	}
	return s.baseURL + "/"
}

// redirect sends 303 to a path relative to base URL
func (s *Server) redirect(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, s.url(path), http.StatusSeeOther)
}

// isSecure reports whether the request came over https, directly or through a proxy
func isSecure(r *http.Request) bool {
	return r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
}

// shortVersion extracts a short version string from full version
// for version like "v1.7.0-abc1234-20241225", returns "v1.7.0"
func shortVersion(fullVer string) string {
	if fullVer == "" || fullVer == "unknown" {
		return fullVer
	}
	if idx := strings.Index(fullVer, "-"); idx > 0 {
		return fullVer[:idx]
	}
	return fullVer
}
