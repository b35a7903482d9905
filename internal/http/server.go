package http

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"wunschliste/internal/auth"
	"wunschliste/internal/imaging"
	applog "wunschliste/internal/log"
	"wunschliste/internal/metrics"
	"wunschliste/internal/middleware/ratelimit"
	"wunschliste/internal/middleware/security"
	"wunschliste/internal/middleware/trace"
	"wunschliste/internal/services"
	"wunschliste/internal/storage"
	appweb "wunschliste/web"
)

// Deps are the collaborators the handlers need.
type Deps struct {
	Wishes    *services.WishService
	Planning  *services.PlanningService
	Directory *auth.Directory
	Sessions  *auth.Sessions
	Images    *imaging.Processor
	// Ready is pinged by /readyz; nil reports ready.
	Ready   storage.Pinger
	Metrics *metrics.Metrics

	// TrustedProxies are CIDRs allowed to set forwarding headers, in
	// addition to loopback and the private ranges.
	TrustedProxies    []string
	AdventImageDir    string
	UploadMaxBytes    int64
	RequestsPerMinute int

	// Templates and Static default to the embedded web assets.
	Templates fs.FS
	Static    fs.FS
}

// Server is the web front end.
type Server struct {
	http.Server

	wishes    *services.WishService
	planning  *services.PlanningService
	dir       *auth.Directory
	sessions  *auth.Sessions
	images    *imaging.Processor
	ready     storage.Pinger
	metrics   *metrics.Metrics
	adventDir string
	maxUpload int64

	pages    map[string]*template.Template
	limiter  *ratelimit.Limiter
	detector *security.Detector
	log      *applog.Logger
	started  time.Time
}

// Page templates, each rendered inside layout.html.
var pageNames = []string{"login", "index", "edit", "expenses", "meals", "attendance", "advent"}

var templateFuncs = template.FuncMap{
	"euro":  formatEuros,
	"price": formatPrice,
	"join":  strings.Join,
	"imageURL": func(id string, n int) string {
		return fmt.Sprintf("/items/%s/images/%d", id, n)
	},
	"dayLabel": dayLabel,
}

// loadTemplates parses layout and partials once, then clones them for
// every page so each page can define its own content block.
func loadTemplates(fsys fs.FS) (map[string]*template.Template, error) {
	base, err := template.New("layout.html").Funcs(templateFuncs).
		ParseFS(fsys, "templates/layout.html", "templates/partials.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(fsys, "templates/"+name+".html"); err != nil {
			return nil, fmt.Errorf("parse page %s: %w", name, err)
		}
		pages[name] = t
	}
	return pages, nil
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(addr string, d Deps) (*Server, error) {
	if d.Templates == nil {
		d.Templates = appweb.TemplatesFS
	}
	if d.Static == nil {
		sub, err := fs.Sub(appweb.StaticFS, "static")
		if err != nil {
			return nil, fmt.Errorf("mount static assets: %w", err)
		}
		d.Static = sub
	}
	if d.UploadMaxBytes <= 0 {
		d.UploadMaxBytes = 20 << 20
	}

	pages, err := loadTemplates(d.Templates)
	if err != nil {
		return nil, err
	}
	detector, err := security.NewDetector(d.TrustedProxies...)
	if err != nil {
		return nil, err
	}

	s := &Server{
		wishes:    d.Wishes,
		planning:  d.Planning,
		dir:       d.Directory,
		sessions:  d.Sessions,
		images:    d.Images,
		ready:     d.Ready,
		metrics:   d.Metrics,
		adventDir: d.AdventImageDir,
		maxUpload: d.UploadMaxBytes,
		pages:     pages,
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: d.RequestsPerMinute}),
		detector:  detector,
		log:       applog.New(applog.Config{Component: applog.ComponentHTTP, Handler: slog.Default().Handler()}),
		started:   time.Now(),
	}

	mux := http.NewServeMux()
	s.routes(mux, d.Static)

	var h http.Handler = mux
	h = auth.Middleware(s.sessions, s.dir)(h)
	h = s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited, http.MethodPost)(h)
	h = s.flagSuspicious(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = applog.Middleware(s.log, trace.GetRequestID)(h)
	h = trace.NewMiddleware(s.detector.ExtractClientIP, s.log, s.metrics).Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux, static fs.FS) {
	mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(
		http.StripPrefix("/static/", http.FileServerFS(static))))

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", s.metrics.Handler())

	mux.HandleFunc("GET /login", s.handleLoginForm)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /logout", s.handleLogout)

	protected := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, auth.RequireUser(h))
	}

	protected("GET /{$}", s.handleDashboard)

	protected("POST /wishes", s.handleCreateWish)
	protected("GET /wishes/{id}/edit", s.handleEditItem)
	protected("POST /wishes/{id}", s.handleUpdateWish)
	protected("POST /wishes/{id}/delete", s.handleDeleteWish)

	protected("POST /suggestions", s.handleCreateSuggestion)
	protected("POST /suggestions/{id}", s.handleUpdateSuggestion)
	protected("POST /suggestions/{id}/delete", s.handleDeleteSuggestion)

	protected("POST /items/{id}/claim", s.handleClaim)
	protected("POST /items/{id}/unclaim", s.handleUnclaim)
	protected("POST /items/{id}/purchase", s.handlePurchase)
	protected("POST /items/{id}/unpurchase", s.handleUnpurchase)
	protected("POST /items/{id}/reimburse", s.handleReimburse)
	protected("GET /items/{id}/images/{n}", s.handleItemImage)

	protected("GET /expenses", s.handleExpenses)

	protected("GET /meals", s.handleMeals)
	protected("POST /meals", s.handleAddDish)
	protected("POST /meals/{id}/vote", s.handleVote)
	protected("POST /meals/{id}/unvote", s.handleUnvote)
	protected("POST /meals/{id}/delete", s.handleDeleteDish)
	protected("POST /meals/assign", s.handleAssign)
	protected("POST /meals/unassign", s.handleUnassign)

	protected("GET /attendance", s.handleAttendance)
	protected("POST /attendance", s.handleSubmitAttendance)

	protected("GET /advent", s.handleAdvent)
	protected("POST /advent/{door}/open", s.handleOpenDoor)
	protected("POST /advent/{door}/comments", s.handleAddComment)
	protected("GET /advent/{door}/image", s.handleDoorImage)
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.Server.Shutdown(ctx)
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.metrics.RateLimited()
	s.log.WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldPath, r.URL.Path)
	TooManyRequestsError().Write(w)
}

// flagSuspicious logs requests that look like probes. They are still
// served; the router answers most of them with 404 anyway.
func (s *Server) flagSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			slog.WarnContext(r.Context(), "Suspicious request",
				applog.FieldComponent, applog.ComponentSecurity,
				applog.FieldClientIP, s.detector.ExtractClientIP(r),
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path,
				applog.FieldUserAgent, r.Header.Get("User-Agent"))
		}
		next.ServeHTTP(w, r)
	})
}

// pageData is what layout.html expects.
type pageData struct {
	Title   string
	Nav     string
	User    string
	IsAdmin bool
	Error   string
	View    any
}

func (s *Server) page(r *http.Request, title, nav string, view any) pageData {
	user := currentUser(r)
	return pageData{
		Title:   title,
		Nav:     nav,
		User:    user,
		IsAdmin: user != "" && s.dir.IsAdmin(user),
		View:    view,
	}
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data pageData) {
	s.renderStatus(w, r, name, http.StatusOK, data)
}

// renderStatus executes into a buffer first so a template error never
// leaves a half written page behind.
func (s *Server) renderStatus(w http.ResponseWriter, r *http.Request, name string, status int, data pageData) {
	t, ok := s.pages[name]
	if !ok {
		s.log.ErrorContext(r.Context(), "Unknown page template", "template", name)
		InternalServerError("Seite nicht gefunden").Write(w)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		s.log.ErrorContext(r.Context(), "Template execution failed",
			applog.FieldOperation, applog.OpRender, "template", name, applog.FieldError, err)
		InternalServerError("Seite konnte nicht angezeigt werden").Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// done finishes a successful POST: htmx gets HX-Redirect plus any
// triggers, plain forms a 303.
func (s *Server) done(w http.ResponseWriter, r *http.Request, target string, b *HTMXResponseBuilder) {
	if isHTMX(r) {
		if b == nil {
			b = NewHTMXResponse()
		}
		b.Redirect(target).Write(w)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// fail answers a failed POST. Validation problems become a 422 fragment,
// everything else is logged and hidden behind a 500.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if msg, ok := userMessage(err); ok {
		UnprocessableEntityError(msg).Write(w)
		return
	}
	if isMalformed(err) {
		BadRequestError("Ungültige Anfrage").Write(w)
		return
	}
	applog.NewStructuredLogger(applog.FromContext(r.Context())).LogError(r.Context(), "Request failed", err,
		r.Pattern,
		applog.NewFields().WithUser(currentUser(r)))
	InternalServerError("Interner Fehler, bitte später erneut versuchen").Write(w)
}

func currentUser(r *http.Request) string {
	u, _ := auth.UserFrom(r.Context())
	return u
}

// others lists every user except the current one.
func (s *Server) others(user string) []string {
	var out []string
	for _, u := range s.dir.Users() {
		if u != user {
			out = append(out, u)
		}
	}
	return out
}

// dayLabel renders an ISO date as "Mi., 24.12.".
func dayLabel(date string) string {
	t, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return date
	}
	return weekdays[t.Weekday()] + ", " + t.Format("02.01.")
}

var weekdays = [...]string{"So.", "Mo.", "Di.", "Mi.", "Do.", "Fr.", "Sa."}
