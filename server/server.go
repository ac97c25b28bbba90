package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/go-authz-server/auth"
	"github.com/jrsteele09/go-authz-server/clients"
	"github.com/jrsteele09/go-authz-server/internal/config"
	"github.com/jrsteele09/go-authz-server/internal/metrics"
	"github.com/jrsteele09/go-authz-server/sessions"
	"github.com/jrsteele09/go-authz-server/token"
	"github.com/jrsteele09/go-authz-server/users"
	"github.com/rs/zerolog/log"
)

// Repos holds the storage the HTTP server is built on.
type Repos struct {
	Clients  clients.Repo
	Users    users.UserRepo
	Codes    token.CodeRepo
	Tokens   token.BearerRepo
	Sessions sessions.Repo
}

// Pinger is implemented by stores that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	env           string // Environment (e.g., "DEV", "PROD")
	router        chi.Router
	routes        []string
	config        config.Config
	auth          *auth.AuthorizationService
	repos         Repos
	renderer      Renderer
	metrics       *metrics.Metrics
	limiter       *RateLimiter
	health        Pinger
	sessionTTL    time.Duration
	secureCookies bool
	authOptions   []auth.AuthorizationServiceOption
	nowTime       func() time.Time
}

type Option func(*Server)

// WithRenderer replaces the embedded HTML templates.
func WithRenderer(r Renderer) Option {
	return func(s *Server) {
		s.renderer = r
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithHealthCheck makes /healthz report the store's health.
func WithHealthCheck(p Pinger) Option {
	return func(s *Server) {
		s.health = p
	}
}

// WithAuthOptions passes extra options to the authorization service.
func WithAuthOptions(opts ...auth.AuthorizationServiceOption) Option {
	return func(s *Server) {
		s.authOptions = append(s.authOptions, opts...)
	}
}

func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Server) {
		s.nowTime = nowFunc
	}
}

func New(cfg config.Config, repos Repos, opts ...Option) (*Server, error) {
	if repos.Users == nil {
		return nil, fmt.Errorf("[Server New] Users repo is required")
	}

	s := &Server{
		env:           cfg.GetEnv(),
		config:        cfg,
		repos:         repos,
		sessionTTL:    cfg.GetMaxSessionAge(),
		secureCookies: cfg.GetSecureCookies(),
		nowTime:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.renderer == nil {
		renderer, err := NewTemplateRenderer()
		if err != nil {
			return nil, fmt.Errorf("[Server New] failed to parse templates: %w", err)
		}
		s.renderer = renderer
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if cfg.GetEnableRateLimiting() {
		rps, burst := cfg.GetRateLimit()
		s.limiter = NewRateLimiter(rps, burst)
	}

	authOptions := append([]auth.AuthorizationServiceOption{
		auth.WithScopes(cfg.GetScopes()),
		auth.WithCodeTTL(cfg.GetAuthCodeTimeout()),
		auth.WithMaxBounces(cfg.GetMaxBounces()),
		auth.WithRecorder(s.metrics),
		auth.WithLogger(log.Logger),
		auth.WithRoutes(RouteOAuth2Authorize, RouteOAuth2Authenticate),
		auth.WithNowTime(s.now),
	}, s.authOptions...)

	authService, err := auth.NewAuthorizationService(auth.Repos{
		Clients:     repos.Clients,
		Codes:       repos.Codes,
		Tokens:      repos.Tokens,
		Sessions:    repos.Sessions,
		Credentials: users.NewPasswordChecker(repos.Users),
	}, authOptions...)
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to create authorization service: %w", err)
	}
	s.auth = authService

	if err := s.InitialiseSystem(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("[Server New] Failed to initialise the system: %w", err)
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops background work owned by the server.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}

func (s *Server) RegisterRouteHandler(method, pattern string, handler http.Handler) {
	s.routes = append(s.routes, method+" "+pattern)
	s.router.Method(method, pattern, handler)
}

func (s *Server) RegisterRouteFunc(method, pattern string, handler http.HandlerFunc) {
	s.RegisterRouteHandler(method, pattern, handler)
}

func (s *Server) now() time.Time {
	return s.nowTime()
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		logRoute(parts[0], parts[1])
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Info().Msgf("[%-19s] %s", displayMethod, path)
}
