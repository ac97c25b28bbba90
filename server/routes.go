package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (s *Server) initRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.LoggingMiddleware)
	r.Use(middleware.Recoverer)
	s.router = r

	// Browser flow
	s.RegisterRouteFunc(http.MethodGet, RouteOAuth2Authorize, ChainMiddleware(s.AuthorizeHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteFunc(http.MethodPost, RouteOAuth2Authorize, ChainMiddleware(s.ConsentHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteFunc(http.MethodGet, RouteOAuth2Authenticate, ChainMiddleware(s.AuthenticatePageHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteFunc(http.MethodPost, RouteOAuth2Authenticate, ChainMiddleware(s.AuthenticateHandler(), s.HTMLMiddleware()...))

	// API routes
	s.RegisterRouteFunc(http.MethodPost, RouteOAuth2Token, ChainMiddleware(s.TokenHandler(), s.APIMiddleware(s.RateLimitMiddleware)...))
	s.RegisterRouteFunc(http.MethodGet, RouteWellKnownAS, ChainMiddleware(s.MetadataHandler(), s.APIMiddleware()...))

	s.RegisterRouteFunc(http.MethodGet, RouteHealth, s.HealthHandler())
	s.RegisterRouteHandler(http.MethodGet, RouteMetrics, s.metrics.Handler())
}
