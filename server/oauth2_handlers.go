package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jrsteele09/go-authz-server/auth"
	"github.com/jrsteele09/go-authz-server/oauthmodel"
	"github.com/rs/zerolog/log"
)

const (
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeJSON = "application/json; charset=utf-8"

	maxFormBytes = 64 << 10
)

// ErrorPageData is handed to the error view.
type ErrorPageData struct {
	Code   oauthmodel.ErrorCode
	Reason string
}

// AuthorizeHandler starts or resumes the flow (GET /oauth2/authz)
func (s *Server) AuthorizeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rs := sessionFromContext(r.Context())
		props := oauthmodel.PropertiesFromValues(r.URL.Query())
		outcome, err := s.auth.Authorize(r.Context(), props, rs.session)
		s.respond(w, r, rs, outcome, err)
	}
}

// ConsentHandler records the resource owner's decision (POST /oauth2/authz)
func (s *Server) ConsentHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rs := sessionFromContext(r.Context())
		if !parseForm(w, r) {
			s.renderHardError(w, oauthmodel.Hard("invalid form body"))
			return
		}
		props := oauthmodel.PropertiesFromValues(r.PostForm)
		denied := r.PostForm.Get("denied") != ""
		outcome, err := s.auth.Consent(r.Context(), props, denied, rs.session)
		s.respond(w, r, rs, outcome, err)
	}
}

// AuthenticatePageHandler shows the login form (GET /oauth2/authc)
func (s *Server) AuthenticatePageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rs := sessionFromContext(r.Context())
		props := oauthmodel.PropertiesFromValues(r.URL.Query())
		outcome, err := s.auth.AuthenticatePage(r.Context(), props, rs.session)
		s.respond(w, r, rs, outcome, err)
	}
}

// AuthenticateHandler checks the submitted credentials (POST /oauth2/authc)
func (s *Server) AuthenticateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rs := sessionFromContext(r.Context())
		if !parseForm(w, r) {
			s.renderHardError(w, oauthmodel.Hard("invalid form body"))
			return
		}
		props := oauthmodel.PropertiesFromValues(r.PostForm)
		nickname := r.PostForm.Get("nickname")
		password := r.PostForm.Get("password")
		outcome, err := s.auth.Authenticate(r.Context(), props, nickname, password, rs.session)
		s.respond(w, r, rs, outcome, err)
	}
}

// TokenHandler exchanges grants for bearer tokens (POST /oauth2/token)
func (s *Server) TokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !parseForm(w, r) {
			writeTokenError(w, oauthmodel.Hard("invalid form body"), http.StatusBadRequest)
			return
		}
		resp, err := s.auth.Token(r.Context(), oauthmodel.TokenRequestFromValues(r.PostForm))
		if err != nil {
			hard, _ := oauthmodel.Classify(err)
			writeTokenError(w, hard, tokenErrorStatus(hard.Code))
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		writeJSON(w, http.StatusOK, resp)
	}
}

// MetadataHandler serves the authorization server metadata document (RFC 8414)
func (s *Server) MetadataHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		baseURL := s.config.GetBaseURL()
		resp := map[string]any{
			"issuer":                 baseURL,
			"authorization_endpoint": baseURL + RouteOAuth2Authorize,
			"token_endpoint":         baseURL + RouteOAuth2Token,

			"response_types_supported": []oauthmodel.ResponseType{oauthmodel.CodeResponseType},
			"response_modes_supported": []string{"query"},
			"grant_types_supported": []oauthmodel.GrantType{
				oauthmodel.AuthorizationCodeGrant,
				oauthmodel.ClientCredentialsGrant,
			},
			"scopes_supported": s.auth.Scopes(),

			// Credentials in POST body only
			"token_endpoint_auth_methods_supported": []string{"client_secret_post"},
		}
		w.Header().Set("Cache-Control", "public, max-age=3600") // Cache for 1 hour
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := s.health.Ping(ctx); err != nil {
				log.Err(err).Msg("Health check failed")
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// respond writes the result of a browser endpoint. Hard errors get the error
// page; redirect errors already arrive as redirect outcomes.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, rs *requestSession, outcome *auth.Outcome, err error) {
	s.syncSessionCookie(w, rs)
	if err != nil {
		hard, _ := oauthmodel.Classify(err)
		if hard.Code == oauthmodel.ErrCodeServerError {
			log.Err(err).Str("path", r.URL.Path).Msg("Authorization flow failed")
		} else {
			log.Info().Str("path", r.URL.Path).Str("reason", hard.Reason).Msg("Authorization flow rejected")
		}
		s.renderHardError(w, hard)
		return
	}

	switch outcome.Kind {
	case auth.OutcomeRedirect:
		http.Redirect(w, r, outcome.Location, outcome.Status)
	case auth.OutcomeRender:
		s.render(w, http.StatusOK, outcome.View, outcome.Data)
	}
}

func (s *Server) renderHardError(w http.ResponseWriter, hard *oauthmodel.HardError) {
	status := http.StatusBadRequest
	if hard.Code == oauthmodel.ErrCodeServerError {
		status = http.StatusInternalServerError
	}
	s.render(w, status, ErrorView, ErrorPageData{Code: hard.Code, Reason: hard.Reason})
}

func (s *Server) render(w http.ResponseWriter, status int, view string, data any) {
	var buf bytes.Buffer
	if err := s.renderer.Render(&buf, view, data); err != nil {
		log.Err(err).Str("view", view).Msg("Failed to render view")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func parseForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	return r.ParseForm() == nil
}

func tokenErrorStatus(code oauthmodel.ErrorCode) int {
	switch code {
	case oauthmodel.ErrCodeInvalidClient:
		return http.StatusUnauthorized
	case oauthmodel.ErrCodeServerError:
		return http.StatusInternalServerError
	case oauthmodel.ErrCodeSlowDown:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadRequest
	}
}

func writeTokenError(w http.ResponseWriter, hard *oauthmodel.HardError, status int) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	writeJSON(w, status, oauthmodel.ErrorResponse{Error: hard.Code, ErrorDescription: hard.Reason})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("Failed to write JSON response")
	}
}
