// Package server exposes the authgate engine over HTTP for the portal
// frontend and for fronting proxies doing forward authentication.
package server

import (
	"context"
	"log"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	authgate "github.com/authgate/authgate"
	"github.com/authgate/authgate/internal"
	"github.com/authgate/authgate/metrics/export/prometheus"
)

// SessionCookieName is the browser cookie carrying the session identifier.
const SessionCookieName = "authgate_session"

type sessionIDContextKey struct{}

// Server wires the engine's operations to their HTTP routes.
type Server struct {
	engine *authgate.Engine
	logger *log.Logger

	// CookieSecure controls the Secure attribute of the session cookie.
	// Disable only for local development over plain HTTP.
	CookieSecure bool
}

// New creates a [Server] for the given engine. logger may be nil, in which
// case the standard logger is used.
func New(engine *authgate.Engine, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		engine:       engine,
		logger:       logger,
		CookieSecure: true,
	}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.sessionMiddleware)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/firstfactor", s.handleFirstFactor).Methods(http.MethodPost)
	api.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	api.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	api.HandleFunc("/verify", s.handleVerify).Methods(http.MethodGet)

	api.HandleFunc("/secondfactor/totp", s.handleTOTP).Methods(http.MethodPost)
	api.HandleFunc("/totp", s.handleTOTP).Methods(http.MethodPost)
	api.HandleFunc("/secondfactor/preference", s.handleGetPreference).Methods(http.MethodGet)
	api.HandleFunc("/secondfactor/preference", s.handleSetPreference).Methods(http.MethodPost)
	api.HandleFunc("/duo-push", s.handleDuoPush).Methods(http.MethodPost)

	api.HandleFunc("/u2f/sign_request", s.handleSignRequest).Methods(http.MethodGet)
	api.HandleFunc("/u2f/sign", s.handleSign).Methods(http.MethodPost)
	api.HandleFunc("/u2f/register_request", s.handleRegisterRequest).Methods(http.MethodGet)
	api.HandleFunc("/u2f/register", s.handleRegister).Methods(http.MethodPost)

	api.HandleFunc("/secondfactor/totp/identity/start", s.handleTOTPIdentityStart).Methods(http.MethodPost)
	api.HandleFunc("/secondfactor/totp/identity/finish", s.handleTOTPIdentityFinish).Methods(http.MethodPost, http.MethodGet)
	api.HandleFunc("/secondfactor/u2f/identity/start", s.handleDeviceIdentityStart).Methods(http.MethodPost)
	api.HandleFunc("/secondfactor/u2f/identity/finish", s.handleDeviceIdentityFinish).Methods(http.MethodPost, http.MethodGet)

	api.HandleFunc("/password-reset/identity/start", s.handlePasswordResetStart).Methods(http.MethodPost)
	api.HandleFunc("/password-reset/identity/finish", s.handlePasswordResetFinish).Methods(http.MethodPost, http.MethodGet)
	api.HandleFunc("/password-reset", s.handlePasswordReset).Methods(http.MethodPost)

	r.Handle("/metrics", prometheus.NewPrometheusExporter(s.engine).Handler()).Methods(http.MethodGet)

	return r
}

// requestIDMiddleware tags every request with an identifier for log
// correlation.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r)
	})
}

// sessionMiddleware ensures every request carries a session cookie and
// puts the session ID and client IP in the request context.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := ""
		if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
			sessionID = cookie.Value
		}
		if sessionID == "" {
			fresh, err := internal.NewSessionID()
			if err != nil {
				s.logger.Printf("[authgate] session id generation failed: %v", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			sessionID = fresh
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookieName,
				Value:    sessionID,
				Path:     "/",
				HttpOnly: true,
				Secure:   s.CookieSecure,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := context.WithValue(r.Context(), sessionIDContextKey{}, sessionID)
		ctx = authgate.WithClientIP(ctx, clientIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionIDFromRequest(r *http.Request) string {
	id, _ := r.Context().Value(sessionIDContextKey{}).(string)
	return id
}

// clientIP prefers the proxy-supplied address; authgate always sits
// behind a reverse proxy in production.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// appID derives the relying party identifier for device ceremonies from
// the forwarded host.
func appID(r *http.Request) string {
	if host := r.Header.Get("X-Forwarded-Host"); host != "" {
		return stripPort(host)
	}
	return stripPort(r.Host)
}

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}
