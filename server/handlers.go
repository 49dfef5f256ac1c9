package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	authgate "github.com/authgate/authgate"
)

type firstFactorRequest struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	KeepMeLoggedIn bool   `json:"keepMeLoggedIn"`
	TargetURL      string `json:"targetURL"`
}

type redirectResponse struct {
	Redirect string `json:"redirect"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type preferenceBody struct {
	Method string `json:"method"`
}

type totpVerifyRequest struct {
	Token string `json:"token"`
}

type usernameBody struct {
	Username string `json:"username"`
}

type passwordBody struct {
	Password string `json:"password"`
}

type totpRegistrationResponse struct {
	Base32Secret string `json:"base32_secret"`
	OtpauthURL   string `json:"otpauth_url"`
}

func (s *Server) handleFirstFactor(w http.ResponseWriter, r *http.Request) {
	var body firstFactorRequest
	if !s.decodeBody(w, r, &body) {
		return
	}

	redirect, err := s.engine.FirstFactor(r.Context(), sessionIDFromRequest(r),
		body.Username, body.Password, body.KeepMeLoggedIn, body.TargetURL)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if redirect != "" {
		s.writeJSON(w, http.StatusOK, redirectResponse{Redirect: redirect})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Logout(r.Context(), sessionIDFromRequest(r)); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	state, err := s.engine.State(r.Context(), sessionIDFromRequest(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

// handleVerify is the forward-auth endpoint. The fronting proxy passes the
// original request target via X-Original-URL or the X-Forwarded-* triple;
// on success the verified identity is returned in response headers for the
// proxy to forward upstream.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	target := r.Header.Get("X-Original-URL")
	if target == "" {
		proto := r.Header.Get("X-Forwarded-Proto")
		host := r.Header.Get("X-Forwarded-Host")
		if proto != "" && host != "" {
			target = proto + "://" + host + r.Header.Get("X-Forwarded-URI")
		}
	}

	result, err := s.engine.VerifyAccess(r.Context(), sessionIDFromRequest(r), target)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Remote-User", result.Username)
	w.Header().Set("Remote-Groups", strings.Join(result.Groups, ","))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTOTP(w http.ResponseWriter, r *http.Request) {
	var body totpVerifyRequest
	if !s.decodeBody(w, r, &body) {
		return
	}
	redirect, err := s.engine.VerifyTOTP(r.Context(), sessionIDFromRequest(r), body.Token)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeCompletion(w, redirect)
}

func (s *Server) handleGetPreference(w http.ResponseWriter, r *http.Request) {
	method, err := s.engine.PreferredMethod(r.Context(), sessionIDFromRequest(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, preferenceBody{Method: string(method)})
}

func (s *Server) handleSetPreference(w http.ResponseWriter, r *http.Request) {
	var body preferenceBody
	if !s.decodeBody(w, r, &body) {
		return
	}
	if err := s.engine.SetPreferredMethod(r.Context(), sessionIDFromRequest(r), authgate.Method(body.Method)); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDuoPush(w http.ResponseWriter, r *http.Request) {
	redirect, err := s.engine.DuoPush(r.Context(), sessionIDFromRequest(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeCompletion(w, redirect)
}

func (s *Server) handleSignRequest(w http.ResponseWriter, r *http.Request) {
	challenge, err := s.engine.DeviceSignRequest(r.Context(), sessionIDFromRequest(r), appID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeRawJSON(w, challenge)
}

func (s *Server) handleSign(w http.ResponseWriter, r *http.Request) {
	response, ok := s.readBody(w, r)
	if !ok {
		return
	}
	redirect, err := s.engine.DeviceSign(r.Context(), sessionIDFromRequest(r), appID(r), response)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeCompletion(w, redirect)
}

func (s *Server) handleRegisterRequest(w http.ResponseWriter, r *http.Request) {
	challenge, err := s.engine.DeviceRegisterRequest(r.Context(), sessionIDFromRequest(r), appID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeRawJSON(w, challenge)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	response, ok := s.readBody(w, r)
	if !ok {
		return
	}
	if err := s.engine.DeviceRegister(r.Context(), sessionIDFromRequest(r), appID(r), response); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTOTPIdentityStart(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.StartTOTPRegistration(r.Context(), sessionIDFromRequest(r)); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTOTPIdentityFinish(w http.ResponseWriter, r *http.Request) {
	registration, err := s.engine.FinishTOTPRegistration(r.Context(), sessionIDFromRequest(r), identityToken(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, totpRegistrationResponse{
		Base32Secret: registration.Base32Secret,
		OtpauthURL:   registration.OtpauthURL,
	})
}

func (s *Server) handleDeviceIdentityStart(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.StartDeviceRegistration(r.Context(), sessionIDFromRequest(r)); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeviceIdentityFinish(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.FinishDeviceRegistration(r.Context(), sessionIDFromRequest(r), identityToken(r)); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePasswordResetStart(w http.ResponseWriter, r *http.Request) {
	var body usernameBody
	if !s.decodeBody(w, r, &body) {
		return
	}
	if err := s.engine.StartPasswordReset(r.Context(), body.Username); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePasswordResetFinish(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.FinishPasswordReset(r.Context(), sessionIDFromRequest(r), identityToken(r)); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	var body passwordBody
	if !s.decodeBody(w, r, &body) {
		return
	}
	if err := s.engine.ResetPassword(r.Context(), sessionIDFromRequest(r), body.Password); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func identityToken(r *http.Request) string {
	return r.URL.Query().Get("identity_token")
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return false
	}
	return true
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil || len(body) == 0 {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return nil, false
	}
	return body, true
}

// writeCompletion answers a successful factor validation: the stored
// redirect when one survives access control, a bare 204 otherwise.
func (s *Server) writeCompletion(w http.ResponseWriter, redirect string) {
	if redirect != "" {
		s.writeJSON(w, http.StatusOK, redirectResponse{Redirect: redirect})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Printf("[authgate] response encoding failed: %v", err)
	}
}

// writeRawJSON forwards an already-encoded JSON payload, as produced by the
// device ceremony challenges.
func (s *Server) writeRawJSON(w http.ResponseWriter, payload []byte) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(payload); err != nil {
		s.logger.Printf("[authgate] response write failed: %v", err)
	}
}

// writeError maps engine errors to HTTP statuses. Wrapped detail stays in
// the logs; clients only see the sentinel's message.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	for _, m := range errorMappings {
		if errors.Is(err, m.sentinel) {
			status = m.status
			message = m.sentinel.Error()
			break
		}
	}

	if status >= http.StatusInternalServerError {
		s.logger.Printf("[authgate] request failed: %v", err)
	}
	s.writeJSON(w, status, errorResponse{Error: message})
}

var errorMappings = []struct {
	sentinel error
	status   int
}{
	{authgate.ErrAuthenticationRegulated, http.StatusTooManyRequests},
	{authgate.ErrInvalidCredentials, http.StatusUnauthorized},
	{authgate.ErrFirstFactorRequired, http.StatusUnauthorized},
	{authgate.ErrSecondFactorRequired, http.StatusUnauthorized},
	{authgate.ErrTOTPInvalid, http.StatusUnauthorized},
	{authgate.ErrCeremonyNotStarted, http.StatusUnauthorized},
	{authgate.ErrAccessDenied, http.StatusForbidden},
	{authgate.ErrTokenInvalid, http.StatusForbidden},
	{authgate.ErrTokenExpired, http.StatusForbidden},
	{authgate.ErrRegistrationMissing, http.StatusForbidden},
	{authgate.ErrIdentityMissing, http.StatusBadRequest},
	{authgate.ErrLDAPSearch, http.StatusInternalServerError},
	{authgate.ErrPasswordUpdate, http.StatusInternalServerError},
	{authgate.ErrCeremonyFailed, http.StatusInternalServerError},
	{authgate.ErrNotification, http.StatusInternalServerError},
	{authgate.ErrDuoUnavailable, http.StatusServiceUnavailable},
	{authgate.ErrRegulationUnavailable, http.StatusServiceUnavailable},
	{authgate.ErrTokenBackendUnavailable, http.StatusServiceUnavailable},
	{authgate.ErrStoreUnavailable, http.StatusServiceUnavailable},
}
