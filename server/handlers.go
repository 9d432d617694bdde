package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const healthTimeout = 2 * time.Second

type credentialsRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required"`
}

type updatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
}

type updateProfileRequest struct {
	Username string `json:"username" validate:"required,max=64"`
}

// RegisterHandler creates a user and responds 201 with its access token.
func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsRequest
		if err := s.decodeAndValidate(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}

		accessToken, err := s.auth.Register(r.Context(), req.Username, req.Password)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, accessToken)
	}
}

// LoginHandler responds 201 with a new access token for valid credentials.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsRequest
		if err := s.decodeAndValidate(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}

		accessToken, err := s.auth.Login(r.Context(), req.Username, req.Password)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, accessToken)
	}
}

func (s *Server) UpdatePasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userIDFromRequest(r)
		if !ok {
			writeUnauthorized(w)
			return
		}

		var req updatePasswordRequest
		if err := s.decodeAndValidate(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}

		accessToken, err := s.auth.UpdatePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, accessToken)
	}
}

// LogoutHandler revokes the bearer token the request was authenticated with.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rawToken, ok := TokenFromContext(r.Context())
		if !ok {
			writeUnauthorized(w)
			return
		}
		s.auth.Logout(rawToken)
		writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out successfully"})
	}
}

func (s *Server) GetProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userIDFromRequest(r)
		if !ok {
			writeUnauthorized(w)
			return
		}

		profile, err := s.profiles.GetProfile(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

func (s *Server) UpdateProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userIDFromRequest(r)
		if !ok {
			writeUnauthorized(w)
			return
		}

		var req updateProfileRequest
		if err := s.decodeAndValidate(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}

		profile, err := s.profiles.UpdateProfile(r.Context(), userID, req.Username)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

// JWKSHandler publishes the token verification key.
func (s *Server) JWKSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		set, _ := s.issuer.JWKS()
		w.Header().Set("Cache-Control", "public, max-age=300")
		writeJSON(w, http.StatusOK, set)
	}
}

// PreflightHandler answers OPTIONS requests that carry no Origin.
func (s *Server) PreflightHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}

// HealthHandler reports 503 when the user store cannot be reached.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := s.health(ctx); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("health check failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("unhealthy"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

func userIDFromRequest(r *http.Request) (int64, bool) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		return 0, false
	}
	id, err := claims.UserID()
	return id, err == nil
}
