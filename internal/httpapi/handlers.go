package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"marketdash/internal/auth"
)

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token string `json:"token"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Server is running!"})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.logger.Debug("Signup attempt", zap.String("email", req.Email))

	user, err := s.state.Users.Signup(req.Name, req.Email, req.Password)
	if err != nil {
		if status, msg, ok := userError(err); ok {
			writeError(w, status, msg)
			return
		}
		s.logger.Error("Signup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Server error during signup")
		return
	}

	token, err := s.state.Issuer.Issue(user.Email)
	if err != nil {
		s.logger.Error("Token issue failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Server error during signup")
		return
	}

	s.logger.Info("User created", zap.String("email", user.Email))
	writeJSON(w, http.StatusOK, sessionResponse{Token: token, Name: user.Name, Email: user.Email})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := s.state.Users.Login(req.Email, req.Password)
	if err != nil {
		if status, msg, ok := userError(err); ok {
			writeError(w, status, msg)
			return
		}
		s.logger.Error("Login failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Server error during login")
		return
	}

	token, err := s.state.Issuer.Issue(user.Email)
	if err != nil {
		s.logger.Error("Token issue failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Server error during login")
		return
	}

	s.logger.Info("Login successful", zap.String("email", user.Email))
	writeJSON(w, http.StatusOK, sessionResponse{Token: token, Name: user.Name, Email: user.Email})
}

func (s *Server) handleStocks(w http.ResponseWriter, r *http.Request) {
	quotes, _ := s.state.Market.Quotes()
	writeJSON(w, http.StatusOK, quotes)
}

func (s *Server) handleNifty(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.Market.Nifty())
}

func (s *Server) handleSensex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.Market.Sensex())
}

// userError maps user store failures to a client-facing status and message.
func userError(err error) (int, string, bool) {
	switch {
	case errors.Is(err, auth.ErrMissingFields):
		return http.StatusBadRequest, "All fields are required", true
	case errors.Is(err, auth.ErrUserExists):
		return http.StatusBadRequest, "User already exists", true
	case errors.Is(err, auth.ErrUserNotFound):
		return http.StatusBadRequest, "User not found", true
	case errors.Is(err, auth.ErrInvalidPassword):
		return http.StatusBadRequest, "Invalid password", true
	default:
		return 0, "", false
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
