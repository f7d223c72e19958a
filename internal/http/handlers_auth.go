package http

import (
	"net/http"

	"finledger/internal/auth"
	"finledger/internal/log"
)

type signUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type googleSignInRequest struct {
	IDToken string `json:"id_token"`
}

type sessionResponse struct {
	Token string   `json:"token"`
	User  userInfo `json:"user"`
}

type userInfo struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

func toUserInfo(ident *auth.Identity) userInfo {
	return userInfo{ID: ident.UserID, Email: ident.Email, DisplayName: ident.DisplayName}
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ident, token, err := s.provider.SignUp(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	if err := s.ledger.SeedDefaultCategories(r.Context(), ident); err != nil {
		s.logger.WarnContext(r.Context(), "Default category seeding failed",
			log.FieldUserID, ident.UserID, "error", err)
	}

	s.logger.InfoContext(r.Context(), "User signed up", log.FieldUserID, ident.UserID)
	respondJSON(w, http.StatusCreated, sessionResponse{Token: token, User: toUserInfo(ident)})
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ident, token, err := s.provider.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	s.logger.InfoContext(r.Context(), "User signed in", log.FieldUserID, ident.UserID)
	respondJSON(w, http.StatusOK, sessionResponse{Token: token, User: toUserInfo(ident)})
}

func (s *Server) handleGoogleSignIn(w http.ResponseWriter, r *http.Request) {
	var req googleSignInRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ident, token, err := s.provider.SignInWithGoogleToken(r.Context(), req.IDToken)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	if err := s.ledger.SeedDefaultCategories(r.Context(), ident); err != nil {
		s.logger.WarnContext(r.Context(), "Default category seeding failed",
			log.FieldUserID, ident.UserID, "error", err)
	}

	s.logger.InfoContext(r.Context(), "User signed in via Google", log.FieldUserID, ident.UserID)
	respondJSON(w, http.StatusOK, sessionResponse{Token: token, User: toUserInfo(ident)})
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)
	if ident == nil {
		respondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	s.provider.SignOut()
	s.logger.InfoContext(r.Context(), "User signed out", log.FieldUserID, ident.UserID)
	respondJSON(w, http.StatusOK, map[string]string{"status": "signed out"})
}
