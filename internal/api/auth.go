package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/retrouvtout/backend/internal/auth"
	"github.com/retrouvtout/backend/internal/store"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	DB        *sql.DB
	JWTSecret string
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)

	if req.Name == "" || req.Email == "" || req.Password == "" {
		jsonError(w, http.StatusBadRequest, "name, email and password required")
		return
	}
	if !strings.Contains(req.Email, "@") {
		jsonError(w, http.StatusBadRequest, "invalid email address")
		return
	}
	if len(req.Password) < 8 {
		jsonError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	user, err := store.CreateUser(r.Context(), h.DB, req.Name, req.Email, string(hash), req.Phone)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			jsonError(w, http.StatusConflict, "email already registered")
			return
		}
		jsonError(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	slog.Info("user registered", "user_id", user.ID, "email", user.Email)
	jsonResponse(w, http.StatusCreated, user)
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		jsonError(w, http.StatusBadRequest, "email and password required")
		return
	}

	user, err := store.GetUserByEmail(r.Context(), h.DB, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil || !user.Active {
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		slog.Warn("login failed", "email", req.Email, "remote", r.RemoteAddr)
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := auth.GenerateToken(h.JWTSecret, user.ID, user.Email, user.Role)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	if err := store.TouchLastLogin(r.Context(), h.DB, user.ID); err != nil {
		slog.Error("updating last login", "user_id", user.ID, "error", err)
	}

	slog.Info("user logged in", "user_id", user.ID, "role", user.Role)
	jsonResponse(w, http.StatusOK, loginResponse{Token: token})
}

// Logout handles POST /api/auth/logout. The token's JTI is revoked so it
// cannot be reused before its natural expiry.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	if err := store.RevokeToken(r.Context(), h.DB, claims.ID, claims.ExpiresAt.Time); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to revoke token")
		return
	}

	slog.Info("user logged out", "user_id", claims.UserID)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// ChangePassword handles PUT /api/auth/password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.CurrentPassword == "" || req.NewPassword == "" {
		jsonError(w, http.StatusBadRequest, "current and new password required")
		return
	}
	if len(req.NewPassword) < 8 {
		jsonError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	user, err := store.GetUser(r.Context(), h.DB, claims.UserID)
	if err != nil || user == nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		jsonError(w, http.StatusUnauthorized, "current password is incorrect")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	if err := store.UpdateUserPassword(r.Context(), h.DB, claims.UserID, string(hash)); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to update password")
		return
	}

	slog.Info("user changed own password", "user_id", claims.UserID)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password updated"})
}
