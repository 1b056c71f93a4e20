package user

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	myMiddleware "github.com/sitechat/livechat/internal/middleware"
)

type Handler struct {
	Service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{Service: s}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.Service.Login(r.Context(), &req)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		slog.Error("Login failed", "username", req.Username, "error", err)
		http.Error(w, "login unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

// Session reports who the bearer token belongs to. It must run behind the auth middleware.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	username, _ := r.Context().Value(myMiddleware.UsernameKey).(string)
	admin, _ := r.Context().Value(myMiddleware.AdminKey).(bool)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"username": username,
		"admin":    admin,
	})
}
