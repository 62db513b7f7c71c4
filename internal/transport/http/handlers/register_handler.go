package handlers

import (
	"net/http"
	"strings"

	"github.com/n0P7xJ/MyReactNative/internal/service"
)

type RegisterHandler struct {
	authService *service.AuthService
}

func NewRegisterHandler(authService *service.AuthService) *RegisterHandler {
	return &RegisterHandler{authService: authService}
}

func (h *RegisterHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input service.RegisterInput
	if !decodeJSON(w, r, &input) {
		return
	}

	resp, err := h.authService.Register(r.Context(), input)
	if err != nil {
		writeServiceError(w, "register", err)
		return
	}

	w.Header().Set("Location", "/api/register/"+resp.ID.String())
	writeJSON(w, http.StatusCreated, resp)
}

func (h *RegisterHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input service.LoginInput
	if !decodeJSON(w, r, &input) {
		return
	}

	resp, err := h.authService.Login(r.Context(), input)
	if err != nil {
		writeServiceError(w, "login", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *RegisterHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	user, err := h.authService.GetUser(r.Context(), id)
	if err != nil {
		writeServiceError(w, "get user", err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *RegisterHandler) CheckEmail(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if strings.TrimSpace(email) == "" {
		writeError(w, http.StatusBadRequest, "MISSING_EMAIL", "Email must not be empty")
		return
	}

	exists, err := h.authService.EmailExists(r.Context(), email)
	if err != nil {
		writeServiceError(w, "check email", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"exists": exists})
}
