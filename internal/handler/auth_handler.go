package handlers

import (
	"net/http"

	"instafeed/internal/service"
)

type SignUpRequest struct {
	Handle   string `json:"handle" validate:"required,max=30"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type LogInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

func (h *Handlers) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if err := h.decodeRequest(r, &req, "please fill all fields with a valid email and a password of at least 6 characters"); err != nil {
		h.handleError(w, r, err)
		return
	}

	session, err := h.AuthService.SignUp(r.Context(), service.SignUpRequest{
		Handle:   req.Handle,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, session, http.StatusCreated)
}

func (h *Handlers) LogIn(w http.ResponseWriter, r *http.Request) {
	var req LogInRequest
	if err := h.decodeRequest(r, &req, "please fill all fields"); err != nil {
		h.handleError(w, r, err)
		return
	}

	session, err := h.AuthService.LogIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, session, http.StatusOK)
}

func (h *Handlers) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := h.decodeRequest(r, &req, "refreshToken is required"); err != nil {
		h.handleError(w, r, err)
		return
	}

	session, err := h.AuthService.RefreshTokens(r.Context(), req.RefreshToken)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, session, http.StatusOK)
}

func (h *Handlers) LogOut(w http.ResponseWriter, r *http.Request) {
	if err := h.AuthService.LogOut(r.Context()); err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, MessageResponse{Message: "logged out"}, http.StatusOK)
}
