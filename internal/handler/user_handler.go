package handlers

import (
	"io"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"

	"instafeed/internal/apperr"
	"instafeed/internal/models"
)

type UpdateProfileRequest struct {
	DisplayName *string `json:"displayName" validate:"omitempty,max=60"`
	Handle      *string `json:"handle" validate:"omitempty,max=30"`
	Bio         *string `json:"bio" validate:"omitempty,max=300"`
	ImageURL    *string `json:"imageUrl" validate:"omitempty,url"`
}

func (h *Handlers) GetCurrentProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.ProfileService.CurrentProfile(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, profile, http.StatusOK)
}

func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if err := h.decodeRequest(r, &req, "display name, username or bio too long, or image url invalid"); err != nil {
		h.handleError(w, r, err)
		return
	}

	profile, err := h.ProfileService.UpdateProfile(r.Context(), models.ProfileFields{
		DisplayName: req.DisplayName,
		Handle:      req.Handle,
		Bio:         req.Bio,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, profile, http.StatusOK)
}

func (h *Handlers) UploadProfileImage(w http.ResponseWriter, r *http.Request) {
	fileName, data, err := h.readImage(w, r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	profile, err := h.ProfileService.UploadProfileImage(r.Context(), fileName, data)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, profile, http.StatusOK)
}

func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.ProfileService.GetProfile(r.Context(), mux.Vars(r)["userID"])
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, profile, http.StatusOK)
}

func (h *Handlers) GetUserPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.PostService.FetchUserPosts(r.Context(), mux.Vars(r)["userID"])
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, posts, http.StatusOK)
}

func (h *Handlers) ToggleFollow(w http.ResponseWriter, r *http.Request) {
	result, err := h.GraphService.ToggleFollow(r.Context(), mux.Vars(r)["userID"])
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, result, http.StatusOK)
}

// readImage pulls the "image" part out of a multipart body. An unusable
// request is a validation error.
func (h *Handlers) readImage(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.Cfg.MaxUploadSize+1<<20)
	if err := r.ParseMultipartForm(h.Cfg.MaxUploadSize); err != nil {
		return "", nil, apperr.Validation("file is too large, the limit is %s", humanize.IBytes(uint64(h.Cfg.MaxUploadSize)))
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		return "", nil, apperr.Validation("image is required")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, apperr.Validation("error reading file")
	}

	return header.Filename, data, nil
}
