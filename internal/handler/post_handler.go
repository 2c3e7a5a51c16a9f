package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"instafeed/internal/service"
)

type CommentRequest struct {
	Text string `json:"text" validate:"required,max=2200"`
}

func (h *Handlers) GetPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.PostService.FetchOwnPosts(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, posts, http.StatusOK)
}

func (h *Handlers) CreatePost(w http.ResponseWriter, r *http.Request) {
	fileName, data, err := h.readImage(w, r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	post, err := h.PostService.CreatePost(r.Context(), service.CreatePostRequest{
		FileName:    fileName,
		Image:       data,
		Description: r.FormValue("description"),
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, post, http.StatusCreated)
}

func (h *Handlers) SearchPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.PostService.SearchPosts(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, posts, http.StatusOK)
}

func (h *Handlers) GetPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.PostService.GetPost(r.Context(), mux.Vars(r)["postID"])
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, post, http.StatusOK)
}

func (h *Handlers) ToggleLike(w http.ResponseWriter, r *http.Request) {
	post, err := h.EngagementService.ToggleLike(r.Context(), mux.Vars(r)["postID"])
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, post, http.StatusOK)
}

func (h *Handlers) GetComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.EngagementService.ListComments(r.Context(), mux.Vars(r)["postID"])
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, comments, http.StatusOK)
}

func (h *Handlers) AddComment(w http.ResponseWriter, r *http.Request) {
	var req CommentRequest
	if err := h.decodeRequest(r, &req, "comment can not be empty"); err != nil {
		h.handleError(w, r, err)
		return
	}

	comment, err := h.EngagementService.AddComment(r.Context(), mux.Vars(r)["postID"], req.Text)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, comment, http.StatusCreated)
}
