package handlers

import (
	"net/http"
)

func (h *Handlers) GetFeed(w http.ResponseWriter, r *http.Request) {
	feed, err := h.FeedService.ComposeFeed(r.Context(), "")
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, feed, http.StatusOK)
}
