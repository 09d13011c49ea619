package handlers

import "net/http"

// ChannelHandler implements the channel profile, subscription, and watch history endpoints.
type ChannelHandler struct {
	Channels ChannelService
}

// Profile handles GET /channel/{userName}.
func (h ChannelHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	profile, err := h.Channels.GetChannelProfile(r.Context(), user.ID, r.PathValue("userName"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(r.Context(), w, http.StatusOK, profile, "user channel fetched successfully")
}

// Subscribe handles POST /channel/{userName}/subscribe.
func (h ChannelHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	profile, err := h.Channels.Subscribe(r.Context(), user.ID, r.PathValue("userName"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(r.Context(), w, http.StatusOK, profile, "subscribed successfully")
}

// Unsubscribe handles DELETE /channel/{userName}/subscribe.
func (h ChannelHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	profile, err := h.Channels.Unsubscribe(r.Context(), user.ID, r.PathValue("userName"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(r.Context(), w, http.StatusOK, profile, "unsubscribed successfully")
}

// WatchHistory handles GET /history.
func (h ChannelHandler) WatchHistory(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	history, err := h.Channels.GetWatchHistory(r.Context(), user.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(r.Context(), w, http.StatusOK, history, "watch history fetched successfully")
}

// RecordView handles POST /history/{videoId}.
func (h ChannelHandler) RecordView(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.Channels.RecordView(r.Context(), user.ID, r.PathValue("videoId")); err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(r.Context(), w, http.StatusOK, struct{}{}, "view recorded")
}
