package track

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"tunescout/internal/handler/http/pathutil"
	"tunescout/internal/handler/http/respond"
)

type recommendRequest struct {
	Count int `json:"count,omitempty"`
}

type recommendResponse struct {
	TrackID         string              `json:"track_id"`
	Recommendations []RecommendationDTO `json:"recommendations"`
}

// RecommendHandler returns similar tracks for a known catalog track ID.
type RecommendHandler struct {
	Recommender Recommender
}

func (h RecommendHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := pathutil.ExtractTrackID(r.URL.Path, "/recommendations/")
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, errors.New("invalid track id"))
		return
	}

	// 本文は任意。空ボディはデフォルト件数。
	var req recommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respond.SafeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	similar, err := h.Recommender.RecommendForTrack(r.Context(), id, req.Count)
	if err != nil {
		writeTrackError(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, recommendResponse{
		TrackID:         id,
		Recommendations: toRecommendations(similar),
	})
}
