package track

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"tunescout/internal/domain/entity"
	"tunescout/internal/handler/http/respond"
)

// Searcher resolves a free-text query to the best catalog match.
type Searcher interface {
	SearchTrack(ctx context.Context, query string) (*entity.Track, error)
}

// Recommender produces reranked similar tracks for a catalog track.
type Recommender interface {
	RecommendForTrack(ctx context.Context, trackID string, finalCount int) ([]entity.SimilarityResult, error)
}

type searchRequest struct {
	Query string `json:"query"`
	Count int    `json:"count,omitempty"`
}

type searchResponse struct {
	Track           DTO                 `json:"track"`
	Recommendations []RecommendationDTO `json:"recommendations"`
	Note            string              `json:"note,omitempty"`
}

// SearchHandler resolves a text query against the catalog and returns the
// matched track with its recommendations.
type SearchHandler struct {
	Searcher    Searcher
	Recommender Recommender
}

func (h SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	if req.Query == "" {
		respond.SafeError(w, http.StatusBadRequest, errors.New("query is required"))
		return
	}

	match, err := h.Searcher.SearchTrack(r.Context(), req.Query)
	if err != nil {
		writeTrackError(w, err)
		return
	}

	resp := searchResponse{Track: toDTO(*match), Recommendations: []RecommendationDTO{}}

	// おすすめはベストエフォート。プレビューが無い曲でも検索結果自体は返す。
	similar, err := h.Recommender.RecommendForTrack(r.Context(), match.ID, req.Count)
	switch {
	case err == nil:
		resp.Recommendations = toRecommendations(similar)
	case errors.Is(err, entity.ErrNoPreview):
		resp.Note = "no preview available, recommendations skipped"
	default:
		writeTrackError(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, resp)
}

// writeTrackError maps domain errors to HTTP status codes.
func writeTrackError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, entity.ErrTrackNotFound):
		respond.SafeError(w, http.StatusNotFound, errors.New("track not found"))
	case errors.Is(err, entity.ErrNoPreview):
		respond.SafeError(w, http.StatusUnprocessableEntity, errors.New("no preview available for track"))
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, entity.ErrTimeout):
		respond.SafeError(w, http.StatusGatewayTimeout, errors.New("upstream timeout"))
	default:
		respond.SafeError(w, http.StatusInternalServerError, err)
	}
}
