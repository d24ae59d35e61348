package track

import "tunescout/internal/domain/entity"

// DTO is the JSON representation of a catalog track.
type DTO struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Artist         string `json:"artist"`
	PopularityRank int    `json:"popularity_rank,omitempty"`
	PreviewURL     string `json:"preview_url,omitempty"`
	CoverURL       string `json:"cover_url,omitempty"`
}

// RecommendationDTO is one reranked similarity result.
type RecommendationDTO struct {
	Position       int     `json:"position"`
	TrackID        string  `json:"track_id"`
	Title          string  `json:"title"`
	Artist         string  `json:"artist"`
	Similarity     float64 `json:"similarity"`
	PopularityRank int     `json:"popularity_rank,omitempty"`
	PreviewURL     string  `json:"preview_url,omitempty"`
	CoverURL       string  `json:"cover_url,omitempty"`
}

func toDTO(t entity.Track) DTO {
	return DTO{
		ID:             t.ID,
		Title:          t.Title,
		Artist:         t.Artist,
		PopularityRank: t.PopularityRank,
		PreviewURL:     t.PreviewURL,
		CoverURL:       t.CoverURL,
	}
}

func toRecommendations(list []entity.SimilarityResult) []RecommendationDTO {
	out := make([]RecommendationDTO, 0, len(list))
	for _, r := range list {
		out = append(out, RecommendationDTO{
			Position:       r.Position,
			TrackID:        r.TrackID,
			Title:          r.Title,
			Artist:         r.Artist,
			Similarity:     r.Similarity,
			PopularityRank: r.PopularityRank,
			PreviewURL:     r.PreviewURL,
			CoverURL:       r.CoverURL,
		})
	}
	return out
}
