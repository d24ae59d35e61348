package track

import (
	"net/http"
)

// Register registers the public track-facing HTTP handlers with the given mux.
// It sets up routes for text search, recommendation by track ID, and voice
// identification from an uploaded clip.
func Register(mux *http.ServeMux, searcher Searcher, recommender Recommender, identifier Identifier) {
	mux.Handle("POST /search", SearchHandler{Searcher: searcher, Recommender: recommender})
	mux.Handle("POST /recommendations/", RecommendHandler{Recommender: recommender})
	mux.Handle("POST /identify", IdentifyHandler{Identifier: identifier})
}
