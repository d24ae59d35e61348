package summarizer

import (
	"context"
	"fmt"
	"strings"

	"tunescout/internal/domain/entity"
)

// NoOp is a blurb writer that assembles a fixed template without calling
// any AI API. Used when no API key is configured.
type NoOp struct{}

// NewNoOp creates a new NoOp blurb writer.
func NewNoOp() *NoOp {
	return &NoOp{}
}

// Describe returns a plain template listing the track and its recommendations.
func (n *NoOp) Describe(_ context.Context, track entity.Track, similar []entity.SimilarityResult) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s / %s", track.Title, track.Artist)
	if len(similar) > 0 {
		names := make([]string, 0, len(similar))
		for _, s := range similar {
			names = append(names, fmt.Sprintf("%s / %s", s.Title, s.Artist))
		}
		fmt.Fprintf(&sb, " に似ている曲: %s", strings.Join(names, ", "))
	}
	return sb.String(), nil
}
