package track

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"tunescout/internal/domain/entity"
	"tunescout/internal/handler/http/respond"
	identifyUC "tunescout/internal/usecase/identify"
)

// maxClipBytes bounds the uploaded clip size. Thirty seconds of 48kHz
// 16-bit stereo PCM is under 6MiB; 10MiB leaves headroom for headers.
const maxClipBytes = 10 << 20

// Identifier runs the voice identification stages for an uploaded clip.
type Identifier interface {
	IdentifyFromAudio(ctx context.Context, wav []byte, filename string, opts identifyUC.Options) (*identifyUC.Result, error)
}

type identifyResponse struct {
	Track         DTO                 `json:"track"`
	Confidence    float64             `json:"confidence"`
	LowConfidence bool                `json:"low_confidence"`
	Similar       []RecommendationDTO `json:"similar"`
	Transcription string              `json:"transcription,omitempty"`
	Summary       string              `json:"summary,omitempty"`
}

// IdentifyHandler accepts a multipart WAV upload and returns the matched
// track with recommendations.
type IdentifyHandler struct {
	Identifier Identifier
}

func (h IdentifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxClipBytes); err != nil {
		respond.SafeError(w, http.StatusBadRequest, errors.New("invalid multipart form"))
		return
	}

	file, header, err := r.FormFile("clip")
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, errors.New("clip file is required"))
		return
	}
	defer func() { _ = file.Close() }()

	wav, err := io.ReadAll(io.LimitReader(file, maxClipBytes+1))
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, errors.New("invalid clip upload"))
		return
	}
	if len(wav) > maxClipBytes {
		respond.SafeError(w, http.StatusRequestEntityTooLarge, errors.New("clip too long"))
		return
	}

	opts, err := parseIdentifyOptions(r)
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.Identifier.IdentifyFromAudio(r.Context(), wav, header.Filename, opts)
	if err != nil {
		writeIdentifyError(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, identifyResponse{
		Track:         toDTO(result.Track),
		Confidence:    result.Confidence,
		LowConfidence: result.LowConfidence,
		Similar:       toRecommendations(result.Similar),
		Transcription: result.Transcription,
		Summary:       result.Summary,
	})
}

const (
	maxSimilarCount   = 25
	maxCandidateDepth = 100
)

// parseIdentifyOptions reads the optional multipart fields that shape the
// response. Absent fields keep the orchestrator defaults.
func parseIdentifyOptions(r *http.Request) (identifyUC.Options, error) {
	var opts identifyUC.Options

	n, err := formInt(r, "similar_count", maxSimilarCount)
	if err != nil {
		return opts, err
	}
	opts.SimilarCount = n

	n, err = formInt(r, "candidate_depth", maxCandidateDepth)
	if err != nil {
		return opts, err
	}
	opts.CandidateDepth = n

	return opts, nil
}

func formInt(r *http.Request, field string, max int) (int, error) {
	raw := r.FormValue(field)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > max {
		return 0, fmt.Errorf("%s must be between 1 and %d", field, max)
	}
	return n, nil
}

func writeIdentifyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, entity.ErrIdentificationFailed):
		respond.SafeError(w, http.StatusUnprocessableEntity, errors.New("identification failed"))
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, entity.ErrTimeout):
		respond.SafeError(w, http.StatusGatewayTimeout, errors.New("upstream timeout"))
	default:
		respond.SafeError(w, http.StatusInternalServerError, err)
	}
}
