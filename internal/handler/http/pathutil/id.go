package pathutil

import (
	"errors"
	"strings"
)

// ErrInvalidTrackID is returned when the track ID in the URL path is invalid.
var ErrInvalidTrackID = errors.New("invalid track id")

// ExtractTrackID extracts a catalog track ID from a URL path.
// It removes the specified prefix and validates that the remainder is a
// non-empty numeric identifier with no further path segments.
//
// Parameters:
//   - path: The full URL path (e.g., "/recommendations/3135556")
//   - prefix: The prefix to remove (e.g., "/recommendations/")
//
// Returns:
//   - string: The track ID
//   - error: ErrInvalidTrackID if the ID is missing or malformed
//
// Example:
//
//	id, err := ExtractTrackID("/recommendations/3135556", "/recommendations/")
//	// Returns: "3135556", nil
func ExtractTrackID(path, prefix string) (string, error) {
	id := strings.TrimPrefix(path, prefix)
	if id == "" || strings.Contains(id, "/") {
		return "", ErrInvalidTrackID
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return "", ErrInvalidTrackID
		}
	}
	return id, nil
}
