package summarizer

import "fmt"

// Blurb length bounds. Below 100 characters a blurb cannot name the track
// and a reason to listen; above 5000 it is no longer a blurb.
const (
	minCharLimit = 100
	maxCharLimit = 5000
)

// ValidateCharacterLimit rejects limits outside the supported range.
func ValidateCharacterLimit(limit int) error {
	if limit < minCharLimit {
		return fmt.Errorf("character limit %d is below minimum %d", limit, minCharLimit)
	}
	if limit > maxCharLimit {
		return fmt.Errorf("character limit %d exceeds maximum %d", limit, maxCharLimit)
	}
	return nil
}
