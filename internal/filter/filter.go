package filter

import (
	"strings"

	"github.com/cyderes/facebook-auto-poster/internal/models"
)

// Reasons a record is dropped before publishing
const (
	ReasonNoImage           = "no_image"
	ReasonAlreadyPosted     = "already_posted"
	ReasonMissingIdentifier = "missing_identifier"
)

// Rejection records why a record was filtered out
type Rejection struct {
	Record models.ArrestRecord
	Reason string
}

// HasImage reports whether the record carries a non-empty image payload
func HasImage(r models.ArrestRecord) bool {
	return strings.TrimSpace(r.Image) != ""
}

// NotAlreadyPosted reports whether the record can be posted given the
// previous batch. Records without an identifier never pass.
func NotAlreadyPosted(r models.ArrestRecord, posted models.PostedBatch) bool {
	if r.Identifier == "" {
		return false
	}
	return !posted.Contains(r.Identifier)
}

// Apply keeps the records passing both predicates, in source order
func Apply(records []models.ArrestRecord, posted models.PostedBatch) ([]models.ArrestRecord, []Rejection) {
	kept := make([]models.ArrestRecord, 0, len(records))
	var rejected []Rejection

	for _, r := range records {
		switch {
		case !HasImage(r):
			rejected = append(rejected, Rejection{Record: r, Reason: ReasonNoImage})
		case r.Identifier == "":
			rejected = append(rejected, Rejection{Record: r, Reason: ReasonMissingIdentifier})
		case !NotAlreadyPosted(r, posted):
			rejected = append(rejected, Rejection{Record: r, Reason: ReasonAlreadyPosted})
		default:
			kept = append(kept, r)
		}
	}

	return kept, rejected
}
