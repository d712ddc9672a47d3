package skistore

import "strings"

// recoverableMessages are the store error substrings spec.md §4.2/§7
// designate as recoverable: a degenerate-polygon query returns an empty
// result and the pipeline continues, rather than aborting.
var recoverableMessages = []string{
	"Polygon is not valid",
	"Invalid loop in polygon",
	"Loop not closed",
}

// IsRecoverable reports whether err matches one of the recognized
// degenerate-polygon error messages. Store implementations call this at
// their query boundary; callers above skistore never see these errors.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, m := range recoverableMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
