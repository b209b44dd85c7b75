package identify

import (
	"regexp"

	"github.com/joseph-ayodele/nomina-receipts/internal/common"
)

var filenameRFC = regexp.MustCompile(`[A-ZÑ&]{3,4}[0-9]{6}[A-Z0-9]{3}`)

// ExtractRFC returns the leftmost RFC-shaped substring of a filename, or "".
func ExtractRFC(filename string) string {
	return filenameRFC.FindString(filename)
}

// ValidRFC reports whether s is exactly one RFC.
func ValidRFC(s string) bool {
	return common.RFC("rfc", s) == nil
}
