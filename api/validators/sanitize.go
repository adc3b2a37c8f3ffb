package validators

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/angelmondragon/ordercore-backend/pkg/types"
)

var strictPolicy = bluemonday.StrictPolicy()

func SanitizeString(input string, maxLen int) string {
	return types.TruncateUTF8(strings.TrimSpace(input), maxLen)
}

// SanitizeText strips markup from free text such as cancel reasons and audit
// notes, which are stored and later rendered into customer emails.
func SanitizeText(input string, maxLen int) string {
	cleaned := html.UnescapeString(strictPolicy.Sanitize(input))
	return types.TruncateUTF8(strings.Join(strings.Fields(cleaned), " "), maxLen)
}
