package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// strict removes all HTML tags and attributes. Every user-supplied field in
// this service is plain text (names, titles, join messages, rejection
// reasons), so there is no permissive policy.
var strict = bluemonday.StrictPolicy()

// Text strips all HTML and surrounding whitespace from user input.
func Text(input string) string {
	return strings.TrimSpace(strict.Sanitize(input))
}
