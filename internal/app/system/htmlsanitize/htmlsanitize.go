// Package htmlsanitize strips unsafe HTML from user-provided text
// before it is stored or rendered.
package htmlsanitize

import "github.com/microcosm-cc/bluemonday"

var (
	ugcPolicy    = bluemonday.UGCPolicy()
	strictPolicy = bluemonday.StrictPolicy()
)

// Sanitize keeps safe user-generated markup (paragraphs, emphasis,
// links) and removes scripts, event handlers, and javascript: URLs.
func Sanitize(s string) string {
	return ugcPolicy.Sanitize(s)
}

// StripTags removes all HTML, leaving plain text. Used for fields that
// must never carry markup, such as names and feedback text.
func StripTags(s string) string {
	return strictPolicy.Sanitize(s)
}
