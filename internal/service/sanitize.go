package service

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var textPolicy = bluemonday.StrictPolicy()

// sanitizeText strips markup from free text supplied by users.
func sanitizeText(value string) string {
	return strings.TrimSpace(textPolicy.Sanitize(strings.TrimSpace(value)))
}
