package annotation

import (
	"strings"

	"github.com/russross/blackfriday/v2"
)

// RenderMarkdown converts a project instruction to HTML. Blank input renders
// to nothing.
func RenderMarkdown(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return string(blackfriday.Run([]byte(text)))
}
