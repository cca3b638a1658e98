package tutor

import (
	"fmt"
	"regexp"
)

var inlineImage = regexp.MustCompile(`!\[(.*?)\]\((data:image/[^)]+)\)`)

// stripInlineImages replaces base64 markdown images with placeholders so the
// prompt stays small.
func stripInlineImages(md string) string {
	n := 0
	return inlineImage.ReplaceAllStringFunc(md, func(string) string {
		p := fmt.Sprintf("{{__IMG_%d__}}", n)
		n++
		return p
	})
}
