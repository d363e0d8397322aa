package intent

import (
	"strings"

	"golang.org/x/net/html"
)

// Normalize reduces a chat-widget message to plain lowercase text: markup is
// stripped (script and style bodies dropped), entities are decoded and runs
// of whitespace collapse to one space.
func Normalize(message string) string {
	if !strings.ContainsAny(message, "<&") {
		return collapse(message)
	}

	z := html.NewTokenizer(strings.NewReader(message))
	var sb strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return collapse(sb.String())
		case html.StartTagToken:
			if name, _ := z.TagName(); isRawText(name) {
				skip++
			}
			sb.WriteByte(' ')
		case html.EndTagToken:
			if name, _ := z.TagName(); isRawText(name) && skip > 0 {
				skip--
			}
			sb.WriteByte(' ')
		case html.SelfClosingTagToken:
			sb.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				sb.Write(z.Text())
			}
		}
	}
}

func isRawText(tag []byte) bool {
	s := string(tag)
	return s == "script" || s == "style"
}

func collapse(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
