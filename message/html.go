package message

import (
	"strings"

	"golang.org/x/net/html"
)

// StripHTML reduces an HTML document to its visible text with whitespace
// collapsed. Script, style and title content is dropped. The head itself is
// not skipped as a whole since its end tag is optional.
func StripHTML(doc string) string {
	z := html.NewTokenizer(strings.NewReader(doc))

	var (
		sb      strings.Builder
		skipped int
	)
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(sb.String()), " ")
		case html.StartTagToken:
			if hiddenTag(z) {
				skipped++
			}
		case html.EndTagToken:
			if hiddenTag(z) && skipped > 0 {
				skipped--
			}
		case html.TextToken:
			if skipped == 0 {
				sb.Write(z.Text())
				sb.WriteByte(' ')
			}
		}
	}
}

func hiddenTag(z *html.Tokenizer) bool {
	name, _ := z.TagName()
	switch string(name) {
	case "script", "style", "title":
		return true
	}
	return false
}
