package intel

import (
	"bytes"
	"regexp"

	"github.com/antchfx/htmlquery"
)

// TokenExtractor locates the anti-forgery token embedded in a page body.
// The markup the service uses for this is undocumented and changes between
// deployments, so the matching strategy is swappable without touching the
// session state machine.
type TokenExtractor interface {
	Extract(body []byte) (string, error)
}

// inlineTokenRe matches a csrftoken assignment inside an inline script,
// e.g. `var csrftoken = "...";` or `csrftoken: '...'`.
var inlineTokenRe = regexp.MustCompile(`csrftoken['"]?\s*[:=]\s*['"]([^'"]+)['"]`)

// HTMLTokenExtractor is the default TokenExtractor. It checks the known
// embedding spots in order and returns the first match:
// a csrf-token meta tag, a csrfmiddlewaretoken form input, then an inline
// script assignment.
type HTMLTokenExtractor struct{}

func (HTMLTokenExtractor) Extract(body []byte) (string, error) {
	doc, err := htmlquery.Parse(bytes.NewReader(body))
	if err == nil {
		if node := htmlquery.FindOne(doc, `//meta[@name='csrf-token']`); node != nil {
			if token := htmlquery.SelectAttr(node, "content"); token != "" {
				return token, nil
			}
		}
		if node := htmlquery.FindOne(doc, `//input[@name='csrfmiddlewaretoken']`); node != nil {
			if token := htmlquery.SelectAttr(node, "value"); token != "" {
				return token, nil
			}
		}
	}
	if m := inlineTokenRe.FindSubmatch(body); m != nil {
		return string(m[1]), nil
	}
	return "", ErrTokenNotFound
}

var _ TokenExtractor = HTMLTokenExtractor{}
