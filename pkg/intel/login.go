package intel

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
)

// userAgent mimics a desktop browser; the identity provider serves a
// scriptless login form only to browser-looking clients.
const userAgent = "Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:78.0) Gecko/20100101 Firefox/78.0"

const maxRedirects = 10

// Cookie names the flow keys decisions on.
const (
	cookieCSRFToken = "csrftoken"
	cookieIdentity  = "c_user"
)

// apiVersionRe pulls the dashboard build version out of the landing page;
// every API call must echo it back in the "v" field.
var apiVersionRe = regexp.MustCompile(`/jsc/gen_dashboard_(\w+)\.js`)

// Doer is the transport capability the flow and pipeline depend on. The
// *http.Client built by internal/network satisfies it; tests substitute
// httptest-backed clients.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// loginResult is what a completed login hands back to the Session. The
// Session commits it atomically so a half-finished flow is never visible.
type loginResult struct {
	jar        *CookieJar
	csrfToken  string
	apiVersion string
}

// loginFlow turns whatever state is already in the jar into a fully
// authenticated session snapshot.
type loginFlow interface {
	Login(ctx context.Context, jar *CookieJar) (*loginResult, error)
}

// credentialLoginFlow performs the identity-provider handshake and the
// service landing-page exchange. It works on a private clone of the jar and
// never touches the Session.
type credentialLoginFlow struct {
	http        Doer
	email       string
	password    string
	intelURL    string
	identityURL string
	extractor   TokenExtractor
	logger      *zap.Logger
}

func (f *credentialLoginFlow) Login(ctx context.Context, jar *CookieJar) (*loginResult, error) {
	jar = jar.Clone()

	landingURL := f.intelURL + "/"
	if _, ok := jar.Get(cookieCSRFToken); !ok {
		if _, ok := jar.Get(cookieIdentity); !ok {
			if f.email == "" || f.password == "" {
				return nil, ErrMissingCredentials
			}
			if err := f.identityLogin(ctx, jar); err != nil {
				return nil, err
			}
		}
		ssoURL, err := f.discoverSSOLink(ctx, jar)
		if err != nil {
			return nil, err
		}
		landingURL = ssoURL
	}

	body, _, err := f.fetch(ctx, http.MethodGet, landingURL, nil, "", jar)
	if err != nil {
		return nil, fmt.Errorf("fetching landing page: %w", err)
	}

	token, ok := jar.Get(cookieCSRFToken)
	if !ok {
		token, err = f.extractor.Extract(body)
		if err != nil {
			return nil, err
		}
	}

	m := apiVersionRe.FindSubmatch(body)
	if m == nil {
		return nil, fmt.Errorf("%w: api version marker missing from landing page", ErrMalformedResponse)
	}

	f.logger.Debug("Login flow completed.",
		zap.Int("cookies", jar.Len()),
		zap.String("api_version", string(m[1])))

	return &loginResult{
		jar:        jar,
		csrfToken:  token,
		apiVersion: string(m[1]),
	}, nil
}

// identityLogin fetches the provider's login form, replays its hidden
// fields with the configured credentials, and verifies the identity session
// cookie appeared.
func (f *credentialLoginFlow) identityLogin(ctx context.Context, jar *CookieJar) error {
	body, _, err := f.fetch(ctx, http.MethodGet, f.identityURL+"/?_fb_noscript=1", nil, "", jar)
	if err != nil {
		return fmt.Errorf("fetching identity login page: %w", err)
	}

	doc, err := htmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: identity login page: %v", ErrMalformedResponse, err)
	}
	form := htmlquery.FindOne(doc, `//form[@data-testid='royal_login_form']`)
	if form == nil {
		return fmt.Errorf("%w: identity login form not found", ErrMalformedResponse)
	}

	action, err := f.resolveFormAction(htmlquery.SelectAttr(form, "action"))
	if err != nil {
		return err
	}

	fields := url.Values{}
	for _, input := range htmlquery.Find(doc, `//form[@data-testid='royal_login_form']//input`) {
		name := htmlquery.SelectAttr(input, "name")
		if name == "" {
			continue
		}
		fields.Set(name, htmlquery.SelectAttr(input, "value"))
	}
	fields.Set("email", f.email)
	fields.Set("pass", f.password)

	respBody, resp, err := f.fetch(ctx, http.MethodPost, action,
		strings.NewReader(fields.Encode()), "application/x-www-form-urlencoded", jar)
	if err != nil {
		return fmt.Errorf("submitting identity credentials: %w", err)
	}

	if _, ok := jar.Get(cookieIdentity); !ok {
		if isChallengePage(resp, respBody) {
			return ErrChallengeRequired
		}
		return ErrInvalidCredentials
	}
	return nil
}

// discoverSSOLink pulls the provider SSO entry point out of the service's
// logged-out landing page.
func (f *credentialLoginFlow) discoverSSOLink(ctx context.Context, jar *CookieJar) (string, error) {
	body, _, err := f.fetch(ctx, http.MethodGet, f.intelURL+"/", nil, "", jar)
	if err != nil {
		return "", fmt.Errorf("fetching service landing page: %w", err)
	}
	doc, err := htmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: service landing page: %v", ErrMalformedResponse, err)
	}
	for _, a := range htmlquery.Find(doc, `//a[@href]`) {
		href := htmlquery.SelectAttr(a, "href")
		if strings.HasPrefix(href, f.identityURL) {
			return href, nil
		}
	}
	return "", fmt.Errorf("%w: identity SSO link not found on landing page", ErrMalformedResponse)
}

// resolveFormAction turns a possibly relative form action into an absolute
// URL on the identity origin.
func (f *credentialLoginFlow) resolveFormAction(action string) (string, error) {
	if action == "" {
		return "", fmt.Errorf("%w: identity login form has no action", ErrMalformedResponse)
	}
	base, err := url.Parse(f.identityURL)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(action)
	if err != nil {
		return "", fmt.Errorf("%w: identity login form action %q: %v", ErrMalformedResponse, action, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// fetch executes one logical request, walking redirect chains manually so
// Set-Cookie headers on every hop land in the jar. The transport never
// follows redirects on its own.
func (f *credentialLoginFlow) fetch(ctx context.Context, method, target string, body io.Reader, contentType string, jar *CookieJar) ([]byte, *http.Response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = io.ReadAll(body)
		if err != nil {
			return nil, nil, err
		}
	}

	currentMethod, currentURL := method, target
	currentBody := payload
	for i := 0; i < maxRedirects; i++ {
		req, err := http.NewRequestWithContext(ctx, currentMethod, currentURL, bytes.NewReader(currentBody))
		if err != nil {
			return nil, nil, err
		}
		req.Header.Set("User-Agent", userAgent)
		if contentType != "" && len(currentBody) > 0 {
			req.Header.Set("Content-Type", contentType)
		}
		if header := jar.Header(); header != "" {
			req.Header.Set("Cookie", header)
		}

		f.logger.Debug("Executing login flow request.",
			zap.String("method", currentMethod), zap.String("url", currentURL))

		resp, err := f.http.Do(req)
		if err != nil {
			return nil, nil, err
		}
		jar.MergeCookies(resp.Cookies())

		if resp.StatusCode >= 300 && resp.StatusCode < 400 {
			location := resp.Header.Get("Location")
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			if location == "" {
				return nil, nil, fmt.Errorf("%w: redirect without Location from %s", ErrMalformedResponse, currentURL)
			}
			next, err := req.URL.Parse(location)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: redirect Location %q: %v", ErrMalformedResponse, location, err)
			}
			// Downgrade to GET on see-other/found, mirroring browsers.
			currentMethod = http.MethodGet
			currentBody = nil
			currentURL = next.String()
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return nil, nil, err
		}
		if resp.StatusCode >= 400 {
			return respBody, resp, &HTTPError{StatusCode: resp.StatusCode, URL: currentURL}
		}
		return respBody, resp, nil
	}
	return nil, nil, fmt.Errorf("intel: maximum number of redirects (%d) exceeded for %s", maxRedirects, target)
}

// isChallengePage spots the provider's checkpoint/verification responses,
// which mean the account is being rate limited or flagged rather than the
// credentials being wrong.
func isChallengePage(resp *http.Response, body []byte) bool {
	if resp != nil && resp.Request != nil && strings.Contains(resp.Request.URL.Path, "checkpoint") {
		return true
	}
	lower := bytes.ToLower(body)
	return bytes.Contains(lower, []byte("checkpoint")) || bytes.Contains(lower, []byte("verification"))
}

var _ loginFlow = (*credentialLoginFlow)(nil)
