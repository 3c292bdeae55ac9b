package intel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Classification is the pipeline's verdict on a response.
type Classification int

const (
	// ClassOK means the response carries the requested payload.
	ClassOK Classification = iota
	// ClassAuthFailure means the session is no longer valid and the call
	// may be retried once after re-authentication.
	ClassAuthFailure
	// ClassError means a non-auth failure; surfaced immediately, no retry.
	ClassError
)

// ResponseClassifier decides whether a response is usable, an auth failure,
// or some other error. The exact expiry signature is service-specific and
// undocumented, so it is pluggable.
type ResponseClassifier interface {
	Classify(resp *http.Response, body []byte) Classification
}

// DefaultClassifier treats explicit unauthorized statuses, redirects toward
// a login page, and HTML served where JSON was expected as auth failures.
type DefaultClassifier struct{}

func (DefaultClassifier) Classify(resp *http.Response, body []byte) Classification {
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ClassAuthFailure
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		location := strings.ToLower(resp.Header.Get("Location"))
		if strings.Contains(location, "login") || strings.Contains(location, "signin") {
			return ClassAuthFailure
		}
		return ClassError
	case resp.StatusCode >= 400:
		return ClassError
	}
	contentType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if strings.Contains(contentType, "html") {
		// A logged-out session gets the landing page back instead of JSON.
		return ClassAuthFailure
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return ClassAuthFailure
	}
	return ClassOK
}

var _ ResponseClassifier = DefaultClassifier{}

// pipeline builds, sends and classifies API calls on behalf of the client
// facade. It recovers from exactly one expiry per call.
type pipeline struct {
	http       Doer
	session    *Session
	classifier ResponseClassifier
	baseURL    string
	logger     *zap.Logger
}

// payloadFn produces the JSON body for one attempt. It is a function rather
// than a value because the API version inside the body may change across a
// re-authentication.
type payloadFn func(apiVersion string) any

// call posts the payload to the endpoint and returns the raw JSON response.
// One auth-failure classification triggers one re-login and one retry; a
// second failure is terminal for the call.
func (p *pipeline) call(ctx context.Context, endpoint string, payload payloadFn) (json.RawMessage, error) {
	if err := p.session.EnsureAuthenticated(ctx); err != nil {
		return nil, err
	}

	raw, class, err := p.attempt(ctx, endpoint, payload)
	if err != nil {
		return nil, err
	}
	if class == ClassOK {
		return raw, nil
	}

	p.logger.Warn("Response classified as auth failure, re-authenticating.",
		zap.String("endpoint", endpoint))
	p.session.Invalidate()
	if err := p.session.EnsureAuthenticated(ctx); err != nil {
		return nil, err
	}

	raw, class, err = p.attempt(ctx, endpoint, payload)
	if err != nil {
		return nil, err
	}
	if class != ClassOK {
		return nil, ErrPersistentAuthFailure
	}
	return raw, nil
}

// attempt performs a single authenticated POST. The returned classification
// is only ever ClassOK or ClassAuthFailure; other verdicts become errors.
func (p *pipeline) attempt(ctx context.Context, endpoint string, payload payloadFn) (json.RawMessage, Classification, error) {
	jar, csrfToken, apiVersion := p.session.snapshot()

	body, err := json.Marshal(payload(apiVersion))
	if err != nil {
		return nil, ClassError, fmt.Errorf("intel: encoding request body: %w", err)
	}

	target := p.baseURL + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, ClassError, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Referer", p.baseURL+"/")
	req.Header.Set("Origin", p.baseURL)
	req.Header.Set("X-CSRFToken", csrfToken)
	if header := jar.Header(); header != "" {
		req.Header.Set("Cookie", header)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, ClassError, fmt.Errorf("intel: request to %s failed: %w", target, err)
	}
	respBody, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, ClassError, fmt.Errorf("intel: reading response from %s: %w", target, err)
	}

	switch p.classifier.Classify(resp, respBody) {
	case ClassAuthFailure:
		return nil, ClassAuthFailure, nil
	case ClassError:
		return nil, ClassError, &HTTPError{StatusCode: resp.StatusCode, URL: target}
	}

	p.session.commitCookies(resp.Cookies())
	return respBody, ClassOK, nil
}
