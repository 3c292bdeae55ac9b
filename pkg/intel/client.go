// Package intel is a client for the Ingress Intel map's private API. The
// service has no documented API surface; access rides on an authenticated
// browser-like session (cookies plus a CSRF token scraped from the map
// page), established either through the identity-provider login flow or
// from cookies injected by the caller.
package intel

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// Default service endpoints. Overridable for testing against local mocks.
const (
	DefaultIntelURL    = "https://intel.ingress.com"
	DefaultIdentityURL = "https://www.facebook.com"
)

// API endpoint paths.
const (
	endpointGetEntities      = "/r/getEntities"
	endpointGetPortalDetails = "/r/getPortalDetails"
)

// Config assembles a Client. HTTPClient is the only required field; leave
// Email/Password empty to run in cookies-only mode.
type Config struct {
	// HTTPClient performs the actual transport. It must not follow
	// redirects on its own (use internal/network.NewClient or set
	// CheckRedirect to http.ErrUseLastResponse).
	HTTPClient Doer

	// Email and Password are the identity-provider credentials. Both empty
	// selects cookies-only mode.
	Email    string
	Password string

	// IntelURL and IdentityURL override the production endpoints.
	IntelURL    string
	IdentityURL string

	// Extractor overrides the CSRF token extraction strategy.
	Extractor TokenExtractor

	// Classifier overrides the auth-failure detection heuristic.
	Classifier ResponseClassifier

	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// Client is the public facade. Safe for concurrent use.
type Client struct {
	session  *Session
	pipeline *pipeline
	logger   *zap.Logger
}

// New builds a Client from the config.
func New(cfg Config) (*Client, error) {
	if cfg.HTTPClient == nil {
		return nil, fmt.Errorf("intel: Config.HTTPClient is required")
	}
	if (cfg.Email == "") != (cfg.Password == "") {
		return nil, fmt.Errorf("intel: email and password must be set together")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	intelURL := cfg.IntelURL
	if intelURL == "" {
		intelURL = DefaultIntelURL
	}
	identityURL := cfg.IdentityURL
	if identityURL == "" {
		identityURL = DefaultIdentityURL
	}
	extractor := cfg.Extractor
	if extractor == nil {
		extractor = HTMLTokenExtractor{}
	}
	classifier := cfg.Classifier
	if classifier == nil {
		classifier = DefaultClassifier{}
	}

	mode := ModeCredentials
	if cfg.Email == "" {
		mode = ModeCookiesOnly
	}

	flow := &credentialLoginFlow{
		http:        cfg.HTTPClient,
		email:       cfg.Email,
		password:    cfg.Password,
		intelURL:    intelURL,
		identityURL: identityURL,
		extractor:   extractor,
		logger:      logger.Named("login"),
	}
	session := newSession(mode, flow, logger.Named("session"))

	return &Client{
		session: session,
		pipeline: &pipeline{
			http:       cfg.HTTPClient,
			session:    session,
			classifier: classifier,
			baseURL:    intelURL,
			logger:     logger.Named("pipeline"),
		},
		logger: logger,
	}, nil
}

// Session exposes the underlying session, mainly for state inspection.
func (c *Client) Session() *Session {
	return c.session
}

// AddCookie injects a cookie into the session jar. In cookies-only mode the
// caller must inject every cookie the service requires before the first
// call.
func (c *Client) AddCookie(name, value string) {
	c.session.AddCookie(name, value)
}

// AddCookies injects every cookie from a Cookie-header-style string,
// matching the format Header()/browser dev tools produce.
func (c *Client) AddCookies(header string) {
	c.session.mergeJar(ParseCookieHeader(header))
}

// GetEntities fetches the game entities in the 3x3 tile block around the
// coordinates.
func (c *Client) GetEntities(ctx context.Context, latitude, longitude float64) (*EntityResponse, error) {
	if err := validateCoordinates(latitude, longitude); err != nil {
		return nil, err
	}
	return c.getEntities(ctx, tileKeysAround(latitude, longitude))
}

func (c *Client) getEntities(ctx context.Context, tileKeys []string) (*EntityResponse, error) {
	raw, err := c.pipeline.call(ctx, endpointGetEntities, func(apiVersion string) any {
		return map[string]any{
			"tileKeys": tileKeys,
			"v":        apiVersion,
		}
	})
	if err != nil {
		return nil, err
	}
	var out EntityResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: getEntities: %v", ErrMalformedResponse, err)
	}
	return &out, nil
}

// GetPortalDetails fetches the full detail tuple for one portal.
func (c *Client) GetPortalDetails(ctx context.Context, portalID string) (*PortalResponse, error) {
	if portalID == "" {
		return nil, fmt.Errorf("intel: portal id must not be empty")
	}
	raw, err := c.pipeline.call(ctx, endpointGetPortalDetails, func(apiVersion string) any {
		return map[string]any{
			"guid": portalID,
			"v":    apiVersion,
		}
	})
	if err != nil {
		return nil, err
	}
	var out PortalResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: getPortalDetails: %v", ErrMalformedResponse, err)
	}
	return &out, nil
}

func validateCoordinates(latitude, longitude float64) error {
	if latitude < -90 || latitude > 90 {
		return fmt.Errorf("intel: latitude %v out of range", latitude)
	}
	if longitude < -180 || longitude > 180 {
		return fmt.Errorf("intel: longitude %v out of range", longitude)
	}
	return nil
}
