// File: cmd/factory.go
package cmd

import (
	"fmt"
	"net/url"

	"github.com/nappa85/ingress-intel-go/internal/config"
	"github.com/nappa85/ingress-intel-go/internal/network"
	"github.com/nappa85/ingress-intel-go/internal/observability"
	"github.com/nappa85/ingress-intel-go/pkg/intel"
)

// newIntelClient assembles the transport and the Intel client from the
// loaded configuration.
func newIntelClient() (*intel.Client, error) {
	cfg := config.Get()
	logger := observability.GetLogger()

	netCfg := network.NewDefaultClientConfig()
	netCfg.Logger = logger.Named("network")
	netCfg.IgnoreTLSErrors = cfg.Network.IgnoreTLSErrors
	if cfg.Network.RequestTimeout > 0 {
		netCfg.RequestTimeout = cfg.Network.RequestTimeout
	}
	if cfg.Network.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.Network.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		netCfg.ProxyURL = proxyURL
	}

	client, err := intel.New(intel.Config{
		HTTPClient:  network.NewClient(netCfg),
		Email:       cfg.Intel.Email,
		Password:    cfg.Intel.Password,
		IntelURL:    cfg.Intel.BaseURL,
		IdentityURL: cfg.Intel.IdentityURL,
		Logger:      logger.Named("intel"),
	})
	if err != nil {
		return nil, err
	}

	if cfg.Intel.Cookies != "" {
		client.AddCookies(cfg.Intel.Cookies)
	}
	return client, nil
}
