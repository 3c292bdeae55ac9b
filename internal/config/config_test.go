package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultsConfig(t *testing.T) *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	return &cfg
}

func TestSetDefaults(t *testing.T) {
	cfg := defaultsConfig(t)

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, "ingress-intel", cfg.Logger.ServiceName)
	assert.Equal(t, 30*time.Second, cfg.Network.RequestTimeout)
	assert.Equal(t, 4, cfg.Intel.ScanWorkers)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "credentials",
			mutate: func(c *Config) { c.Intel.Email = "a@b.c"; c.Intel.Password = "pw" },
		},
		{
			name:   "cookies only",
			mutate: func(c *Config) { c.Intel.Cookies = "csrftoken=abc; sessionid=123" },
		},
		{
			name:    "email without password",
			mutate:  func(c *Config) { c.Intel.Email = "a@b.c" },
			wantErr: "together",
		},
		{
			name:    "password without email",
			mutate:  func(c *Config) { c.Intel.Password = "pw" },
			wantErr: "together",
		},
		{
			name:    "no credentials and no cookies",
			mutate:  func(*Config) {},
			wantErr: "cookies",
		},
		{
			name: "negative scan workers",
			mutate: func(c *Config) {
				c.Intel.Cookies = "csrftoken=abc"
				c.Intel.ScanWorkers = -1
			},
			wantErr: "scan_workers",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultsConfig(t)
			tc.mutate(cfg)

			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestSetAndGet(t *testing.T) {
	orig := instance
	t.Cleanup(func() { instance = orig })

	cfg := defaultsConfig(t)
	Set(cfg)
	assert.Same(t, cfg, Get())
}
