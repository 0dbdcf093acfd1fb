/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package config loads strongly-typed configuration from the environment at
// process startup. Neither binary reads os.Getenv anywhere else; a missing
// or invalid value is a fatal startup error, never a deferred one.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/caredai/daytona/pkg/errkind"
)

// Autoscaler holds the Core A configuration from spec.md §6. The fields
// tagged required (port, API endpoint and key, namespace, region and the
// four policy values) fail LoadAutoscaler with a ConfigError when absent or
// malformed; the placeholder, node-selector, taint, image and logging
// fields fall back to their envDefault values.
type Autoscaler struct {
	APIPort int `env:"API_PORT,required"`

	DaytonaAPIURL string `env:"DAYTONA_API_URL,required"`
	DaytonaAPIKey string `env:"DAYTONA_API_KEY,required"`

	ProviderNamespace string `env:"PROVIDER_NAMESPACE,required"`
	RegionID          string `env:"REGION_ID,required"`

	MaxResourceUtilizationPercent int `env:"MAX_RESOURCE_UTILIZATION_PERCENT,required"`
	MinIdleRunners                int `env:"MIN_IDLE_RUNNERS,required"`
	MinIdleCPU                    int `env:"MIN_IDLE_CPU,required"`
	MinIdleMemory                 int `env:"MIN_IDLE_MEMORY,required"`

	PlaceholderLabel string `env:"PLACEHOLDER_LABEL" envDefault:"fleet-placeholder"`
	NodeSelectorKey  string `env:"NODE_SELECTOR_KEY" envDefault:"fleet.daytona.io/autoscaled"`
	TaintKey         string `env:"TAINT_KEY" envDefault:"fleet.daytona.io/not-ready"`
	PauseImage       string `env:"PAUSE_IMAGE" envDefault:"rancher/pause:3.6"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// LoadAutoscaler parses Autoscaler from the environment and validates the
// numeric ranges spec.md §4.3 requires (maxResourceUtilizationPercent in
// [0,100]; the min* fields non-negative).
func LoadAutoscaler() (*Autoscaler, error) {
	cfg := &Autoscaler{}
	if err := env.Parse(cfg); err != nil {
		return nil, errkind.Wrap(errkind.Config, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, errkind.Wrap(errkind.Config, err)
	}
	return cfg, nil
}

func (c *Autoscaler) validate() error {
	if c.MaxResourceUtilizationPercent < 0 || c.MaxResourceUtilizationPercent > 100 {
		return fmt.Errorf("MAX_RESOURCE_UTILIZATION_PERCENT must be in [0,100], got %d", c.MaxResourceUtilizationPercent)
	}
	if c.MinIdleRunners < 0 {
		return fmt.Errorf("MIN_IDLE_RUNNERS must be non-negative, got %d", c.MinIdleRunners)
	}
	if c.MinIdleCPU < 0 {
		return fmt.Errorf("MIN_IDLE_CPU must be non-negative, got %d", c.MinIdleCPU)
	}
	if c.MinIdleMemory < 0 {
		return fmt.Errorf("MIN_IDLE_MEMORY must be non-negative, got %d", c.MinIdleMemory)
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("API_PORT must be a valid TCP port, got %d", c.APIPort)
	}
	return nil
}

// PreviewProxy holds the Core B configuration: the Daytona API endpoint,
// the header/query/cookie contract names from spec.md §6, and the cookie
// signing secret used by the codec (C9).
type PreviewProxy struct {
	ListenPort int `env:"PREVIEW_PROXY_PORT" envDefault:"8443"`
	TLSEnabled bool `env:"PREVIEW_PROXY_TLS_ENABLED" envDefault:"false"`

	DaytonaAPIURL string `env:"DAYTONA_API_URL,required"`
	DaytonaAPIKey string `env:"DAYTONA_API_KEY,required"`

	AuthKeyHeader     string `env:"AUTH_KEY_HEADER" envDefault:"X-Daytona-Preview-Key"`
	AuthKeyQueryParam string `env:"AUTH_KEY_QUERY_PARAM" envDefault:"daytonaPreviewKey"`
	AuthCookiePrefix  string `env:"AUTH_COOKIE_PREFIX" envDefault:"daytona-preview-"`

	CookieSigningKey string `env:"COOKIE_SIGNING_KEY,required"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// LoadPreviewProxy parses PreviewProxy from the environment.
func LoadPreviewProxy() (*PreviewProxy, error) {
	cfg := &PreviewProxy{}
	if err := env.Parse(cfg); err != nil {
		return nil, errkind.Wrap(errkind.Config, err)
	}
	if len(cfg.CookieSigningKey) < 32 {
		return nil, errkind.Wrap(errkind.Config,
			fmt.Errorf("COOKIE_SIGNING_KEY must be at least 32 bytes, got %d", len(cfg.CookieSigningKey)))
	}
	return cfg, nil
}
