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

// Command previewproxy runs the sandbox preview reverse-proxy
// authentication layer (Core B): it maps an untrusted path token plus a
// client credential into a validated sandbox id, issues a short-lived
// authenticated cookie, and forwards (or redirects) accordingly.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/caredai/daytona/internal/config"
	"github.com/caredai/daytona/internal/telemetry"
	"github.com/caredai/daytona/pkg/daytonaapi"
	"github.com/caredai/daytona/pkg/previewproxy"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadPreviewProxy()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	zapLogger, err := telemetry.NewZap(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	daytonaClient := daytonaapi.NewHTTPClient(cfg.DaytonaAPIURL, cfg.DaytonaAPIKey, nil)

	codec, err := previewproxy.NewCookieCodec(cfg.CookieSigningKey)
	if err != nil {
		return fmt.Errorf("building cookie codec: %w", err)
	}

	resolverCfg := previewproxy.Config{
		AuthKeyHeader:     cfg.AuthKeyHeader,
		AuthKeyQueryParam: cfg.AuthKeyQueryParam,
		AuthCookiePrefix:  cfg.AuthCookiePrefix,
		TLSEnabled:        cfg.TLSEnabled,
	}

	resolver := &previewproxy.Resolver{
		Daytona: daytonaClient,
		Exchanger: &previewproxy.TokenExchanger{
			Daytona:      daytonaClient,
			Codec:        codec,
			CookiePrefix: cfg.AuthCookiePrefix,
		},
		Codec:  codec,
		Config: resolverCfg,
		Log:    log,
	}

	handler := &previewproxy.Handler{Resolver: resolver, Daytona: daytonaClient}

	registry := prometheus.NewRegistry()
	registry.MustRegister(telemetry.PreviewProxyCollectors()...)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.Handle("/", handler.Routes())

	server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.ListenPort), Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Infow("preview proxy listening", "port", cfg.ListenPort, "tls_enabled", cfg.TLSEnabled)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serving: %w", err)
	}
	return nil
}
