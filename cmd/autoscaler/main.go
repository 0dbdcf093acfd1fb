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

// Command autoscaler runs the runner fleet control loop (C6): it sizes the
// pool of sandbox-hosting runners by reconciling the Daytona Admin API
// registry against Kubernetes node and placeholder-pod inventory.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/caredai/daytona/internal/config"
	"github.com/caredai/daytona/internal/telemetry"
	"github.com/caredai/daytona/pkg/autoscaler"
	"github.com/caredai/daytona/pkg/cluster"
	"github.com/caredai/daytona/pkg/daytonaapi"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadAutoscaler()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	zapLogger, err := telemetry.NewZap(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	restCfg, err := rest.InClusterConfig()
	if err != nil {
		return fmt.Errorf("loading in-cluster kubeconfig: %w", err)
	}
	k8sClient, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return fmt.Errorf("building kubernetes client: %w", err)
	}

	daytonaClient := daytonaapi.NewHTTPClient(cfg.DaytonaAPIURL, cfg.DaytonaAPIKey, nil)

	collector := &cluster.Collector{
		Daytona:           daytonaClient,
		K8s:               k8sClient,
		RegionID:          cfg.RegionID,
		ProviderNamespace: cfg.ProviderNamespace,
		PlaceholderLabel:  cfg.PlaceholderLabel,
		NodeSelectorKey:   cfg.NodeSelectorKey,
	}

	placeholders := &autoscaler.PlaceholderManager{
		K8s: k8sClient,
		Spec: autoscaler.PlaceholderSpec{
			Namespace:       cfg.ProviderNamespace,
			Label:           cfg.PlaceholderLabel,
			NodeSelectorKey: cfg.NodeSelectorKey,
			TaintKey:        cfg.TaintKey,
			PauseImage:      cfg.PauseImage,
		},
		Log: telemetry.AsLogr(zapLogger),
	}

	loop := &autoscaler.Loop{
		Collector:    collector,
		Placeholders: placeholders,
		Config: autoscaler.Config{
			MaxResourceUtilizationPercent: cfg.MaxResourceUtilizationPercent,
			MinIdleRunners:                cfg.MinIdleRunners,
			MinIdleCPU:                    float64(cfg.MinIdleCPU),
			MinIdleMemory:                 float64(cfg.MinIdleMemory),
		},
		Log: log,
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(telemetry.AutoscalerCollectors()...)

	mux := http.NewServeMux()
	mux.Handle("/healthz", loop.HealthzHandler())
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.APIPort), Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Infow("health endpoint listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorw("health server failed", "error", err)
		}
	}()

	log.Infow("starting control loop", "period", autoscaler.DefaultTickPeriod)
	loop.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), autoscaler.DefaultTickPeriod)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
