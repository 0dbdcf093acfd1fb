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

package autoscaler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/caredai/daytona/internal/telemetry"
	"github.com/caredai/daytona/pkg/cluster"
)

// DefaultTickPeriod is the fixed control-loop period from spec.md §4.6.
const DefaultTickPeriod = 30 * time.Second

// TickResult summarizes the outcome of one tick, for logging and the
// /healthz introspection described in SPEC_FULL.md §5.
type TickResult struct {
	At            time.Time
	ScaledUp      int
	ScaledDown    int
	Err           error
}

// Loop is the Control Loop Driver (C6): one ticker drives Snapshot →
// Aggregate → Decide → (create placeholders | scale down) serially. The
// tick body takes no lock; the only state kept across ticks besides config
// and the API clients is the last TickResult, which mu guards for readers
// such as the /healthz handler.
type Loop struct {
	Collector *cluster.Collector
	Placeholders *PlaceholderManager
	Config    Config
	Period    time.Duration
	Log       *zap.SugaredLogger

	mu   sync.Mutex
	last TickResult
}

// Run blocks, ticking every Period (DefaultTickPeriod if zero) until ctx is
// cancelled. Each tick's side effects complete before the next tick's
// fetch begins, because the loop body is synchronous between ticker
// receives (spec.md §5 ordering guarantee).
func (l *Loop) Run(ctx context.Context) {
	period := l.Period
	if period <= 0 {
		period = DefaultTickPeriod
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	start := time.Now()
	result := TickResult{At: start}
	defer func() {
		telemetry.TickDuration.Observe(time.Since(start).Seconds())
		l.mu.Lock()
		l.last = result
		l.mu.Unlock()
	}()

	state, err := l.Collector.Snapshot(ctx)
	if err != nil {
		l.Log.Errorw("tick aborted: snapshot failed", "error", err)
		telemetry.TickErrorsTotal.WithLabelValues("snapshot").Inc()
		result.Err = err
		return
	}

	metrics := cluster.Aggregate(state)

	telemetry.RunnersByClass.WithLabelValues("active").Set(float64(len(state.ActiveRunners)))
	telemetry.RunnersByClass.WithLabelValues("idle").Set(float64(len(state.IdleRunners)))
	telemetry.RunnersByClass.WithLabelValues("deletable").Set(float64(len(state.DeletableRunners)))

	l.Log.Infow("tick snapshot",
		"runners_active", len(state.ActiveRunners),
		"runners_idle", len(state.IdleRunners),
		"runners_deletable", len(state.DeletableRunners),
		"nascent_nodes", len(state.NascentNodes),
		"pending_placeholders", len(state.PendingPods),
		"scheduled_placeholders", len(state.ScheduledPods),
		"available_cpu", metrics.TotalAvailableCPU,
		"available_memory", metrics.TotalAvailableMemory,
	)

	decision := Decide(state, metrics, l.Config, len(state.PendingPods))

	l.Log.Infow("tick decision",
		"scale_up", decision.ScaleUp,
		"nodes_needed", decision.NodesNeeded,
		"nodes_to_create", decision.NodesToCreate,
	)

	if decision.ScaleUp {
		if decision.NodesToCreate > 0 {
			l.Placeholders.Create(ctx, decision.NodesToCreate)
			telemetry.PlaceholdersCreatedTotal.Add(float64(decision.NodesToCreate))
			result.ScaledUp = decision.NodesToCreate
		}
		return
	}

	// Scale-up did not fire: any previously ordered scale-up is no longer
	// justified, so every pending placeholder is cancelled (spec.md §4.3).
	if len(state.PendingPods) > 0 {
		names := make([]string, len(state.PendingPods))
		for i, p := range state.PendingPods {
			names[i] = p.Name
		}
		l.Placeholders.Delete(ctx, names)
		telemetry.PlaceholdersDeletedTotal.WithLabelValues("unjustified_pending").Add(float64(len(names)))
	}

	plan := FilterScaleDown(state, metrics, l.Config, telemetry.AsLogr(l.Log.Desugar()))
	if len(plan.PlaceholderNamesToDelete) > 0 {
		l.Placeholders.Delete(ctx, plan.PlaceholderNamesToDelete)
		telemetry.PlaceholdersDeletedTotal.WithLabelValues("scale_down").Add(float64(len(plan.PlaceholderNamesToDelete)))
		result.ScaledDown = len(plan.PlaceholderNamesToDelete)
	}
}

// LastTick returns the most recently completed tick's result.
func (l *Loop) LastTick() TickResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last
}

// HealthzHandler serves spec.md §4.6/§6: 200 OK while the loop is
// configured, independent of the loop's forward progress. When the client
// asks for JSON it additionally reports the last tick's outcome —
// additive observability per SPEC_FULL.md §5, not a change to the
// liveness contract.
func (l *Loop) HealthzHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") == "application/json" {
			last := l.LastTick()
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(struct {
				Status     string    `json:"status"`
				LastTickAt time.Time `json:"lastTickAt"`
				ScaledUp   int       `json:"scaledUp"`
				ScaledDown int       `json:"scaledDown"`
			}{
				Status:     "OK",
				LastTickAt: last.At,
				ScaledUp:   last.ScaledUp,
				ScaledDown: last.ScaledDown,
			})
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("OK"))
	})
}
