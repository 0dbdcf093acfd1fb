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

// Package autoscaler implements C3 (scale decision), C4 (scale-down safety),
// C5 (placeholder pod management) and C6 (the control loop driver).
package autoscaler

import (
	"math"

	"github.com/caredai/daytona/pkg/cluster"
)

// Config is the tunable policy from spec.md §6. All four fields are
// required at startup; internal/config validates their ranges before a
// Config ever reaches this package.
type Config struct {
	MaxResourceUtilizationPercent int
	MinIdleRunners                int
	MinIdleCPU                    float64
	MinIdleMemory                 float64
}

// Decision is the output of the Scale Decision Engine for one tick.
type Decision struct {
	UtilizationHigh bool
	IdleBufferLow   bool
	CPUIdleLow      bool
	MemIdleLow      bool

	NodesNeeded    int
	NodesToCreate  int
	ScaleUp        bool
}

// Decide implements C3. pendingPlaceholders is the count of Pending
// placeholder pods observed in this tick's State — it always absorbs the
// deficit first, so a scale-up already in flight does not get duplicated
// (spec.md §4.3).
func Decide(s *cluster.State, m cluster.Metrics, cfg Config, pendingPlaceholders int) Decision {
	var d Decision

	if m.TotalCPUCapacity > 0 {
		d.UtilizationHigh = d.UtilizationHigh || 100*m.TotalAllocatedCPU/m.TotalCPUCapacity > float64(cfg.MaxResourceUtilizationPercent)
	}
	if m.TotalMemoryCapacity > 0 {
		d.UtilizationHigh = d.UtilizationHigh || 100*m.TotalAllocatedMemory/m.TotalMemoryCapacity > float64(cfg.MaxResourceUtilizationPercent)
	}

	idleBuffer := len(s.IdleRunners) + len(s.NascentNodes)
	d.IdleBufferLow = idleBuffer < cfg.MinIdleRunners
	d.CPUIdleLow = m.TotalAvailableCPU < cfg.MinIdleCPU
	d.MemIdleLow = m.TotalAvailableMemory < cfg.MinIdleMemory

	d.ScaleUp = d.UtilizationHigh || d.IdleBufferLow || d.CPUIdleLow || d.MemIdleLow

	needed := 0
	if d.CPUIdleLow && m.AvgCPUPerNode > 0 {
		needed = maxInt(needed, int(math.Ceil((cfg.MinIdleCPU-m.TotalAvailableCPU)/m.AvgCPUPerNode)))
	}
	if d.MemIdleLow && m.AvgMemPerNode > 0 {
		needed = maxInt(needed, int(math.Ceil((cfg.MinIdleMemory-m.TotalAvailableMemory)/m.AvgMemPerNode)))
	}
	if d.IdleBufferLow {
		needed = maxInt(needed, cfg.MinIdleRunners-idleBuffer)
	}
	if d.UtilizationHigh && needed == 0 {
		needed = 1
	}
	d.NodesNeeded = needed

	if toCreate := needed - pendingPlaceholders; d.ScaleUp && toCreate > 0 {
		d.NodesToCreate = toCreate
	}

	return d
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
