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
	"github.com/go-logr/logr"

	"github.com/caredai/daytona/pkg/cluster"
)

// ScaleDownPlan is the output of FilterScaleDown: the placeholder pods safe
// to delete. It names no runners; the core itself never deletes runners —
// spec.md §1 non-goals — it only deletes the matching placeholder and lets
// downstream reconcilers drain the runner.
type ScaleDownPlan struct {
	PlaceholderNamesToDelete []string
}

// FilterScaleDown implements C4. Deletable runners are processed in the
// order returned by C1 (first-fit greedy); every candidate is compared
// against the *pre-tick* totals in m, never against a running total that
// updates across iterations — this is deliberately conservative (spec.md
// §4.4).
func FilterScaleDown(s *cluster.State, m cluster.Metrics, cfg Config, log logr.Logger) ScaleDownPlan {
	var plan ScaleDownPlan

	for _, r := range s.DeletableRunners {
		node, ok := s.NodeByIP[r.Domain]
		if !ok {
			log.Info("skipping deletable runner with no matching node", "runner", r.ID, "domain", r.Domain)
			continue
		}

		hypAvailCPU := m.TotalAvailableCPU - node.AllocatableCPU
		hypAvailMem := m.TotalAvailableMemory - node.AllocatableMemory

		if hypAvailCPU < cfg.MinIdleCPU || hypAvailMem < cfg.MinIdleMemory {
			log.V(1).Info("rejecting scale-down candidate, would violate idle minimums",
				"runner", r.ID, "node", node.Name,
				"hypAvailCpu", hypAvailCPU, "hypAvailMem", hypAvailMem)
			continue
		}

		pod, ok := findScheduledPodOnNode(s.ScheduledPods, node.Name)
		if !ok {
			log.Info("accepted runner for scale-down but found no placeholder on its node", "runner", r.ID, "node", node.Name)
			continue
		}

		plan.PlaceholderNamesToDelete = append(plan.PlaceholderNamesToDelete, pod.Name)
	}

	return plan
}

func findScheduledPodOnNode(pods []cluster.PlaceholderPod, nodeName string) (cluster.PlaceholderPod, bool) {
	for _, p := range pods {
		if p.NodeName == nodeName {
			return p, true
		}
	}
	return cluster.PlaceholderPod{}, false
}
