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

package cluster

import "github.com/samber/lo"

// Metrics is the aggregated capacity/allocation view for one tick (C2).
type Metrics struct {
	TotalCPUCapacity    float64
	TotalMemoryCapacity float64

	TotalAllocatedCPU    float64
	TotalAllocatedMemory float64

	TotalAvailableCPU    float64
	TotalAvailableMemory float64

	AvgCPUPerNode float64
	AvgMemPerNode float64
}

// Aggregate implements C2: capacity is runner-reported where a schedulable
// runner exists for a node, node-allocatable otherwise, never both
// (spec.md §4.2, tested by the no-double-counting invariant in §8.3).
func Aggregate(s *State) Metrics {
	var m Metrics

	nodesWithRunners := make(map[string]bool)

	for _, r := range s.Runners {
		if r.Unschedulable {
			continue
		}
		m.TotalCPUCapacity += r.CPUCapacity
		m.TotalMemoryCapacity += r.MemoryCapacity
		if r.Domain == "" {
			continue
		}
		if n, ok := s.NodeByIP[r.Domain]; ok {
			nodesWithRunners[n.Name] = true
		}
	}

	schedulableNodes := lo.Filter(s.Nodes, func(n Node, _ int) bool { return !n.Unschedulable })

	for _, n := range schedulableNodes {
		if nodesWithRunners[n.Name] {
			continue
		}
		m.TotalCPUCapacity += n.AllocatableCPU
		m.TotalMemoryCapacity += n.AllocatableMemory
	}

	m.TotalAllocatedCPU = lo.SumBy(s.ActiveRunners, func(r Runner) float64 { return r.AllocatedCPU })
	m.TotalAllocatedMemory = lo.SumBy(s.ActiveRunners, func(r Runner) float64 { return r.AllocatedMemory })

	m.TotalAvailableCPU = m.TotalCPUCapacity - m.TotalAllocatedCPU
	m.TotalAvailableMemory = m.TotalMemoryCapacity - m.TotalAllocatedMemory

	if n := len(schedulableNodes); n > 0 {
		m.AvgCPUPerNode = m.TotalCPUCapacity / float64(n)
		m.AvgMemPerNode = m.TotalMemoryCapacity / float64(n)
	}

	return m
}
