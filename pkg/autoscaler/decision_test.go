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

package autoscaler_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/caredai/daytona/pkg/autoscaler"
	"github.com/caredai/daytona/pkg/cluster"
)

var _ = Describe("Scale Decision Engine (C3)", func() {
	It("S1: scales up on idle-cpu deficit", func() {
		runner := cluster.Runner{ID: "r1", Domain: "10.0.0.1", CPUCapacity: 8, MemoryCapacity: 16}
		node := cluster.Node{Name: "n1", Addresses: []string{"10.0.0.1"}, AllocatableCPU: 8, AllocatableMemory: 16}

		state := cluster.BuildState([]cluster.Runner{runner}, []cluster.Node{node}, nil)
		metrics := cluster.Aggregate(state)

		Expect(metrics.TotalAvailableCPU).To(Equal(8.0))
		Expect(metrics.AvgCPUPerNode).To(Equal(8.0))

		cfg := autoscaler.Config{MaxResourceUtilizationPercent: 80, MinIdleRunners: 0, MinIdleCPU: 16, MinIdleMemory: 32}
		d := autoscaler.Decide(state, metrics, cfg, 0)

		Expect(d.CPUIdleLow).To(BeTrue())
		Expect(d.NodesNeeded).To(Equal(1))
		Expect(d.NodesToCreate).To(Equal(1))
	})

	It("S2: pending placeholders absorb the deficit, no new pod created", func() {
		runner := cluster.Runner{ID: "r1", Domain: "10.0.0.1", CPUCapacity: 8, MemoryCapacity: 16}
		node := cluster.Node{Name: "n1", Addresses: []string{"10.0.0.1"}, AllocatableCPU: 8, AllocatableMemory: 16}

		state := cluster.BuildState([]cluster.Runner{runner}, []cluster.Node{node}, nil)
		metrics := cluster.Aggregate(state)
		cfg := autoscaler.Config{MaxResourceUtilizationPercent: 80, MinIdleRunners: 0, MinIdleCPU: 16, MinIdleMemory: 32}

		d := autoscaler.Decide(state, metrics, cfg, 1)

		Expect(d.NodesNeeded).To(Equal(1))
		Expect(d.NodesToCreate).To(Equal(0))
	})

	It("placeholder-accounting invariant 6: nodesNeeded <= pendingPlaceholders implies nodesToCreate == 0", func() {
		runner := cluster.Runner{ID: "r1", Domain: "10.0.0.1", CPUCapacity: 8, MemoryCapacity: 16}
		node := cluster.Node{Name: "n1", Addresses: []string{"10.0.0.1"}, AllocatableCPU: 8, AllocatableMemory: 16}
		state := cluster.BuildState([]cluster.Runner{runner}, []cluster.Node{node}, nil)
		metrics := cluster.Aggregate(state)
		cfg := autoscaler.Config{MaxResourceUtilizationPercent: 80, MinIdleRunners: 0, MinIdleCPU: 16, MinIdleMemory: 32}

		d := autoscaler.Decide(state, metrics, cfg, 5)
		Expect(d.NodesNeeded).To(BeNumerically("<=", 5))
		Expect(d.NodesToCreate).To(Equal(0))
	})

	It("scale-up monotonicity: raising minIdleCpu never decreases nodesToCreate (invariant 4)", func() {
		runner := cluster.Runner{ID: "r1", Domain: "10.0.0.1", CPUCapacity: 8, MemoryCapacity: 16}
		node := cluster.Node{Name: "n1", Addresses: []string{"10.0.0.1"}, AllocatableCPU: 8, AllocatableMemory: 16}
		state := cluster.BuildState([]cluster.Runner{runner}, []cluster.Node{node}, nil)
		metrics := cluster.Aggregate(state)

		prev := -1
		for minIdleCPU := 0.0; minIdleCPU <= 40; minIdleCPU += 2 {
			cfg := autoscaler.Config{MaxResourceUtilizationPercent: 80, MinIdleRunners: 0, MinIdleCPU: minIdleCPU, MinIdleMemory: 0}
			d := autoscaler.Decide(state, metrics, cfg, 0)
			if prev >= 0 {
				Expect(d.NodesToCreate).To(BeNumerically(">=", prev))
			}
			prev = d.NodesToCreate
		}
	})

	It("does not fire scale-up when nothing is short", func() {
		runner := cluster.Runner{ID: "r1", Domain: "10.0.0.1", CPUCapacity: 8, MemoryCapacity: 16}
		node := cluster.Node{Name: "n1", Addresses: []string{"10.0.0.1"}, AllocatableCPU: 8, AllocatableMemory: 16}
		state := cluster.BuildState([]cluster.Runner{runner}, []cluster.Node{node}, nil)
		metrics := cluster.Aggregate(state)

		cfg := autoscaler.Config{MaxResourceUtilizationPercent: 100, MinIdleRunners: 0, MinIdleCPU: 0, MinIdleMemory: 0}
		d := autoscaler.Decide(state, metrics, cfg, 0)

		Expect(d.ScaleUp).To(BeFalse())
		Expect(d.NodesToCreate).To(Equal(0))
	})

	It("guards zero-capacity divisors instead of erroring", func() {
		state := cluster.BuildState(nil, nil, nil)
		metrics := cluster.Aggregate(state)

		cfg := autoscaler.Config{MaxResourceUtilizationPercent: 50, MinIdleRunners: 0, MinIdleCPU: 0, MinIdleMemory: 0}
		d := autoscaler.Decide(state, metrics, cfg, 0)

		Expect(d.UtilizationHigh).To(BeFalse())
	})
})
