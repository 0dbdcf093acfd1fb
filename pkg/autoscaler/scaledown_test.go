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
	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/caredai/daytona/pkg/autoscaler"
	"github.com/caredai/daytona/pkg/cluster"
)

var _ = Describe("Scale-down Safety Filter (C4)", func() {
	It("S4: rejects removal that would violate minIdleCpu", func() {
		nodeA := cluster.Node{Name: "node-a", Addresses: []string{"10.0.0.1"}, AllocatableCPU: 8, AllocatableMemory: 16}
		nodeB := cluster.Node{Name: "node-b", Addresses: []string{"10.0.0.2"}, AllocatableCPU: 8, AllocatableMemory: 16}
		deletable := cluster.Runner{ID: "r1", Domain: "10.0.0.1", Unschedulable: true}

		state := cluster.BuildState([]cluster.Runner{deletable}, []cluster.Node{nodeA, nodeB}, nil)
		metrics := cluster.Metrics{TotalAvailableCPU: 5, TotalAvailableMemory: 100}
		cfg := autoscaler.Config{MinIdleCPU: 4, MinIdleMemory: 0}

		plan := autoscaler.FilterScaleDown(state, metrics, cfg, logr.Discard())

		Expect(plan.PlaceholderNamesToDelete).To(BeEmpty())
	})

	It("accepts removal and selects the Scheduled placeholder on that node", func() {
		node := cluster.Node{Name: "node-a", Addresses: []string{"10.0.0.1"}, AllocatableCPU: 2, AllocatableMemory: 4}
		deletable := cluster.Runner{ID: "r1", Domain: "10.0.0.1", Unschedulable: true}
		pod := cluster.PlaceholderPod{Name: "placeholder-xyz", NodeName: "node-a"}

		state := cluster.BuildState([]cluster.Runner{deletable}, []cluster.Node{node}, []cluster.PlaceholderPod{pod})
		metrics := cluster.Metrics{TotalAvailableCPU: 20, TotalAvailableMemory: 40}
		cfg := autoscaler.Config{MinIdleCPU: 4, MinIdleMemory: 4}

		plan := autoscaler.FilterScaleDown(state, metrics, cfg, logr.Discard())

		Expect(plan.PlaceholderNamesToDelete).To(ConsistOf("placeholder-xyz"))
	})

	It("skips a Deletable runner with no matching node", func() {
		deletable := cluster.Runner{ID: "r1", Domain: "10.0.0.99", Unschedulable: true}
		state := cluster.BuildState([]cluster.Runner{deletable}, nil, nil)
		metrics := cluster.Metrics{TotalAvailableCPU: 100, TotalAvailableMemory: 100}
		cfg := autoscaler.Config{}

		plan := autoscaler.FilterScaleDown(state, metrics, cfg, logr.Discard())

		Expect(plan.PlaceholderNamesToDelete).To(BeEmpty())
	})

	It("compares every candidate against the pre-tick totals, never a running total (invariant 5)", func() {
		nodeA := cluster.Node{Name: "node-a", Addresses: []string{"10.0.0.1"}, AllocatableCPU: 6, AllocatableMemory: 6}
		nodeB := cluster.Node{Name: "node-b", Addresses: []string{"10.0.0.2"}, AllocatableCPU: 6, AllocatableMemory: 6}
		deletableA := cluster.Runner{ID: "a", Domain: "10.0.0.1", Unschedulable: true}
		deletableB := cluster.Runner{ID: "b", Domain: "10.0.0.2", Unschedulable: true}
		podA := cluster.PlaceholderPod{Name: "pod-a", NodeName: "node-a"}
		podB := cluster.PlaceholderPod{Name: "pod-b", NodeName: "node-b"}

		state := cluster.BuildState(
			[]cluster.Runner{deletableA, deletableB},
			[]cluster.Node{nodeA, nodeB},
			[]cluster.PlaceholderPod{podA, podB},
		)
		// availableCpu=10, minIdleCpu=4: removing either single node leaves
		// 10-6=4 >= 4, so independently both are safe — even though
		// removing both at once would not be. The filter must accept both
		// because each is checked against the same pre-tick total.
		metrics := cluster.Metrics{TotalAvailableCPU: 10, TotalAvailableMemory: 100}
		cfg := autoscaler.Config{MinIdleCPU: 4, MinIdleMemory: 0}

		plan := autoscaler.FilterScaleDown(state, metrics, cfg, logr.Discard())

		Expect(plan.PlaceholderNamesToDelete).To(ConsistOf("pod-a", "pod-b"))
	})
})
