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

package cluster_test

import (
	"fmt"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/caredai/daytona/pkg/cluster"
)

var _ = Describe("runner classification", func() {
	It("is a disjoint partition covering every runner (invariant 1)", func() {
		runners := randomRunners(200, 7)

		state := cluster.BuildState(runners, nil, nil)

		total := len(state.ActiveRunners) + len(state.IdleRunners) + len(state.DeletableRunners)
		Expect(total).To(Equal(len(runners)))

		seen := map[string]int{}
		for _, r := range state.ActiveRunners {
			seen[r.ID]++
		}
		for _, r := range state.IdleRunners {
			seen[r.ID]++
		}
		for _, r := range state.DeletableRunners {
			seen[r.ID]++
		}
		for id, n := range seen {
			Expect(n).To(Equal(1), "runner %s counted in more than one class", id)
		}
	})

	DescribeTable("classification matches spec.md §3",
		func(r cluster.Runner, active, deletable, idle bool) {
			Expect(r.Active()).To(Equal(active))
			Expect(r.Deletable()).To(Equal(deletable))
			Expect(r.Idle()).To(Equal(idle))
		},
		Entry("hosting cpu is active", cluster.Runner{AllocatedCPU: 1}, true, false, false),
		Entry("hosting a snapshot is active", cluster.Runner{SnapshotCount: 1}, true, false, false),
		Entry("empty and unschedulable is deletable", cluster.Runner{Unschedulable: true}, false, true, false),
		Entry("empty and schedulable is idle", cluster.Runner{}, false, false, true),
	)
})

var _ = Describe("node/runner join index", func() {
	It("indexes a node under every address it reports", func() {
		n := cluster.Node{Name: "node-a", Addresses: []string{"10.0.0.1", "10.0.0.2"}}
		state := cluster.BuildState(nil, []cluster.Node{n}, nil)

		Expect(state.NodeByIP["10.0.0.1"].Name).To(Equal("node-a"))
		Expect(state.NodeByIP["10.0.0.2"].Name).To(Equal("node-a"))
	})

	It("computes a nascent node: scheduled placeholder, schedulable, no registered runner", func() {
		node := cluster.Node{Name: "node-b", Addresses: []string{"10.0.0.9"}}
		pod := cluster.PlaceholderPod{Name: "placeholder-1", NodeName: "node-b"}

		state := cluster.BuildState(nil, []cluster.Node{node}, []cluster.PlaceholderPod{pod})

		Expect(state.NascentNodes).To(HaveLen(1))
		Expect(state.NascentNodes[0].Name).To(Equal("node-b"))
	})

	It("does not call a node nascent once its runner has registered", func() {
		node := cluster.Node{Name: "node-c", Addresses: []string{"10.0.0.10"}}
		pod := cluster.PlaceholderPod{Name: "placeholder-2", NodeName: "node-c"}
		runner := cluster.Runner{ID: "r1", Domain: "10.0.0.10"}

		state := cluster.BuildState([]cluster.Runner{runner}, []cluster.Node{node}, []cluster.PlaceholderPod{pod})

		Expect(state.NascentNodes).To(BeEmpty())
	})

	It("does not call an unschedulable node nascent", func() {
		node := cluster.Node{Name: "node-d", Unschedulable: true, Addresses: []string{"10.0.0.11"}}
		pod := cluster.PlaceholderPod{Name: "placeholder-3", NodeName: "node-d"}

		state := cluster.BuildState(nil, []cluster.Node{node}, []cluster.PlaceholderPod{pod})

		Expect(state.NascentNodes).To(BeEmpty())
	})
})

func randomRunners(n int, seed int64) []cluster.Runner {
	rng := rand.New(rand.NewSource(seed))
	runners := make([]cluster.Runner, n)
	for i := range runners {
		r := cluster.Runner{ID: fmt.Sprintf("runner-%d", i)}
		switch rng.Intn(3) {
		case 0:
			r.AllocatedCPU = rng.Float64() * 4
		case 1:
			r.Unschedulable = true
		}
		runners[i] = r
	}
	return runners
}
