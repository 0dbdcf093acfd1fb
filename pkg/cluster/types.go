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

// Package cluster holds the per-tick data model (C1 snapshot, C2 capacity
// aggregation): runners, nodes, and placeholder pods as reconciled from the
// Daytona Admin API and the Kubernetes API, plus their derived
// classifications and aggregated capacity metrics.
package cluster

// Runner is the read-only view of a sandbox-hosting agent, as reported by
// the Daytona Admin API.
type Runner struct {
	ID             string
	Domain         string // the node's reachable IP
	CPUCapacity    float64 // fractional cores
	MemoryCapacity float64 // GiB
	AllocatedCPU   float64
	AllocatedMemory float64
	AllocatedDisk  float64
	StartedSandboxes int
	SnapshotCount  int
	Unschedulable  bool
}

// Active reports whether the runner currently hosts any workload or
// reservation. spec.md §3.
func (r Runner) Active() bool {
	return r.AllocatedCPU > 0 || r.AllocatedMemory > 0 || r.AllocatedDisk > 0 ||
		r.StartedSandboxes > 0 || r.SnapshotCount > 0
}

// Deletable reports whether the runner hosts nothing and has been marked
// unschedulable — a safe scale-down candidate.
func (r Runner) Deletable() bool {
	return !r.Active() && r.Unschedulable
}

// Idle reports whether the runner hosts nothing and remains schedulable.
func (r Runner) Idle() bool {
	return !r.Active() && !r.Unschedulable
}

// Node is the read-only view of a Kubernetes node carrying the autoscaler's
// node-selector label.
type Node struct {
	Name          string
	Unschedulable bool
	Addresses     []string
	AllocatableCPU    float64 // fractional cores
	AllocatableMemory float64 // GiB
}

// PlaceholderPod is a minimum-footprint pod used to force the cluster
// autoscaler to provision a node (C5).
type PlaceholderPod struct {
	Name     string
	NodeName string // empty until scheduled
	App      string
}

// Pending reports whether the placeholder has not yet been scheduled onto a
// node.
func (p PlaceholderPod) Pending() bool { return p.NodeName == "" }

// Scheduled reports whether the placeholder has been scheduled onto a node.
func (p PlaceholderPod) Scheduled() bool { return p.NodeName != "" }

// State is the fully-indexed snapshot produced by C1 for one tick. Every
// fetched runner and pod is covered by exactly one classification bucket
// below (spec.md §4.1 invariant).
type State struct {
	Runners []Runner
	Nodes   []Node
	Pods    []PlaceholderPod

	// RunnerByDomain indexes runners with a non-empty domain.
	RunnerByDomain map[string]Runner
	// NodeByIP indexes nodes by every address they report.
	NodeByIP map[string]Node

	ActiveRunners    []Runner
	DeletableRunners []Runner
	IdleRunners      []Runner

	PendingPods   []PlaceholderPod
	ScheduledPods []PlaceholderPod

	// NascentNodes are schedulable nodes hosting a Scheduled placeholder
	// but with no registered runner yet.
	NascentNodes []Node
}

// BuildState classifies runners and pods and builds the join indexes. It is
// the pure, side-effect-free half of C1 — Snapshot (in snapshot.go) is the
// I/O half that calls this after fetching.
func BuildState(runners []Runner, nodes []Node, pods []PlaceholderPod) *State {
	s := &State{
		Runners:        runners,
		Nodes:          nodes,
		Pods:           pods,
		RunnerByDomain: make(map[string]Runner, len(runners)),
		NodeByIP:       make(map[string]Node, len(nodes)),
	}

	for _, r := range runners {
		if r.Domain == "" {
			continue
		}
		s.RunnerByDomain[r.Domain] = r
		switch {
		case r.Active():
			s.ActiveRunners = append(s.ActiveRunners, r)
		case r.Deletable():
			s.DeletableRunners = append(s.DeletableRunners, r)
		default:
			s.IdleRunners = append(s.IdleRunners, r)
		}
	}
	// Runners with an empty domain still partition into a classification
	// bucket even though they are not indexable by domain.
	for _, r := range runners {
		if r.Domain != "" {
			continue
		}
		switch {
		case r.Active():
			s.ActiveRunners = append(s.ActiveRunners, r)
		case r.Deletable():
			s.DeletableRunners = append(s.DeletableRunners, r)
		default:
			s.IdleRunners = append(s.IdleRunners, r)
		}
	}

	for _, n := range nodes {
		for _, addr := range n.Addresses {
			if addr == "" {
				continue
			}
			s.NodeByIP[addr] = n
		}
	}

	for _, p := range pods {
		if p.Pending() {
			s.PendingPods = append(s.PendingPods, p)
		} else {
			s.ScheduledPods = append(s.ScheduledPods, p)
		}
	}

	s.NascentNodes = computeNascentNodes(nodes, s.ScheduledPods, s.RunnerByDomain)

	return s
}

// computeNascentNodes finds schedulable nodes that host at least one
// Scheduled placeholder but have no schedulable runner registered under any
// of the node's addresses. Like Aggregate's nodesWithRunners set, only
// schedulable runners count: a node whose only runner is unschedulable is
// nascent here and is counted at its allocatable capacity there.
func computeNascentNodes(nodes []Node, scheduled []PlaceholderPod, runnerByDomain map[string]Runner) []Node {
	nodesWithScheduledPod := make(map[string]bool, len(scheduled))
	for _, p := range scheduled {
		nodesWithScheduledPod[p.NodeName] = true
	}

	var nascent []Node
	for _, n := range nodes {
		if n.Unschedulable || !nodesWithScheduledPod[n.Name] {
			continue
		}
		if hasRegisteredRunner(n, runnerByDomain) {
			continue
		}
		nascent = append(nascent, n)
	}
	return nascent
}

func hasRegisteredRunner(n Node, runnerByDomain map[string]Runner) bool {
	for _, addr := range n.Addresses {
		if r, ok := runnerByDomain[addr]; ok && !r.Unschedulable {
			return true
		}
	}
	return false
}
