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

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/client-go/kubernetes"

	"github.com/caredai/daytona/pkg/daytonaapi"
	"github.com/caredai/daytona/pkg/errkind"
)

// Collector implements C1: it fetches runners, placeholder pods, and nodes
// and folds them into one State per tick.
type Collector struct {
	Daytona daytonaapi.Client
	K8s     kubernetes.Interface

	RegionID          string
	ProviderNamespace string
	PlaceholderLabel  string
	NodeSelectorKey   string
}

// Snapshot fetches runners, placeholder pods in ProviderNamespace, and
// nodes carrying NodeSelectorKey=true, then builds the indexed State.
// Any failed fetch aborts the tick: no partial state is ever returned
// (spec.md §4.1, §5).
func (c *Collector) Snapshot(ctx context.Context) (*State, error) {
	runners, err := c.Daytona.ListRunners(ctx, c.RegionID)
	if err != nil {
		return nil, fmt.Errorf("listing runners: %w", err)
	}

	podList, err := c.K8s.CoreV1().Pods(c.ProviderNamespace).List(ctx, metav1.ListOptions{
		LabelSelector: labels.SelectorFromSet(labels.Set{"app": c.PlaceholderLabel}).String(),
	})
	if err != nil {
		return nil, errkind.Wrap(errkind.TransientUpstream, fmt.Errorf("listing placeholder pods: %w", err))
	}

	nodeList, err := c.K8s.CoreV1().Nodes().List(ctx, metav1.ListOptions{
		LabelSelector: labels.SelectorFromSet(labels.Set{c.NodeSelectorKey: "true"}).String(),
	})
	if err != nil {
		return nil, errkind.Wrap(errkind.TransientUpstream, fmt.Errorf("listing nodes: %w", err))
	}

	return BuildState(toDomainRunners(runners), toDomainNodes(nodeList.Items), toDomainPods(podList.Items)), nil
}

func toDomainRunners(in []daytonaapi.Runner) []Runner {
	out := make([]Runner, len(in))
	for i, r := range in {
		out[i] = Runner{
			ID:               r.ID,
			Domain:           r.Domain,
			CPUCapacity:      r.CPUCapacity,
			MemoryCapacity:   r.MemoryCapacity,
			AllocatedCPU:     r.AllocatedCPU,
			AllocatedMemory:  r.AllocatedMemory,
			AllocatedDisk:    r.AllocatedDisk,
			StartedSandboxes: r.StartedSandboxes,
			SnapshotCount:    r.SnapshotCount,
			Unschedulable:    r.Unschedulable,
		}
	}
	return out
}

func toDomainNodes(in []corev1.Node) []Node {
	out := make([]Node, len(in))
	for i, n := range in {
		var addrs []string
		for _, a := range n.Status.Addresses {
			addrs = append(addrs, a.Address)
		}
		cpu := n.Status.Allocatable.Cpu()
		mem := n.Status.Allocatable.Memory()
		out[i] = Node{
			Name:              n.Name,
			Unschedulable:     n.Spec.Unschedulable,
			Addresses:         addrs,
			AllocatableCPU:    float64(cpu.MilliValue()) / 1000,
			AllocatableMemory: float64(mem.Value()) / (1 << 30),
		}
	}
	return out
}

func toDomainPods(in []corev1.Pod) []PlaceholderPod {
	out := make([]PlaceholderPod, len(in))
	for i, p := range in {
		out[i] = PlaceholderPod{
			Name:     p.Name,
			NodeName: p.Spec.NodeName,
			App:      p.Labels["app"],
		}
	}
	return out
}
