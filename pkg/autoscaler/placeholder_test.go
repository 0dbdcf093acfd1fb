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
	"context"
	"strings"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/caredai/daytona/pkg/autoscaler"
)

var _ = Describe("Placeholder Manager (C5)", func() {
	var mgr *autoscaler.PlaceholderManager
	var client *fake.Clientset

	BeforeEach(func() {
		client = fake.NewSimpleClientset()
		mgr = &autoscaler.PlaceholderManager{
			K8s: client,
			Spec: autoscaler.PlaceholderSpec{
				Namespace:       "daytona",
				Label:           "daytona-placeholder",
				NodeSelectorKey: "daytona.io/nascent",
				TaintKey:        "daytona.io/nascent",
				PauseImage:      "registry.k8s.io/pause:3.9",
			},
			Log: logr.Discard(),
		}
	})

	It("creates pods with unique names and the expected shape", func() {
		mgr.Create(context.Background(), 3)

		list, err := client.CoreV1().Pods("daytona").List(context.Background(), metav1.ListOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(list.Items).To(HaveLen(3))

		seen := map[string]bool{}
		for _, pod := range list.Items {
			Expect(pod.Name).To(HavePrefix("daytona-placeholder-"))
			Expect(seen[pod.Name]).To(BeFalse(), "duplicate pod name %s", pod.Name)
			seen[pod.Name] = true

			Expect(pod.Labels["app"]).To(Equal("daytona-placeholder"))
			Expect(pod.Spec.RestartPolicy).To(Equal(corev1.RestartPolicyNever))
			Expect(pod.Spec.NodeSelector).To(HaveKeyWithValue("daytona.io/nascent", "true"))

			Expect(pod.Spec.Tolerations).To(HaveLen(1))
			tol := pod.Spec.Tolerations[0]
			Expect(tol.Key).To(Equal("daytona.io/nascent"))
			Expect(tol.Operator).To(Equal(corev1.TolerationOpEqual))
			Expect(tol.Value).To(Equal("true"))
			Expect(tol.Effect).To(Equal(corev1.TaintEffectNoExecute))

			Expect(pod.Spec.Affinity).NotTo(BeNil())
			antiAffinity := pod.Spec.Affinity.PodAntiAffinity
			Expect(antiAffinity.RequiredDuringSchedulingIgnoredDuringExecution).To(HaveLen(1))
			term := antiAffinity.RequiredDuringSchedulingIgnoredDuringExecution[0]
			Expect(term.TopologyKey).To(Equal("kubernetes.io/hostname"))
			Expect(term.LabelSelector.MatchLabels).To(HaveKeyWithValue("app", "daytona-placeholder"))

			Expect(pod.Spec.Containers).To(HaveLen(1))
			Expect(pod.Spec.Containers[0].Name).To(Equal("pause"))
			Expect(pod.Spec.Containers[0].Image).To(Equal("registry.k8s.io/pause:3.9"))

			suffix := strings.TrimPrefix(pod.Name, "daytona-placeholder-")
			Expect(suffix).To(HaveLen(8))
		}
	})

	It("deletes the named pods", func() {
		mgr.Create(context.Background(), 2)
		list, _ := client.CoreV1().Pods("daytona").List(context.Background(), metav1.ListOptions{})
		Expect(list.Items).To(HaveLen(2))

		names := make([]string, len(list.Items))
		for i, pod := range list.Items {
			names[i] = pod.Name
		}

		mgr.Delete(context.Background(), names)

		after, err := client.CoreV1().Pods("daytona").List(context.Background(), metav1.ListOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(after.Items).To(BeEmpty())
	})

	It("treats deleting an already-gone pod as a no-op, not an error", func() {
		Expect(func() {
			mgr.Delete(context.Background(), []string{"daytona-placeholder-ghost01"})
		}).NotTo(Panic())
	})
})
