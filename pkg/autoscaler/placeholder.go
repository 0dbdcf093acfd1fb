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
	"fmt"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// PlaceholderSpec carries the knobs C5 needs to build a pod: the label
// value, node selector key, and taint key from spec.md §6, plus the pause
// image to run.
type PlaceholderSpec struct {
	Namespace       string
	Label           string
	NodeSelectorKey string
	TaintKey        string
	PauseImage      string
}

// PlaceholderManager creates and deletes placeholder pods (C5).
type PlaceholderManager struct {
	K8s  kubernetes.Interface
	Spec PlaceholderSpec
	Log  logr.Logger
}

// Create creates n placeholder pods, each with a unique
// "<label>-<8-random-lowercase-alnum>" name, required pod anti-affinity by
// hostname against other pods carrying the same label (spreads one per
// node), the configured node selector, and a toleration for the configured
// taint (spec.md §4.5). It does not abort on an individual failure; it
// logs and continues, matching the batch semantics of Delete.
func (m *PlaceholderManager) Create(ctx context.Context, n int) {
	for i := 0; i < n; i++ {
		pod := m.buildPod()
		if _, err := m.K8s.CoreV1().Pods(m.Spec.Namespace).Create(ctx, pod, metav1.CreateOptions{}); err != nil {
			m.Log.Error(err, "failed to create placeholder pod", "name", pod.Name)
			continue
		}
		m.Log.Info("created placeholder pod", "name", pod.Name)
	}
}

// Delete deletes the named placeholder pods from Spec.Namespace. A NotFound
// is logged and ignored (delete is naturally idempotent); other failures
// are logged but do not abort the batch (spec.md §4.5, §5).
func (m *PlaceholderManager) Delete(ctx context.Context, names []string) {
	for _, name := range names {
		err := m.K8s.CoreV1().Pods(m.Spec.Namespace).Delete(ctx, name, metav1.DeleteOptions{})
		if err == nil {
			m.Log.Info("deleted placeholder pod", "name", name)
			continue
		}
		if apierrors.IsNotFound(err) {
			m.Log.V(1).Info("placeholder pod already gone", "name", name)
			continue
		}
		m.Log.Error(err, "failed to delete placeholder pod", "name", name)
	}
}

func (m *PlaceholderManager) buildPod() *corev1.Pod {
	name := fmt.Sprintf("%s-%s", m.Spec.Label, randomSuffix())

	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: m.Spec.Namespace,
			Labels:    map[string]string{"app": m.Spec.Label},
		},
		Spec: corev1.PodSpec{
			RestartPolicy: corev1.RestartPolicyNever,
			NodeSelector:  map[string]string{m.Spec.NodeSelectorKey: "true"},
			Tolerations: []corev1.Toleration{
				{
					Key:      m.Spec.TaintKey,
					Operator: corev1.TolerationOpEqual,
					Value:    "true",
					Effect:   corev1.TaintEffectNoExecute,
				},
			},
			Affinity: &corev1.Affinity{
				PodAntiAffinity: &corev1.PodAntiAffinity{
					RequiredDuringSchedulingIgnoredDuringExecution: []corev1.PodAffinityTerm{
						{
							TopologyKey: "kubernetes.io/hostname",
							LabelSelector: &metav1.LabelSelector{
								MatchLabels: map[string]string{"app": m.Spec.Label},
							},
						},
					},
				},
			},
			Containers: []corev1.Container{
				{
					Name:  "pause",
					Image: m.Spec.PauseImage,
				},
			},
		},
	}
}

// randomSuffix returns 8 random lowercase alphanumeric characters (the
// first 8 hex digits of a random UUID) rather than a wall-clock value, so
// pods created in the same instant get independent random suffixes
// (spec.md §9 Open Questions).
func randomSuffix() string {
	raw := uuid.New().String()
	suffix := make([]byte, 0, 8)
	for _, r := range raw {
		if r == '-' {
			continue
		}
		suffix = append(suffix, byte(r))
		if len(suffix) == 8 {
			break
		}
	}
	return string(suffix)
}
