// Copyright 2019 Preferred Networks, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package kube implements cluster.Cluster on top of a Kubernetes API server.
package kube

import (
	"context"

	"github.com/containerd/log"
	"github.com/cpuguy83/strongerrors"
	"github.com/pkg/errors"
	v1 "k8s.io/api/core/v1"
	policyv1 "k8s.io/api/policy/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/fields"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/pfnet-research/k8s-gang-scheduler/pkg/cluster"
	l "github.com/pfnet-research/k8s-gang-scheduler/pkg/log"
	"github.com/pfnet-research/k8s-gang-scheduler/pkg/node"
	"github.com/pfnet-research/k8s-gang-scheduler/pkg/pod"
)

// EvictionPolicy selects how a victim pod is removed from its node.
type EvictionPolicy string

const (
	// EvictionPolicyDelete deletes the victim pod.
	EvictionPolicyDelete EvictionPolicy = "delete"
	// EvictionPolicyEvict creates an Eviction for the victim pod, honouring PodDisruptionBudgets.
	EvictionPolicyEvict EvictionPolicy = "evict"
)

// Options configures a Client.
type Options struct {
	// SchedulerName is the spec.schedulerName of the pods this scheduler is responsible for.
	SchedulerName string
	// GroupLabel is the label key whose value names the gang of a pod.
	GroupLabel string
	// EvictionPolicy is how victims are removed. Defaults to EvictionPolicyDelete.
	EvictionPolicy EvictionPolicy
}

// Client lists and mutates the pods of one scheduler through a Kubernetes clientset.
type Client struct {
	clientset kubernetes.Interface
	opts      Options
}

// NewClient creates a new Client.
// Returns error if the scheduler name is empty or the eviction policy is unknown.
func NewClient(clientset kubernetes.Interface, opts Options) (*Client, error) {
	if opts.SchedulerName == "" {
		return nil, strongerrors.InvalidArgument(errors.New("scheduler name must not be empty"))
	}

	switch opts.EvictionPolicy {
	case "":
		opts.EvictionPolicy = EvictionPolicyDelete
	case EvictionPolicyDelete, EvictionPolicyEvict:
	default:
		return nil, strongerrors.InvalidArgument(
			errors.Errorf("eviction policy %q is not supported", opts.EvictionPolicy))
	}

	return &Client{clientset: clientset, opts: opts}, nil
}

// BuildClientset creates a clientset from the in-cluster config, falling back to the kubeconfig
// at the given path (or the default loading rules if the path is empty).
func BuildClientset(kubeconfig string) (kubernetes.Interface, error) {
	config, err := rest.InClusterConfig()
	if err != nil {
		log.L.Debugf("In-cluster config not available (%s); using kubeconfig", err.Error())

		rules := clientcmd.NewDefaultClientConfigLoadingRules()
		rules.ExplicitPath = kubeconfig
		config, err = clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
			rules, &clientcmd.ConfigOverrides{}).ClientConfig()
		if err != nil {
			return nil, errors.Wrap(err, "Error loading kubeconfig")
		}
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, errors.Wrap(err, "Error creating clientset")
	}

	return clientset, nil
}

// ListPendingPods implements cluster.StateProvider.
func (c *Client) ListPendingPods(ctx context.Context) ([]*pod.Pod, error) {
	selector := fields.AndSelectors(
		fields.OneTermEqualSelector("status.phase", string(v1.PodPending)),
		fields.OneTermEqualSelector("spec.nodeName", ""),
		fields.OneTermEqualSelector("spec.schedulerName", c.opts.SchedulerName),
	)

	list, err := c.clientset.CoreV1().Pods(metav1.NamespaceAll).List(ctx, metav1.ListOptions{
		FieldSelector: selector.String(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "Error listing pending pods")
	}

	pods := make([]*pod.Pod, 0, len(list.Items))
	for i := range list.Items {
		v1Pod := &list.Items[i]
		if !c.claims(v1Pod) || v1Pod.Status.Phase != v1.PodPending || v1Pod.Spec.NodeName != "" {
			continue
		}

		p, err := pod.FromV1(v1Pod, c.opts.GroupLabel)
		if err != nil {
			return nil, err
		}
		pods = append(pods, p)
	}

	log.G(ctx).Debugf("Listed %d pending pods", len(pods))

	return pods, nil
}

// ListNodes implements cluster.StateProvider.
// Cordoned nodes are listed as unschedulable so that their residents still count as members of
// their gang. Pods that have terminated do not occupy their node.
func (c *Client) ListNodes(ctx context.Context) ([]*node.Node, error) {
	nodeList, err := c.clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "Error listing nodes")
	}

	selector := fields.AndSelectors(
		fields.OneTermNotEqualSelector("spec.nodeName", ""),
		fields.OneTermEqualSelector("spec.schedulerName", c.opts.SchedulerName),
	)
	podList, err := c.clientset.CoreV1().Pods(metav1.NamespaceAll).List(ctx, metav1.ListOptions{
		FieldSelector: selector.String(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "Error listing bound pods")
	}

	residents := map[string][]*pod.Pod{}
	for i := range podList.Items {
		v1Pod := &podList.Items[i]
		if !c.claims(v1Pod) || v1Pod.Spec.NodeName == "" || isTerminated(v1Pod) {
			continue
		}

		p, err := pod.FromV1(v1Pod, c.opts.GroupLabel)
		if err != nil {
			return nil, err
		}
		residents[v1Pod.Spec.NodeName] = append(residents[v1Pod.Spec.NodeName], p)
	}

	nodes := make([]*node.Node, 0, len(nodeList.Items))
	for _, v1Node := range nodeList.Items {
		if v1Node.Spec.Unschedulable {
			log.G(ctx).Debugf("Node %s is unschedulable", v1Node.Name)
			nodes = append(nodes, node.NewUnschedulableNode(v1Node.Name, residents[v1Node.Name]...))
			continue
		}
		nodes = append(nodes, node.NewNode(v1Node.Name, residents[v1Node.Name]...))
	}

	if l.IsDebugEnabled() {
		log.G(ctx).Debugf("Listed nodes %v", nodes)
	}

	return nodes, nil
}

// Bind implements cluster.Mutator.
func (c *Client) Bind(ctx context.Context, p *pod.Pod, nodeName string) error {
	binding := &v1.Binding{
		ObjectMeta: metav1.ObjectMeta{
			Name:      p.Name,
			Namespace: p.Namespace,
		},
		Target: v1.ObjectReference{
			APIVersion: "v1",
			Kind:       "Node",
			Name:       nodeName,
		},
	}

	if err := c.clientset.CoreV1().Pods(p.Namespace).Bind(ctx, binding, metav1.CreateOptions{}); err != nil {
		return errors.Wrapf(err, "Error binding pod %s to node %s", p.Key(), nodeName)
	}

	return nil
}

// Evict implements cluster.Mutator.
// A victim that no longer exists counts as evicted.
func (c *Client) Evict(ctx context.Context, p *pod.Pod) error {
	var err error
	switch c.opts.EvictionPolicy {
	case EvictionPolicyEvict:
		err = c.clientset.CoreV1().Pods(p.Namespace).EvictV1(ctx, &policyv1.Eviction{
			ObjectMeta: metav1.ObjectMeta{
				Name:      p.Name,
				Namespace: p.Namespace,
			},
		})
	default:
		err = c.clientset.CoreV1().Pods(p.Namespace).Delete(ctx, p.Name, metav1.DeleteOptions{})
	}

	if err != nil && !apierrors.IsNotFound(err) {
		return errors.Wrapf(err, "Error evicting pod %s", p.Key())
	}

	return nil
}

func (c *Client) claims(v1Pod *v1.Pod) bool {
	return v1Pod.Spec.SchedulerName == c.opts.SchedulerName
}

func isTerminated(v1Pod *v1.Pod) bool {
	return v1Pod.Status.Phase == v1.PodSucceeded || v1Pod.Status.Phase == v1.PodFailed
}

var _ = cluster.Cluster(&Client{})
