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

// Package sim implements cluster.Cluster on an in-memory cluster.
// It backs dry runs of the scheduler and the engine's tests.
package sim

import (
	"context"
	"sync"

	"github.com/containerd/log"
	"github.com/cpuguy83/strongerrors"
	"github.com/pkg/errors"

	"github.com/pfnet-research/k8s-gang-scheduler/pkg/cluster"
	"github.com/pfnet-research/k8s-gang-scheduler/pkg/node"
	"github.com/pfnet-research/k8s-gang-scheduler/pkg/pod"
)

// Cluster is an in-memory cluster of slot-based nodes.
// Each List call returns fresh copies, so the caller may mutate them freely.
// Cluster is safe for concurrent use.
type Cluster struct {
	mu sync.Mutex

	nodeNames []string
	residents map[string][]*pod.Pod // node name -> pods
	podNodes  map[string]string     // pod key -> node name
	pending   []*pod.Pod
	cordoned  map[string]bool

	failBind  map[string]bool
	failEvict map[string]bool

	bindCalls  int
	evictCalls int
	evicted    []string
}

// NewCluster creates a new empty Cluster.
func NewCluster() *Cluster {
	return &Cluster{
		residents: map[string][]*pod.Pod{},
		podNodes:  map[string]string{},
		cordoned:  map[string]bool{},
		failBind:  map[string]bool{},
		failEvict: map[string]bool{},
	}
}

// AddNode adds a free node.
// Returns error if a node with the same name exists.
func (c *Cluster) AddNode(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.residents[name]; ok {
		return strongerrors.InvalidArgument(errors.Errorf("node %s already exists", name))
	}
	c.nodeNames = append(c.nodeNames, name)
	c.residents[name] = []*pod.Pod{}

	return nil
}

// AddPendingPod adds a pod waiting to be scheduled.
// Returns error if a pod with the same key exists.
func (c *Cluster) AddPendingPod(p *pod.Pod) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.existsLocked(p.Key()) {
		return strongerrors.InvalidArgument(errors.Errorf("pod %s already exists", p.Key()))
	}
	c.pending = append(c.pending, copyPod(p))

	return nil
}

// AddRunningPod adds a pod residing on the node.
// Returns error if the node does not exist or a pod with the same key exists.
func (c *Cluster) AddRunningPod(p *pod.Pod, nodeName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.residents[nodeName]; !ok {
		return strongerrors.NotFound(errors.Errorf("no node named %s", nodeName))
	}
	if c.existsLocked(p.Key()) {
		return strongerrors.InvalidArgument(errors.Errorf("pod %s already exists", p.Key()))
	}
	c.residents[nodeName] = append(c.residents[nodeName], copyPod(p))
	c.podNodes[p.Key()] = nodeName

	return nil
}

// Cordon marks the node unschedulable. Pods residing on it stay.
// Returns error if the node does not exist.
func (c *Cluster) Cordon(nodeName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.residents[nodeName]; !ok {
		return strongerrors.NotFound(errors.Errorf("no node named %s", nodeName))
	}
	c.cordoned[nodeName] = true

	return nil
}

// FailBind makes every later Bind of the pod fail.
func (c *Cluster) FailBind(podKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failBind[podKey] = true
}

// FailEvict makes every later Evict of the pod fail.
func (c *Cluster) FailEvict(podKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failEvict[podKey] = true
}

// NodeOf returns the name of the node the pod resides on, or false if it does not reside on any.
func (c *Cluster) NodeOf(podKey string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	nodeName, ok := c.podNodes[podKey]
	return nodeName, ok
}

// Evicted returns the keys of evicted pods in eviction order.
func (c *Cluster) Evicted() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.evicted...)
}

// Calls returns the number of Bind and Evict calls made so far, including failed ones.
func (c *Cluster) Calls() (binds, evicts int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bindCalls, c.evictCalls
}

// ListPendingPods implements cluster.StateProvider.
func (c *Cluster) ListPendingPods(ctx context.Context) ([]*pod.Pod, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pods := make([]*pod.Pod, 0, len(c.pending))
	for _, p := range c.pending {
		pods = append(pods, copyPod(p))
	}
	return pods, nil
}

// ListNodes implements cluster.StateProvider.
func (c *Cluster) ListNodes(ctx context.Context) ([]*node.Node, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	nodes := make([]*node.Node, 0, len(c.nodeNames))
	for _, name := range c.nodeNames {
		pods := make([]*pod.Pod, 0, len(c.residents[name]))
		for _, p := range c.residents[name] {
			pods = append(pods, copyPod(p))
		}
		if c.cordoned[name] {
			nodes = append(nodes, node.NewUnschedulableNode(name, pods...))
			continue
		}
		nodes = append(nodes, node.NewNode(name, pods...))
	}
	return nodes, nil
}

// Bind implements cluster.Mutator.
// Returns error if the pod is not pending, the node does not exist or is occupied, or the bind
// of the pod was made to fail.
func (c *Cluster) Bind(ctx context.Context, p *pod.Pod, nodeName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bindCalls++

	key := p.Key()
	if c.failBind[key] {
		return errors.Errorf("bind of pod %s rejected", key)
	}

	residents, ok := c.residents[nodeName]
	if !ok {
		return strongerrors.NotFound(errors.Errorf("no node named %s", nodeName))
	}
	if len(residents) > 0 {
		return errors.Errorf("node %s is occupied", nodeName)
	}
	if c.cordoned[nodeName] {
		return errors.Errorf("node %s is unschedulable", nodeName)
	}

	idx := -1
	for i, pending := range c.pending {
		if pending.Key() == key {
			idx = i
			break
		}
	}
	if idx < 0 {
		return strongerrors.NotFound(errors.Errorf("no pending pod %s", key))
	}

	bound := c.pending[idx]
	c.pending = append(c.pending[:idx], c.pending[idx+1:]...)
	c.residents[nodeName] = append(residents, bound)
	c.podNodes[key] = nodeName

	log.G(ctx).Tracef("Sim: pod %s bound to node %s", key, nodeName)

	return nil
}

// Evict implements cluster.Mutator. The evicted pod is deleted from the cluster.
// Returns error if the pod does not reside on any node, or the eviction of the pod was made to
// fail.
func (c *Cluster) Evict(ctx context.Context, p *pod.Pod) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictCalls++

	key := p.Key()
	if c.failEvict[key] {
		return errors.Errorf("eviction of pod %s rejected", key)
	}

	nodeName, ok := c.podNodes[key]
	if !ok {
		return strongerrors.NotFound(errors.Errorf("pod %s does not reside on any node", key))
	}

	rest := []*pod.Pod{}
	for _, resident := range c.residents[nodeName] {
		if resident.Key() != key {
			rest = append(rest, resident)
		}
	}
	c.residents[nodeName] = rest
	delete(c.podNodes, key)
	c.evicted = append(c.evicted, key)

	log.G(ctx).Tracef("Sim: pod %s evicted from node %s", key, nodeName)

	return nil
}

func (c *Cluster) existsLocked(key string) bool {
	if _, ok := c.podNodes[key]; ok {
		return true
	}
	for _, p := range c.pending {
		if p.Key() == key {
			return true
		}
	}
	return false
}

func copyPod(p *pod.Pod) *pod.Pod {
	cp := *p
	return &cp
}

var _ = cluster.Cluster(&Cluster{})
