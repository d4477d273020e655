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

package node

import (
	"fmt"

	"github.com/pfnet-research/k8s-gang-scheduler/pkg/pod"
)

// Node represents a placement target.
// Occupancy is slot-based: a node is free iff no pod resides on it.
// Two nodes are the same entity iff their names match.
// An unschedulable (cordoned) node keeps its resident pods but never receives a new one.
type Node struct {
	name          string
	pods          []*pod.Pod
	unschedulable bool
}

// Metrics is a metrics of a Node at one point of time.
type Metrics struct {
	Pods []string
	Free bool
}

// NewNode creates a new Node with the given name and resident pods.
func NewNode(name string, pods ...*pod.Pod) *Node {
	return &Node{
		name: name,
		pods: append([]*pod.Pod{}, pods...),
	}
}

// NewUnschedulableNode creates a new cordoned Node with the given name and resident pods.
func NewUnschedulableNode(name string, pods ...*pod.Pod) *Node {
	node := NewNode(name, pods...)
	node.unschedulable = true
	return node
}

// Name returns the name of this Node.
func (node *Node) Name() string {
	return node.name
}

// Pods returns the pods residing on this Node.
func (node *Node) Pods() []*pod.Pod {
	return node.pods
}

// IsFree returns whether no pod resides on this Node.
func (node *Node) IsFree() bool {
	return len(node.pods) == 0
}

// IsSchedulable returns whether pods may be placed on this Node.
func (node *Node) IsSchedulable() bool {
	return !node.unschedulable
}

// BindPod records the pod as residing on this Node.
func (node *Node) BindPod(p *pod.Pod) {
	node.pods = append(node.pods, p)
}

// RemovePod forgets the pod with the same identity as p.
// Returns true if the pod resided on this Node.
func (node *Node) RemovePod(p *pod.Pod) bool {
	key := p.Key()
	for i, resident := range node.pods {
		if resident.Key() == key {
			node.pods = append(node.pods[:i:i], node.pods[i+1:]...)
			return true
		}
	}
	return false
}

// ResetPods forgets every pod residing on this Node.
func (node *Node) ResetPods() {
	node.pods = []*pod.Pod{}
}

// Metrics returns the Metrics of this Node.
func (node *Node) Metrics() Metrics {
	keys := make([]string, 0, len(node.pods))
	for _, p := range node.pods {
		keys = append(keys, p.Key())
	}
	return Metrics{
		Pods: keys,
		Free: node.IsFree(),
	}
}

// String implements Stringer interface.
func (node *Node) String() string {
	return fmt.Sprintf("%s%v", node.name, node.Metrics().Pods)
}

// FreeNodes returns the free schedulable nodes, keeping their order.
func FreeNodes(nodes []*Node) []*Node {
	free := make([]*Node, 0, len(nodes))
	for _, node := range nodes {
		if node.IsFree() && node.IsSchedulable() {
			free = append(free, node)
		}
	}
	return free
}

// SchedulableNodes returns the schedulable nodes, keeping their order.
func SchedulableNodes(nodes []*Node) []*Node {
	schedulable := make([]*Node, 0, len(nodes))
	for _, node := range nodes {
		if node.IsSchedulable() {
			schedulable = append(schedulable, node)
		}
	}
	return schedulable
}

// Names returns the names of the nodes, keeping their order.
func Names(nodes []*Node) []string {
	names := make([]string, 0, len(nodes))
	for _, node := range nodes {
		names = append(names, node.name)
	}
	return names
}
