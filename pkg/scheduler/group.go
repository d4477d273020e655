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

package scheduler

import (
	"sort"

	"github.com/pfnet-research/k8s-gang-scheduler/pkg/node"
	"github.com/pfnet-research/k8s-gang-scheduler/pkg/pod"
)

// PodGroup is a gang of pending pods that is placed atomically.
type PodGroup struct {
	Key  string
	Pods []*pod.Pod
}

// Len returns the number of pods in this PodGroup.
func (g *PodGroup) Len() int { return len(g.Pods) }

// Priority returns the highest priority among the pods in this PodGroup.
func (g *PodGroup) Priority() int32 {
	return maxPriority(g.Pods)
}

// MinPriority returns the lowest priority among the pods in this PodGroup.
func (g *PodGroup) MinPriority() int32 {
	if len(g.Pods) == 0 {
		return 0
	}

	prio := g.Pods[0].Priority
	for _, p := range g.Pods[1:] {
		if p.Priority < prio {
			prio = p.Priority
		}
	}
	return prio
}

// GroupPods partitions pods by their group key.
// Pods keep their relative order inside a group. Groups are sorted by descending priority; groups
// of equal priority keep the order in which their first pod appears in pods.
func GroupPods(pods []*pod.Pod) []*PodGroup {
	groups := []*PodGroup{}
	index := map[string]*PodGroup{}

	for _, p := range pods {
		key := p.GroupKey()
		group, ok := index[key]
		if !ok {
			group = &PodGroup{Key: key}
			index[key] = group
			groups = append(groups, group)
		}
		group.Pods = append(group.Pods, p)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Priority() > groups[j].Priority()
	})

	return groups
}

// NodeGroup is a set of occupied nodes whose resident pods belong to the same gang.
// A NodeGroup is evicted atomically.
type NodeGroup struct {
	Key   string
	Nodes []*node.Node
}

// Len returns the number of nodes in this NodeGroup.
func (g *NodeGroup) Len() int { return len(g.Nodes) }

// Priority returns the highest priority among the pods residing on the nodes of this NodeGroup.
func (g *NodeGroup) Priority() int32 {
	return maxPriority(g.Pods())
}

// Pods returns the pods residing on the nodes of this NodeGroup, in node order.
func (g *NodeGroup) Pods() []*pod.Pod {
	pods := []*pod.Pod{}
	for _, n := range g.Nodes {
		pods = append(pods, n.Pods()...)
	}
	return pods
}

// GroupNodes partitions the occupied nodes by the group key of the first pod residing on each.
// Free nodes are left out. Nodes keep their relative order inside a group, and groups are in
// the order in which their first node appears in nodes.
func GroupNodes(nodes []*node.Node) []*NodeGroup {
	groups := []*NodeGroup{}
	index := map[string]*NodeGroup{}

	for _, n := range nodes {
		if n.IsFree() {
			continue
		}

		key := n.Pods()[0].GroupKey()
		group, ok := index[key]
		if !ok {
			group = &NodeGroup{Key: key}
			index[key] = group
			groups = append(groups, group)
		}
		group.Nodes = append(group.Nodes, n)
	}

	return groups
}

func maxPriority(pods []*pod.Pod) int32 {
	if len(pods) == 0 {
		return 0
	}

	prio := pods[0].Priority
	for _, p := range pods[1:] {
		if p.Priority > prio {
			prio = p.Priority
		}
	}
	return prio
}
