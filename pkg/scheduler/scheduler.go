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
	"github.com/pfnet-research/k8s-gang-scheduler/pkg/node"
	"github.com/pfnet-research/k8s-gang-scheduler/pkg/pod"
)

// Event defines the interface of a scheduling event.
// Every decision the engines commit, or fail to commit, is recorded as an Event.
type Event interface {
	IsSchedulerEvent() bool
}

// BindEvent represents a pod bound to a node.
type BindEvent struct {
	PodNamespace string
	PodName      string
	NodeName     string
}

// BindFailureEvent represents a failed attempt to bind a pod to a node.
// Both the pod and the node are left unchanged.
type BindFailureEvent struct {
	PodNamespace string
	PodName      string
	NodeName     string
	Err          error
}

// DeleteEvent represents a victim pod evicted from a node.
type DeleteEvent struct {
	PodNamespace string
	PodName      string
	NodeName     string
	// Preemptor is the key of the group the victim was evicted for.
	Preemptor string
}

// DeleteFailureEvent represents a failed attempt to evict a victim pod.
type DeleteFailureEvent struct {
	PodNamespace string
	PodName      string
	NodeName     string
	Preemptor    string
	Err          error
}

// SkipEvent represents a group left pending because not enough nodes could be found.
type SkipEvent struct {
	Group     string
	Needed    int
	Available int
}

// AbortEvent represents a preemption attempt abandoned after a failed eviction.
// Nodes freed before the failure stay free.
type AbortEvent struct {
	Group string
	Freed []string
}

func (b *BindEvent) IsSchedulerEvent() bool          { return true }
func (b *BindFailureEvent) IsSchedulerEvent() bool   { return true }
func (d *DeleteEvent) IsSchedulerEvent() bool        { return true }
func (d *DeleteFailureEvent) IsSchedulerEvent() bool { return true }
func (s *SkipEvent) IsSchedulerEvent() bool          { return true }
func (a *AbortEvent) IsSchedulerEvent() bool         { return true }

// Result is the outcome of one engine pass.
type Result struct {
	// AllocatedPods are the pods bound during the pass.
	AllocatedPods pod.Set
	// AllocatedNodes are the nodes that received a pod during the pass, by name.
	AllocatedNodes map[string]*node.Node
	// FailedPods are the pods whose bind failed during the pass.
	FailedPods pod.Set
	// Events are the events of the pass, in the order they happened.
	Events []Event
}

func newResult() *Result {
	return &Result{
		AllocatedPods:  pod.Set{},
		AllocatedNodes: map[string]*node.Node{},
		FailedPods:     pod.Set{},
		Events:         []Event{},
	}
}

func (r *Result) bound(p *pod.Pod, n *node.Node) {
	r.AllocatedPods.Insert(p)
	r.AllocatedNodes[n.Name()] = n
	r.Events = append(r.Events, &BindEvent{PodNamespace: p.Namespace, PodName: p.Name, NodeName: n.Name()})
}

func (r *Result) bindFailed(p *pod.Pod, n *node.Node, err error) {
	r.FailedPods.Insert(p)
	r.Events = append(r.Events, &BindFailureEvent{
		PodNamespace: p.Namespace, PodName: p.Name, NodeName: n.Name(), Err: err,
	})
}

func (r *Result) deleted(victim *pod.Pod, n *node.Node, preemptor string) {
	r.Events = append(r.Events, &DeleteEvent{
		PodNamespace: victim.Namespace, PodName: victim.Name, NodeName: n.Name(), Preemptor: preemptor,
	})
}

func (r *Result) deleteFailed(victim *pod.Pod, n *node.Node, preemptor string, err error) {
	r.Events = append(r.Events, &DeleteFailureEvent{
		PodNamespace: victim.Namespace, PodName: victim.Name, NodeName: n.Name(), Preemptor: preemptor, Err: err,
	})
}

func (r *Result) skipped(group string, needed, available int) {
	r.Events = append(r.Events, &SkipEvent{Group: group, Needed: needed, Available: available})
}

func (r *Result) aborted(group string, freed []*node.Node) {
	r.Events = append(r.Events, &AbortEvent{Group: group, Freed: node.Names(freed)})
}
