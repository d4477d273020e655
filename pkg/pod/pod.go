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

package pod

import (
	"fmt"
	"sort"

	v1 "k8s.io/api/core/v1"

	"github.com/pfnet-research/k8s-gang-scheduler/pkg/clock"
	"github.com/pfnet-research/k8s-gang-scheduler/pkg/util"
)

// Pod is a unit of work seeking (or holding) a slot on a node.
// Two pods are the same entity iff their namespace and name match; every other field is
// mutable between reads and never takes part in identity.
type Pod struct {
	Namespace         string
	Name              string
	Priority          int32
	CreationTimestamp clock.Clock

	// Group is the gang this pod belongs to. Pods sharing a non-empty Group are scheduled and
	// preempted together.
	Group string
}

// FromV1 builds a Pod from the *v1.Pod. The group is read from the label groupLabel; an empty
// groupLabel disables gangs.
// Returns error if the pod doesn't have valid namespace and name.
func FromV1(v1Pod *v1.Pod, groupLabel string) (*Pod, error) {
	if _, err := util.PodKey(v1Pod); err != nil {
		return nil, err
	}

	group := ""
	if groupLabel != "" {
		group = v1Pod.Labels[groupLabel]
	}

	return &Pod{
		Namespace:         v1Pod.Namespace,
		Name:              v1Pod.Name,
		Priority:          util.PodPriority(v1Pod),
		CreationTimestamp: clock.NewClockWithMetaV1(v1Pod.CreationTimestamp),
		Group:             group,
	}, nil
}

// Key returns the identity of this pod, "namespace/name".
func (pod *Pod) Key() string {
	return util.PodKeyFromNames(pod.Namespace, pod.Name)
}

// GroupKey returns the key of the gang this pod belongs to.
// A pod without a group gets a key unique to itself.
func (pod *Pod) GroupKey() string {
	if pod.Group != "" {
		return pod.Group
	}
	return util.SingletonGroupKey(pod.Namespace, pod.Name)
}

// String implements Stringer interface.
func (pod *Pod) String() string {
	return fmt.Sprintf("%s(prio %d)", pod.Key(), pod.Priority)
}

// Compare is a comparator function that returns true if pod0 should be scheduled before pod1.
type Compare = func(pod0, pod1 *Pod) bool

// DefaultComparator returns true if pod0 has higher priority than pod1.
// If the priorities are equal, it compares the creation timestamps and returns true if pod0 is
// older than pod1.
func DefaultComparator(pod0, pod1 *Pod) bool {
	return (pod0.Priority > pod1.Priority) ||
		(pod0.Priority == pod1.Priority && pod0.CreationTimestamp.Before(pod1.CreationTimestamp))
}

// Sort sorts pods in place by DefaultComparator.
// Pods that compare equal keep their relative order.
func Sort(pods []*Pod) {
	SortWithComparator(pods, DefaultComparator)
}

// SortWithComparator sorts pods in place by the given comparator, keeping the relative order of
// pods that compare equal.
func SortWithComparator(pods []*Pod, comparator Compare) {
	sort.SliceStable(pods, func(i, j int) bool {
		return comparator(pods[i], pods[j])
	})
}
