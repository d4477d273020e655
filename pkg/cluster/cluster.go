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

// Package cluster defines the boundary between the scheduling engine and the cluster it
// schedules for. The engine reads state through a StateProvider and commits decisions through a
// Mutator; both are constructed once at startup and injected.
package cluster

import (
	"context"

	"github.com/pfnet-research/k8s-gang-scheduler/pkg/node"
	"github.com/pfnet-research/k8s-gang-scheduler/pkg/pod"
)

// StateProvider reports the pods waiting for this scheduler and the nodes they may go to.
type StateProvider interface {
	// ListPendingPods lists the pods claimed by this scheduler that are not assigned to any node.
	ListPendingPods(ctx context.Context) ([]*pod.Pod, error)

	// ListNodes lists all schedulable nodes, each with the pods claimed by this scheduler that
	// currently reside on it.
	ListNodes(ctx context.Context) ([]*node.Node, error)
}

// Mutator commits scheduling decisions. Each call is atomic on its own; no call is assumed to be
// idempotent.
type Mutator interface {
	// Bind assigns the pod to the node.
	Bind(ctx context.Context, p *pod.Pod, nodeName string) error

	// Evict removes the pod from the node it resides on.
	Evict(ctx context.Context, p *pod.Pod) error
}

// Cluster is both a StateProvider and a Mutator.
type Cluster interface {
	StateProvider
	Mutator
}
