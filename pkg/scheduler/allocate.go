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
	"context"

	"github.com/containerd/log"
	"github.com/sirupsen/logrus"

	"github.com/pfnet-research/k8s-gang-scheduler/pkg/cluster"
	l "github.com/pfnet-research/k8s-gang-scheduler/pkg/log"
	"github.com/pfnet-research/k8s-gang-scheduler/pkg/node"
	"github.com/pfnet-research/k8s-gang-scheduler/pkg/pod"
)

// Allocator places pending groups on free nodes, first fit.
type Allocator struct {
	mutator     cluster.Mutator
	parallelism int
}

// NewAllocator creates a new Allocator committing binds through the mutator, with up to
// parallelism concurrent binds per group.
func NewAllocator(mutator cluster.Mutator, parallelism int) *Allocator {
	return &Allocator{
		mutator:     mutator,
		parallelism: parallelism,
	}
}

// Allocate binds the pending pods to the free nodes among nodes, one group at a time in
// descending group priority.
// A group larger than the number of remaining free nodes is skipped without consuming any node.
// Otherwise its i-th pod is bound to the i-th free node. A failed bind leaves the pod pending and
// the node free; siblings already bound stay bound.
// Bound nodes are updated in place. Returns error only if ctx is done, together with the result
// so far.
func (a *Allocator) Allocate(ctx context.Context, pods []*pod.Pod, nodes []*node.Node) (*Result, error) {
	result := newResult()
	free := node.FreeNodes(nodes)

	if l.IsDebugEnabled() {
		log.G(ctx).Debugf("Free nodes %v", node.Names(free))
	}

	for _, group := range GroupPods(pods) {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		logger := log.G(ctx).WithFields(logrus.Fields{
			"group":    group.Key,
			"priority": group.Priority(),
			"size":     group.Len(),
		})
		logger.Debug("Allocating group")

		if group.Len() > len(free) {
			logger.Infof("Not enough free nodes (%d); group left for preemption", len(free))
			result.skipped(group.Key, group.Len(), len(free))
			continue
		}

		targets := free[:group.Len()]
		errs := bindAll(ctx, a.mutator, a.parallelism, group.Pods, targets)

		consumed := map[string]bool{}
		for i, p := range group.Pods {
			n := targets[i]
			if errs[i] != nil {
				logger.WithError(errs[i]).Warnf("Failed to bind pod %s to node %s", p.Key(), n.Name())
				result.bindFailed(p, n, errs[i])
				continue
			}

			logger.Infof("Bound pod %s to node %s", p.Key(), n.Name())
			n.BindPod(p)
			result.bound(p, n)
			consumed[n.Name()] = true
		}

		rest := make([]*node.Node, 0, len(free)-len(consumed))
		for _, n := range free {
			if !consumed[n.Name()] {
				rest = append(rest, n)
			}
		}
		free = rest
	}

	return result, nil
}
