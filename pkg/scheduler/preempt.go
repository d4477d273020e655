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
	"sort"

	"github.com/containerd/log"
	"github.com/sirupsen/logrus"

	"github.com/pfnet-research/k8s-gang-scheduler/pkg/cluster"
	l "github.com/pfnet-research/k8s-gang-scheduler/pkg/log"
	"github.com/pfnet-research/k8s-gang-scheduler/pkg/node"
	"github.com/pfnet-research/k8s-gang-scheduler/pkg/pod"
)

// Preemptor evicts lower-priority groups to make room for pending groups.
type Preemptor struct {
	mutator     cluster.Mutator
	parallelism int
}

// NewPreemptor creates a new Preemptor committing evictions and binds through the mutator, with
// up to parallelism concurrent binds per group.
func NewPreemptor(mutator cluster.Mutator, parallelism int) *Preemptor {
	return &Preemptor{
		mutator:     mutator,
		parallelism: parallelism,
	}
}

// Preempt tries to place each pending group, in descending group priority, by evicting running
// groups whose priority is strictly lower than that of every member of the pending group.
// Nodes are updated in place. Returns error only if ctx is done, together with the result so far.
func (pr *Preemptor) Preempt(ctx context.Context, pods []*pod.Pod, nodes []*node.Node) (*Result, error) {
	result := newResult()

	if len(pods) == 0 {
		log.G(ctx).Info("No pending pods; skip preemption")
		return result, nil
	}

	for _, group := range GroupPods(pods) {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := pr.preemptGroup(ctx, group, nodes, result); err != nil {
			return result, err
		}
	}

	return result, nil
}

// preemptGroup returns error only if ctx is done during the evictions.
func (pr *Preemptor) preemptGroup(ctx context.Context, group *PodGroup, nodes []*node.Node, result *Result) error {
	needed := group.Len()

	logger := log.G(ctx).WithFields(logrus.Fields{
		"group":    group.Key,
		"priority": group.Priority(),
		"size":     needed,
	})
	logger.Debug("Preempting for group")

	free := node.FreeNodes(nodes)
	victims := eligibleVictimGroups(GroupNodes(nodes), group.MinPriority())

	// Dry run: nothing is touched unless enough nodes can be found.
	selected, candidates, ok := selectVictimGroups(free, victims, needed)
	if !ok {
		logger.Infof("Not enough nodes even with preemption (%d); group stays pending", len(candidates))
		result.skipped(group.Key, needed, len(candidates))
		return nil
	}

	if l.IsDebugEnabled() {
		keys := make([]string, 0, len(selected))
		for _, vg := range selected {
			keys = append(keys, vg.Key)
		}
		logger.Debugf("Selected victim groups %v on top of free nodes %v", keys, node.Names(free))
	}

	// Commit: evict every selected group, abandoning the attempt at the first failure.
	freed := []*node.Node{}
	for _, vg := range selected {
		for _, n := range vg.Nodes {
			for _, victim := range append([]*pod.Pod{}, n.Pods()...) {
				if err := ctx.Err(); err != nil {
					logger.Warnf("Preemption abandoned (freed nodes %v stay free)", node.Names(freed))
					result.aborted(group.Key, freed)
					return err
				}

				if err := pr.mutator.Evict(ctx, victim); err != nil {
					logger.WithError(err).Warnf(
						"Failed to preempt pod %s on node %s; abort preemption (freed nodes %v stay free)",
						victim.Key(), n.Name(), node.Names(freed))
					result.deleteFailed(victim, n, group.Key, err)
					result.aborted(group.Key, freed)
					return nil
				}

				logger.Infof("Preempted pod %s (priority %d) on node %s", victim.Key(), victim.Priority, n.Name())
				n.RemovePod(victim)
				result.deleted(victim, n, group.Key)
			}

			n.ResetPods()
			freed = append(freed, n)
		}
	}

	targets := candidates[:needed]
	errs := bindAll(ctx, pr.mutator, pr.parallelism, group.Pods, targets)
	for i, p := range group.Pods {
		n := targets[i]
		if errs[i] != nil {
			if len(selected) > 0 {
				logger.WithError(errs[i]).Warnf("Preempted but failed to bind pod %s to node %s", p.Key(), n.Name())
			} else {
				logger.WithError(errs[i]).Warnf("Failed to bind pod %s to node %s", p.Key(), n.Name())
			}
			result.bindFailed(p, n, errs[i])
			continue
		}

		logger.Infof("Bound pod %s to node %s", p.Key(), n.Name())
		n.BindPod(p)
		result.bound(p, n)
	}

	return nil
}

// eligibleVictimGroups returns the groups whose priority is strictly lower than priority, sorted
// by ascending priority. Groups of equal priority keep their order.
func eligibleVictimGroups(groups []*NodeGroup, priority int32) []*NodeGroup {
	eligible := make([]*NodeGroup, 0, len(groups))
	for _, g := range groups {
		if g.Priority() < priority {
			eligible = append(eligible, g)
		}
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].Priority() < eligible[j].Priority()
	})

	return eligible
}

// selectVictimGroups accumulates candidate nodes, free nodes first and then the schedulable nodes
// of the victim groups in order, until at least needed nodes are found.
// It returns the shortest prefix of victims that suffices, leaving out groups residing on
// unschedulable nodes only, the candidate nodes, and whether enough nodes were found.
func selectVictimGroups(free []*node.Node, victims []*NodeGroup, needed int) ([]*NodeGroup, []*node.Node, bool) {
	candidates := append([]*node.Node{}, free...)
	selected := []*NodeGroup{}

	for _, vg := range victims {
		if len(candidates) >= needed {
			break
		}
		usable := node.SchedulableNodes(vg.Nodes)
		if len(usable) == 0 {
			continue
		}
		selected = append(selected, vg)
		candidates = append(candidates, usable...)
	}

	return selected, candidates, len(candidates) >= needed
}
