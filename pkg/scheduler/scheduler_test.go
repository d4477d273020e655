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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pfnet-research/k8s-gang-scheduler/pkg/clock"
	"github.com/pfnet-research/k8s-gang-scheduler/pkg/cluster/sim"
	"github.com/pfnet-research/k8s-gang-scheduler/pkg/node"
	"github.com/pfnet-research/k8s-gang-scheduler/pkg/pod"
)

var baseTime = time.Date(2019, 4, 1, 0, 0, 0, 0, time.UTC)

func newPod(name string, prio int32, group string) *pod.Pod {
	return &pod.Pod{
		Namespace:         "default",
		Name:              name,
		Priority:          prio,
		CreationTimestamp: clock.NewClock(baseTime),
		Group:             group,
	}
}

// running is a pod residing on a node.
type running struct {
	pod  *pod.Pod
	node string
}

func newSimCluster(t *testing.T, nodes []string, pending []*pod.Pod, residents []running) *sim.Cluster {
	t.Helper()

	cl := sim.NewCluster()
	for _, name := range nodes {
		if err := cl.AddNode(name); err != nil {
			t.Fatal(err)
		}
	}
	for _, p := range pending {
		if err := cl.AddPendingPod(p); err != nil {
			t.Fatal(err)
		}
	}
	for _, r := range residents {
		if err := cl.AddRunningPod(r.pod, r.node); err != nil {
			t.Fatal(err)
		}
	}

	return cl
}

func listState(t *testing.T, cl *sim.Cluster) ([]*pod.Pod, []*node.Node) {
	t.Helper()

	ctx := context.Background()
	pods, err := cl.ListPendingPods(ctx)
	if err != nil {
		t.Fatal(err)
	}
	nodes, err := cl.ListNodes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	pod.Sort(pods)

	return pods, nodes
}

func boundNode(t *testing.T, cl *sim.Cluster, podKey string) string {
	t.Helper()
	name, _ := cl.NodeOf(podKey)
	return name
}

func TestResultEvents(t *testing.T) {
	r := newResult()
	p := newPod("p", 1, "")
	n := node.NewNode("n")

	r.bound(p, n)
	r.skipped("g", 2, 1)
	r.aborted("g", []*node.Node{n})

	assert.True(t, r.AllocatedPods.Has(p))
	assert.Contains(t, r.AllocatedNodes, "n")
	assert.Equal(t, []Event{
		&BindEvent{PodNamespace: "default", PodName: "p", NodeName: "n"},
		&SkipEvent{Group: "g", Needed: 2, Available: 1},
		&AbortEvent{Group: "g", Freed: []string{"n"}},
	}, r.Events)
}
