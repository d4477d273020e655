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

	"github.com/stretchr/testify/assert"

	"github.com/pfnet-research/k8s-gang-scheduler/pkg/pod"
)

func TestAllocateSingleton(t *testing.T) {
	p1 := &pod.Pod{Namespace: "a", Name: "p1", Priority: 10}
	cl := newSimCluster(t, []string{"n1"}, []*pod.Pod{p1}, nil)
	pods, nodes := listState(t, cl)

	result, err := NewAllocator(cl, 1).Allocate(context.Background(), pods, nodes)
	assert.NoError(t, err)

	assert.Equal(t, []string{"a/p1"}, result.AllocatedPods.Keys())
	assert.Contains(t, result.AllocatedNodes, "n1")
	assert.Equal(t, "n1", boundNode(t, cl, "a/p1"))
	assert.False(t, nodes[0].IsFree())
	assert.Empty(t, pod.Difference(pods, result.AllocatedPods))
}

func TestAllocateGang(t *testing.T) {
	cl := newSimCluster(t,
		[]string{"n1", "n2"},
		[]*pod.Pod{newPod("p1", 5, "g"), newPod("p2", 5, "g")},
		nil)
	pods, nodes := listState(t, cl)

	result, err := NewAllocator(cl, 1).Allocate(context.Background(), pods, nodes)
	assert.NoError(t, err)

	assert.Equal(t, []string{"default/p1", "default/p2"}, result.AllocatedPods.Keys())
	assert.Equal(t, "n1", boundNode(t, cl, "default/p1"))
	assert.Equal(t, "n2", boundNode(t, cl, "default/p2"))
}

func TestAllocateGangShortfall(t *testing.T) {
	cl := newSimCluster(t,
		[]string{"n1"},
		[]*pod.Pod{newPod("p1", 5, "g"), newPod("p2", 5, "g")},
		nil)
	pods, nodes := listState(t, cl)

	result, err := NewAllocator(cl, 1).Allocate(context.Background(), pods, nodes)
	assert.NoError(t, err)

	assert.Empty(t, result.AllocatedPods)
	assert.Equal(t, []Event{&SkipEvent{Group: "g", Needed: 2, Available: 1}}, result.Events)
	assert.Len(t, pod.Difference(pods, result.AllocatedPods), 2)

	binds, _ := cl.Calls()
	assert.Equal(t, 0, binds)
	assert.True(t, nodes[0].IsFree())
}

func TestAllocateSkippedGroupDoesNotBlockSmallerGroups(t *testing.T) {
	cl := newSimCluster(t,
		[]string{"n1", "n2"},
		[]*pod.Pod{
			newPod("big-0", 9, "big"),
			newPod("big-1", 9, "big"),
			newPod("big-2", 9, "big"),
			newPod("small-0", 1, "small"),
		},
		nil)
	pods, nodes := listState(t, cl)

	result, err := NewAllocator(cl, 1).Allocate(context.Background(), pods, nodes)
	assert.NoError(t, err)

	assert.Equal(t, []string{"default/small-0"}, result.AllocatedPods.Keys())
	assert.Equal(t, "n1", boundNode(t, cl, "default/small-0"))
}

func TestAllocateHigherPriorityGroupFirst(t *testing.T) {
	cl := newSimCluster(t,
		[]string{"n1", "n2"},
		[]*pod.Pod{
			newPod("low-0", 1, "low"),
			newPod("low-1", 1, "low"),
			newPod("high-0", 5, "high"),
		},
		nil)
	pods, nodes := listState(t, cl)

	result, err := NewAllocator(cl, 1).Allocate(context.Background(), pods, nodes)
	assert.NoError(t, err)

	// high takes n1 and leaves a single node, too few for low.
	assert.Equal(t, []string{"default/high-0"}, result.AllocatedPods.Keys())
	assert.Equal(t, "n1", boundNode(t, cl, "default/high-0"))
}

func TestAllocateBindFailureLeavesNodeFree(t *testing.T) {
	cl := newSimCluster(t,
		[]string{"n1", "n2", "n3"},
		[]*pod.Pod{newPod("p1", 5, "g"), newPod("p2", 5, "g"), newPod("q", 1, "")},
		nil)
	cl.FailBind("default/p1")
	pods, nodes := listState(t, cl)

	result, err := NewAllocator(cl, 1).Allocate(context.Background(), pods, nodes)
	assert.NoError(t, err)

	// p2 stays bound even though its sibling failed; n1 goes back to the free pool.
	assert.Equal(t, []string{"default/p2", "default/q"}, result.AllocatedPods.Keys())
	assert.Equal(t, "n2", boundNode(t, cl, "default/p2"))
	assert.Equal(t, "n1", boundNode(t, cl, "default/q"))

	failure, ok := result.Events[0].(*BindFailureEvent)
	if !ok {
		t.Fatalf("got %T, want *BindFailureEvent", result.Events[0])
	}
	assert.Equal(t, "p1", failure.PodName)
	assert.Equal(t, "n1", failure.NodeName)
	assert.Error(t, failure.Err)
}

func TestAllocateParallelBinds(t *testing.T) {
	names := []string{"n0", "n1", "n2", "n3", "n4", "n5", "n6", "n7"}
	pending := []*pod.Pod{}
	for _, name := range names {
		pending = append(pending, newPod("w-"+name, 3, "w"))
	}
	cl := newSimCluster(t, names, pending, nil)
	pods, nodes := listState(t, cl)

	result, err := NewAllocator(cl, 4).Allocate(context.Background(), pods, nodes)
	assert.NoError(t, err)

	assert.Len(t, result.AllocatedPods, len(names))
	for i, p := range pods {
		if got, want := boundNode(t, cl, p.Key()), names[i]; got != want {
			t.Errorf("pod %s: got node %s, want %s", p.Key(), got, want)
		}
	}
}

func TestAllocateCanceled(t *testing.T) {
	cl := newSimCluster(t, []string{"n1"}, []*pod.Pod{newPod("p1", 1, "")}, nil)
	pods, nodes := listState(t, cl)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := NewAllocator(cl, 1).Allocate(ctx, pods, nodes)
	assert.Equal(t, context.Canceled, err)
	assert.Empty(t, result.AllocatedPods)
	binds, _ := cl.Calls()
	assert.Equal(t, 0, binds)
}
