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

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/pfnet-research/k8s-gang-scheduler/pkg/node"
	"github.com/pfnet-research/k8s-gang-scheduler/pkg/pod"
)

type recorder struct {
	results []*SessionResult
}

func (r *recorder) Report(result *SessionResult) error {
	r.results = append(r.results, result)
	return nil
}

type failingProvider struct{}

func (failingProvider) ListPendingPods(ctx context.Context) ([]*pod.Pod, error) {
	return nil, errors.New("connection refused")
}

func (failingProvider) ListNodes(ctx context.Context) ([]*node.Node, error) {
	return nil, errors.New("connection refused")
}

// blockingProvider blocks ListPendingPods until release is closed.
type blockingProvider struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingProvider) ListPendingPods(ctx context.Context) ([]*pod.Pod, error) {
	close(b.entered)
	<-b.release
	return nil, nil
}

func (b *blockingProvider) ListNodes(ctx context.Context) ([]*node.Node, error) {
	return nil, nil
}

func TestSessionRunOnce(t *testing.T) {
	cl := newSimCluster(t,
		[]string{"n1", "n2", "n3"},
		[]*pod.Pod{
			newPod("free-0", 1, ""),
			newPod("gang-0", 100, "gang"),
			newPod("gang-1", 100, "gang"),
			newPod("stuck-0", 0, "stuck"),
			newPod("stuck-1", 0, "stuck"),
		},
		[]running{{newPod("victim", 10, ""), "n3"}})

	rec := &recorder{}
	session := NewSession(cl, cl, Options{Parallelism: 2, Reporters: []Reporter{rec}})

	result, err := session.RunOnce(context.Background())
	assert.NoError(t, err)

	// gang takes both free nodes, free-0 is below the victim, stuck cannot fit.
	assert.Equal(t, []string{"default/gang-0", "default/gang-1"}, result.Allocation.AllocatedPods.Keys())
	assert.Empty(t, result.Preemption.AllocatedPods)
	assert.Empty(t, cl.Evicted())

	pending := []string{}
	for _, p := range result.Pending {
		pending = append(pending, p.Name)
	}
	assert.Equal(t, []string{"free-0", "stuck-0", "stuck-1"}, pending)

	assert.Equal(t, Idle, session.State())
	if len(rec.results) != 1 || rec.results[0] != result {
		t.Errorf("got %d reports, want the session result reported once", len(rec.results))
	}
	assert.NotEmpty(t, result.Events())
}

func TestSessionPreemptsAfterAllocation(t *testing.T) {
	cl := newSimCluster(t,
		[]string{"n1", "n2"},
		[]*pod.Pod{
			newPod("a", 50, ""),
			newPod("b-0", 80, "b"),
			newPod("b-1", 80, "b"),
			newPod("b-2", 80, "b"),
		},
		[]running{{newPod("low", 1, ""), "n2"}})

	result, err := NewSession(cl, cl, Options{}).RunOnce(context.Background())
	assert.NoError(t, err)

	// b is too large for the single free node and cannot free three nodes either; a takes n1.
	assert.Equal(t, []string{"default/a"}, result.Allocation.AllocatedPods.Keys())
	assert.Empty(t, result.Preemption.AllocatedPods)
	assert.Empty(t, cl.Evicted())
	assert.Len(t, result.Pending, 3)
}

func TestSessionPreemptsPodAllocatedInSameSession(t *testing.T) {
	cl := newSimCluster(t,
		[]string{"n1", "n2"},
		[]*pod.Pod{
			newPod("a", 50, ""),
			newPod("b-0", 80, "b"),
			newPod("b-1", 80, "b"),
		},
		[]running{{newPod("low", 1, ""), "n2"}})

	result, err := NewSession(cl, cl, Options{}).RunOnce(context.Background())
	assert.NoError(t, err)

	// b skips allocation with one free node, a takes it, then b evicts a and low.
	assert.Equal(t, []string{"default/a"}, result.Allocation.AllocatedPods.Keys())
	assert.Equal(t, []string{"default/b-0", "default/b-1"}, result.Preemption.AllocatedPods.Keys())
	assert.ElementsMatch(t, []string{"default/a", "default/low"}, cl.Evicted())
	assert.Empty(t, result.Pending)
}

func TestSessionDoesNotRetryFailedBind(t *testing.T) {
	cl := newSimCluster(t,
		[]string{"n1", "n2", "n3"},
		[]*pod.Pod{newPod("g-0", 5, "g"), newPod("g-1", 5, "g"), newPod("g-2", 5, "g")},
		nil)
	cl.FailBind("default/g-1")

	result, err := NewSession(cl, cl, Options{Parallelism: 3}).RunOnce(context.Background())
	assert.NoError(t, err)

	binds, evicts := cl.Calls()
	if binds != 3 {
		t.Errorf("got %d bind calls, want 3", binds)
	}
	assert.Equal(t, 0, evicts)

	assert.Equal(t, []string{"default/g-0", "default/g-2"}, result.Allocation.AllocatedPods.Keys())
	assert.Equal(t, []string{"default/g-1"}, result.Allocation.FailedPods.Keys())
	assert.Empty(t, result.Preemption.Events)
	assert.Empty(t, result.Preemption.AllocatedPods)

	// n2 stays free until the next session picks g-1 up again.
	assert.True(t, result.Nodes[1].IsFree())
	if len(result.Pending) != 1 || result.Pending[0].Name != "g-1" {
		t.Errorf("got pending %v, want [g-1]", result.Pending)
	}
}

func TestSessionScenarios(t *testing.T) {
	tests := []struct {
		name      string
		nodes     []string
		pending   []*pod.Pod
		residents []running
		bound     map[string]string
		evicted   []string
		remaining int
	}{
		{
			name:    "singleton onto free node",
			nodes:   []string{"n1"},
			pending: []*pod.Pod{{Namespace: "a", Name: "p1", Priority: 10}},
			bound:   map[string]string{"a/p1": "n1"},
		},
		{
			name:    "gang onto free nodes",
			nodes:   []string{"n1", "n2"},
			pending: []*pod.Pod{newPod("p1", 5, "g"), newPod("p2", 5, "g")},
			bound:   map[string]string{"default/p1": "n1", "default/p2": "n2"},
		},
		{
			name:      "gang shortfall",
			nodes:     []string{"n1"},
			pending:   []*pod.Pod{newPod("p1", 5, "g"), newPod("p2", 5, "g")},
			bound:     map[string]string{},
			remaining: 2,
		},
		{
			name:      "preempt lower priority",
			nodes:     []string{"n1"},
			pending:   []*pod.Pod{newPod("p-hi", 100, "")},
			residents: []running{{newPod("p-lo", 1, ""), "n1"}},
			bound:     map[string]string{"default/p-hi": "n1"},
			evicted:   []string{"default/p-lo"},
		},
		{
			name:      "no preemption of higher priority",
			nodes:     []string{"n1"},
			pending:   []*pod.Pod{newPod("p-hi", 100, "")},
			residents: []running{{newPod("p-mid", 200, ""), "n1"}},
			bound:     map[string]string{"default/p-mid": "n1"},
			remaining: 1,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cl := newSimCluster(t, test.nodes, test.pending, test.residents)

			result, err := NewSession(cl, cl, Options{}).RunOnce(context.Background())
			assert.NoError(t, err)

			for key, want := range test.bound {
				if got := boundNode(t, cl, key); got != want {
					t.Errorf("pod %s: got node %q, want %q", key, got, want)
				}
			}
			if test.evicted == nil {
				assert.Empty(t, cl.Evicted())
			} else {
				assert.Equal(t, test.evicted, cl.Evicted())
			}
			assert.Len(t, result.Pending, test.remaining)
		})
	}
}

func TestSessionProviderFailure(t *testing.T) {
	rec := &recorder{}
	session := NewSession(failingProvider{}, nil, Options{Reporters: []Reporter{rec}})

	result, err := session.RunOnce(context.Background())
	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Empty(t, rec.results)
	assert.Equal(t, Idle, session.State())
}

func TestSessionIsNotReentrant(t *testing.T) {
	provider := &blockingProvider{entered: make(chan struct{}), release: make(chan struct{})}
	session := NewSession(provider, nil, Options{})

	done := make(chan error)
	go func() {
		_, err := session.RunOnce(context.Background())
		done <- err
	}()

	<-provider.entered
	assert.Equal(t, Running, session.State())

	_, err := session.RunOnce(context.Background())
	assert.Equal(t, ErrSessionRunning, err)

	close(provider.release)
	assert.NoError(t, <-done)
	assert.Equal(t, Idle, session.State())
}

func TestSessionRunStopsOnCancel(t *testing.T) {
	cl := newSimCluster(t, []string{"n1"}, []*pod.Pod{newPod("p", 1, "")}, nil)
	rec := &recorder{}
	session := NewSession(cl, cl, Options{Reporters: []Reporter{rec}})

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		session.Run(ctx, time.Hour)
		close(stopped)
	}()

	assert.Eventually(t, func() bool {
		_, ok := cl.NodeOf("default/p")
		return ok
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "Idle", Idle.String())
	assert.Equal(t, "Running", Running.String())
	assert.Equal(t, "Unknown", State(7).String())
}
