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
	"sync/atomic"
	"time"

	"github.com/containerd/log"
	"github.com/pkg/errors"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/pfnet-research/k8s-gang-scheduler/pkg/clock"
	"github.com/pfnet-research/k8s-gang-scheduler/pkg/cluster"
	"github.com/pfnet-research/k8s-gang-scheduler/pkg/node"
	"github.com/pfnet-research/k8s-gang-scheduler/pkg/pod"
)

// State is the state of a Session.
type State int32

const (
	// Idle means no scheduling session is in progress.
	Idle State = iota
	// Running means a scheduling session is in progress.
	Running
)

// String implements Stringer interface.
func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Running:
		return "Running"
	default:
		return "Unknown"
	}
}

// ErrSessionRunning is returned from RunOnce while another session is in progress.
var ErrSessionRunning = errors.New("A scheduling session is already running")

// Reporter receives the result of every completed session.
type Reporter interface {
	Report(result *SessionResult) error
}

// SessionResult is the outcome of one scheduling session.
type SessionResult struct {
	// StartedAt is the clock at which the session started.
	StartedAt clock.Clock
	// Duration is the wall time the session took.
	Duration time.Duration
	// Nodes are the nodes as left by the session.
	Nodes []*node.Node
	// Pending are the pods still pending after the session, in scheduling order.
	Pending []*pod.Pod
	// Allocation is the result of the allocation pass.
	Allocation *Result
	// Preemption is the result of the preemption pass.
	Preemption *Result
}

// Events returns the events of both passes, in the order they happened.
func (r *SessionResult) Events() []Event {
	events := []Event{}
	if r.Allocation != nil {
		events = append(events, r.Allocation.Events...)
	}
	if r.Preemption != nil {
		events = append(events, r.Preemption.Events...)
	}
	return events
}

// Options configures a Session.
type Options struct {
	// Parallelism is the maximum number of concurrent binds per group. Values below 2 bind
	// sequentially.
	Parallelism int
	// Reporters receive the result of every completed session.
	Reporters []Reporter
}

// Session runs scheduling sessions: discover pending pods and nodes, allocate, then preempt.
// Sessions never overlap.
type Session struct {
	provider  cluster.StateProvider
	allocator *Allocator
	preemptor *Preemptor
	reporters []Reporter

	state int32
}

// NewSession creates a new Session reading state from provider and committing decisions through
// mutator.
func NewSession(provider cluster.StateProvider, mutator cluster.Mutator, opts Options) *Session {
	return &Session{
		provider:  provider,
		allocator: NewAllocator(mutator, opts.Parallelism),
		preemptor: NewPreemptor(mutator, opts.Parallelism),
		reporters: opts.Reporters,
		state:     int32(Idle),
	}
}

// State returns the current state of this Session.
func (s *Session) State() State {
	return State(atomic.LoadInt32(&s.state))
}

// RunOnce runs one scheduling session.
// Returns ErrSessionRunning if a session is already in progress, an error if the cluster state
// cannot be listed, or ctx's error if ctx is done before the session completes. Binds and
// evictions committed before ctx is done stay in effect.
func (s *Session) RunOnce(ctx context.Context) (*SessionResult, error) {
	if !atomic.CompareAndSwapInt32(&s.state, int32(Idle), int32(Running)) {
		return nil, ErrSessionRunning
	}
	defer atomic.StoreInt32(&s.state, int32(Idle))

	start := time.Now()
	result := &SessionResult{StartedAt: clock.NewClock(start)}
	log.G(ctx).Info("Starting session")

	pending, err := s.provider.ListPendingPods(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "Error listing pending pods")
	}
	nodes, err := s.provider.ListNodes(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "Error listing nodes")
	}
	log.G(ctx).Infof("Found %d pending pods and %d nodes", len(pending), len(nodes))

	pod.Sort(pending)
	result.Nodes = nodes
	result.Pending = pending

	log.G(ctx).Debug("Starting allocation")
	result.Allocation, err = s.allocator.Allocate(ctx, pending, nodes)
	if err != nil {
		return result, err
	}
	log.G(ctx).Debug("Finished allocation")

	// Pods whose bind failed are not retried before the next session.
	attempted := pod.Set{}
	attempted.Union(result.Allocation.AllocatedPods)
	attempted.Union(result.Allocation.FailedPods)
	rest := pod.Difference(pending, attempted)

	log.G(ctx).Debug("Starting preemption")
	result.Preemption, err = s.preemptor.Preempt(ctx, rest, nodes)
	if err != nil {
		return result, err
	}
	log.G(ctx).Debug("Finished preemption")

	allocated := pod.Set{}
	allocated.Union(result.Allocation.AllocatedPods)
	allocated.Union(result.Preemption.AllocatedPods)
	result.Pending = pod.Difference(pending, allocated)
	result.Duration = time.Since(start)

	log.G(ctx).Infof("Ending session: %d pods bound, %d pods still pending (%s)",
		len(allocated), len(result.Pending), result.Duration)

	errs := []error{}
	for _, reporter := range s.reporters {
		if err := reporter.Report(result); err != nil {
			errs = append(errs, err)
		}
	}
	if err := utilerrors.NewAggregate(errs); err != nil {
		log.G(ctx).WithError(err).Warn("Error reporting session result")
	}

	return result, nil
}

// Run runs sessions back to back, waiting interval after each session completes, until ctx is
// done. A failed session is logged and the next one runs as scheduled.
func (s *Session) Run(ctx context.Context, interval time.Duration) {
	wait.UntilWithContext(ctx, func(ctx context.Context) {
		if _, err := s.RunOnce(ctx); err != nil {
			if errors.Cause(err) == context.Canceled {
				log.G(ctx).Debug("Session abandoned")
				return
			}
			log.G(ctx).WithError(err).Error("Session failed")
		}
	}, interval)
}
