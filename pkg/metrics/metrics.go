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

package metrics

import (
	"github.com/cpuguy83/strongerrors"
	"github.com/pkg/errors"

	"github.com/pfnet-research/k8s-gang-scheduler/pkg/node"
	"github.com/pfnet-research/k8s-gang-scheduler/pkg/pod"
	"github.com/pfnet-research/k8s-gang-scheduler/pkg/scheduler"
)

// Metrics represents a metrics of one scheduling session, in the following structure.
//   Metrics[ClockKey] = a formatted clock at which the session started
//   Metrics[SessionMetricsKey] = SessionMetrics
//   Metrics[NodesMetricsKey] = map from node name to node.Metrics
//   Metrics[PendingMetricsKey] = PendingMetrics
type Metrics map[string]interface{}

const (
	// ClockKey is the key associated to a clock.Clock.
	ClockKey = "Clock"
	// SessionMetricsKey is the key associated to a SessionMetrics.
	SessionMetricsKey = "Session"
	// NodesMetricsKey is the key associated to a map of node.Metrics.
	NodesMetricsKey = "Nodes"
	// PendingMetricsKey is the key associated to a PendingMetrics.
	PendingMetricsKey = "Pending"
)

// SessionMetrics counts what one session did.
type SessionMetrics struct {
	DurationSeconds  float64
	BoundPods        int
	PreemptedPods    int
	BindFailures     int
	EvictedPods      int
	EvictionFailures int
	// SkippedGroups are the groups that could not be placed even with preemption.
	SkippedGroups int
	AbortedGroups int
}

// PendingMetrics lists the pods still pending after a session.
type PendingMetrics struct {
	PendingPodsNum int
	Pods           []string
}

// BuildMetrics builds a Metrics of the given session result.
func BuildMetrics(result *scheduler.SessionResult) (Metrics, error) {
	if result == nil {
		return Metrics{}, strongerrors.InvalidArgument(errors.New("session result must not be nil"))
	}

	metrics := make(map[string]interface{})
	metrics[ClockKey] = result.StartedAt.ToRFC3339()
	metrics[SessionMetricsKey] = buildSessionMetrics(result)

	nodesMetrics := make(map[string]node.Metrics)
	for _, n := range result.Nodes {
		nodesMetrics[n.Name()] = n.Metrics()
	}
	metrics[NodesMetricsKey] = nodesMetrics

	metrics[PendingMetricsKey] = buildPendingMetrics(result.Pending)

	return metrics, nil
}

func buildSessionMetrics(result *scheduler.SessionResult) SessionMetrics {
	met := SessionMetrics{DurationSeconds: result.Duration.Seconds()}

	if result.Allocation != nil {
		met.BoundPods = len(result.Allocation.AllocatedPods)
	}
	if result.Preemption != nil {
		met.PreemptedPods = len(result.Preemption.AllocatedPods)
		for _, ev := range result.Preemption.Events {
			// Groups skipped by the allocation pass are retried by preemption; count only final skips.
			if _, ok := ev.(*scheduler.SkipEvent); ok {
				met.SkippedGroups++
			}
		}
	}

	for _, ev := range result.Events() {
		switch ev.(type) {
		case *scheduler.BindFailureEvent:
			met.BindFailures++
		case *scheduler.DeleteEvent:
			met.EvictedPods++
		case *scheduler.DeleteFailureEvent:
			met.EvictionFailures++
		case *scheduler.AbortEvent:
			met.AbortedGroups++
		}
	}

	return met
}

func buildPendingMetrics(pending []*pod.Pod) PendingMetrics {
	keys := make([]string, 0, len(pending))
	for _, p := range pending {
		keys = append(keys, p.Key())
	}
	return PendingMetrics{
		PendingPodsNum: len(pending),
		Pods:           keys,
	}
}

// Formatter defines the interface of metrics formatter.
type Formatter interface {
	// Format formats the given metrics to a string.
	Format(metrics *Metrics) (string, error)
}

// Writer defines the interface of metrics writer.
type Writer interface {
	// Write writes the given metrics to some location(s).
	Write(metrics *Metrics) error
}

func validateMetrics(metrics *Metrics) error {
	keys := []string{ClockKey, SessionMetricsKey, NodesMetricsKey, PendingMetricsKey}
	for _, key := range keys {
		if _, ok := (*metrics)[key]; !ok {
			return errors.Errorf("No key %q in metrics", key)
		}
	}

	if _, ok := (*metrics)[ClockKey].(string); !ok {
		return errors.Errorf("Type assertion failed: %q field of metrics is not string", ClockKey)
	}
	if _, ok := (*metrics)[SessionMetricsKey].(SessionMetrics); !ok {
		return errors.Errorf("Type assertion failed: %q field of metrics is not SessionMetrics", SessionMetricsKey)
	}
	if _, ok := (*metrics)[NodesMetricsKey].(map[string]node.Metrics); !ok {
		return errors.Errorf("Type assertion failed: %q field of metrics is not map[string]node.Metrics", NodesMetricsKey)
	}
	if _, ok := (*metrics)[PendingMetricsKey].(PendingMetrics); !ok {
		return errors.Errorf("Type assertion failed: %q field of metrics is not PendingMetrics", PendingMetricsKey)
	}

	return nil
}
