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
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pfnet-research/k8s-gang-scheduler/pkg/node"
	"github.com/pfnet-research/k8s-gang-scheduler/pkg/scheduler"
)

const (
	prefix = "gang_scheduler_"

	passLabel = "pass"

	allocationPass = "allocation"
	preemptionPass = "preemption"
)

var passLabels = []string{passLabel}

// Collector exposes session results as Prometheus metrics.
type Collector struct {
	sessions         prometheus.Counter
	sessionDuration  prometheus.Histogram
	boundPods        *prometheus.CounterVec
	bindFailures     *prometheus.CounterVec
	skippedGroups    *prometheus.CounterVec
	evictedPods      prometheus.Counter
	evictionFailures prometheus.Counter
	abortedGroups    prometheus.Counter
	pendingPods      prometheus.Gauge
	freeNodes        prometheus.Gauge
	nodes            prometheus.Gauge
}

// NewCollector creates a new Collector.
func NewCollector() *Collector {
	return &Collector{
		sessions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "sessions_total",
			Help: "Number of completed scheduling sessions",
		}),
		sessionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    prefix + "session_duration_seconds",
			Help:    "Wall time of a scheduling session",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		boundPods: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "bound_pods_total",
			Help: "Number of pods bound",
		}, passLabels),
		bindFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "bind_failures_total",
			Help: "Number of failed binds",
		}, passLabels),
		skippedGroups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "skipped_groups_total",
			Help: "Number of groups skipped for lack of nodes",
		}, passLabels),
		evictedPods: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "evicted_pods_total",
			Help: "Number of pods evicted by preemption",
		}),
		evictionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "eviction_failures_total",
			Help: "Number of failed evictions",
		}),
		abortedGroups: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "aborted_preemptions_total",
			Help: "Number of preemption attempts aborted by an eviction failure",
		}),
		pendingPods: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "pending_pods",
			Help: "Number of pods still pending after the last session",
		}),
		freeNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "free_nodes",
			Help: "Number of free nodes after the last session",
		}),
		nodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "nodes",
			Help: "Number of nodes seen by the last session",
		}),
	}
}

// Observe records the given session result.
func (c *Collector) Observe(result *scheduler.SessionResult) {
	c.sessions.Inc()
	c.sessionDuration.Observe(result.Duration.Seconds())

	c.observePass(allocationPass, result.Allocation)
	c.observePass(preemptionPass, result.Preemption)

	c.pendingPods.Set(float64(len(result.Pending)))
	c.freeNodes.Set(float64(len(node.FreeNodes(result.Nodes))))
	c.nodes.Set(float64(len(result.Nodes)))
}

func (c *Collector) observePass(pass string, result *scheduler.Result) {
	if result == nil {
		return
	}

	c.boundPods.WithLabelValues(pass).Add(float64(len(result.AllocatedPods)))

	for _, ev := range result.Events {
		switch ev.(type) {
		case *scheduler.BindFailureEvent:
			c.bindFailures.WithLabelValues(pass).Inc()
		case *scheduler.SkipEvent:
			c.skippedGroups.WithLabelValues(pass).Inc()
		case *scheduler.DeleteEvent:
			c.evictedPods.Inc()
		case *scheduler.DeleteFailureEvent:
			c.evictionFailures.Inc()
		case *scheduler.AbortEvent:
			c.abortedGroups.Inc()
		}
	}
}

func (c *Collector) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.sessions,
		c.sessionDuration,
		c.boundPods,
		c.bindFailures,
		c.skippedGroups,
		c.evictedPods,
		c.evictionFailures,
		c.abortedGroups,
		c.pendingPods,
		c.freeNodes,
		c.nodes,
	}
}

// Describe implements prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.collectors() {
		m.Describe(ch)
	}
}

// Collect implements prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, m := range c.collectors() {
		m.Collect(ch)
	}
}

var _ = prometheus.Collector(&Collector{})
