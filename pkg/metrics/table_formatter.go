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
	"fmt"
	"sort"
	"strings"

	"github.com/pfnet-research/k8s-gang-scheduler/pkg/node"
)

// TableFormatter is a Formatter that formats metrics in a table style.
type TableFormatter struct{}

// Format implements Formatter interface.
// Returns error if the given metrics does not have valid structure.
func (t *TableFormatter) Format(metrics *Metrics) (string, error) {
	if err := validateMetrics(metrics); err != nil {
		return "", err
	}

	// Clock
	clk := (*metrics)[ClockKey].(string)
	str := clk + "\n\n"

	// Session
	sessionMet := (*metrics)[SessionMetricsKey].(SessionMetrics)
	str += t.formatSessionMetrics(sessionMet) + "\n"

	// Nodes
	nodesMet := (*metrics)[NodesMetricsKey].(map[string]node.Metrics)
	str += t.formatNodesMetrics(nodesMet) + "\n"

	// Pending
	pendingMet := (*metrics)[PendingMetricsKey].(PendingMetrics)
	str += t.formatPendingMetrics(pendingMet)

	return str, nil
}

var _ = Formatter(&TableFormatter{})

func (t *TableFormatter) formatSessionMetrics(met SessionMetrics) string {
	str := "Duration Bound    Bound by Bind     Evicted  Eviction Skipped  Aborted  \n"
	str += "(s)               preempt. failures          failures groups   groups   \n"
	str += "-------------------------------------------------------------------------\n"
	str += fmt.Sprintf("%-8.3f %-8d %-8d %-8d %-8d %-8d %-8d %-8d \n",
		met.DurationSeconds, met.BoundPods, met.PreemptedPods, met.BindFailures,
		met.EvictedPods, met.EvictionFailures, met.SkippedGroups, met.AbortedGroups)
	return str
}

func (t *TableFormatter) formatNodesMetrics(metrics map[string]node.Metrics) string {
	nodes := make([]string, 0, len(metrics))
	for name := range metrics {
		nodes = append(nodes, name)
	}
	sort.Strings(nodes)

	// Header
	str := "Node             Free  Pods\n"
	str += "----------------------------------------------\n"

	// Body
	for _, name := range nodes {
		met := metrics[name]
		str += fmt.Sprintf("%-16s %-5t %s\n", name, met.Free, strings.Join(met.Pods, ","))
	}

	return str
}

func (t *TableFormatter) formatPendingMetrics(metrics PendingMetrics) string {
	str := "        PendingPods \n"
	str += "--------------------\n"
	str += fmt.Sprintf("Pending %-8d \n", metrics.PendingPodsNum)
	return str
}
