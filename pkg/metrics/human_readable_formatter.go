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

// HumanReadableFormatter is a Formatter that formats metrics in a human-readable style.
type HumanReadableFormatter struct{}

// Format implements Formatter interface.
// Returns error if the given metrics does not have valid structure.
func (h *HumanReadableFormatter) Format(metrics *Metrics) (string, error) {
	if err := validateMetrics(metrics); err != nil {
		return "", err
	}

	// Clock
	clk := (*metrics)[ClockKey].(string)
	str := "Metrics " + clk + "\n"

	// Session
	str += "  Session\n"
	sessionMet := (*metrics)[SessionMetricsKey].(SessionMetrics)
	str += h.formatSessionMetrics(sessionMet)

	// Nodes
	str += "  Nodes\n"
	nodesMet := (*metrics)[NodesMetricsKey].(map[string]node.Metrics)
	str += h.formatNodesMetrics(nodesMet)

	// Pending
	str += "  Pending\n"
	pendingMet := (*metrics)[PendingMetricsKey].(PendingMetrics)
	str += h.formatPendingMetrics(pendingMet)

	return str, nil
}

func (h *HumanReadableFormatter) formatSessionMetrics(met SessionMetrics) string {
	return fmt.Sprintf(
		"    took %.3f s, bound %d, bound by preemption %d, bind failures %d, evicted %d, "+
			"eviction failures %d, skipped groups %d, aborted groups %d\n",
		met.DurationSeconds, met.BoundPods, met.PreemptedPods, met.BindFailures, met.EvictedPods,
		met.EvictionFailures, met.SkippedGroups, met.AbortedGroups)
}

func (h *HumanReadableFormatter) formatNodesMetrics(metrics map[string]node.Metrics) string {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	str := ""
	for _, name := range names {
		met := metrics[name]
		if met.Free {
			str += fmt.Sprintf("    %s: free\n", name)
			continue
		}
		str += fmt.Sprintf("    %s: %s\n", name, strings.Join(met.Pods, ", "))
	}

	return str
}

func (h *HumanReadableFormatter) formatPendingMetrics(metrics PendingMetrics) string {
	return fmt.Sprintf("    PendingPods %d\n", metrics.PendingPodsNum)
}

var _ = Formatter(&HumanReadableFormatter{})
