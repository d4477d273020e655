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
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/pfnet-research/k8s-gang-scheduler/pkg/scheduler"
)

// Reporter writes the metrics of every session to the writers and records it to the collector.
type Reporter struct {
	writers   []Writer
	collector *Collector
}

// NewReporter creates a new Reporter. collector may be nil.
func NewReporter(writers []Writer, collector *Collector) *Reporter {
	return &Reporter{
		writers:   writers,
		collector: collector,
	}
}

// Report implements scheduler.Reporter interface.
// Every writer is tried; the returned error aggregates the failures.
func (r *Reporter) Report(result *scheduler.SessionResult) error {
	met, err := BuildMetrics(result)
	if err != nil {
		return err
	}

	if r.collector != nil {
		r.collector.Observe(result)
	}

	errs := []error{}
	for _, writer := range r.writers {
		if err := writer.Write(&met); err != nil {
			errs = append(errs, err)
		}
	}

	return utilerrors.NewAggregate(errs)
}

var _ = scheduler.Reporter(&Reporter{})
