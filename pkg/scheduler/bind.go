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
	"errors"

	"k8s.io/client-go/util/workqueue"

	"github.com/pfnet-research/k8s-gang-scheduler/pkg/cluster"
	"github.com/pfnet-research/k8s-gang-scheduler/pkg/node"
	"github.com/pfnet-research/k8s-gang-scheduler/pkg/pod"
)

var errBindNotAttempted = errors.New("bind not attempted")

// bindAll binds pods[i] to nodes[i] for every i, through up to parallelism concurrent calls.
// The returned slice holds the error of each pair; nil means the pair was bound.
// Pairs never share a pod or a node, so concurrent calls never target the same object.
func bindAll(
	ctx context.Context,
	mutator cluster.Mutator,
	parallelism int,
	pods []*pod.Pod,
	nodes []*node.Node) []error {

	errs := make([]error, len(pods))
	for i := range errs {
		errs[i] = errBindNotAttempted
	}

	bindOne := func(i int) {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			return
		}
		errs[i] = mutator.Bind(ctx, pods[i], nodes[i].Name())
	}

	if parallelism <= 1 || len(pods) <= 1 {
		for i := range pods {
			bindOne(i)
		}
		return errs
	}

	workqueue.ParallelizeUntil(ctx, parallelism, len(pods), bindOne)
	return errs
}
