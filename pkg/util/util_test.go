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

package util_test

import (
	"testing"

	"github.com/cpuguy83/strongerrors"
	"github.com/stretchr/testify/assert"
	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/pfnet-research/k8s-gang-scheduler/pkg/util"
)

func TestPodPriority(t *testing.T) {
	pod := v1.Pod{}
	if actual := util.PodPriority(&pod); actual != util.DefaultPodPriority {
		t.Errorf("got: %d\nwant: %d", actual, util.DefaultPodPriority)
	}

	prio := int32(100)
	pod.Spec.Priority = &prio
	if actual := util.PodPriority(&pod); actual != prio {
		t.Errorf("got: %d\nwant: %d", actual, prio)
	}
}

func TestPodKey(t *testing.T) {
	pod := v1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "pod-0",
			Namespace: "default",
		},
	}

	actual, err := util.PodKey(&pod)
	assert.NoError(t, err)
	assert.Equal(t, "default/pod-0", actual)

	pod.ObjectMeta.Namespace = ""
	_, err = util.PodKey(&pod)
	assert.Error(t, err)
	assert.True(t, strongerrors.IsInvalidArgument(err))

	pod.ObjectMeta.Namespace = "default"
	pod.ObjectMeta.Name = ""
	_, err = util.PodKey(&pod)
	assert.Error(t, err)
}

func TestSingletonGroupKey(t *testing.T) {
	key0 := util.SingletonGroupKey("default", "pod-0")
	key1 := util.SingletonGroupKey("default", "pod-1")

	assert.NotEqual(t, key0, key1)
	assert.True(t, util.IsSingletonGroupKey(key0))
	assert.False(t, util.IsSingletonGroupKey("pod-0"))
	assert.NotEqual(t, "default/pod-0", key0)
}
