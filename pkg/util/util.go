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

package util

import (
	"fmt"
	"strings"

	"github.com/cpuguy83/strongerrors"
	"github.com/pkg/errors"
	v1 "k8s.io/api/core/v1"
)

// DefaultPodPriority is the priority of a pod whose spec.priority is not set.
const DefaultPodPriority = int32(0)

// singletonGroupPrefix prefixes the group key synthesized for a pod without a group.
// Label values never contain '/', so the synthesized keys cannot collide with user-defined groups.
const singletonGroupPrefix = "__singleton__/"

// PodPriority returns the priority of the given pod.
func PodPriority(pod *v1.Pod) int32 {
	prio := DefaultPodPriority
	if pod.Spec.Priority != nil {
		prio = *pod.Spec.Priority
	}
	return prio
}

// PodKey builds a key for the given pod.
// Returns error if the pod doesn't have valid (i.e., non-empty) namespace and name.
func PodKey(pod *v1.Pod) (string, error) {
	if pod.ObjectMeta.Namespace == "" {
		return "", strongerrors.InvalidArgument(errors.New("Empty pod namespace"))
	}

	if pod.ObjectMeta.Name == "" {
		return "", strongerrors.InvalidArgument(errors.New("Empty pod name"))
	}

	return PodKeyFromNames(pod.ObjectMeta.Namespace, pod.ObjectMeta.Name), nil
}

// PodKeyFromNames builds a key from the namespace and pod name.
func PodKeyFromNames(namespace string, name string) string {
	return fmt.Sprintf("%s/%s", namespace, name)
}

// SingletonGroupKey builds the group key of a pod that does not belong to any group.
func SingletonGroupKey(namespace, name string) string {
	return singletonGroupPrefix + PodKeyFromNames(namespace, name)
}

// IsSingletonGroupKey returns whether the key was built by SingletonGroupKey.
func IsSingletonGroupKey(key string) bool {
	return strings.HasPrefix(key, singletonGroupPrefix)
}
