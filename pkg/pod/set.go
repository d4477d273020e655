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

package pod

import "sort"

// Set is a set of pods keyed by their identity.
type Set map[string]*Pod

// NewSet creates a new Set containing the given pods.
func NewSet(pods ...*Pod) Set {
	set := make(Set, len(pods))
	for _, pod := range pods {
		set.Insert(pod)
	}
	return set
}

// Insert adds the pod to this Set, replacing a pod with the same identity.
func (s Set) Insert(pod *Pod) {
	s[pod.Key()] = pod
}

// Union adds every pod of other to this Set.
func (s Set) Union(other Set) {
	for key, pod := range other {
		s[key] = pod
	}
}

// Has returns whether a pod with the same identity is in this Set.
func (s Set) Has(pod *Pod) bool {
	_, ok := s[pod.Key()]
	return ok
}

// Keys returns the sorted keys of this Set.
func (s Set) Keys() []string {
	keys := make([]string, 0, len(s))
	for key := range s {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Difference returns the pods that are not in excluded, keeping their order.
func Difference(pods []*Pod, excluded Set) []*Pod {
	rest := make([]*Pod, 0, len(pods))
	for _, pod := range pods {
		if !excluded.Has(pod) {
			rest = append(rest, pod)
		}
	}
	return rest
}
