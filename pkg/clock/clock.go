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

package clock

import (
	"encoding/json"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Clock wraps a metav1.Time.
// It stamps pod creation times, which order pods of equal priority, and the start of each
// scheduling session.
type Clock struct {
	inner metav1.Time
}

// NewClock creates a new clock from the time.Time.
func NewClock(t time.Time) Clock {
	return NewClockWithMetaV1(metav1.NewTime(t))
}

// NewClockWithMetaV1 creates a new clock from the metav1.Time.
func NewClockWithMetaV1(t metav1.Time) Clock {
	return Clock{inner: t}
}

// Now returns the clock at the current wall time.
func Now() Clock {
	return NewClockWithMetaV1(metav1.Now())
}

// ToMetaV1 converts this clock to metav1.Time.
func (c Clock) ToMetaV1() metav1.Time {
	return c.inner
}

// Sub calculates the duration from rhs to this clock.
func (c Clock) Sub(rhs Clock) time.Duration {
	return c.inner.Time.Sub(rhs.inner.Time)
}

// Before returns whether this clock is strictly before rhs.
// A zero clock is before any non-zero clock.
func (c Clock) Before(rhs Clock) bool {
	return c.inner.Before(&rhs.inner)
}

// Equal returns whether this clock and rhs represent the same instant.
func (c Clock) Equal(rhs Clock) bool {
	return c.inner.Equal(&rhs.inner)
}

// IsZero returns whether this clock is unset.
func (c Clock) IsZero() bool {
	return c.inner.IsZero()
}

// String converts this clock to a string.
func (c Clock) String() string {
	return c.inner.String()
}

// ToRFC3339 formats this clock to a string in RFC3339 format.
func (c Clock) ToRFC3339() string {
	return c.inner.Format(time.RFC3339)
}

// MarshalJSON implements json.Marshaler.
func (c Clock) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.ToRFC3339())
}

// MarshalYAML implements yaml.Marshaler.
func (c Clock) MarshalYAML() (interface{}, error) {
	return c.ToRFC3339(), nil
}
