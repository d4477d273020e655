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
	"encoding/json"
)

// JSONFormatter formats metrics to a JSON string.
type JSONFormatter struct{}

// Format implements Formatter interface.
// The result has no newline at the end.
func (j *JSONFormatter) Format(metrics *Metrics) (string, error) {
	bytes, err := json.Marshal(metrics)
	if err != nil {
		return "", err
	}

	return string(bytes), nil
}

var _ = Formatter(&JSONFormatter{})
