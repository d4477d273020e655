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
	"strings"

	"gopkg.in/yaml.v2"
)

// YAMLFormatter formats metrics to a YAML document.
type YAMLFormatter struct{}

// Format implements Formatter interface.
// Each document starts with a "---" line, so that a file of consecutive metrics is a YAML stream.
func (y *YAMLFormatter) Format(metrics *Metrics) (string, error) {
	if err := validateMetrics(metrics); err != nil {
		return "", err
	}

	bytes, err := yaml.Marshal(metrics)
	if err != nil {
		return "", err
	}

	return "---\n" + strings.TrimSuffix(string(bytes), "\n"), nil
}

var _ = Formatter(&YAMLFormatter{})
