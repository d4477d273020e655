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

package cmd

import (
	"fmt"

	"github.com/containerd/log"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(onceCmd)
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single scheduling session",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(configPath)
		if err != nil {
			log.L.WithError(err).Fatal("Error creating scheduler")
		}
		defer a.close()

		result, err := a.session.RunOnce(ctx)
		if err != nil {
			log.L.WithError(err).Fatal("Error running session")
		}

		fmt.Printf("bound %d pods, preempted for %d pods, %d pods pending\n",
			len(result.Allocation.AllocatedPods), len(result.Preemption.AllocatedPods), len(result.Pending))
	},
}
