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

	"github.com/spf13/cobra"
)

var (
	// Version is a compile time variable for the binary version
	Version = "N/A"
	// BuildTime is a compile time variable for the binary build time
	BuildTime = "N/A"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of gang-scheduler",
	Long:  "Print the version number of gang-scheduler",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("gang-scheduler %s (built: %s)\n", Version, BuildTime)
	},
}
