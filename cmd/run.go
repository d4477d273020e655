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
	"context"

	"github.com/containerd/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/pfnet-research/k8s-gang-scheduler/pkg/health"
	"github.com/pfnet-research/k8s-gang-scheduler/pkg/metrics"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run scheduling sessions until interrupted",
	Run: func(cmd *cobra.Command, args []string) {
		// SIGINT cancels the running session and the servers.
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(configPath)
		if err != nil {
			log.L.WithError(err).Fatal("Error creating scheduler")
		}
		defer a.close()

		if a.conf.MetricsPort != 0 {
			server, err := metrics.NewWebServer(a.conf.MetricsPort, a.collector)
			if err != nil {
				log.L.WithError(err).Fatal("Error creating metrics server")
			}
			go serve(ctx, "metrics", server.ListenAndServe)
		}

		if a.conf.HealthPort != 0 {
			server := health.NewServer(a.conf.HealthPort)
			server.SetServing(true)
			go serve(ctx, "health", server.ListenAndServe)
		}

		log.G(ctx).Infof("Scheduling pods of %s every %s", a.conf.SchedulerName, a.conf.IntervalDuration())
		a.session.Run(ctx, a.conf.IntervalDuration())
		log.G(ctx).Info("Stopped")
	},
}

func serve(ctx context.Context, name string, listenAndServe func(context.Context) error) {
	if err := listenAndServe(ctx); err != nil && errors.Cause(err) != context.Canceled {
		log.G(ctx).WithError(err).Errorf("Error serving %s", name)
	}
}
