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
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/containerd/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/pfnet-research/k8s-gang-scheduler/pkg/config"
	l "github.com/pfnet-research/k8s-gang-scheduler/pkg/log"
	"github.com/pfnet-research/k8s-gang-scheduler/pkg/metrics"
	"github.com/pfnet-research/k8s-gang-scheduler/pkg/scheduler"
)

// configPath is the path of the config file, defaulting to "config" in the working directory.
var configPath string

var rootCmd = &cobra.Command{
	Use:   "gang-scheduler",
	Short: "gang-scheduler places groups of pods onto nodes all at once, preempting lower-priority groups when needed.",
}

// Execute executes the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.L.WithError(err).Fatal("Error executing root command")
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config", "config file (with or without file extension)")
}

// app is a scheduler built from a config file.
type app struct {
	conf      *config.Config
	session   *scheduler.Session
	collector *metrics.Collector
	writers   []metrics.Writer
}

func newApp(path string) (*app, error) {
	conf, err := config.ReadConfig(path)
	if err != nil {
		return nil, errors.Wrap(err, "Error reading config")
	}

	if err := l.Configure(conf.LogLevel); err != nil {
		return nil, errors.Wrap(err, "Error configuring logging")
	}
	log.L.Debugf("Config: %+v", *conf)

	c, err := config.BuildCluster(conf)
	if err != nil {
		return nil, errors.Wrapf(err, "Error building %s backend", conf.Backend)
	}

	writers, err := config.BuildMetricsLogger(conf.MetricsLogger)
	if err != nil {
		return nil, errors.Wrap(err, "Error building metrics logger")
	}

	collector := metrics.NewCollector()
	session := scheduler.NewSession(c, c, scheduler.Options{
		Parallelism: conf.Parallelism,
		Reporters:   []scheduler.Reporter{metrics.NewReporter(writers, collector)},
	})

	return &app{
		conf:      conf,
		session:   session,
		collector: collector,
		writers:   writers,
	}, nil
}

func (a *app) close() {
	for _, w := range a.writers {
		if closer, ok := w.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				log.L.WithError(err).Warn("Error closing metrics writer")
			}
		}
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sig:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sig)
	}()

	return ctx, cancel
}
