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

package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/containerd/log"
	"github.com/cpuguy83/strongerrors"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/pfnet-research/k8s-gang-scheduler/pkg/cluster"
	"github.com/pfnet-research/k8s-gang-scheduler/pkg/cluster/kube"
	"github.com/pfnet-research/k8s-gang-scheduler/pkg/cluster/sim"
	"github.com/pfnet-research/k8s-gang-scheduler/pkg/metrics"
	"github.com/pfnet-research/k8s-gang-scheduler/pkg/pod"
)

const (
	// BackendKube schedules the pods of a Kubernetes cluster.
	BackendKube = "kube"
	// BackendSim schedules the pods of an in-memory cluster declared in the config.
	BackendSim = "sim"

	// StdoutDest is the metrics logger destination for stdout.
	StdoutDest = "stdout"
)

// Config represents a user-specified scheduler config.
type Config struct {
	LogLevel string
	// SchedulerName is the spec.schedulerName of the pods this scheduler is responsible for.
	SchedulerName string
	// Interval is the idle time between two sessions, in seconds.
	Interval int
	// Parallelism is the maximum number of concurrent binds per group.
	Parallelism int
	// Backend is either "kube" or "sim".
	Backend    string
	Kubeconfig string
	// GroupLabel is the label key whose value names the gang of a pod.
	GroupLabel string
	// EvictionPolicy is either "delete" or "evict".
	EvictionPolicy string

	MetricsLogger []MetricsLoggerConfig
	// MetricsPort serves Prometheus metrics if non-zero.
	MetricsPort int
	// HealthPort serves the gRPC health service if non-zero.
	HealthPort int

	// Cluster and Pods declare the in-memory cluster of the "sim" backend.
	Cluster []NodeConfig
	Pods    []PodConfig
}

// Made public to be parsed from YAML.

type MetricsLoggerConfig struct {
	// Dest is an output device or file path in which the metrics is written.
	Dest string
	// Formatter is a type of metrics format.
	Formatter string
}

type NodeConfig struct {
	Metadata metav1.ObjectMeta
	// Unschedulable marks the node cordoned.
	Unschedulable bool
}

type PodConfig struct {
	Metadata metav1.ObjectMeta
	Priority *int32
	// NodeName makes the pod running on the node instead of pending.
	NodeName string
	// CreatedAt is the creation timestamp in RFC3339. Defaults to the time the cluster is built.
	CreatedAt string
}

// DefaultConfig returns a Config filled with the default values.
func DefaultConfig() Config {
	return Config{
		LogLevel:       "info",
		SchedulerName:  "mvinchoo-scheduler",
		Interval:       5,
		Parallelism:    1,
		Backend:        BackendKube,
		GroupLabel:     "scheduling.x-k8s.io/pod-group",
		EvictionPolicy: string(kube.EvictionPolicyDelete),
	}
}

// ReadConfig reads a Config from the file at path, filling the missing fields with the default
// values. A path without extension is looked up in the current directory with every extension
// viper supports.
// Returns error if the file cannot be read or the config is invalid.
func ReadConfig(path string) (*Config, error) {
	v := viper.New()
	if filepath.Ext(path) != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(path)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	log.G(context.TODO()).Debugf("Config file %s", v.ConfigFileUsed())

	conf := DefaultConfig()
	if err := v.Unmarshal(&conf); err != nil {
		return nil, err
	}

	if err := conf.Validate(); err != nil {
		return nil, err
	}

	return &conf, nil
}

// Validate returns strongerrors.InvalidArgument if this Config has an invalid field.
func (c *Config) Validate() error {
	if c.SchedulerName == "" {
		return strongerrors.InvalidArgument(errors.New("schedulerName must not be empty"))
	}
	if c.Interval < 0 {
		return strongerrors.InvalidArgument(errors.Errorf("interval must not be negative: %d", c.Interval))
	}
	if c.Parallelism < 1 {
		return strongerrors.InvalidArgument(errors.Errorf("parallelism must be positive: %d", c.Parallelism))
	}
	switch c.Backend {
	case BackendKube, BackendSim:
	default:
		return strongerrors.InvalidArgument(errors.Errorf("backend %q is not supported", c.Backend))
	}
	switch kube.EvictionPolicy(c.EvictionPolicy) {
	case kube.EvictionPolicyDelete, kube.EvictionPolicyEvict:
	default:
		return strongerrors.InvalidArgument(errors.Errorf("eviction policy %q is not supported", c.EvictionPolicy))
	}
	if c.MetricsPort < 0 || c.HealthPort < 0 {
		return strongerrors.InvalidArgument(errors.New("ports must not be negative"))
	}

	return nil
}

// IntervalDuration returns Interval as a time.Duration.
func (c *Config) IntervalDuration() time.Duration {
	return time.Duration(c.Interval) * time.Second
}

// BuildMetricsLogger builds metrics writers with the given MetricsLoggerConfig.
// Returns error if the config is invalid or failed to create a metrics file.
func BuildMetricsLogger(conf []MetricsLoggerConfig) ([]metrics.Writer, error) {
	writers := make([]metrics.Writer, 0, len(conf))

	for _, conf := range conf {
		if conf.Dest == "" {
			return nil, strongerrors.InvalidArgument(errors.New("destination must not be empty"))
		}

		formatter, err := buildFormatter(conf.Formatter)
		if err != nil {
			return nil, err
		}

		if conf.Dest == StdoutDest {
			writers = append(writers, metrics.NewStdoutWriter(formatter))
			continue
		}

		writer, err := metrics.NewFileWriter(conf.Dest, formatter)
		if err != nil {
			return nil, err
		}

		writers = append(writers, writer)
	}

	return writers, nil
}

func buildFormatter(conf string) (metrics.Formatter, error) {
	switch conf {
	case "JSON":
		return &metrics.JSONFormatter{}, nil
	case "humanReadable":
		return &metrics.HumanReadableFormatter{}, nil
	case "table":
		return &metrics.TableFormatter{}, nil
	case "YAML":
		return &metrics.YAMLFormatter{}, nil
	default:
		return nil, strongerrors.InvalidArgument(errors.Errorf("formatter %q is not supported", conf))
	}
}

// BuildCluster builds the cluster backend selected by conf.
func BuildCluster(conf *Config) (cluster.Cluster, error) {
	switch conf.Backend {
	case BackendSim:
		c, err := BuildSimCluster(conf)
		if err != nil {
			return nil, err
		}
		return c, nil
	case BackendKube:
		clientset, err := kube.BuildClientset(conf.Kubeconfig)
		if err != nil {
			return nil, err
		}
		c, err := kube.NewClient(clientset, kube.Options{
			SchedulerName:  conf.SchedulerName,
			GroupLabel:     conf.GroupLabel,
			EvictionPolicy: kube.EvictionPolicy(conf.EvictionPolicy),
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, strongerrors.InvalidArgument(errors.Errorf("backend %q is not supported", conf.Backend))
	}
}

// BuildSimCluster builds an in-memory cluster with the nodes and pods declared in conf.
// Returns error if a node or pod is invalid.
func BuildSimCluster(conf *Config) (*sim.Cluster, error) {
	c := sim.NewCluster()

	for _, nodeConf := range conf.Cluster {
		if nodeConf.Metadata.Name == "" {
			return nil, strongerrors.InvalidArgument(errors.New("node name must not be empty"))
		}
		if err := c.AddNode(nodeConf.Metadata.Name); err != nil {
			return nil, err
		}
		if nodeConf.Unschedulable {
			if err := c.Cordon(nodeConf.Metadata.Name); err != nil {
				return nil, err
			}
		}
		log.L.Debugf("Node %s created", nodeConf.Metadata.Name)
	}

	now := metav1.Now()
	for _, podConf := range conf.Pods {
		p, err := BuildPod(podConf, conf.GroupLabel, now)
		if err != nil {
			return nil, err
		}

		if podConf.NodeName != "" {
			err = c.AddRunningPod(p, podConf.NodeName)
		} else {
			err = c.AddPendingPod(p)
		}
		if err != nil {
			return nil, err
		}
		log.L.Debugf("Pod %s created", p)
	}

	return c, nil
}

// BuildPod builds a pod.Pod with the given PodConfig. The pod is created at defaultCreatedAt
// unless the config sets CreatedAt.
// Returns error if failed to parse.
func BuildPod(conf PodConfig, groupLabel string, defaultCreatedAt metav1.Time) (*pod.Pod, error) {
	meta := *conf.Metadata.DeepCopy()
	if meta.Namespace == "" {
		meta.Namespace = metav1.NamespaceDefault
	}

	meta.CreationTimestamp = defaultCreatedAt
	if conf.CreatedAt != "" {
		createdAt, err := time.Parse(time.RFC3339, conf.CreatedAt)
		if err != nil {
			return nil, strongerrors.InvalidArgument(errors.Wrapf(err, "invalid createdAt of pod %s", meta.Name))
		}
		meta.CreationTimestamp = metav1.NewTime(createdAt)
	}

	v1Pod := v1.Pod{
		TypeMeta: metav1.TypeMeta{
			Kind:       "Pod",
			APIVersion: "v1",
		},
		ObjectMeta: meta,
		Spec: v1.PodSpec{
			Priority: conf.Priority,
			NodeName: conf.NodeName,
		},
	}

	return pod.FromV1(&v1Pod, groupLabel)
}
