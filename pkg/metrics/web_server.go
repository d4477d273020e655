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
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/containerd/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WebServer serves the metrics registered to its registry at /metrics.
type WebServer struct {
	server *http.Server
}

// NewWebServer creates a new WebServer listening on the given port, with a registry holding the
// given collectors only.
// Returns error if a collector fails to register.
func NewWebServer(port int, collectors ...prometheus.Collector) (*WebServer, error) {
	registry := prometheus.NewRegistry()
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return &WebServer{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Handler returns the http.Handler of this WebServer.
func (w *WebServer) Handler() http.Handler {
	return w.server.Handler
}

// Serve serves on the given listener until ctx is done.
func (w *WebServer) Serve(ctx context.Context, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Serve(lis)
	}()
	log.G(ctx).Infof("Serving metrics on %s", lis.Addr())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := w.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	}
}

// ListenAndServe listens on the configured port and serves until ctx is done.
func (w *WebServer) ListenAndServe(ctx context.Context) error {
	lis, err := net.Listen("tcp", w.server.Addr)
	if err != nil {
		return err
	}
	return w.Serve(ctx, lis)
}
