// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/thediveo/lxkns/log"
	"golang.org/x/sync/errgroup"

	"github.com/siemens/logtally"
	"github.com/siemens/logtally/config"
	"github.com/siemens/logtally/engine"
	"github.com/siemens/logtally/engine/moby"
	"github.com/siemens/logtally/extractor"
	"github.com/siemens/logtally/server"
	"github.com/siemens/logtally/store"
)

// WatchedContainersMetricName is the name of the gauge reporting the number
// of containers whose logs are currently being watched.
const WatchedContainersMetricName = "logtally_watched_containers"

// run creates a Docker engine client for the configured socket and then
// watches the containers until the context gets cancelled.
func run(ctx context.Context, cfg *config.Config) error {
	eng, err := moby.New(cfg.DockerSocket)
	if err != nil {
		return err
	}
	defer eng.Close()
	return serve(ctx, cfg, eng)
}

// serve watches the containers of the specified engine and serves the request
// metrics, until the context gets cancelled. It then waits for all watchers,
// the sweeper and the metrics server to wind down, but only up to the
// configured shutdown timeout.
func serve(ctx context.Context, cfg *config.Config, eng engine.Engine) error {
	x := extractor.Named(cfg.Extractor)
	if x == nil {
		return fmt.Errorf("unknown extractor %q, available extractors: %s",
			cfg.Extractor, strings.Join(extractor.Names(), ", "))
	}

	metrics := store.New()
	reg := prometheus.NewRegistry()
	reg.MustRegister(store.NewCollector(metrics))

	// Bind the listener first, so that we bail out early when the address is
	// taken.
	srv, err := server.New(cfg.ListenAddress, reg,
		server.WithShutdownTimeout(cfg.ShutdownTimeout))
	if err != nil {
		return err
	}

	r := logtally.New(eng, metrics, cfg.DockerImages,
		logtally.WithExtractor(x),
		logtally.WithPollInterval(cfg.PollInterval),
		logtally.WithRetryInterval(cfg.RetryInterval),
		logtally.WithBackoff(cfg.Backoff),
		logtally.WithMaxOpening(cfg.MaxOpening))
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: WatchedContainersMetricName,
		Help: "Number of containers whose logs are currently being watched.",
	}, func() float64 { return float64(len(r.Watched())) }))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.Run(gctx) })
	g.Go(func() error {
		metrics.Run(gctx, cfg.SweepInterval, cfg.TTL)
		return nil
	})
	g.Go(func() error { return srv.Serve(gctx) })

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()
	select {
	case err := <-done:
		return err
	case <-gctx.Done():
	}
	log.Infof("shutting down")
	wecker := time.NewTimer(cfg.ShutdownTimeout)
	defer wecker.Stop()
	select {
	case err := <-done:
		if err == nil {
			log.Infof("shut down")
		}
		return err
	case <-wecker.C:
		return errors.New("shutdown did not complete within " + cfg.ShutdownTimeout.String())
	}
}
