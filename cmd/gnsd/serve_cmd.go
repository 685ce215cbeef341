package main

import (
	"context"
	"flag"
	"os"
	"strconv"

	"gnsd/internal/config"
	"gnsd/internal/domain"
	httpinfra "gnsd/internal/infra/http"
)

// staticProvider feeds a fixed position to the collector. Deployments
// with real positioning hardware replace it behind the same interface.
type staticProvider struct {
	sample domain.LocationSample
}

func (p staticProvider) Sample(context.Context) (domain.LocationSample, error) {
	return p.sample, nil
}

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var lat, lng string
	fs.StringVar(&lat, "lat", "", "fixed collection latitude")
	fs.StringVar(&lng, "lng", "", "fixed collection longitude")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	var provider domain.LocationProvider
	if lat != "" && lng != "" {
		latV, err := strconv.ParseFloat(lat, 64)
		if err != nil {
			return fail(err)
		}
		lngV, err := strconv.ParseFloat(lng, 64)
		if err != nil {
			return fail(err)
		}
		provider = staticProvider{sample: domain.LocationSample{Latitude: latV, Longitude: lngV}}
	}

	cfg := config.FromEnv()
	app, err := buildApp(context.Background(), cfg, provider)
	if err != nil {
		return fail(err)
	}

	srv := httpinfra.NewServer(cfg, httpinfra.ServerDeps{
		Identities:  app.identities,
		Collector:   app.collector,
		Publisher:   app.publisher,
		Scorer:      app.scorer,
		Handles:     app.handles,
		Relay:       app.relay,
		RateLimiter: app.limiter,
		Logger:      app.logger,
	})
	app.logger.Info("listening", "addr", cfg.HTTPAddr)
	if err := srv.Run(); err != nil {
		return fail(err)
	}
	return 0
}
