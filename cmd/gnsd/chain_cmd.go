package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"gnsd/internal/config"
	"gnsd/internal/domain"
	"gnsd/internal/usecase"
)

func runCollect(args []string) int {
	fs := flag.NewFlagSet("collect", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var id, source string
	var lat, lng, accuracy float64
	fs.StringVar(&id, "id", "", "identity id")
	fs.Float64Var(&lat, "lat", 0, "latitude")
	fs.Float64Var(&lng, "lng", 0, "longitude")
	fs.Float64Var(&accuracy, "accuracy", 0, "accuracy in meters")
	fs.StringVar(&source, "source", string(domain.SourceManual), "location source")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if !domain.ValidSource(domain.LocationSource(source)) {
		return fail(fmt.Errorf("unknown source %q", source))
	}

	sample := domain.LocationSample{
		Latitude:  lat,
		Longitude: lng,
		Source:    domain.LocationSource(source),
	}
	if accuracy > 0 {
		sample.AccuracyMeters = &accuracy
	}

	ctx := context.Background()
	app, err := buildApp(ctx, config.FromEnv(), staticProvider{sample: sample})
	if err != nil {
		return fail(err)
	}
	identity, err := app.loadIdentity(ctx, id)
	if err != nil {
		return fail(err)
	}
	crumb, err := app.collector.CollectOnce(ctx, *identity)
	if err != nil {
		return fail(err)
	}
	if err := writeJSON(crumb); err != nil {
		return fail(err)
	}
	return 0
}

func runPublish(args []string) int {
	fs := flag.NewFlagSet("publish", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var id string
	fs.StringVar(&id, "id", "", "identity id")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	ctx := context.Background()
	app, err := buildApp(ctx, config.FromEnv(), nil)
	if err != nil {
		return fail(err)
	}
	identity, err := app.loadIdentity(ctx, id)
	if err != nil {
		return fail(err)
	}
	epoch, err := app.publisher.Publish(ctx, *identity)
	if err != nil {
		return fail(err)
	}
	if err := writeJSON(epoch); err != nil {
		return fail(err)
	}
	return 0
}

func runScore(args []string) int {
	fs := flag.NewFlagSet("score", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var id, profile string
	var verify bool
	fs.StringVar(&id, "id", "", "identity id")
	fs.BoolVar(&verify, "verify", false, "run the named requirement checks")
	fs.StringVar(&profile, "profile", "handle", "requirement profile: handle or payment")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	ctx := context.Background()
	cfg := config.FromEnv()

	var requirements usecase.TrustRequirements
	switch profile {
	case "handle":
		requirements = defaultRequirements(cfg)
	case "payment":
		requirements = usecase.PaymentRequirements()
	default:
		return fail(fmt.Errorf("unknown profile %q", profile))
	}

	app, err := buildApp(ctx, cfg, nil)
	if err != nil {
		return fail(err)
	}
	identity, err := app.loadIdentity(ctx, id)
	if err != nil {
		return fail(err)
	}

	if verify {
		verification, err := app.scorer.Verify(ctx, *identity, requirements)
		if err != nil {
			return fail(err)
		}
		if err := writeJSON(verification); err != nil {
			return fail(err)
		}
		return 0
	}

	score, err := app.scorer.Score(ctx, *identity)
	if err != nil {
		return fail(err)
	}
	if err := writeJSON(score); err != nil {
		return fail(err)
	}
	return 0
}
