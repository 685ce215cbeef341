package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"gnsd/internal/config"
	"gnsd/internal/domain"
	"gnsd/internal/usecase"
)

func runHandleCheck(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "handle check requires a handle argument")
		return 1
	}

	clean, err := usecase.ValidateFormat(args[0])
	if err != nil {
		return fail(err)
	}

	ctx := context.Background()
	app, err := buildApp(ctx, config.FromEnv(), nil)
	if err != nil {
		return fail(err)
	}

	out := map[string]any{"handle": clean, "valid": true}
	if app.relay != nil {
		available, err := app.relay.IsHandleAvailable(ctx, clean)
		switch {
		case errors.Is(err, domain.ErrRelayUnavailable):
			out["available"] = nil
			out["note"] = "relay unreachable; availability unknown"
		case err != nil:
			return fail(err)
		default:
			out["available"] = available
		}
	}
	if err := writeJSON(out); err != nil {
		return fail(err)
	}
	return 0
}

func runHandleReserve(args []string) int {
	fs := flag.NewFlagSet("handle reserve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var id, handle string
	fs.StringVar(&id, "id", "", "identity id")
	fs.StringVar(&handle, "handle", "", "handle to reserve")
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
	status, err := app.handles.Reserve(ctx, *identity, handle)
	if err != nil {
		return fail(err)
	}
	if err := writeJSON(status); err != nil {
		return fail(err)
	}
	return 0
}

func runHandleClaim(args []string) int {
	fs := flag.NewFlagSet("handle claim", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var id, handle string
	fs.StringVar(&id, "id", "", "identity id")
	fs.StringVar(&handle, "handle", "", "handle to claim")
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
	status, err := app.handles.Claim(ctx, *identity, handle)
	if err != nil {
		return fail(err)
	}
	if err := writeJSON(status); err != nil {
		return fail(err)
	}
	return 0
}

func runHandleRelease(args []string) int {
	fs := flag.NewFlagSet("handle release", flag.ContinueOnError)
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
	if err := app.handles.Release(ctx, *identity); err != nil {
		return fail(err)
	}
	updated, err := app.loadIdentity(ctx, id)
	if err != nil {
		return fail(err)
	}
	if err := writeJSON(updated.HandleStatus); err != nil {
		return fail(err)
	}
	return 0
}
