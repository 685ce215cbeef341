package main

import (
	"context"
	"flag"
	"os"

	"gnsd/internal/config"
)

func runIdentityCreate(args []string) int {
	fs := flag.NewFlagSet("identity create", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var name string
	fs.StringVar(&name, "name", "", "display name")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	ctx := context.Background()
	app, err := buildApp(ctx, config.FromEnv(), nil)
	if err != nil {
		return fail(err)
	}
	identity, err := app.identities.Create(ctx, name)
	if err != nil {
		return fail(err)
	}
	if err := writeJSON(identity); err != nil {
		return fail(err)
	}
	return 0
}

func runIdentityList(args []string) int {
	fs := flag.NewFlagSet("identity list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return 1
	}

	ctx := context.Background()
	app, err := buildApp(ctx, config.FromEnv(), nil)
	if err != nil {
		return fail(err)
	}
	list, err := app.identities.List(ctx)
	if err != nil {
		return fail(err)
	}
	if err := writeJSON(list); err != nil {
		return fail(err)
	}
	return 0
}

func runIdentityShow(args []string) int {
	fs := flag.NewFlagSet("identity show", flag.ContinueOnError)
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
	if err := writeJSON(identity); err != nil {
		return fail(err)
	}
	return 0
}

func runIdentityDelete(args []string) int {
	fs := flag.NewFlagSet("identity delete", flag.ContinueOnError)
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
	if err := app.identities.Delete(ctx, identity.ID); err != nil {
		return fail(err)
	}
	return 0
}
