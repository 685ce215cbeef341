package main

import (
	"fmt"
	"os"
	"path/filepath"
)

func run(args []string) int {
	if len(args) < 2 {
		usage(args)
		return 1
	}

	switch args[1] {
	case "serve":
		return runServe(args[2:])
	case "identity":
		if len(args) >= 3 {
			switch args[2] {
			case "create":
				return runIdentityCreate(args[3:])
			case "list":
				return runIdentityList(args[3:])
			case "show":
				return runIdentityShow(args[3:])
			case "delete":
				return runIdentityDelete(args[3:])
			}
		}
	case "collect":
		return runCollect(args[2:])
	case "publish":
		return runPublish(args[2:])
	case "score":
		return runScore(args[2:])
	case "handle":
		if len(args) >= 3 {
			switch args[2] {
			case "check":
				return runHandleCheck(args[3:])
			case "reserve":
				return runHandleReserve(args[3:])
			case "claim":
				return runHandleClaim(args[3:])
			case "release":
				return runHandleRelease(args[3:])
			}
		}
	}

	usage(args)
	return 1
}

func usage(args []string) {
	name := "gnsd"
	if len(args) > 0 && args[0] != "" {
		name = filepath.Base(args[0])
	}
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "  %s serve\n", name)
	fmt.Fprintf(os.Stderr, "  %s identity create --name <display name>\n", name)
	fmt.Fprintf(os.Stderr, "  %s identity list\n", name)
	fmt.Fprintf(os.Stderr, "  %s identity show --id <identity>\n", name)
	fmt.Fprintf(os.Stderr, "  %s identity delete --id <identity>\n", name)
	fmt.Fprintf(os.Stderr, "  %s collect --id <identity> --lat <deg> --lng <deg> [--accuracy <m>] [--source <gps|wifi|cell|network|manual|fused>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s publish --id <identity>\n", name)
	fmt.Fprintf(os.Stderr, "  %s score --id <identity> [--verify] [--profile handle|payment]\n", name)
	fmt.Fprintf(os.Stderr, "  %s handle check <handle>\n", name)
	fmt.Fprintf(os.Stderr, "  %s handle reserve --id <identity> --handle <name>\n", name)
	fmt.Fprintf(os.Stderr, "  %s handle claim --id <identity> --handle <name>\n", name)
	fmt.Fprintf(os.Stderr, "  %s handle release --id <identity>\n", name)
}
