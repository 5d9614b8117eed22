package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/eringen/viewcounter"
)

func main() {
	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "serve":
		if err := runServe(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "views":
		limit := 0
		if len(os.Args) > 2 {
			n, err := parseLimit(os.Args[2])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			limit = n
		}
		if err := runViews(os.Stdout, limit); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("viewcounter %s\n", viewcounter.Version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func runServe() error {
	cfg, err := viewcounter.LoadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := viewcounter.New(cfg)
	defer func() {
		if err := app.Close(); err != nil {
			app.Logger().Error("shutdown", "error", err)
		}
	}()
	return app.Start(ctx)
}

func printUsage() {
	fmt.Println(`viewcounter - page view counter and newsletter count service

Usage:
  viewcounter [command] [arguments]

Commands:
  serve          Run the HTTP server (default)
  views [limit]  Print the most viewed pages from the configured store
  version        Print the viewcounter version
  help           Show this help message

Configuration is read from the environment and an optional .env file.`)
}
