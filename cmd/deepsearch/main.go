package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

func main() {
	// Best effort: local development keys live in .env
	_ = godotenv.Load()

	app := &cli.Command{
		Name:  "deepsearch",
		Usage: "Iterative web research agent producing Markdown reports",
		Commands: []*cli.Command{
			researchCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		slog.Error("command failed", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
