package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/diogo464/sonar-sub000/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)

	runner := NewRunner(RunnerOpts{Logger: logger})

	app := &cli.Command{
		Name:     "sonar",
		Usage:    "Self-hosted music library server",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}
