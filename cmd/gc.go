package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func gcCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "gc",
		Usage:  "Remove unreferenced audio and image blobs",
		Flags:  []cli.Flag{configFlag()},
		Action: r.GC,
	}
}

// GC runs one garbage collection pass over the catalog.
func (r *Runner) GC(ctx context.Context, cmd *cli.Command) error {
	c, db, err := r.openCatalog(r.loadConfig(cmd.String("config")))
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := c.CollectGarbage(ctx)
	if err != nil {
		return fmt.Errorf("garbage collection failed: %w", err)
	}
	return r.writeJSON(map[string]any{
		"audios": stats.Audios,
		"images": stats.Images,
	}, false)
}
