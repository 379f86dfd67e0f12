package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/diogo464/sonar-sub000/internal/importer"
)

func importCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import audio files into the library",
		ArgsUsage: "<file>...",
		Flags:     []cli.Flag{configFlag()},
		Action:    r.Import,
	}
}

// Import ingests the given audio files through the import pipeline,
// creating artists, albums and tracks from their tags.
func (r *Runner) Import(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() == 0 {
		return fmt.Errorf("expected at least one file")
	}
	config := r.loadConfig(cmd.String("config"))

	c, db, err := r.openCatalog(config)
	if err != nil {
		return err
	}
	defer db.Close()

	imp := importer.New(c, importer.Config{
		MaxSize:     config.Import.MaxSize,
		MaxParallel: int64(config.Import.MaxParallel),
	}, r.logger, importer.TagExtractor{})

	var failed int
	for _, path := range cmd.Args().Slice() {
		file, err := os.Open(path)
		if err != nil {
			r.logger.Error("failed to open file", "file", path, "error", err)
			failed++
			continue
		}
		track, err := imp.Import(ctx, importer.Request{Filename: path, Content: file})
		file.Close()
		if err != nil {
			r.logger.Error("import failed", "file", path, "error", err)
			failed++
			continue
		}
		r.logger.Info("imported", "file", path, "track", track.ID, "name", track.Name)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed to import", failed, cmd.Args().Len())
	}
	return r.writePlain("imported %d files\n", cmd.Args().Len())
}
