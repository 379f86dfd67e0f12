package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/diogo464/sonar-sub000/internal/blob"
	"github.com/diogo464/sonar-sub000/internal/catalog"
	"github.com/diogo464/sonar-sub000/internal/importer"
	"github.com/diogo464/sonar-sub000/internal/metadata"
	"github.com/diogo464/sonar-sub000/internal/search"
	"github.com/diogo464/sonar-sub000/internal/server"
	"github.com/diogo464/sonar-sub000/internal/services"
	"github.com/diogo464/sonar-sub000/internal/shared"
	"github.com/diogo464/sonar-sub000/internal/subsonic"
	"github.com/diogo464/sonar-sub000/internal/tasks"
)

// spotifyRequestsPerSecond bounds outgoing spotify API calls.
const spotifyRequestsPerSecond = 4

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the RPC and subsonic HTTP servers",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Serve,
	}
}

// openCatalog builds the catalog from configuration: database, blob
// storage and search engine.
func (r *Runner) openCatalog(config *shared.Config) (*catalog.Catalog, *sql.DB, error) {
	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)
	if err := shared.MigrateUp(db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	var storage blob.Storage
	switch config.Storage.Backend {
	case "", "memory":
		storage = blob.NewMemoryStorage()
	case "filesystem":
		storage, err = blob.NewFilesystemStorage(config.Storage.Path)
		if err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to open blob storage: %w", err)
		}
	default:
		db.Close()
		return nil, nil, fmt.Errorf("unknown storage backend %q", config.Storage.Backend)
	}

	if config.Search.Backend != "" && config.Search.Backend != "builtin" {
		db.Close()
		return nil, nil, fmt.Errorf("unknown search backend %q", config.Search.Backend)
	}

	return catalog.New(db, storage, search.NewBuiltinEngine(), r.logger), db, nil
}

// buildRegistry registers the configured external service adapters.
func (r *Runner) buildRegistry(config *shared.Config) (*services.Registry, error) {
	registry := services.NewRegistry(r.logger)
	if config.Spotify.ClientID != "" && config.Spotify.ClientSecret != "" {
		spotify, err := services.NewSpotifyService(config.Spotify.ClientID, config.Spotify.ClientSecret)
		if err != nil {
			return nil, fmt.Errorf("failed to create spotify service: %w", err)
		}
		registry.Register(spotify, config.Spotify.Priority, spotifyRequestsPerSecond)
		r.logger.Info("registered external service", "service", spotify.Name())
	}
	return registry, nil
}

// Serve wires every subsystem and runs both HTTP surfaces until
// interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd.String("config"))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, db, err := r.openCatalog(config)
	if err != nil {
		return err
	}
	defer db.Close()

	imp := importer.New(c, importer.Config{
		MaxSize:     config.Import.MaxSize,
		MaxParallel: int64(config.Import.MaxParallel),
	}, r.logger, importer.TagExtractor{})

	registry, err := r.buildRegistry(config)
	if err != nil {
		return err
	}

	downloader := tasks.NewDownloader(c, registry, r.logger)
	defer downloader.Close()

	var scrobblers []tasks.Scrobbler
	if config.Scrobble.ListenBrainzToken != "" {
		listenbrainz, err := tasks.NewListenBrainzScrobbler(config.Scrobble.ListenBrainzToken)
		if err != nil {
			return fmt.Errorf("failed to create listenbrainz scrobbler: %w", err)
		}
		scrobblers = append(scrobblers, listenbrainz)
	}
	dispatcher := tasks.NewDispatcher(c, r.logger, scrobblers...)

	subscriptions := tasks.NewSubscriptionController(c, downloader, r.logger)

	var providers []metadata.Provider
	for _, service := range registry.Services() {
		providers = append(providers, metadata.NewServiceProvider(registry, service))
	}
	manager := metadata.NewManager(c, r.logger, providers...)

	rpc := &http.Server{
		Addr:    config.Server.RPCAddress,
		Handler: server.NewServer(c, imp, downloader, subscriptions, manager, r.logger).Router(),
	}
	legacy := &http.Server{
		Addr:    config.Server.SubsonicAddress,
		Handler: subsonic.NewServer(c, r.logger).Router(),
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		dispatcher.Run(ctx)
		return nil
	})
	group.Go(func() error {
		subscriptions.Run(ctx)
		return nil
	})
	group.Go(func() error {
		r.logger.Info("rpc server listening", "address", rpc.Addr)
		if err := rpc.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		r.logger.Info("subsonic server listening", "address", legacy.Addr)
		if err := legacy.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		r.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		rpc.Shutdown(shutdownCtx)
		legacy.Shutdown(shutdownCtx)
		return nil
	})
	return group.Wait()
}
