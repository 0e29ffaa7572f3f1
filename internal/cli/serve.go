package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/searchsync/internal/content"
	"github.com/hyperjump/searchsync/internal/indexer"
	"github.com/hyperjump/searchsync/internal/scheduler"
	"github.com/hyperjump/searchsync/internal/server"
	"github.com/hyperjump/searchsync/internal/watcher"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the content watcher and scheduled rebuilds",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := flags.open()
			if err != nil {
				return err
			}
			defer closeApp(app)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, app)
		},
	}
}

// runServe blocks until ctx is done or one of the services fails.
func runServe(ctx context.Context, app *App) error {
	logger := app.Logger
	st := app.Indexer.CollectionStatus(ctx)
	switch st.Status {
	case indexer.StatusDisabled:
		logger.Warn("search is not configured, content events will be ignored")
	case indexer.StatusNotFound:
		logger.Warn("collection does not exist, run 'searchsync collection create'", zap.String("collection", st.Name))
	case indexer.StatusExists:
		logger.Info("collection ready", zap.String("collection", st.Name), zap.Int64("documents", st.NumDocuments))
	default:
		logger.Warn("collection status unavailable", zap.String("status", st.Status), zap.String("error", st.Error))
	}

	g, gctx := errgroup.WithContext(ctx)

	if fs, ok := app.Store.(*content.FileStore); ok && app.Config.Content.Watch {
		w := watcher.NewWatcher(fs, app.Indexer, watcher.WithLogger(logger))
		if err := w.Start(gctx); err != nil {
			return err
		}
		logger.Info("watching content directory", zap.String("dir", fs.Dir()))
		g.Go(func() error {
			<-gctx.Done()
			w.Stop()
			return nil
		})
	}

	if schedule := app.Config.Sync.RebuildSchedule; schedule != "" {
		s, err := scheduler.New(schedule, app.Rebuilder, logger)
		if err != nil {
			return err
		}
		s.Start()
		logger.Info("scheduled rebuilds enabled", zap.String("schedule", schedule), zap.Time("next", s.Next()))
		g.Go(func() error {
			<-gctx.Done()
			s.Stop()
			return nil
		})
	}

	srv := server.NewServer(app.Engine, app.Indexer, app.Rebuilder, app.Store, &app.Config.Server, logger)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})
	return g.Wait()
}
