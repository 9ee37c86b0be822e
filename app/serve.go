package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cleanrate/app/controllers"
	"cleanrate/app/routes"
	"cleanrate/app/services"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			repo, closeRepo, err := openRepository(ctx, cfg.Storage)
			if err != nil {
				return err
			}
			defer closeRepo()

			taskService := services.NewTaskService(repo)
			projectService := services.NewProjectService(repo)
			engine := services.NewEngine(repo, retryPolicy(cfg.Propagation))

			router := mux.NewRouter()
			routes.RegisterRoutes(router, routes.Controllers{
				Tasks:    controllers.NewTaskController(taskService),
				Projects: controllers.NewProjectController(projectService, taskService),
				Reviews:  controllers.NewReviewController(engine),
			})

			srv := &http.Server{
				Addr:         cfg.Server.Addr,
				Handler:      router,
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
			}
			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("addr", srv.Addr).Str("storage", cfg.Storage.Driver).Msg("server is running")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			log.Info().Msg("shutting down")
			return srv.Shutdown(shutdownCtx)
		},
	}
}
