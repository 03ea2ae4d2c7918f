package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leadgen-cli/internal/api"
	"github.com/sells-group/leadgen-cli/internal/workflow"
)

const shutdownTimeout = 30 * time.Second

var (
	servePort     int
	serveTemporal bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the job API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var (
			dispatcher api.Dispatcher
			local      *api.LocalDispatcher
		)
		if serveTemporal {
			if err := cfg.Validate("worker"); err != nil {
				return err
			}
			c, err := dialTemporal()
			if err != nil {
				return eris.Wrap(err, "dial temporal")
			}
			defer c.Close()
			dispatcher = workflow.Dispatcher{Client: c, TaskQueue: cfg.Temporal.TaskQueue}
			zap.L().Info("dispatching jobs to temporal", zap.String("task_queue", cfg.Temporal.TaskQueue))
		} else {
			local = api.NewLocalDispatcher(ctx, env.Runner)
			dispatcher = local
		}

		handler := api.New(api.Deps{
			Repo:           env.Store,
			Runner:         env.Runner,
			Dispatcher:     dispatcher,
			AI:             env.AI,
			AllowedOrigins: cfg.Server.AllowedOrigins,
		}).Routes()
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(sctx)
		})

		err = g.Wait()
		if local != nil {
			// In-flight jobs see the cancelled context and finish as FAILED.
			local.Wait()
		}
		return err
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveTemporal, "temporal", false, "run jobs as Temporal workflows instead of in-process")
	rootCmd.AddCommand(serveCmd)
}
