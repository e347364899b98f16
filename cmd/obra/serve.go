package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"obralink/internal/app"
	"obralink/internal/server"
)

func serveCmd() *cobra.Command {
	var addr, basePath string
	var devLogin bool
	var openEvery time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := openEnv(ctx, false)
			if err != nil {
				return err
			}
			defer env.Close()
			if addr == "" {
				addr = env.Config.Server.Addr
			}
			if basePath == "" {
				basePath = env.Config.Server.BasePath
			}
			tokens, err := issuer(env, 12*time.Hour)
			if err != nil {
				return err
			}
			logger := env.Engine.Logger
			handler, err := server.New(server.Config{
				Engine:   env.Engine,
				BasePath: basePath,
				Tokens:   tokens,
				LinkTTL:  env.Config.LinkTTL(),
				DevLogin: devLogin,
				Metrics:  env.Metrics,
				Logger:   logger,
			})
			if err != nil {
				return err
			}
			if openEvery > 0 {
				go runScheduler(ctx, env, openEvery, logger)
			}
			srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-ctx.Done()
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(sctx)
			}()
			fmt.Printf("Serving obralink API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs, metrics at /metrics)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to server.addr)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (defaults to server.base_path)")
	cmd.Flags().BoolVar(&devLogin, "dev-login", false, "expose unauthenticated session minting for local use")
	cmd.Flags().DurationVar(&openEvery, "open-scheduled-every", 0, "open Programado payments on this interval (0 disables)")
	return cmd
}

func runScheduler(ctx context.Context, env *app.Env, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := env.Engine.OpenScheduled(ctx, "scheduler")
			if err != nil {
				logger.WarnContext(ctx, "open scheduled payments", slog.Any("err", err))
				continue
			}
			if n > 0 {
				logger.InfoContext(ctx, "opened scheduled payments", slog.Int("count", n))
			}
		}
	}
}
