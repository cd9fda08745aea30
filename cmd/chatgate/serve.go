package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/pario-ai/chatgate/pkg/server"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chat gateway HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath, os.Stderr)
			if err != nil {
				return err
			}
			if log.GetLevel() < log.DebugLevel {
				gin.SetMode(gin.ReleaseMode)
			}

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := server.New(cfg, a.gateway, a.cache, a.metrics, version)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log.WithFields(log.Fields{
				"upstream":   cfg.Upstream.BaseURL,
				"model":      cfg.Upstream.Model,
				"rate_limit": cfg.RateLimit.Limit,
				"window":     cfg.RateLimit.Window.String(),
				"cache_ttl":  cfg.Cache.TTL.String(),
			}).Info("starting chatgate")
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (optional; env vars override)")
	return cmd
}
