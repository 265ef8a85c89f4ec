package main

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/nextvm"
	"pkt.systems/nextvm/core"
	"pkt.systems/nextvm/httpapi"
	"pkt.systems/nextvm/internal/appconfig"
	"pkt.systems/nextvm/schema"
	"pkt.systems/pslog"
)

//go:embed assets/logo.txt
var serveLogo string

func newServeCmd() *cobra.Command {
	var cfgPath string
	var disableAuditTrails bool
	var noBanner bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the nextvm HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logMode := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_MODE")))
			showBanner := !noBanner && logMode != "json" && logMode != "structured"
			if showBanner && serveLogo != "" {
				_, _ = fmt.Fprint(cmd.OutOrStdout(), serveLogo)
			}
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if disableAuditTrails {
				cfg.Logging.DisableAuditTrails = true
			}
			logger.Info("executor selected",
				"mode", cfg.Executor.Mode,
				"endpoint", cfg.Executor.Endpoint,
				"shell", cfg.Executor.Shell,
				"working_dir", cfg.Executor.WorkingDir,
			)

			serverCfg := toServerConfig(cfg)
			opts := []nextvm.ServerOption{nextvm.WithHTTP(), nextvm.WithWebSocket()}
			if cfg.HTTP.EnableMetrics {
				opts = append(opts, nextvm.WithMetrics())
			}
			server, err := nextvm.New(serverCfg, nextvm.ServerDeps{
				ServiceDeps: core.ServiceDeps{Logger: logger},
			}, opts...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Stop(stopCtx); err != nil {
					logger.Warn("server stop failed", "err", err)
				}
			}()
			if err := server.Start(ctx); err != nil {
				return err
			}
			logger.Info("http server listening", "addr", server.Addr())
			return server.Wait()
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().BoolVar(&disableAuditTrails, "disable-audit-trails", false, "disable audit trail logging for commands")
	cmd.Flags().BoolVar(&noBanner, "no-banner", false, "disable startup banner")
	return cmd
}

func toServerConfig(cfg appconfig.Config) nextvm.ServerConfig {
	return nextvm.ServerConfig{
		Service: schema.ServiceConfig{
			BufferMaxEntries:    cfg.Service.BufferMaxEntries,
			Prompt:              cfg.Service.Prompt,
			Banner:              cfg.Service.Banner,
			DisableAuditLogging: cfg.Logging.DisableAuditTrails,
		},
		HTTP:       toHTTPConfig(cfg.HTTP),
		Executor:   toExecutorConfig(cfg.Executor),
		HubHistory: 1000,

		DisableAuditLogging: cfg.Logging.DisableAuditTrails,
	}
}

func toHTTPConfig(cfg appconfig.HTTPConfig) httpapi.Config {
	return httpapi.Config{
		Addr:             cfg.Addr,
		BaseURL:          cfg.BaseURL,
		BasePath:         cfg.BasePath,
		ExecuteRateLimit: cfg.ExecuteRateLimit,
		ExecuteBurst:     cfg.ExecuteBurst,
		EnableMetrics:    cfg.EnableMetrics,
	}
}

func toExecutorConfig(cfg appconfig.ExecutorConfig) nextvm.ExecutorConfig {
	return nextvm.ExecutorConfig{
		Mode:         cfg.Mode,
		Endpoint:     cfg.Endpoint,
		Shell:        cfg.Shell,
		WorkingDir:   cfg.WorkingDir,
		Timeout:      time.Duration(cfg.TimeoutSeconds) * time.Second,
		KillPrevious: cfg.KillPrevious,
	}
}
