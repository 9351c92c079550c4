package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dqmon/internal/container"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and the status API",
		Long: `Run a monitoring cycle every schedule.interval_minutes and serve
/healthz, /metrics, /events, /reports and /cycles on the status API.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			log := a.logger(cfg, true)
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c, err := container.New(cfg, a.configPath, log)
			if err != nil {
				return err
			}
			if err := c.Init(ctx, container.Options{}); err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			sched, err := c.Scheduler()
			if err != nil {
				return err
			}
			if err := sched.Start(ctx); err != nil {
				return err
			}
			defer sched.Stop()

			gin.SetMode(cfg.Server.GinMode)
			server := c.Server()
			errCh := make(chan error, 1)
			go func() { errCh <- server.Start(cfg.Server.Addr) }()

			select {
			case <-ctx.Done():
				log.Info("Shutting down...")
			case err := <-errCh:
				if err != nil {
					return err
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "status API listen address (overrides server.addr)")
	return cmd
}
