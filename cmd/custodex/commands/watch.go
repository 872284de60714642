package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodex/custodex/internal/config"
	"github.com/custodex/custodex/internal/escrow"
	"github.com/custodex/custodex/internal/inbox"
	"github.com/custodex/custodex/internal/logging"
	"github.com/custodex/custodex/internal/metrics"
	"github.com/custodex/custodex/internal/util"
)

func NewWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the inbox for new payment offers",
		Long: `Continuously refresh the payment inbox and print offers as they
become actionable. Reloads polling settings when the config file
changes. With metrics enabled, serves a Prometheus endpoint.

Press Ctrl-C to stop.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Println(SectionHeader("Watching inbox"))
			fmt.Printf("Viewer:  %s\n", app.Viewer.Hex())
			fmt.Printf("Refresh: every %s\n\n", app.Config.Inbox.RefreshInterval)

			if app.Config.Metrics.Enabled {
				serveMetrics(ctx, app.Config.Metrics.Listen)
			}

			path := ConfigPath
			if path == "" {
				path = config.DefaultConfigPath()
			}
			watchDone, err := config.Watch(ctx, path, func(cfg *config.Config) {
				app.Config = cfg
				Info("Configuration reloaded")
			})
			if err != nil {
				logging.Warn("config watch unavailable", logging.Err(err))
			}

			inboxDone := app.Inbox.Run(ctx)
			announceLoop(ctx, app)

			<-inboxDone
			if watchDone != nil {
				<-watchDone
			}
			fmt.Println()
			Info("Stopped")
			return nil
		},
	}
}

// announceLoop prints an offer the first time it shows up as
// actionable. State is per-process; restarting re-announces.
func announceLoop(ctx context.Context, app *App) {
	seen := make(map[string]escrow.Actionable)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, e := range app.Inbox.Actionable() {
				if seen[e.Record.ID] == e.State.State {
					continue
				}
				seen[e.Record.ID] = e.State.State
				announce(e)
			}
		}
	}
}

func announce(e inbox.Entry) {
	switch e.State.State {
	case escrow.CanAccept:
		Info(fmt.Sprintf("Payment %s: %s from %s, accept with 'custodex accept %s'",
			e.Record.ID, FormatUSDC(e.Record.Amount), FormatAddress(e.Record.Sender.Hex()), e.Record.ID))
	case escrow.CanClaim:
		Info(fmt.Sprintf("Payment %s: %s is claimable, claim with 'custodex claim %s'",
			e.Record.ID, FormatUSDC(e.Record.Amount), e.Record.ID))
	case escrow.Locked:
		Info(fmt.Sprintf("Payment %s: locked until %s",
			e.Record.ID, e.State.LockedUntil.Format(time.RFC822)))
	case escrow.AwaitsArbitration:
		Info(fmt.Sprintf("Payment %s: %s held in arbitration",
			e.Record.ID, FormatUSDC(e.Record.Amount)))
	}
}

func serveMetrics(ctx context.Context, listen string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: listen, Handler: mux}

	util.SafeGoWithName("metrics-server", func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Warn("metrics server stopped", logging.Err(err))
		}
	})
	util.SafeGoWithName("metrics-shutdown", func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	})

	logging.Info("metrics listening", "addr", listen)
}
