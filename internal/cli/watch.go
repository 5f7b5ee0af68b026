package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"expensectl/internal/scheduler"
)

func newWatchCmd(app *App) *cobra.Command {
	var (
		tab, status, search, sortBy, order string
		metricsAddr                        string
		count                              int
		speed                              float64
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep a list view live and print every refresh as a JSON line",
		Long: `Runs the same fetch scheduler as the TUI: managers on the approvals tab poll
every 10s, the personal tab every 15s, history never. Each applied fetch is
written as one line. --metrics-addr serves Prometheus metrics at /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, c, err := app.connect()
			if err != nil {
				return writeErr(cmd, err)
			}
			vc, err := parseViewContext(sess.Identity.Role, tab, status, "", "", search, sortBy, order)
			if err != nil {
				return writeErr(cmd, err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if metricsAddr != "" {
				shutdown, err := serveMetrics(app, metricsAddr)
				if err != nil {
					return writeErr(cmd, err)
				}
				defer shutdown()
			}

			policy := scheduler.PolicyFunc(scheduler.DefaultPolicy)
			if speed > 0 && speed != 1 {
				policy = scheduler.Scaled(policy, 1/speed)
			}
			events := make(chan scheduler.FetchEvent, 64)
			v := app.newView(c, sess.Identity, vc, viewOpts{
				policy: policy,
				onFetch: func(e scheduler.FetchEvent) {
					select {
					case events <- e:
					default:
					}
				},
			})
			v.Start(ctx)
			defer v.Stop()

			seen := 0
			for {
				select {
				case <-ctx.Done():
					return nil
				case e := <-events:
					if !e.Applied {
						continue
					}
					meta := map[string]any{
						"generation": e.Generation,
						"kind":       e.Kind.String(),
						"tookMs":     e.Took.Milliseconds(),
						"tab":        v.Context().Tab,
					}
					if e.Err != nil {
						meta["error"] = e.Err.Error()
					}
					if err := writeOut(cmd, app, map[string]any{"data": expenseRows(v.Rows()), "meta": meta}); err != nil {
						return err
					}
					seen++
					if count > 0 && seen >= count {
						return nil
					}
				}
			}
		},
	}

	cmd.Flags().StringVar(&tab, "tab", "approvals", "Tab: personal|approvals|history")
	cmd.Flags().StringVar(&status, "status", "", "Status filter")
	cmd.Flags().StringVar(&search, "search", "", "Free-text search")
	cmd.Flags().StringVar(&sortBy, "sort", "", "Sort field")
	cmd.Flags().StringVar(&order, "order", "", "Sort order")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9464)")
	cmd.Flags().IntVar(&count, "count", 0, "Exit after this many refreshes (0 = until interrupted)")
	cmd.Flags().Float64Var(&speed, "speed", 1, "Timer speed-up factor (2 = poll twice as often)")
	return cmd
}

// serveMetrics starts a /metrics listener and returns its shutdown func.
func serveMetrics(app *App, addr string) (func(), error) {
	r := chi.NewRouter()
	r.Handle("/metrics", app.metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{Handler: r, ReadHeaderTimeout: 5 * time.Second}
	log := app.log.Named("metrics")
	log.Info("serving metrics", zap.String("addr", ln.Addr().String()))
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server", zap.Error(err))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
