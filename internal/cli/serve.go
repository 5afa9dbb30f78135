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

	"github.com/spf13/cobra"

	"taskapi/internal/handlers"
	"taskapi/internal/logger"
	"taskapi/internal/metrics"
	"taskapi/internal/password"
	"taskapi/internal/store"
)

const readHeaderTimeout = 10 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve the CRUD endpoints under /api/{users,tasks,priorities,tags},
plus /healthz and, when USE_METRICS is set, /metrics.

The server stops accepting on SIGINT or SIGTERM and waits up to
SHUTDOWN_TIMEOUT_SECONDS for in-flight requests.

Example:
  taskapi serve
  STORE_BACKEND=sqlite SQLITE_PATH=./data/dev.db taskapi serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(rootOpts, cmd)
		},
	}
}

func runServe(opts *RootOptions, cmd *cobra.Command) error {
	cfg := opts.Config
	log := logger.Sugar.WithServiceName(serviceName)
	defer log.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := opts.openStore(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer closeStore(st)

	var m *metrics.Metrics
	if cfg.UseMetrics {
		m = metrics.New(log, serviceName)
		log.Infof("serving %s metrics on /metrics", m)
	}

	stores := store.New(st, password.NewHasher(cfg.BcryptCost), log)
	router := handlers.NewRouter(handlers.New(stores, st), handlers.RouterConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		Metrics:        m,
	})

	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}
	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ln)
	}()
	log.Infof("listening on %s, store %s", ln.Addr(), cfg.Store.Backend)
	if opts.OnListen != nil {
		opts.OnListen(ln.Addr().String())
	}

	select {
	case err := <-errc:
		return WrapExitError(ExitFailure, "server failed", err)
	case <-ctx.Done():
	}

	log.Infof("shutting down, waiting up to %s", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitFailure, "shutdown", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return WrapExitError(ExitFailure, "server failed", err)
	}
	log.Infof("stopped")
	return nil
}
