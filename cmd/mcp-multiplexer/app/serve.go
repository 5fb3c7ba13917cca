package app

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/FreePeak/golang-mcp-multiplexer/internal/config"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/infrastructure/logging"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/infrastructure/server"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/infrastructure/session"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/infrastructure/transport"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/interfaces/rest"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/usecases/multiplexer"
)

const (
	serverReadHeaderTimeout = 10 * time.Second
	serverIdleTimeout       = 120 * time.Second
	defaultGracefulTimeout  = 30 * time.Second
	metricsPath             = "/metrics"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the aggregated tools over streamable HTTP",
		Long: `Connect to every configured peer and serve the aggregated tool catalog on
server.addr. Each MCP session gets its own server instance backed by the
shared set of peers. Prometheus metrics are exposed on /metrics.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), v)
		},
	}
	cmd.Flags().String("addr", "", "Listen address, overrides server.addr")
	_ = v.BindPFlag("addr", cmd.Flags().Lookup("addr"))
	return cmd
}

func runServe(ctx context.Context, v *viper.Viper) error {
	cfg, logger, err := loadConfig(v)
	if err != nil {
		return err
	}
	if addr := v.GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	defer func() { _ = logger.Sync() }()

	schema, err := cfg.LoadConfigSchema()
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m, err := connect(ctx, cfg, logger, multiplexer.WithMetrics(multiplexer.NewMetrics(registry)))
	if err != nil {
		return err
	}
	defer m.Close()

	store := session.NewLRUStore(cfg.Server.MaxSessions,
		session.WithLogger(logger),
		session.WithMetrics(session.NewMetrics(registry)),
	)
	defer store.Close()

	var extra []rest.Option
	if cfg.Server.SessionRateLimit > 0 {
		burst := cfg.Server.SessionBurst
		if burst == 0 {
			burst = int(math.Ceil(cfg.Server.SessionRateLimit))
		}
		extra = append(extra, rest.WithSessionRateLimit(rate.Limit(cfg.Server.SessionRateLimit), burst))
	}

	handler, err := newHTTPHandler(m, store, schema, logger, registry, extra...)
	if err != nil {
		return err
	}

	httpServer := newHTTPServer(cfg.Server.Addr, handler, store)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", logging.Fields{"addr": cfg.Server.Addr, "peers": m.Namespaces()})
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, "error starting server")
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "server forced to shutdown")
	}
	logger.Info("server shutdown complete")
	return nil
}

// newHTTPServer builds the listener-side server. Shutdown closes every
// session first so open event streams end and their connections can drain.
func newHTTPServer(addr string, handler http.Handler, store *session.LRUStore) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: serverReadHeaderTimeout,
		IdleTimeout:       serverIdleTimeout,
	}
	srv.RegisterOnShutdown(store.Close)
	return srv
}

// newHTTPHandler routes /metrics to the registry and everything else to a
// coordinator whose sessions all serve m's aggregate
func newHTTPHandler(
	m *multiplexer.Multiplexer,
	store *session.LRUStore,
	schema map[string]interface{},
	logger *logging.Logger,
	gatherer prometheus.Gatherer,
	extra ...rest.Option,
) (http.Handler, error) {
	opts := []rest.Option{
		rest.WithStore(store),
		rest.WithLogger(logger),
		rest.WithMiddleware(middleware.RequestID, middleware.RealIP),
	}
	if schema != nil {
		opts = append(opts, rest.WithConfigSchema(schema))
	}
	opts = append(opts, extra...)

	tools := m.Handler()
	coordinator, err := rest.NewCoordinator(func(ctx context.Context, args rest.CreateServerArgs) (*server.Server, error) {
		return server.NewServer(binaryName, Version).
			WithToolHandler(tools).
			WithLogger(args.Logger), nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	router := chi.NewRouter()
	router.Handle(metricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	router.Mount("/", coordinator)
	return router, nil
}

func newStdioCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "stdio",
		Short: "Serve the aggregated tools over stdin/stdout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(v)
			if err != nil {
				return err
			}
			return runStdio(cmd.Context(), cfg, logger, transport.NewStdioTransportFromOS())
		},
	}
}

func runStdio(ctx context.Context, cfg *config.Config, logger *logging.Logger, t *transport.StdioTransport) error {
	m, err := connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer m.Close()

	srv := server.NewServer(binaryName, Version).
		WithToolHandler(m.Handler()).
		WithLogger(logger)
	if err := srv.Connect(ctx, t); err != nil {
		return err
	}
	logger.Info("serving over stdio", logging.Fields{"peers": m.Namespaces()})

	select {
	case <-ctx.Done():
		return srv.Close()
	case <-t.Done():
		return nil
	}
}
