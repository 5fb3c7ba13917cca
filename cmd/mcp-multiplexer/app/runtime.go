package app

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/FreePeak/golang-mcp-multiplexer/internal/config"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/infrastructure/client"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/infrastructure/logging"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/usecases/multiplexer"
)

// loadConfig reads the configuration named by --config and builds the
// logger it asks for. --log-level wins over the file.
func loadConfig(v *viper.Viper) (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(v.GetString("config"))
	if err != nil {
		return nil, nil, err
	}
	if level := v.GetString("log-level"); level != "" {
		cfg.Server.LogLevel = level
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.ParseLevel(cfg.Server.LogLevel)
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, nil, errors.Wrap(err, "error creating logger")
	}
	logging.SetDefault(logger)
	return cfg, logger, nil
}

// connect builds a multiplexer for cfg and connects every peer
func connect(ctx context.Context, cfg *config.Config, logger *logging.Logger, opts ...multiplexer.Option) (*multiplexer.Multiplexer, error) {
	sources, err := cfg.Sources(logger)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, errors.New("no peers configured")
	}

	all := append([]multiplexer.Option{
		multiplexer.WithLogger(logger),
		multiplexer.WithClientInfo(binaryName, Version),
		multiplexer.WithClientOptions(client.WithRequestTimeout(cfg.Server.RequestTimeout)),
	}, opts...)
	m := multiplexer.New(all...)

	if err := m.ConnectAll(ctx, sources); err != nil {
		return nil, err
	}
	return m, nil
}

func sortedPeers(cfg *config.Config) []string {
	names := make([]string, 0, len(cfg.Peers))
	for name := range cfg.Peers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
