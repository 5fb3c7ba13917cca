package logging_test

import (
	"context"

	"github.com/FreePeak/golang-mcp-multiplexer/internal/infrastructure/logging"
)

func Example() {
	logger, err := logging.New(logging.Config{
		Level:         logging.DebugLevel,
		OutputPaths:   []string{"stderr"},
		InitialFields: logging.Fields{"app": "mcp-multiplexer"},
	})
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// Components get a named child logger
	mux := logger.Named("multiplexer")
	mux.Info("peers connected", logging.Fields{"count": 2})

	// Per-peer fields are attached once
	peer := mux.Named("client").With(logging.Fields{"peer": "calc"})
	peer.Debug("handshake complete")
	peer.Warnf("request %s timed out", "tools/list")
}

func Example_requestScoped() {
	base := logging.NewNop()

	// Middleware stores a request logger in the context; handlers read it back
	ctx := logging.NewContext(context.Background(), base.With(logging.Fields{"session": "abc"}))
	logging.FromContext(ctx).Info("session started")
}
