// Package rest serves MCP sessions over streamable HTTP. Each session gets
// its own server instance and transport, kept in a bounded session store.
package rest

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/FreePeak/golang-mcp-multiplexer/internal/config"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain/shared"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/infrastructure/logging"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/infrastructure/server"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/infrastructure/session"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/infrastructure/transport"
)

// Endpoint paths
const (
	EndpointMCP        = "/mcp"
	EndpointWellKnown  = "/.well-known/mcp-config"
	EndpointHealth     = "/health"
	defaultMaxBodySize = 4 << 20
)

// Error messages sent to clients
const (
	msgSessionNotFound  = "Session not found or expired"
	msgNoSession        = "Bad Request: No valid session ID provided"
	msgMissingHeader    = "Missing mcp-session-id header"
	msgInitFailed       = "Error initializing server."
	msgInvalidSessionID = "Invalid or expired session ID"
	msgRateLimited      = "Too many new sessions, retry later"
)

// CreateServerArgs is passed to CreateServerFn for every new session
type CreateServerArgs struct {
	SessionID string
	Config    map[string]interface{}
	Logger    *logging.Logger
}

// CreateServerFn builds the server instance backing one session
type CreateServerFn func(ctx context.Context, args CreateServerArgs) (*server.Server, error)

// SessionFactory constructs the transport for a new session
type SessionFactory func(id string, opts ...transport.SessionOption) *transport.StreamableSession

// Option configures a Coordinator
type Option func(*Coordinator)

// WithStore replaces the default session store
func WithStore(store domain.SessionStore) Option {
	return func(c *Coordinator) {
		c.store = store
	}
}

// WithSessionFactory overrides how session transports are constructed
func WithSessionFactory(factory SessionFactory) Option {
	return func(c *Coordinator) {
		c.newSession = factory
	}
}

// WithLogger sets the coordinator logger
func WithLogger(logger *logging.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger.Named("coordinator")
	}
}

// WithConfigSchema validates each session's query config against schema,
// a JSON Schema object, and publishes it on the well-known endpoint
func WithConfigSchema(schema map[string]interface{}) Option {
	return func(c *Coordinator) {
		c.configSchema = schema
	}
}

// WithSessionRateLimit caps how fast new sessions may be created. Initialize
// requests over the limit are answered with 429.
func WithSessionRateLimit(limit rate.Limit, burst int) Option {
	return func(c *Coordinator) {
		c.limiter = rate.NewLimiter(limit, burst)
	}
}

// WithMiddleware adds router middleware ahead of the MCP handlers
func WithMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(c *Coordinator) {
		c.middleware = append(c.middleware, mw...)
	}
}

// Coordinator routes streamable HTTP requests to per-session transports
type Coordinator struct {
	create       CreateServerFn
	store        domain.SessionStore
	newSession   SessionFactory
	logger       *logging.Logger
	configSchema map[string]interface{}
	validator    *configValidator
	middleware   []func(http.Handler) http.Handler
	limiter      *rate.Limiter

	router chi.Router
}

// NewCoordinator creates a coordinator that calls create for every new
// session
func NewCoordinator(create CreateServerFn, opts ...Option) (*Coordinator, error) {
	c := &Coordinator{
		create:     create,
		newSession: transport.NewStreamableSession,
		logger:     logging.Default().Named("coordinator"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.store == nil {
		c.store = session.NewLRUStore(session.DefaultMaxSessions, session.WithLogger(c.logger))
	}
	if c.configSchema != nil {
		v, err := newConfigValidator(c.configSchema)
		if err != nil {
			return nil, err
		}
		c.validator = v
	}

	c.router = c.routes()
	return c, nil
}

func (c *Coordinator) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(logging.Middleware(c.logger))
	r.Use(cors)
	for _, mw := range c.middleware {
		r.Use(mw)
	}

	r.Post(EndpointMCP, c.handlePost)
	r.Get(EndpointMCP, c.handleGet)
	r.Delete(EndpointMCP, c.handleDelete)
	r.Get(EndpointWellKnown, c.handleWellKnown)
	r.Get(EndpointHealth, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

// ServeHTTP implements http.Handler
func (c *Coordinator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.router.ServeHTTP(w, r)
}

// Sessions returns the number of live sessions
func (c *Coordinator) Sessions() int {
	return c.store.Len()
}

func (c *Coordinator) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, defaultMaxBodySize))
	if err != nil {
		writeJSONRPCError(w, http.StatusBadRequest, nil, shared.ParseError, "Parse error")
		return
	}

	message, err := shared.ParseMessage(body)
	if err != nil {
		writeJSONRPCError(w, http.StatusBadRequest, nil, shared.ParseError, "Parse error")
		return
	}

	sessionID := r.Header.Get(transport.SessionHeader)
	var sess *transport.StreamableSession
	switch {
	case sessionID != "":
		sess, err = c.lookup(sessionID)
		if err != nil {
			c.writeError(w, requestID(message), err)
			return
		}

	case shared.IsInitializeRequest(message):
		if c.limiter != nil && !c.limiter.Allow() {
			c.writeError(w, requestID(message), errRateLimited)
			return
		}
		sess, err = c.startSession(r)
		if err != nil {
			c.writeError(w, requestID(message), err)
			return
		}

	default:
		c.writeError(w, requestID(message), domain.NewBadRequestError(msgNoSession))
		return
	}

	if err := sess.HandleRequest(w, r, message); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		c.logger.Warn("error handling request", logging.Fields{"session": sess.SessionID(), "error": err})
		writeJSONRPCError(w, http.StatusInternalServerError, requestID(message), shared.InternalError, "Internal server error")
	}

	if shared.IsInitializeRequest(message) && sessionID == "" && !sess.Initialized() {
		_ = sess.Close()
	}
}

func (c *Coordinator) lookup(sessionID string) (*transport.StreamableSession, error) {
	t, ok := c.store.Get(sessionID)
	if !ok {
		return nil, domain.NewSessionNotFoundError(sessionID)
	}
	sess, ok := t.(*transport.StreamableSession)
	if !ok {
		return nil, errors.Errorf("session %s has unexpected transport %T", sessionID, t)
	}
	return sess, nil
}

func (c *Coordinator) startSession(r *http.Request) (*transport.StreamableSession, error) {
	sessionID := uuid.New().String()
	logger := c.logger.With(logging.Fields{"session": sessionID})

	cfg := config.ParseConfigFromQuery(r.URL.Query())
	if c.validator != nil {
		if err := c.validator.validate(cfg); err != nil {
			return nil, err
		}
	}

	var sess *transport.StreamableSession
	sess = c.newSession(sessionID, transport.WithSessionInitialized(func(id string) {
		c.store.Set(id, sess)
		logger.Info("session started")
	}))
	sess.SetCloseHandler(func() {
		c.store.Delete(sessionID)
		logger.Debug("session closed")
	})

	srv, err := c.create(r.Context(), CreateServerArgs{SessionID: sessionID, Config: cfg, Logger: logger})
	if err != nil {
		_ = sess.Close()
		return nil, &initError{err: err}
	}
	if err := srv.Connect(r.Context(), sess); err != nil {
		_ = sess.Close()
		return nil, &initError{err: err}
	}
	return sess, nil
}

func (c *Coordinator) handleGet(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(transport.SessionHeader)
	if sessionID == "" {
		http.Error(w, msgInvalidSessionID, http.StatusBadRequest)
		return
	}
	sess, err := c.lookup(sessionID)
	if err != nil {
		http.Error(w, msgInvalidSessionID, http.StatusBadRequest)
		return
	}

	if err := sess.ServeEvents(w, r); err != nil {
		c.logger.Debug("event stream ended", logging.Fields{"session": sessionID, "error": err})
	}
}

func (c *Coordinator) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(transport.SessionHeader)
	if sessionID == "" {
		writeJSONRPCError(w, http.StatusBadRequest, nil, shared.InvalidRequest, msgMissingHeader)
		return
	}

	t, ok := c.store.Get(sessionID)
	if !ok {
		c.writeError(w, nil, domain.NewSessionNotFoundError(sessionID))
		return
	}

	if err := t.Close(); err != nil {
		c.logger.Warn("error closing session", logging.Fields{"session": sessionID, "error": err})
	}
	c.store.Delete(sessionID)
	c.logger.Info("session terminated", logging.Fields{"session": sessionID})
	w.WriteHeader(http.StatusNoContent)
}

func requestID(message shared.JSONRPCMessage) interface{} {
	if req, ok := message.(shared.JSONRPCRequest); ok {
		return req.ID
	}
	return nil
}
