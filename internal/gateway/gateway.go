// ABOUTME: Gateway orchestrator that wires the scheduler, MQTT bridge, sessions and HTTP server
// ABOUTME: Manages component lifecycle from New through Run and Shutdown

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/2389/barista-gateway/internal/config"
	"github.com/2389/barista-gateway/internal/conversation"
	"github.com/2389/barista-gateway/internal/dedupe"
	"github.com/2389/barista-gateway/internal/events"
	"github.com/2389/barista-gateway/internal/intent"
	"github.com/2389/barista-gateway/internal/model"
	"github.com/2389/barista-gateway/internal/scheduler"
	"github.com/2389/barista-gateway/internal/session"
	"github.com/2389/barista-gateway/internal/speech"
	"github.com/2389/barista-gateway/internal/store"
)

// Gateway orchestrates the barista-gateway components.
//
// All session and conversation state (the registry and the shared history)
// belongs to the scheduler goroutine. HTTP handlers, WebSocket readers and
// MQTT callbacks reach it only through Submit or Do.
type Gateway struct {
	config     *config.Config
	sched      *scheduler.Scheduler
	sessions   *session.Registry
	shared     *conversation.History
	bridge     Bridge
	publisher  *events.Publisher
	completer  model.Completer
	speaker    speech.Synthesizer
	store      store.Store
	dedupe     *dedupe.Cache
	httpServer *http.Server
	upgrader   websocket.Upgrader
	logger     *slog.Logger

	interactive    *intent.Extractor
	transportChain *intent.Extractor

	// Turns on the shared history run one at a time in arrival order.
	sharedQueue    []*turn
	sharedBusy     bool
	sharedDraining bool

	// baseCtx is canceled on shutdown so open WebSocket connections close.
	baseCtx    context.Context
	cancelBase context.CancelFunc

	stopRuntime context.CancelFunc
	runtimeDone chan struct{}

	shutdownOnce sync.Once
	shutdownErr  error
}

// Option customizes a Gateway.
type Option func(*options)

type options struct {
	completer     model.Completer
	synthesizer   speech.Synthesizer
	bridgeFactory BridgeFactory
	store         store.Store
}

// WithCompleter replaces the configured model provider.
func WithCompleter(c model.Completer) Option {
	return func(o *options) { o.completer = c }
}

// WithSynthesizer replaces the configured speech service.
func WithSynthesizer(s speech.Synthesizer) Option {
	return func(o *options) { o.synthesizer = s }
}

// WithBridgeFactory replaces the MQTT bridge.
func WithBridgeFactory(f BridgeFactory) Option {
	return func(o *options) { o.bridgeFactory = f }
}

// WithStore uses s as the event ledger instead of opening database.path.
func WithStore(s store.Store) Option {
	return func(o *options) { o.store = s }
}

// initStore opens the event ledger. BARISTA_DB_PATH overrides database.path;
// an empty path disables the ledger.
func initStore(cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("BARISTA_DB_PATH"); envPath != "" {
		dbPath = envPath
	}
	if dbPath == "" {
		return nil, nil
	}

	s, err := store.NewSQLiteStore(dbPath, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	completer := o.completer
	if completer == nil {
		c, err := model.New(cfg.Model, logger)
		if err != nil {
			return nil, err
		}
		completer = c
	}

	speaker := o.synthesizer
	if speaker == nil && cfg.Speech.Enabled {
		speaker = speech.NewHTTPSynthesizer(cfg.Speech.URL, cfg.Speech.Timeout)
	}

	ledger := o.store
	if ledger == nil {
		s, err := initStore(cfg, logger)
		if err != nil {
			return nil, err
		}
		ledger = s
	}

	baseCtx, cancelBase := context.WithCancel(context.Background())

	gw := &Gateway{
		config: cfg,
		sched: scheduler.New(scheduler.Config{
			QueueSize: cfg.Runtime.QueueSize,
			Workers:   cfg.Runtime.Workers,
		}, logger),
		sessions: session.NewRegistry(session.Config{
			DefaultRobot: cfg.Robots.DefaultID,
			SystemPrompt: cfg.Prompt.System,
			HistoryLimit: cfg.Prompt.HistoryLimit,
		}, logger),
		shared:         conversation.NewWithSystem(cfg.Prompt.System, cfg.Prompt.HistoryLimit),
		completer:      completer,
		speaker:        speaker,
		store:          ledger,
		dedupe:         dedupe.New(cfg.Dedupe.TTL, cfg.Dedupe.MaxEntries),
		interactive:    intent.Interactive(),
		transportChain: intent.Transport(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:     logger.With("component", "gateway"),
		baseCtx:    baseCtx,
		cancelBase: cancelBase,
	}

	factory := o.bridgeFactory
	if factory == nil {
		factory = newMQTTBridge
	}
	gw.bridge = factory(cfg.MQTT, gw.sched, gw.HandleTransportMessage, logger)

	gw.publisher = events.NewPublisher(gw.bridge, gw.sched, events.Config{
		ActionTopic: cfg.MQTT.ActionTopic,
		ReplyTopic:  cfg.MQTT.ReplyTopic,
		// Actions are only published from scheduler tasks.
		DefaultRobot: gw.sessions.DefaultRobot,
		Hook:         events.NewReadyHook(cfg.ReadyHook.URL, cfg.ReadyHook.Timeout),
		Ledger:       ledger,
	}, logger)

	mux := http.NewServeMux()
	gw.registerRoutes(mux)
	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// Handler returns the gateway's HTTP handler.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// startRuntime starts the scheduler goroutine and waits until it accepts tasks.
func (g *Gateway) startRuntime(errCh chan<- error) {
	ctx, cancel := context.WithCancel(context.Background())
	g.stopRuntime = cancel
	g.runtimeDone = make(chan struct{})

	go func() {
		defer close(g.runtimeDone)
		if err := g.sched.Run(ctx); err != nil {
			errCh <- fmt.Errorf("scheduler: %w", err)
		}
	}()

	for !g.sched.Running() {
		select {
		case <-g.runtimeDone:
			return
		case <-time.After(time.Millisecond):
		}
	}
}

// startServers starts the runtime and the HTTP server, returning an error channel.
func (g *Gateway) startServers(httpLn net.Listener) chan error {
	errCh := make(chan error, 2)

	g.startRuntime(errCh)

	go func() {
		g.logger.Info("HTTP server listening", "addr", httpLn.Addr().String())
		if err := g.httpServer.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	return errCh
}

// waitForShutdownSignal waits for context cancellation or server error.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		g.drainErrors(errCh)
		return err
	}
}

// drainErrors drains any remaining errors from the channel.
func (g *Gateway) drainErrors(errCh chan error) {
	select {
	case additionalErr := <-errCh:
		g.logger.Error("additional server error", "error", additionalErr)
	default:
	}
}

// Run serves until ctx is canceled, then shuts down.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", g.config.Server.HTTPAddr, err)
	}

	errCh := g.startServers(ln)
	g.bridge.Connect()

	serverErr := g.waitForShutdownSignal(ctx, errCh)
	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// The Run context is already canceled at this point.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the HTTP server, closes WebSocket sessions, disconnects
// from the broker, stops the runtime and closes the ledger. It is safe to
// call more than once.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.shutdownOnce.Do(func() {
		g.logger.Info("shutting down gateway")

		var errs []error
		errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

		g.cancelBase()
		g.bridge.Close()

		if g.stopRuntime != nil {
			g.stopRuntime()
			select {
			case <-g.runtimeDone:
			case <-ctx.Done():
				errs = appendCloseError(errs, "scheduler stop", ctx.Err())
			}
		}

		g.dedupe.Close()
		if g.store != nil {
			errs = appendCloseError(errs, "store close", g.store.Close())
		}

		if len(errs) > 0 {
			g.shutdownErr = fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
		}
	})
	return g.shutdownErr
}
