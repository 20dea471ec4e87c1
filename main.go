// Command chopsticks runs the Chopsticks game-session server.
//
// Commands:
//  1. "serve" – runs the HTTP server exposing REST API, WebSocket, and an /mcp HTTP endpoint
//  2. "mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//  3. "validate" – audits every stored game record and exits non-zero on corrupt ones
//  4. "token" – prints a signed development token for a player
//
// Settings come from the environment (and an optional .env file); flags
// override them for a single run.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
	"github.com/wricardo/mcp-training/chopsticks/api"
	"github.com/wricardo/mcp-training/chopsticks/game/config"
	"github.com/wricardo/mcp-training/chopsticks/game/service"
	"github.com/wricardo/mcp-training/chopsticks/game/session"
	"github.com/wricardo/mcp-training/chopsticks/identity"
	"github.com/wricardo/mcp-training/chopsticks/transport/mcp"
	"github.com/wricardo/mcp-training/chopsticks/transport/websocket"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Chopsticks Game Server"
)

var errInvalidRecords = errors.New("store contains invalid records")

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newCommand builds the command tree
func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "chopsticks",
		Usage:   AppName,
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "env-file", Value: ".env", Usage: "Optional .env file to load"},
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging with a console writer"},
			&cli.StringFlag{Name: "store", Usage: "Store driver: memory, file, sqlite, bolt"},
			&cli.StringFlag{Name: "store-path", Usage: "Directory (file) or database path (sqlite, bolt)"},
			&cli.StringFlag{Name: "container", Usage: "Name of the container holding all games"},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Run HTTP server with API, WebSocket, and MCP endpoint",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Usage: "HTTP listen address"},
					&cli.BoolFlag{Name: "reject-self-join", Usage: "Refuse a player joining their own game"},
					&cli.BoolFlag{Name: "ngrok", Usage: "Enable ngrok tunnel"},
					&cli.StringFlag{Name: "ngrok-domain", Usage: "Custom ngrok domain (optional)"},
				},
				Action: runServe,
			},
			{
				Name:  "mcp",
				Usage: "Run MCP stdio server with internal HTTP server",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "api-url", Value: "http://localhost:8080", Usage: "REST API to proxy tool calls to"},
					&cli.StringFlag{Name: "player", Usage: "Player identity tools act as", Sources: cli.EnvVars("CHOPSTICKS_PLAYER")},
					&cli.StringFlag{Name: "token", Usage: "Bearer token sent with every request", Sources: cli.EnvVars("CHOPSTICKS_TOKEN")},
				},
				Action: runMCP,
			},
			{
				Name:   "validate",
				Usage:  "Check every stored game record",
				Action: runValidate,
			},
			{
				Name:  "token",
				Usage: "Print a signed token for a player",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "player", Usage: "Player identity (token subject)", Required: true},
					&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour, Usage: "Token lifetime"},
				},
				Action: runToken,
			},
		},
	}
}

// loadConfig reads the environment and applies flag overrides
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("env-file"))
	if err != nil {
		return nil, err
	}

	if cmd.IsSet("store") {
		cfg.StoreDriver = cmd.String("store")
	}
	if cmd.IsSet("store-path") {
		cfg.StorePath = cmd.String("store-path")
	}
	if cmd.IsSet("container") {
		cfg.Container = cmd.String("container")
	}
	if cmd.IsSet("addr") {
		cfg.HTTPAddr = cmd.String("addr")
	}
	if cmd.IsSet("reject-self-join") {
		cfg.RejectSelfJoin = cmd.Bool("reject-self-join")
	}
	if cmd.IsSet("ngrok") {
		cfg.NgrokEnabled = cmd.Bool("ngrok")
	}
	if cmd.IsSet("ngrok-domain") {
		cfg.NgrokDomain = cmd.String("ngrok-domain")
	}
	if cmd.Bool("debug") {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger writes to stderr; stdout belongs to the MCP stdio transport
func newLogger(cfg *config.Config, console bool) zerolog.Logger {
	level, _ := cfg.Level()

	var logger zerolog.Logger
	if console {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

// app holds everything a command needs, built once per run
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	store   session.Store
	service service.GameService
	hub     *websocket.Hub
}

func newApp(cfg *config.Config, logger zerolog.Logger) (*app, error) {
	store, err := session.Open(session.Options{
		Driver:    cfg.StoreDriver,
		Path:      cfg.StorePath,
		Container: cfg.Container,
		Logger:    &logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	hub := websocket.NewHub(logger)
	gameService := service.NewGameService(store,
		service.WithLogger(logger),
		service.WithNotifier(hub),
		service.WithRejectSelfJoin(cfg.RejectSelfJoin),
	)

	logger.Info().
		Str("driver", cfg.StoreDriver).
		Str("path", cfg.StorePath).
		Str("container", cfg.Container).
		Bool("durable", cfg.Durable()).
		Msg("store opened")

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		service: gameService,
		hub:     hub,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func (a *app) resolver() identity.Resolver {
	if a.cfg.JWTSecret != "" {
		return identity.NewJWTResolver([]byte(a.cfg.JWTSecret))
	}
	return identity.NewHeaderResolver()
}

// handler builds the REST API; a non-empty mcpBaseURL also mounts /mcp
// proxying to that address
func (a *app) handler(mcpBaseURL string) http.Handler {
	opts := []api.Option{
		api.WithLogger(a.logger),
		api.WithResolver(a.resolver()),
	}
	if mcpBaseURL != "" {
		opts = append(opts, api.WithMCPHandler(mcp.NewClient(mcpBaseURL).HTTPHandler()))
	}
	return api.NewServer(a.service, a.hub, opts...)
}

// loopbackURL turns a listen address into a URL this process can call
func loopbackURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// sweepRoutine periodically removes finished games older than the retention window
func (a *app) sweepRoutine(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.sweepOnce(ctx)
		}
	}
}

func (a *app) sweepOnce(ctx context.Context) int {
	removed, err := a.service.Sweep(ctx, a.cfg.Retention)
	if err != nil {
		a.logger.Error().Err(err).Msg("sweep failed")
		return 0
	}
	if removed > 0 {
		a.logger.Info().Int("removed", removed).Dur("retention", a.cfg.Retention).Msg("swept finished games")
	}
	return removed
}

// runServe starts the HTTP server with REST API, WebSocket hub, and an /mcp endpoint.
// If ngrok is enabled, it also provisions a public tunnel.
func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, cmd.Bool("debug"))
	logger.Info().Str("version", Version).Msg("starting " + AppName)

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go a.hub.Run(ctx)

	handler := a.handler(loopbackURL(cfg.HTTPAddr))
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()

		logger.Info().
			Str("addr", cfg.HTTPAddr).
			Str("rest", loopbackURL(cfg.HTTPAddr)+"/api/games").
			Str("mcp", loopbackURL(cfg.HTTPAddr)+"/mcp").
			Msg("HTTP server listening")

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.sweepRoutine(ctx)
	}()

	if cfg.NgrokEnabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.runNgrok(ctx, handler)
		}()
	}

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	wg.Wait()
	logger.Info().Msg("server stopped")

	select {
	case err := <-serveErr:
		return fmt.Errorf("HTTP server failed: %w", err)
	default:
		return nil
	}
}

// runNgrok serves handler through an ngrok tunnel until ctx is cancelled
func (a *app) runNgrok(ctx context.Context, handler http.Handler) {
	if a.cfg.NgrokAuthToken == "" {
		a.logger.Warn().Msg("ngrok enabled but no auth token provided (set NGROK_AUTHTOKEN)")
		return
	}

	var tunnel ngrokConfig.Tunnel
	if a.cfg.NgrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(a.cfg.NgrokDomain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(a.cfg.NgrokAuthToken))
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to start ngrok tunnel")
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("failed to close ngrok tunnel")
		}
	}()

	a.logger.Info().
		Str("url", tun.URL()).
		Str("websocket", tun.URL()+"/ws?session=<session_id>").
		Msg("ngrok tunnel established")

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		a.logger.Error().Err(err).Msg("ngrok server error")
	}
	a.logger.Info().Msg("ngrok tunnel closed")
}

// runMCP runs an MCP stdio server.
// It tries to reuse the API at --api-url; if unavailable, it starts an
// internal HTTP API bound to a random loopback port and targets that.
func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, cmd.Bool("debug"))

	baseURL := cmd.String("api-url")
	logger.Info().Str("url", baseURL).Msg("checking for external API server")

	probe := &http.Client{Timeout: 2 * time.Second}
	resp, err := probe.Get(baseURL + "/healthz")
	if err == nil {
		resp.Body.Close()
	}
	if err == nil && resp.StatusCode < 500 {
		logger.Info().Str("url", baseURL).Msg("external API server found, using it for MCP")
	} else {
		logger.Info().Msg("no external API server found, starting internal HTTP server")

		a, err := newApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		go a.hub.Run(ctx)

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}

		internal := &http.Server{Handler: a.handler("")}
		go func() {
			if err := internal.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("internal HTTP server error")
			}
		}()
		defer internal.Close()

		baseURL = "http://" + listener.Addr().String()
		logger.Info().Str("url", baseURL).Msg("internal HTTP server started")
	}

	mcpClient := mcp.NewClient(baseURL,
		mcp.WithPlayer(cmd.String("player")),
		mcp.WithToken(cmd.String("token")),
	)

	logger.Info().Str("player", cmd.String("player")).Msg("MCP stdio server ready")
	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

// runValidate audits the configured store
func runValidate(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store, err := session.Open(session.Options{
		Driver:    cfg.StoreDriver,
		Path:      cfg.StorePath,
		Container: cfg.Container,
	})
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	scanner, ok := store.(session.Scanner)
	if !ok {
		return fmt.Errorf("store driver %q cannot be scanned", cfg.StoreDriver)
	}

	checked, issues, err := session.Audit(ctx, scanner)
	if err != nil {
		return err
	}

	out := cmd.Root().Writer
	for _, issue := range issues {
		fmt.Fprintf(out, "❌ %s: %v\n", issue.SessionID, issue.Err)
	}
	fmt.Fprintf(out, "Checked %d records in %s (%s): %d invalid\n", checked, cfg.Container, cfg.StoreDriver, len(issues))

	if len(issues) > 0 {
		return fmt.Errorf("%w: %d of %d", errInvalidRecords, len(issues), checked)
	}
	return nil
}

// runToken prints an HS256 token for --player
func runToken(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.JWTSecret == "" {
		return errors.New("CHOPSTICKS_JWT_SECRET is not set")
	}

	token, err := identity.IssueToken([]byte(cfg.JWTSecret), cmd.String("player"), cmd.Duration("ttl"), time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.Root().Writer, token)
	return nil
}
