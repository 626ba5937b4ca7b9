package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/pflag"
	"github.com/tejzpr/formgate/internal/access"
	"github.com/tejzpr/formgate/internal/admin"
	"github.com/tejzpr/formgate/internal/auth"
	"github.com/tejzpr/formgate/internal/config"
	"github.com/tejzpr/formgate/internal/db"
	"github.com/tejzpr/formgate/internal/events"
	"github.com/tejzpr/formgate/internal/handler"
	"github.com/tejzpr/formgate/internal/logging"
	"github.com/tejzpr/formgate/internal/webserver"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const version = "1.0.0"

const usage = `usage: formgate <command> [flags]

commands:
  serve         run the HTTP API
  mcp           serve the guest form tools over stdio
  admin-token   print a bearer token for the admin API
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return errors.New("a command is required")
	}
	cmd, rest := args[0], args[1:]
	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		fmt.Print(usage)
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	switch cmd {
	case "serve":
		return runServe(cfg, rest)
	case "mcp":
		return runMCP(cfg, rest)
	case "admin-token":
		return runAdminToken(cfg, rest)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// app is the wired core shared by the HTTP and MCP front ends.
type app struct {
	db          *gorm.DB
	broker      *events.Broker
	coordinator *access.Coordinator
	admin       *admin.Service
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	database, err := db.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	opts := []access.Option{access.WithLogger(logger)}
	broker := events.NewBroker()
	validator := access.NewValidator(database, opts...)
	guard := access.NewGuard(database, validator, opts...)
	return &app{
		db:          database,
		broker:      broker,
		coordinator: access.NewCoordinator(validator, guard, broker, opts...),
		admin:       admin.NewService(database, access.NewIssuer(database, opts...), cfg.FrontendURL, logger),
	}, nil
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
}

func runServe(cfg *config.Config, args []string) error {
	flags := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	flags.StringVar(&cfg.HTTPAddr, "addr", cfg.HTTPAddr, "HTTP listen address")
	flags.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "log level (debug, info, warn, error)")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if err := cfg.Auth.CheckSecret(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer logger.Sync()

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := webserver.New(webserver.Deps{
		DB:             a.db,
		Coordinator:    a.coordinator,
		Admin:          a.admin,
		Broker:         a.broker,
		JWTSecret:      cfg.Auth.JWTSecret,
		RequestTimeout: cfg.RequestTimeout,
		Logger:         logger,
	})
	return srv.Run(ctx, cfg.HTTPAddr, cfg.ShutdownTimeout)
}

func runMCP(cfg *config.Config, args []string) error {
	flags := pflag.NewFlagSet("mcp", pflag.ContinueOnError)
	flags.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "log level (debug, info, warn, error)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	// stdout carries the protocol; logs go to stderr.
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer logger.Sync()

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	s := server.NewMCPServer(
		"formgate",
		version,
		server.WithToolCapabilities(false),
	)
	handler.NewTools(a.coordinator, a.admin).Register(s)

	if err := server.ServeStdio(s); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

func runAdminToken(cfg *config.Config, args []string) error {
	var adminID string
	flags := pflag.NewFlagSet("admin-token", pflag.ContinueOnError)
	flags.StringVar(&adminID, "admin-id", "", "administrator id to embed in the token")
	flags.DurationVar(&cfg.Auth.TokenTTL, "ttl", cfg.Auth.TokenTTL, "token lifetime")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if adminID == "" {
		return errors.New("--admin-id is required")
	}
	if err := cfg.Auth.CheckSecret(); err != nil {
		return err
	}

	tok, err := auth.GenerateToken(cfg.Auth.JWTSecret, adminID, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}
