package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/heroku/sf-functions-go/internal/logging"
	"github.com/heroku/sf-functions-go/internal/runtime"
	"github.com/heroku/sf-functions-go/internal/session"
	"github.com/heroku/sf-functions-go/internal/version"
	"github.com/heroku/sf-functions-go/pkg/functions"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

type serveOptions struct {
	Host       string
	Port       int
	SessionTTL time.Duration
}

func (o serveOptions) addr() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

func newServeCmd(fn functions.Function, global *globalOptions) *cobra.Command {
	opts := &serveOptions{}

	serveCmd := &cobra.Command{
		Use:   "serve <project-path>",
		Short: "Serves a function project via HTTP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadProject(fn, args[0])
			if err != nil {
				return err
			}

			logger, err := logging.New(global.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			fmt.Fprintf(cmd.OutOrStdout(), "Starting %s v%s.\n", ProgramName, version.Version)

			pool := session.NewPool(opts.SessionTTL, logger)
			defer pool.Close()

			server := runtime.NewServer(runtime.NewInvoker(fn, cfg.SalesforceAPIVersion, pool, logger), logger)
			return serve(cmd.Context(), server, opts.addr(), logger)
		},
	}

	flags := serveCmd.Flags()
	flags.StringVar(&opts.Host, "host", "localhost",
		"The host on which the web server should bind")
	flags.IntVarP(&opts.Port, "port", "p", 8080,
		"The port on which the web server should listen")
	flags.DurationVar(&opts.SessionTTL, "session-ttl", session.DefaultTTL,
		"How long an idle org session is kept before its connections are closed")
	return serveCmd
}

// serve runs server until ctx is done or SIGINT/SIGTERM is received.
func serve(ctx context.Context, server *runtime.Server, addr string, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- server.Listen(addr)
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("unable to shut down server: %w", err)
	}
	return nil
}
