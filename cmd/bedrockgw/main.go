// Command bedrockgw runs the Bedrock gateway: an HTTP server that accepts
// OpenAI-shaped requests and translates them to AWS Bedrock and S3 calls.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/yduwcui/bedrock-gateway/internal/server"
)

type cmd struct {
	Addr  string `help:"Listen address." default:":1975"`
	Debug bool   `help:"Enable debug logging emitted to stderr."`
}

func main() {
	var c cmd
	parsed := kong.Parse(&c,
		kong.Name("bedrockgw"),
		kong.Description("OpenAI-compatible gateway for AWS Bedrock."))

	level := slog.LevelInfo
	if c.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	parsed.FatalIfErrorf(run(&c, logger))
}

func run(c *cmd, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              c.Addr,
		Handler:           server.New(logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", c.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("shut down")
	return nil
}
