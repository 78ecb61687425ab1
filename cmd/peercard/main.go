// Package main is the entry point for peercard, a command line tool that renders
// a maker's peer card from a social handle and an ENS name or wallet address.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zkp2p/peercard/internal/config"
	tracing "github.com/zkp2p/peercard/internal/otel"
)

// failureNotice is the only message shown to the user when generation fails
const failureNotice = "SOMETHING WENT WRONG. TRY AGAIN."

// errReported marks errors already logged and reported to the user
var errReported = errors.New("reported")

var (
	cfg            config.Config
	initTracer     = tracing.InitTracer
	shutdownTracer = func() {}
)

var rootCmd = &cobra.Command{
	Use:   "peercard",
	Short: "Render zkp2p peer cards",
	Long: `peercard renders a shareable card with a maker's avatar, identity and
trading stats, and builds the matching share link.

Configuration is read from the environment (ETH_RPC_ENDPOINT, AVATAR_URL,
STATS_URL, LOG_LEVEL, ...).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()
		cfg = config.Load()
		shutdownTracer = initTracer(cfg)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(generateCmd, resolveCmd, shareCmd)
}

// main is the entry point for the application
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runRoot(ctx); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, err)
		}
		stop()
		os.Exit(1)
	}
}

// runRoot executes the command tree and flushes the tracer. Cobra skips
// post-run hooks when a command fails, so this is the only flush point.
func runRoot(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	shutdownTracer()
	shutdownTracer = func() {}
	return err
}

// setupLogging configures the logging for the application
func setupLogging() {
	logFormat := strings.ToLower(os.Getenv("LOG_FORMAT"))
	logLevel := strings.ToLower(os.Getenv("LOG_LEVEL"))

	// Logs go to stderr so stdout only carries command output
	logrus.SetOutput(os.Stderr)

	switch logFormat {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	switch logLevel {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "info":
		logrus.SetLevel(logrus.InfoLevel)
	case "warn", "warning":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}

	logrus.Debug("Logging configured")
}
