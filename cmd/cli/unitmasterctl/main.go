package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/core-tools/hsu-unitmaster/pkg/coreapi"
	"github.com/core-tools/hsu-unitmaster/pkg/errors"
	"github.com/core-tools/hsu-unitmaster/pkg/logging"
	"github.com/core-tools/hsu-unitmaster/pkg/master"

	flags "github.com/jessevdk/go-flags"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type flagOptions struct {
	Address    string `long:"address" description:"master core endpoint (host:port)"`
	AttachPort int    `long:"port" description:"port to attach to the master on localhost"`
	Timeout    int    `long:"timeout" default:"30" description:"per-call timeout in seconds"`
	Logs       bool   `long:"logs" description:"stream collected unit logs after the health check"`
	Since      string `long:"since" description:"log cursor to resume streaming from (unit_id[:offset])"`
	Shutdown   bool   `long:"shutdown" description:"ask the master to shut down"`
}

func logPrefix(module string) string {
	return fmt.Sprintf("module: %s-client , ", module)
}

func main() {
	var opts flagOptions
	var argv []string = os.Args[1:]
	var parser = flags.NewParser(&opts, flags.HelpFlag)
	var err error
	_, err = parser.ParseArgs(argv)
	if err != nil {
		fmt.Printf("Command line flags parsing failed: %v\n", err)
		os.Exit(1)
	}

	address := opts.Address
	if address == "" && opts.AttachPort > 0 {
		address = fmt.Sprintf("127.0.0.1:%d", opts.AttachPort)
	}
	if address == "" {
		fmt.Println("Address or attach port is required")
		os.Exit(1)
	}

	logger := logging.NewLogger(
		logPrefix("unitmaster"), logging.LogFuncs{
			Debugf: newStdoutLogFunc("DEBUG"),
			Infof:  newStdoutLogFunc("INFO"),
			Warnf:  newStdoutLogFunc("WARN"),
			Errorf: newStdoutLogFunc("ERROR"),
		})

	logger.Infof("opts: %+v", opts)

	timeout := time.Duration(opts.Timeout) * time.Second
	if err := master.ValidateNetworkAddress(address); err != nil {
		logger.Errorf("Invalid address: %v", err)
		os.Exit(1)
	}
	if err := master.ValidateTimeout(timeout, "timeout"); err != nil {
		logger.Errorf("Invalid timeout: %v", err)
		os.Exit(1)
	}

	logger.Infof("Starting...")

	conn, err := grpc.Dial(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		logger.Errorf("Failed to create master connection: %v", err)
		os.Exit(1)
	}
	defer conn.Close()

	gateway := coreapi.NewGRPCClientGateway(conn, logger)

	ctx := context.Background()

	retryPingOptions := coreapi.RetryPingOptions{
		RetryAttempts: 10,
		RetryInterval: 1 * time.Second,
	}
	err = coreapi.RetryPing(ctx, gateway, retryPingOptions, logger)
	if err != nil {
		logger.Errorf("Failed to ping master: %v", err)
		os.Exit(1)
	}

	healthCtx, healthCancel := context.WithTimeout(ctx, timeout)
	health, err := gateway.GetHealth(healthCtx)
	healthCancel()
	if err != nil {
		logger.Errorf("Failed to get health: %v", err)
		os.Exit(1)
	}

	logger.Infof("Health: ok: %t, degraded: %t, detail: %s", health.Ok, health.Degraded, health.Detail)

	if opts.Logs {
		if err := streamLogs(ctx, gateway, opts.Since, logger); err != nil {
			logger.Errorf("Failed to stream logs: %v", err)
			os.Exit(1)
		}
	}

	if opts.Shutdown {
		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, timeout)
		err = gateway.Shutdown(shutdownCtx, timeout)
		shutdownCancel()
		if err != nil {
			logger.Errorf("Failed to shut down master: %v", err)
			os.Exit(1)
		}
		logger.Infof("Shutdown acknowledged")
	}

	logger.Infof("Done")
}

// streamLogs follows the master's log stream until interrupted.
func streamLogs(ctx context.Context, gateway coreapi.Contract, sinceCursor string, logger logging.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sig := make(chan os.Signal, 1)
	if runtime.GOOS == "windows" {
		signal.Notify(sig, os.Interrupt)
	} else {
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	}
	defer signal.Stop(sig)

	go func() {
		select {
		case receivedSignal := <-sig:
			logger.Infof("Log streaming interrupted by signal: %v", receivedSignal)
			cancel()
		case <-ctx.Done():
		}
	}()

	logger.Infof("Streaming logs, since: %q (Ctrl-C to stop)...", sinceCursor)

	err := gateway.StreamLogs(ctx, sinceCursor, func(record coreapi.LogRecord) error {
		fmt.Printf("%s [%s] %s\n", record.Timestamp.Format(time.RFC3339), record.Cursor, record.Line)
		return nil
	})
	if err != nil && !errors.IsCancelledError(err) {
		return err
	}
	return nil
}

func newStdoutLogFunc(level string) logging.LogFunc {
	return func(format string, args ...interface{}) {
		fmt.Printf("["+level+"] "+format+"\n", args...)
	}
}
