package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/core-tools/hsu-unitmaster/pkg/coreapi"
	"github.com/core-tools/hsu-unitmaster/pkg/logging"
	"github.com/core-tools/hsu-unitmaster/pkg/processfile"

	flags "github.com/jessevdk/go-flags"
)

type flagOptions struct {
	Port        int    `long:"port" description:"port to serve the core endpoint on (0 allocates a free port)"`
	UnitID      string `long:"unit-id" default:"unitsrv" description:"unit ID used for the port file"`
	PortFileDir string `long:"port-file-dir" description:"directory to write the port file into (skipped when empty)"`
	RunDuration int    `long:"run-duration" description:"Duration in seconds to run the unit (debug feature)"`
}

// unitCore is the core endpoint of this test unit: always healthy,
// shuts down on request and streams synthetic heartbeat records.
type unitCore struct {
	logger   logging.Logger
	started  time.Time
	shutdown chan struct{}
	once     sync.Once
}

func newUnitCore(logger logging.Logger) *unitCore {
	return &unitCore{
		logger:   logger,
		started:  time.Now(),
		shutdown: make(chan struct{}),
	}
}

func (c *unitCore) ShutdownRequested() <-chan struct{} {
	return c.shutdown
}

func (c *unitCore) Ping(ctx context.Context) error {
	return nil
}

func (c *unitCore) GetHealth(ctx context.Context) (*coreapi.HealthReport, error) {
	return &coreapi.HealthReport{
		Ok:     true,
		Detail: fmt.Sprintf("unitsrv: running, uptime: %s", time.Since(c.started).Round(time.Second)),
	}, nil
}

func (c *unitCore) Shutdown(ctx context.Context, deadline time.Duration) error {
	c.logger.Infof("Shutdown requested, deadline: %v", deadline)
	c.once.Do(func() { close(c.shutdown) })
	return nil
}

// StreamLogs emits one heartbeat record per second. The stream is
// synthetic, so cursors restart per session and sinceCursor is ignored.
func (c *unitCore) StreamLogs(ctx context.Context, sinceCursor string, sink coreapi.LogSink) error {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	sequence := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.shutdown:
			return nil
		case at := <-ticker.C:
			sequence++
			record := coreapi.LogRecord{
				Cursor:    fmt.Sprintf("unitsrv:%d", sequence),
				Timestamp: at,
				Line:      fmt.Sprintf("heartbeat %d, uptime: %s", sequence, at.Sub(c.started).Round(time.Second)),
			}
			if err := sink(record); err != nil {
				return err
			}
		}
	}
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

	fmt.Printf("Running Unitsrv, opts: %+v...\n", opts)

	logger := logging.NewLogger(
		"module: unitsrv , ", logging.LogFuncs{
			Debugf: newStdoutLogFunc("DEBUG"),
			Infof:  newStdoutLogFunc("INFO"),
			Warnf:  newStdoutLogFunc("WARN"),
			Errorf: newStdoutLogFunc("ERROR"),
		})

	ctx := context.Background()
	if opts.RunDuration > 0 {
		fmt.Printf("Using RUN DURATION of %d seconds\n", opts.RunDuration)
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(opts.RunDuration)*time.Second)
		defer cancel()
	}

	server, err := coreapi.NewServer(coreapi.ServerOptions{Port: opts.Port}, logger)
	if err != nil {
		logger.Errorf("Failed to create core server: %v", err)
		os.Exit(1)
	}

	core := newUnitCore(logger)
	coreapi.RegisterGRPCServerHandler(server.GRPCRegistrar(), core, logger)

	if opts.PortFileDir != "" {
		fileManager := processfile.NewProcessFileManager(processfile.ProcessFileConfig{
			BaseDirectory: opts.PortFileDir,
		}, logger)
		if err := fileManager.WritePortFile(opts.UnitID, server.Port()); err != nil {
			logger.Errorf("Failed to write port file: %v", err)
			os.Exit(1)
		}
		defer fileManager.RemovePortFile(opts.UnitID)
	}

	go func() {
		if err := server.Serve(); err != nil {
			logger.Errorf("Core server failed: %v", err)
		}
	}()

	// Enable signal handling
	sig := make(chan os.Signal, 1)
	if runtime.GOOS == "windows" {
		signal.Notify(sig) // Unix signals not implemented on Windows
	} else {
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	}

	fmt.Printf("Unitsrv is ready, port: %d\n", server.Port())

	select {
	case receivedSignal := <-sig:
		fmt.Printf("Unitsrv received signal: %v\n", receivedSignal)
	case <-core.ShutdownRequested():
		fmt.Printf("Unitsrv received shutdown request\n")
	case <-ctx.Done():
		fmt.Printf("Unitsrv timed out\n")
	}

	server.Stop(5 * time.Second)

	fmt.Printf("Unitsrv stopped\n")
}

func newStdoutLogFunc(level string) logging.LogFunc {
	return func(format string, args ...interface{}) {
		fmt.Printf("["+level+"] "+format+"\n", args...)
	}
}
