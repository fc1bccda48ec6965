// Package shutdown handles process signals and fatal startup errors.
package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"thoughtpost/pkg/logger"
)

// SetupSignalHandler returns a context canceled on SIGINT or SIGTERM.
func SetupSignalHandler(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigc
		logger.Info("signal_received", "signal", s.String(), "msg", "shutdown requested")
		cancel()
	}()
	return ctx, cancel
}

// Abort logs a fatal startup error, writes a crash dump next to the
// database and exits.
func Abort(contextMsg string, err error, dbPath string) {
	logger.Error("startup_fatal", "msg", contextMsg, "error", err)
	if path, derr := writeCrashDump(dbPath, contextMsg, err); derr != nil {
		fmt.Fprintf(os.Stderr, "failed to write crash dump: %v\n", derr)
	} else {
		logger.Info("wrote_crash_dump", "path", path)
	}
	os.Exit(2)
}

// writeCrashDump writes reason, error and goroutine stacks to a timestamped
// file under <dbPath>/state/crash.
func writeCrashDump(dbPath, reason string, err error) (string, error) {
	dir := "./crash"
	if dbPath != "" {
		dir = filepath.Join(dbPath, "state", "crash")
	}
	if e := os.MkdirAll(dir, 0o700); e != nil {
		return "", e
	}
	path := filepath.Join(dir, fmt.Sprintf("crash-%d.log", time.Now().UnixNano()))
	f, ferr := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if ferr != nil {
		return "", ferr
	}
	defer f.Close()

	fmt.Fprintf(f, "time: %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(f, "reason: %s\n", reason)
	fmt.Fprintf(f, "error: %v\n", err)
	fmt.Fprintf(f, "\n--- goroutine stacks ---\n")
	buf := make([]byte, 1<<20)
	n := runtime.Stack(buf, true)
	_, _ = f.Write(buf[:n])
	return path, nil
}
