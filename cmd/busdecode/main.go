// busdecode decodes KNX TP-UART traffic.
//
// It reads timestamped bytes from a serial tap or a logic-analyzer export,
// reassembles them into telegrams, and prints the decoded fields. In monitor
// mode the telegrams are also recorded to SQLite, published over MQTT and
// written to InfluxDB, depending on configuration.
//
// Usage:
//
//	busdecode decode capture.csv --direction rx
//	busdecode monitor --config configs/config.yaml
//	busdecode inventory --config configs/config.yaml
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/gray-logic-busdecode/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	// Cancel on Ctrl+C or SIGTERM so the monitor drains and closes cleanly.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1) //nolint:gocritic // cancel is only a signal.Stop
	}
}

// run executes the command line, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - args: Command-line arguments without the program name
//
// Returns:
//   - error: nil on success or clean shutdown
func run(ctx context.Context, args []string) error {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}
