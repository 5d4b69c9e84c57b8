package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-busdecode/internal/monitor"
	"github.com/nerrad567/gray-logic-busdecode/internal/source"
)

func newDecodeCmd(g *globals) *cobra.Command {
	var recordPath string

	cmd := &cobra.Command{
		Use:   "decode <capture.csv>",
		Short: "Decode a logic-analyzer capture",
		Long: `Decode replays a CSV export of one TP-UART line and prints every
decoded field.

The export needs a start time column (start_time), an end time or duration
column, and a data or value column holding the byte. A type column, when
present, skips rows that are not "data".

With --record the telegrams are also stored in a SQLite database, which the
inventory command can read back.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(cmd, g, args[0], recordPath)
		},
	}

	cmd.Flags().StringVar(&recordPath, "record", "", "also record telegrams to this SQLite database")
	return cmd
}

// runDecode decodes one capture file to the command's output.
//
// Parameters:
//   - cmd: The running command (provides context and output streams)
//   - g: Global flag values
//   - path: Capture file to decode
//   - recordPath: Optional SQLite database to record into
//
// Returns:
//   - error: If the capture cannot be read or decoded
func runDecode(cmd *cobra.Command, g *globals, path, recordPath string) error {
	ctx := cmd.Context()

	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	if !g.v.GetBool(keyVerbose) {
		// Progress logs would drown the decoded output.
		cfg.Logging.Level = "warn"
	}
	log := newLogger(cmd, cfg.Logging)

	opts, err := decoderOptions(cfg.Decoder)
	if err != nil {
		return err
	}

	printer, err := monitor.NewPrinter(cmd.OutOrStdout(), g.output())
	if err != nil {
		return err
	}
	sinks := []monitor.Sink{printer}

	if recordPath != "" {
		dbCfg := cfg.Database
		dbCfg.Path = recordPath
		rec, _, closeDB, err := startRecorder(ctx, dbCfg, log)
		if err != nil {
			return err
		}
		defer closeDB()
		sinks = append(sinks, monitor.NewRecorderSink(rec))
	}

	src, err := source.OpenCapture(path)
	if err != nil {
		return err
	}
	defer src.Close() //nolint:errcheck // Read-only file

	m := monitor.New(src, opts, sinks...)
	m.SetLogger(log)
	if err := m.Run(ctx); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	if n := m.SinkErrors(); n > 0 {
		return fmt.Errorf("decoding %s: %d results could not be written", path, n)
	}
	return nil
}
