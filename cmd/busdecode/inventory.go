package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-busdecode/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-busdecode/internal/monitor"
	"github.com/nerrad567/gray-logic-busdecode/internal/recorder"
)

// inventory is the JSON form of the inventory command's output.
type inventory struct {
	Devices        []recorder.Device       `json:"devices"`
	GroupAddresses []recorder.GroupAddress `json:"group_addresses"`
	Telegrams      []recorder.TelegramRow  `json:"telegrams,omitempty"`
}

func newInventoryCmd(g *globals) *cobra.Command {
	var (
		dbPath string
		recent int
	)

	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "List devices and group addresses seen on the bus",
		Long: `Inventory reads the telegram database and lists every individual
address and group address that has appeared in recorded traffic.

The database path comes from the config file unless --db is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInventory(cmd, g, dbPath, recent)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database to read (default from config)")
	cmd.Flags().IntVarP(&recent, "recent", "n", 0, "also list the N most recent telegrams")
	return cmd
}

// runInventory prints the discovered devices and group addresses.
func runInventory(cmd *cobra.Command, g *globals, dbPath string, recent int) error {
	ctx := cmd.Context()

	db, err := openDatabase(ctx, g, dbPath)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // Read-only command

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	rec := recorder.New(db.DB)
	var inv inventory
	if inv.Devices, err = rec.Devices(ctx); err != nil {
		return err
	}
	if inv.GroupAddresses, err = rec.GroupAddresses(ctx); err != nil {
		return err
	}
	if recent > 0 {
		if inv.Telegrams, err = rec.RecentTelegrams(ctx, recent); err != nil {
			return err
		}
	}

	if g.output() == monitor.FormatJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(inv)
	}
	return writeInventory(cmd.OutOrStdout(), inv)
}

// writeInventory renders inv as aligned text tables.
func writeInventory(out io.Writer, inv inventory) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "DEVICE\tMESSAGES\tFIRST SEEN\tLAST SEEN\n")
	for _, d := range inv.Devices {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", d.Address, d.MessageCount, stamp(d.FirstSeen), stamp(d.LastSeen))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "GROUP ADDRESS\tMESSAGES\tLAST COMMAND\tRESPONDS\tLAST SEEN\n")
	for _, ga := range inv.GroupAddresses {
		fmt.Fprintf(w, "%s\t%d\t%s\t%t\t%s\n", ga.Address, ga.MessageCount, ga.LastCommand, ga.HasReadResponse, stamp(ga.LastSeen))
	}

	if len(inv.Telegrams) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "ID\tDIR\tSOURCE\tDESTINATION\tCOMMAND\tCRC\tRAW\n")
		for _, t := range inv.Telegrams {
			crc := "ok"
			if !t.CRCValid {
				crc = "bad"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n", t.ID, t.Direction, t.Source, t.Destination, t.Command, crc, t.RawHex)
		}
	}

	return w.Flush()
}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// openDatabase opens path, or the configured database when path is empty.
func openDatabase(ctx context.Context, g *globals, path string) (*database.DB, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	if path == "" {
		path = cfg.Database.Path
	}

	db, err := database.Open(ctx, database.Config{
		Path:        path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}
