package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nerrad567/gray-logic-busdecode/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-busdecode/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-busdecode/internal/knx"
	"github.com/nerrad567/gray-logic-busdecode/internal/monitor"
)

// envPrefix namespaces environment overrides, e.g. BUSDECODE_DECODER_DIRECTION.
const envPrefix = "BUSDECODE"

// Viper keys shared by the subcommands.
const (
	keyConfig        = "config"
	keyDirection     = "decoder.direction"
	keyAddressFormat = "decoder.address_format"
	keyStaleTimeout  = "decoder.stale_timeout"
	keyOutput        = "output"
	keyVerbose       = "verbose"
)

// globals carries the persistent flag values to the subcommands.
type globals struct {
	v *viper.Viper
}

func newRootCmd() *cobra.Command {
	g := &globals{v: viper.New()}

	cmd := &cobra.Command{
		Use:   "busdecode",
		Short: "KNX TP-UART bus decoder",
		Long: `busdecode decodes the byte stream between a host and a KNX TP-UART
transceiver.

Each direction is decoded on its own: tx is host to transceiver, rx is
transceiver to host. Output is one line per decoded field.

Examples:
  # Decode a logic-analyzer export of the receive line
  busdecode decode capture.csv --direction rx

  # Decode the transmit line with 2-level group addresses, as JSON
  busdecode decode tx.csv -d tx -a two_level -o json

  # Monitor a live serial tap using a config file
  busdecode monitor --config configs/config.yaml`,

		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.String("config", "", "config file (YAML); also read from "+envPrefix+"_CONFIG")
	pf.StringP("direction", "d", "", "stream direction: tx (host to transceiver) or rx (transceiver to host)")
	pf.StringP("address-format", "a", "", "group address format: three_level or two_level")
	pf.Duration("stale-timeout", 0, "discard a partial telegram after this gap between bytes (0 disables)")
	pf.StringP("output", "o", monitor.FormatText, "event output format (text, json)")
	pf.BoolP("verbose", "v", false, "enable debug logging")

	for key, flag := range map[string]string{
		keyConfig:        "config",
		keyDirection:     "direction",
		keyAddressFormat: "address-format",
		keyStaleTimeout:  "stale-timeout",
		keyOutput:        "output",
		keyVerbose:       "verbose",
	} {
		_ = g.v.BindPFlag(key, pf.Lookup(flag)) //nolint:errcheck // Lookup of a flag defined above
	}

	g.v.SetEnvPrefix(envPrefix)
	g.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	g.v.AutomaticEnv()

	cmd.AddCommand(
		newDecodeCmd(g),
		newMonitorCmd(g),
		newInventoryCmd(g),
		newDBCmd(g),
		newVersionCmd(),
	)
	return cmd
}

// loadConfig loads the config file (defaults when none is given) and applies
// flag and environment overrides on top.
//
// Returns:
//   - *config.Config: Validated configuration
//   - error: If the file cannot be read or the result is invalid
func (g *globals) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(g.v.GetString(keyConfig))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if g.v.IsSet(keyDirection) {
		cfg.Decoder.Direction = g.v.GetString(keyDirection)
	}
	if g.v.IsSet(keyAddressFormat) {
		cfg.Decoder.AddressFormat = g.v.GetString(keyAddressFormat)
	}
	if g.v.IsSet(keyStaleTimeout) {
		cfg.Decoder.StaleTimeout = g.v.GetDuration(keyStaleTimeout)
	}
	if g.v.GetBool(keyVerbose) {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// decoderOptions converts the decoder section into session options.
//
// Parameters:
//   - cfg: Decoder section of the configuration
//
// Returns:
//   - knx.Options: Parsed options
//   - error: If direction or address format is unknown
func decoderOptions(cfg config.DecoderConfig) (knx.Options, error) {
	dir, err := knx.ParseDirection(cfg.Direction)
	if err != nil {
		return knx.Options{}, err
	}
	mode, err := knx.ParseAddressingMode(cfg.AddressFormat)
	if err != nil {
		return knx.Options{}, err
	}
	return knx.Options{
		Direction:      dir,
		AddressingMode: mode,
		StaleTimeout:   cfg.StaleTimeout,
	}, nil
}

// output returns the requested event output format.
func (g *globals) output() string {
	return g.v.GetString(keyOutput)
}

// newLogger builds the logger for a command. Logs go to the command's error
// stream unless the config asks for stdout.
func newLogger(cmd *cobra.Command, cfg config.LoggingConfig) *logging.Logger {
	w := cmd.ErrOrStderr()
	if strings.EqualFold(cfg.Output, "stdout") {
		w = cmd.OutOrStdout()
	}
	return logging.NewWithWriter(cfg, version, w)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "busdecode %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
