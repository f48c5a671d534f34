// Command records retrieves pages from a records listing endpoint, either
// once from the command line or behind a small HTTP proxy.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/Sternrassler/managed-records/internal/config"
	"github.com/Sternrassler/managed-records/pkg/logging"
	"github.com/Sternrassler/managed-records/pkg/records"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries state shared by subcommands.
type app struct {
	cfg    *config.Config
	rt     *config.Runtime
	logger zerolog.Logger

	baseURL  string
	logLevel string
	pretty   bool
	cache    string
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "records",
		Short: "Retrieve pages of records with filtering and aggregation",
		Long: "records fetches one page of the records listing, classifies primary colors\n" +
			"and reports ids, open records and closed primary counts with page links.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.rt == nil {
				return nil
			}
			return a.rt.Close()
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&a.baseURL, "base-url", "", "Records endpoint URL (or RECORDS_BASE_URL env)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error (or RECORDS_LOG_LEVEL env)")
	root.PersistentFlags().BoolVar(&a.pretty, "pretty", false, "Human-readable log output (or RECORDS_LOG_PRETTY env)")
	root.PersistentFlags().StringVar(&a.cache, "cache", "", "Cache backend: none, memory, redis, tiered (or RECORDS_CACHE env)")

	root.AddCommand(
		newGetCmd(a),
		newRangeCmd(a),
		newServeCmd(a),
	)

	return root
}

// setup loads the environment, applies explicitly set flags and builds
// the runtime.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.BaseURL = a.baseURL
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if flags.Changed("pretty") {
		cfg.LogPretty = a.pretty
	}
	if flags.Changed("cache") {
		cfg.Cache = a.cache
	}

	a.cfg = cfg
	a.logger = logging.Setup(cfg.Logging())

	rt, err := cfg.Build(cmd.Context(), logging.NewLogger("records"))
	if err != nil {
		a.logger.Error().Err(err).Msg("Failed to build runtime")
		return err
	}
	a.rt = rt
	return nil
}

func newGetCmd(a *app) *cobra.Command {
	var (
		page   int
		colors []string
	)

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Retrieve a single page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.rt.Retriever.Retrieve(cmd.Context(), records.PageRequest{
				Page:   page,
				Colors: colors,
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "Page number, 1-based")
	cmd.Flags().StringArrayVar(&colors, "color", nil, "Color filter, repeatable")

	return cmd
}

func newRangeCmd(a *app) *cobra.Command {
	var (
		from, to int
		colors   []string
	)

	cmd := &cobra.Command{
		Use:   "range",
		Short: "Retrieve an inclusive range of pages in parallel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := a.rt.Batch.RetrieveRange(cmd.Context(), from, to, colors)
			if len(results) > 0 {
				if werr := writeJSON(cmd.OutOrStdout(), results); werr != nil {
					return werr
				}
			}
			return err
		},
	}

	cmd.Flags().IntVar(&from, "from", 1, "First page")
	cmd.Flags().IntVar(&to, "to", 1, "Last page")
	cmd.Flags().StringArrayVar(&colors, "color", nil, "Color filter, repeatable")

	return cmd
}

func newServeCmd(a *app) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve pages over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := a.cfg.ListenAddr
			if cmd.Flags().Changed("listen") {
				addr = listen
			}
			return serve(cmd.Context(), addr, newServer(a.rt.Retriever, a.rt.Ready, logging.NewLogger("proxy")))
		},
	}

	cmd.Flags().StringVar(&listen, "listen", ":8080", "Listen address (or RECORDS_LISTEN_ADDR env)")

	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
