package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sarchlab/rv32sim/benchmarks"
)

type benchOptions struct {
	*globalOptions

	format    string
	latency   uint64
	cache     bool
	coreOnly  bool
	maxCycles uint64
}

func newBenchCmd(global *globalOptions) *cobra.Command {
	opts := &benchOptions{globalOptions: global}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run the microbenchmarks and report their timing.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.format, "format", "text", "output format: text, csv or json")
	flags.Uint64Var(&opts.latency, "latency", 1, "wait states of the program memory")
	flags.BoolVar(&opts.cache, "cache", false, "put a cache in front of the program memory")
	flags.BoolVar(&opts.coreOnly, "core", false, "run only the core benchmarks")
	flags.Uint64Var(&opts.maxCycles, "max-cycles", envUint(envMaxCycles, 0),
		"cycle limit of each benchmark (0 keeps the configured limit)")

	return cmd
}

func (o *benchOptions) run(stdout, stderr io.Writer) error {
	switch o.format {
	case "text", "csv", "json":
	default:
		return fmt.Errorf("unknown output format %q", o.format)
	}

	sys, err := o.systemConfig()
	if err != nil {
		return err
	}
	if o.maxCycles > 0 {
		sys.MaxCycles = o.maxCycles
	}
	if sys.MaxCycles == 0 {
		sys.MaxCycles = benchmarks.DefaultConfig().System.MaxCycles
	}

	cfg := benchmarks.DefaultConfig()
	cfg.System = sys
	cfg.MemoryLatency = o.latency
	cfg.EnableCache = o.cache
	cfg.Output = stdout
	cfg.Logger = o.logger(stderr)
	cfg.Verbose = o.verbosity > 0 && o.format == "text"

	harness := benchmarks.NewHarness(cfg)
	if o.coreOnly {
		harness.AddBenchmarks(benchmarks.GetCoreBenchmarks())
	} else {
		harness.AddBenchmarks(benchmarks.GetMicrobenchmarks())
	}

	results := harness.RunAll()

	switch o.format {
	case "csv":
		harness.PrintCSV(results)
	case "json":
		if err := harness.PrintJSON(results); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	default:
		harness.PrintResults(results)
	}

	if failed := harness.Report(results).Summary.Failed; failed > 0 {
		return fmt.Errorf("%d of %d benchmarks failed", failed, len(results))
	}
	return nil
}
