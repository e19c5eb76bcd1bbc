// Package main provides rvsim, the command-line front end of the RV32
// simulator. It runs ELF programs on the cycle-level core, runs the
// microbenchmarks and prints the built-in configurations.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sarchlab/rv32sim/config"
)

// Environment variables that provide flag defaults. They may also be set in
// a .env file in the working directory.
const (
	envVariant   = "RVSIM_VARIANT"
	envConfig    = "RVSIM_CONFIG"
	envMaxCycles = "RVSIM_MAX_CYCLES"
	envTraceDB   = "RVSIM_TRACE_DB"
)

// exitError carries the exit status of a program that ran to completion but
// did not pass.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}

func main() {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	err := newRootCmd().Execute()
	if err == nil {
		return
	}

	var exit *exitError
	if errors.As(err, &exit) {
		os.Exit(exit.code)
	}
	os.Exit(1)
}

// globalOptions are the flags shared by every subcommand.
type globalOptions struct {
	verbosity  int
	variant    string
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "rvsim",
		Short: "rvsim is a cycle-level simulator of a multi-cycle RV32 core.",
		Long: `rvsim simulates a multi-cycle RV32I core with the optional M and A ` +
			`extensions, machine and user mode, interrupts and debug triggers. ` +
			`Programs are ELF files that report their result through tohost.`,
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.CountVarP(&opts.verbosity, "verbose", "v",
		"log verbosity, repeat for traps (-vv) and every retirement (-vvv)")
	flags.StringVar(&opts.variant, "variant", envString(envVariant, config.VariantStandard),
		"core variant: "+fmt.Sprint(config.Variants()))
	flags.StringVar(&opts.configPath, "config", envString(envConfig, ""),
		"system configuration file (JSON or YAML), overrides --variant")

	rootCmd.AddCommand(
		newRunCmd(opts),
		newBenchCmd(opts),
		newConfigCmd(opts),
	)

	return rootCmd
}

// systemConfig returns the configuration selected by the global flags.
func (o *globalOptions) systemConfig() (*config.SystemConfig, error) {
	if o.configPath != "" {
		return config.LoadConfig(o.configPath)
	}
	return config.Variant(o.variant)
}

// logger returns a logger that writes to w. Verbosity 0 discards
// everything, 1 logs the run, 2 adds traps and 3 every retirement.
func (o *globalOptions) logger(w io.Writer) logr.Logger {
	if o.verbosity == 0 {
		return logr.Discard()
	}
	return newLogger(w, o.verbosity-1)
}

func newLogger(w io.Writer, verbosity int) logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			_, _ = fmt.Fprintln(w, prefix, args)
			return
		}
		_, _ = fmt.Fprintln(w, args)
	}, funcr.Options{Verbosity: verbosity})
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envUint(key string, def uint64) uint64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.ParseUint(v, 0, 64)
	if err != nil {
		return def
	}
	return n
}
